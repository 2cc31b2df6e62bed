// Command generate_sample writes a deterministic set of notes and
// blueprints in the export layout, ready for `inkwell-cli import --dir`.
package main

import (
	"flag"
	"fmt"
	"log"
	mrand "math/rand"
	"strings"
	"time"

	"github.com/mithrel/inkwell/internal/transfer"
	"github.com/mithrel/inkwell/pkg/api"
)

var chores = []string{
	"water plants", "pay rent", "call mum", "renew passport", "book dentist",
	"clean fridge", "backup laptop", "buy stamps", "return library books",
	"sort receipts", "change bedsheets", "defrost freezer",
}

func main() {
	dir := flag.String("dir", "sample", "output directory")
	total := flag.Int("n", 200, "number of notes")
	flag.Parse()

	// Deterministic seed for reproducible output
	mr := mrand.New(mrand.NewSource(42))
	base := time.Now().UTC()

	docs := make([]api.Document, 0, *total+3)
	for i := 0; i < *total; i++ {
		// Stagger timestamps backwards to look natural
		created := base.Add(-time.Duration(30*i+mr.Intn(60)) * time.Minute)
		updated := created
		if mr.Float64() < 0.3 {
			updated = created.Add(time.Duration(mr.Intn(180)) * time.Minute)
		}
		docs = append(docs, api.Document{
			ID:        fmt.Sprintf("sample-note-%03d", i+1),
			Kind:      api.KindNote,
			Title:     fmt.Sprintf("Sample Note %03d", i+1),
			Content:   sampleChecklist(mr, 1+mr.Intn(5)),
			CreatedAt: created,
			UpdatedAt: updated,
		})
	}
	for i, title := range []string{"Morning", "Weekly review", "Travel"} {
		docs = append(docs, api.Document{
			ID:        fmt.Sprintf("sample-blueprint-%d", i+1),
			Kind:      api.KindBlueprint,
			Title:     title,
			Content:   "# " + title + "\n" + sampleChecklist(mr, 3),
			CreatedAt: base,
			UpdatedAt: base,
		})
	}

	n, err := transfer.ExportDir(*dir, docs)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %d documents to %s\n", n, *dir)
}

// sampleChecklist returns k distinct items, roughly a quarter checked.
func sampleChecklist(r *mrand.Rand, k int) string {
	if k > len(chores) {
		k = len(chores)
	}
	var b strings.Builder
	for _, j := range r.Perm(len(chores))[:k] {
		mark := "- [ ] "
		if r.Intn(4) == 0 {
			mark = "- [x] "
		}
		b.WriteString(mark + chores[j] + "\n")
	}
	return b.String()
}
