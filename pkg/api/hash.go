package api

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash returns a deterministic BLAKE3 hash of the document's editable state.
// It covers ID, Kind, owner, Title and Content; timestamps and Version are
// excluded so two saves of identical text hash the same.
func (d Document) Hash() string {
	h := blake3.New()

	// Null delimiters keep field boundaries unambiguous.
	h.Write([]byte(d.ID))
	h.Write([]byte{0})

	h.Write([]byte(d.Kind))
	h.Write([]byte{0})

	h.Write([]byte(d.UserID))
	h.Write([]byte{0})

	h.Write([]byte(d.Title))
	h.Write([]byte{0})

	h.Write([]byte(d.Content))

	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
