package markup

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyScenario(t *testing.T) {
	got := Classify("# Title\ntext\n- [ ] task")
	require.Len(t, got, 3)

	assert.Equal(t, Line{Kind: KindHeading, Level: 1, Text: "Title", Index: 0}, got[0])
	assert.Equal(t, Line{Kind: KindText, Text: "text", Index: 1}, got[1])
	assert.Equal(t, Line{Kind: KindCheckbox, Text: "task", Checked: false, Index: 2}, got[2])
}

func TestClassifyLengthMatchesSegments(t *testing.T) {
	inputs := []string{
		"",
		"\n",
		"\n\n\n",
		"one",
		"a\nb\n",
		"# h\n\n- [ ] x\n- [X] y\n###### deep\n",
	}
	for _, in := range inputs {
		assert.Len(t, Classify(in), len(strings.Split(in, "\n")), "%q", in)
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Line
	}{
		{"h6 wins over shorter markers", "###### x", Line{Kind: KindHeading, Level: 6, Text: "x"}},
		{"h5", "##### five", Line{Kind: KindHeading, Level: 5, Text: "five"}},
		{"h4", "#### four", Line{Kind: KindHeading, Level: 4, Text: "four"}},
		{"h3", "### three", Line{Kind: KindHeading, Level: 3, Text: "three"}},
		{"h2", "## two", Line{Kind: KindHeading, Level: 2, Text: "two"}},
		{"seven hashes is text", "####### x", Line{Kind: KindText, Text: "####### x"}},
		{"missing space is text", "#x", Line{Kind: KindText, Text: "#x"}},
		{"marker without text is text", "# ", Line{Kind: KindText, Text: "# "}},
		{"unchecked", "- [ ] buy milk", Line{Kind: KindCheckbox, Text: "buy milk"}},
		{"checked lower", "- [x] done", Line{Kind: KindCheckbox, Text: "done", Checked: true}},
		{"checked upper", "- [X] done", Line{Kind: KindCheckbox, Text: "done", Checked: true}},
		{"empty checkbox is text", "- [ ] ", Line{Kind: KindText, Text: "- [ ] "}},
		{"other bracket content is text", "- [y] nope", Line{Kind: KindText, Text: "- [y] nope"}},
		{"blank becomes placeholder", "", Line{Kind: KindText, Text: EmptyPlaceholder}},
		{"plain", "hello", Line{Kind: KindText, Text: "hello"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLine(tc.line, 0))
		})
	}
}

func TestLinesIsRestartable(t *testing.T) {
	seq := Lines("a\n- [ ] b")
	var first, second []Line
	for _, l := range seq {
		first = append(first, l)
	}
	for _, l := range seq {
		second = append(second, l)
	}
	assert.Equal(t, first, second)

	// early break stops the walk
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestLineJSON(t *testing.T) {
	b, err := json.Marshal(Classify("## Sub\n- [x] done"))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"h2","text":"Sub"},
		{"type":"checkbox","text":"done","checked":true,"line_index":1}
	]`, string(b))
}

func TestToggleScenario(t *testing.T) {
	got, ok := Toggle("- [ ] buy milk\n- [ ] call mom", 0)
	require.True(t, ok)
	assert.Equal(t, "- [x] buy milk\n- [ ] call mom", got)
}

func TestToggleTwiceRestores(t *testing.T) {
	inputs := []string{
		"- [ ] a\nplain\n- [x] b",
		"# head\n- [ ] only",
	}
	for _, in := range inputs {
		for i, l := range Classify(in) {
			if l.Kind != KindCheckbox {
				continue
			}
			once, ok := Toggle(in, i)
			require.True(t, ok)
			twice, ok := Toggle(once, i)
			require.True(t, ok)
			assert.Equal(t, in, twice)
		}
	}
}

func TestToggleUppercaseUnchecks(t *testing.T) {
	got, ok := Toggle("- [X] shout", 0)
	require.True(t, ok)
	assert.Equal(t, "- [ ] shout", got)
}

func TestToggleNoop(t *testing.T) {
	content := "- [ ] a\n- [ ] b"
	for _, idx := range []int{2, 10, -1} {
		got, ok := Toggle(content, idx)
		assert.False(t, ok, "index %d", idx)
		assert.Equal(t, content, got)
	}
	got, ok := Toggle("plain\n- [ ] b", 0)
	assert.False(t, ok)
	assert.Equal(t, "plain\n- [ ] b", got)
}

func TestSetChecked(t *testing.T) {
	got, ok := SetChecked("- [ ] a", 0, true)
	require.True(t, ok)
	assert.Equal(t, "- [x] a", got)

	got, ok = SetChecked("- [x] a", 0, true)
	require.True(t, ok)
	assert.Equal(t, "- [x] a", got)

	_, ok = SetChecked("text", 0, false)
	assert.False(t, ok)
}
