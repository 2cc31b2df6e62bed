package editor

import (
	"sync"
	"unicode/utf8"
)

// Caret remembers the last cursor offset observed on an editing surface.
// An unobserved caret sits at 0.
type Caret struct {
	mu     sync.Mutex
	offset int
	seen   bool
}

// Observe records the offset reported by a focus or change event.
func (c *Caret) Observe(offset int) {
	c.mu.Lock()
	c.offset = offset
	c.seen = true
	c.mu.Unlock()
}

// Offset returns the last observed offset, or 0.
func (c *Caret) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Observed reports whether any offset has been recorded.
func (c *Caret) Observed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen
}

// ValidOffset reports whether offset is a byte offset within
// [0, len(content)] that does not fall inside a multi-byte rune.
func ValidOffset(content string, offset int) bool {
	if offset < 0 || offset > len(content) {
		return false
	}
	return offset == len(content) || utf8.RuneStart(content[offset])
}

// Insert splices block into content at offset. An invalid offset appends
// instead.
func Insert(content, block string, offset int) string {
	if !ValidOffset(content, offset) {
		return content + block
	}
	return content[:offset] + block + content[offset:]
}
