package editor

import (
	"strings"

	"github.com/mithrel/inkwell/internal/markup"
)

// continuation is what Enter inserts on a non-empty checklist item.
const continuation = "\n" + markup.UncheckedPrefix

// EnterResult is the editor state after an Enter keypress. When Handled is
// false the caller should fall back to inserting a plain newline; Content
// and Caret are then the inputs unchanged.
type EnterResult struct {
	Content string `json:"content"`
	Caret   int    `json:"caret"`
	Handled bool   `json:"handled"`
}

// lineBounds returns [start, end) of the line holding offset; end points
// at the terminating newline or len(content).
func lineBounds(content string, offset int) (int, int) {
	start := strings.LastIndexByte(content[:offset], '\n') + 1
	end := len(content)
	if i := strings.IndexByte(content[offset:], '\n'); i >= 0 {
		end = offset + i
	}
	return start, end
}

// HandleEnter applies checklist continuation for an Enter pressed at caret.
//
// On "- [ ] text" it inserts "\n- [ ] " at the caret. On an empty "- [ ] "
// item it removes the line (and its newline) so the list ends. Any other
// line is left to the default newline behaviour.
func HandleEnter(content string, caret int) EnterResult {
	unhandled := EnterResult{Content: content, Caret: caret}
	if !ValidOffset(content, caret) {
		return unhandled
	}
	start, end := lineBounds(content, caret)
	line := content[start:end]
	rest, ok := strings.CutPrefix(line, markup.UncheckedPrefix)
	if !ok {
		return unhandled
	}

	if strings.TrimSpace(rest) != "" {
		return EnterResult{
			Content: content[:caret] + continuation + content[caret:],
			Caret:   caret + len(continuation),
			Handled: true,
		}
	}

	// Empty item: drop the line with its newline. On the last line there is
	// no newline to eat, which leaves the caret on a fresh blank line.
	cutTo := end
	if end < len(content) {
		cutTo = end + 1
	}
	return EnterResult{
		Content: content[:start] + content[cutTo:],
		Caret:   start,
		Handled: true,
	}
}
