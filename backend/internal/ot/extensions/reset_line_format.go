package extensions

import (
	"strings"

	"noteserver/backend/internal/ot/delta"
)

// ResetLineFormatOnNewLine handles Enter at the end of a header line: the
// inserted newline keeps the line's attributes so the header terminates
// correctly, and the original line boundary drops its header so the next
// line starts plain.
type ResetLineFormatOnNewLine struct{}

func (ResetLineFormatOnNewLine) Name() string { return "ResetLineFormatOnNewLine" }

func (ResetLineFormatOnNewLine) Apply(doc delta.Delta, replaceLen int, text string, index int) (delta.Delta, bool) {
	if !isNewline(text) {
		return delta.Delta{}, false
	}
	iter := delta.FromOffset(doc, index)
	next, ok := iter.NextOp()
	if !ok || !next.IsInsert() || !strings.HasPrefix(next.Text, "\n") {
		return delta.Delta{}, false
	}
	if v, has := next.Attrs[delta.KeyHeader]; !has || v == nil {
		return delta.Delta{}, false
	}

	return delta.NewBuilder().
		Retain(index + replaceLen).
		InsertAttrs("\n", next.Attributes()).
		RetainAttrs(1, delta.Attributes{delta.KeyHeader: nil}).
		Build(), true
}
