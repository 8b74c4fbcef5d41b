package extensions

import (
	"noteserver/backend/internal/ot/delta"
)

// PreserveBlockFormatOnInsert continues a block across Enter: pressing the
// key inside a list, quote or code block inserts a newline carrying the same
// block attributes, so the next line stays part of the block.
type PreserveBlockFormatOnInsert struct{}

func (PreserveBlockFormatOnInsert) Name() string { return "PreserveBlockFormatOnInsert" }

func (PreserveBlockFormatOnInsert) Apply(doc delta.Delta, replaceLen int, text string, index int) (delta.Delta, bool) {
	if !isNewline(text) {
		return delta.Delta{}, false
	}
	iter := delta.FromOffset(doc, index)
	nlOp, _, found := iter.NextOpWithNewline()
	if !found {
		return delta.Delta{}, false
	}
	block := blockAttributes(nlOp.Attrs)
	if block.IsEmpty() {
		return delta.Delta{}, false
	}

	return delta.NewBuilder().
		Retain(index).
		InsertAttrs("\n", block).
		Delete(replaceLen).
		Build(), true
}
