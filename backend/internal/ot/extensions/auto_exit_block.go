package extensions

import (
	"noteserver/backend/internal/ot/delta"
)

// AutoExitBlock leaves a block when the user presses Enter on an empty line
// inside it. The rewrite keeps any header on the line and tombstones the
// rest, so the fresh line escapes the block without losing heading
// semantics.
type AutoExitBlock struct{}

func (AutoExitBlock) Name() string { return "AutoExitBlock" }

func (AutoExitBlock) Apply(doc delta.Delta, replaceLen int, text string, index int) (delta.Delta, bool) {
	if !isNewline(text) {
		return delta.Delta{}, false
	}
	if !isEmptyLineAtIndex(doc, index) {
		return delta.Delta{}, false
	}

	iter := delta.FromOffset(doc, index)
	next, ok := iter.NextOp()
	if !ok {
		return delta.Delta{}, false
	}
	attrs := next.Attributes()
	if attrs.IsEmpty() {
		return delta.Delta{}, false
	}
	// The block wrapper must be a single-code-unit boundary.
	if next.Len() > 1 {
		return delta.Delta{}, false
	}
	// Same non-header attributes on the following line boundary means we are
	// still inside the block, not at its exit.
	if nlOp, _, found := iter.NextOpWithNewline(); found {
		if attributesExceptHeader(next).Equal(attributesExceptHeader(nlOp)) {
			return delta.Delta{}, false
		}
	}

	attrs.MarkAllRemovedExcept(delta.KeyHeader)
	// Tombstone the baseline inline/list keys as well: the editor may carry
	// them as line defaults without materializing them on the boundary op.
	for _, k := range []string{delta.KeyBold, delta.KeyItalic, delta.KeyList} {
		if _, present := attrs[k]; !present {
			attrs[k] = nil
		}
	}

	return delta.NewBuilder().
		Retain(index + replaceLen).
		RetainAttrs(1, attrs).
		Build(), true
}
