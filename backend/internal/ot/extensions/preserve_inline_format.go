package extensions

import (
	"strings"

	"noteserver/backend/internal/ot/delta"
)

// PreserveInlineFormat carries inline formatting over typed text: characters
// entered directly after bold (or coloured, struck, ...) content inherit the
// same attributes. Links are deliberately not extended.
type PreserveInlineFormat struct{}

func (PreserveInlineFormat) Name() string { return "PreserveInlineFormat" }

func (PreserveInlineFormat) Apply(doc delta.Delta, replaceLen int, text string, index int) (delta.Delta, bool) {
	if isNewline(text) || index == 0 {
		return delta.Delta{}, false
	}
	// The op segment holding the character just before the caret.
	iter := delta.FromOffset(doc, index-1)
	prev, ok := iter.NextOpWithLen(1)
	if !ok || !prev.IsInsert() || strings.HasPrefix(prev.Text, "\n") {
		return delta.Delta{}, false
	}
	if _, linked := prev.Attrs[delta.KeyLink]; linked {
		return delta.Delta{}, false
	}
	inline := inlineAttributes(prev.Attrs)
	if inline.IsEmpty() {
		return delta.Delta{}, false
	}

	return delta.NewBuilder().
		Retain(index).
		InsertAttrs(text, inline).
		Delete(replaceLen).
		Build(), true
}
