// Package extensions rewrites raw keystrokes into richer deltas before they
// are composed into a document: exiting a block on an empty line, continuing
// lists, carrying inline formats across typed text, and so on.
package extensions

import (
	"noteserver/backend/internal/ot/delta"
)

// InsertExtension inspects a pending insertion against the current document
// delta and may replace it with a rewritten edit. replaceLen covers selection
// replacement; index is the code-unit insertion point.
type InsertExtension interface {
	Name() string
	Apply(doc delta.Delta, replaceLen int, text string, index int) (delta.Delta, bool)
}

// Pipeline runs extensions in priority order; the first rewrite wins. More
// specific rules sit ahead of general ones, so the order of the slice is
// part of the behaviour.
type Pipeline struct {
	exts []InsertExtension
}

func NewPipeline() *Pipeline {
	return &Pipeline{exts: []InsertExtension{
		AutoExitBlock{},
		ResetLineFormatOnNewLine{},
		PreserveBlockFormatOnInsert{},
		PreserveInlineFormat{},
	}}
}

// Apply produces the edit delta for a keystroke. When no extension claims the
// insertion a plain retain/insert/delete delta is returned.
func (p *Pipeline) Apply(doc delta.Delta, replaceLen int, text string, index int) delta.Delta {
	for _, ext := range p.exts {
		if d, ok := ext.Apply(doc, replaceLen, text, index); ok {
			return d
		}
	}
	return plainInsert(replaceLen, text, index)
}

func plainInsert(replaceLen int, text string, index int) delta.Delta {
	return delta.NewBuilder().
		Retain(index).
		Insert(text).
		Delete(replaceLen).
		Build()
}
