// Package document is the editing façade over a single rich-text note: it
// owns the current delta, pushes keystrokes through the insert-extension
// pipeline, and keeps the invert-based undo history.
package document

import (
	"errors"

	"noteserver/backend/internal/ot/delta"
	"noteserver/backend/internal/ot/extensions"
)

var ErrNoHistory = errors.New("NO_HISTORY")

type Document struct {
	delta    delta.Delta
	pipeline *extensions.Pipeline
	history  *History
	revID    int64
}

func New() *Document {
	return FromDelta(delta.New())
}

// FromDelta opens a document over an existing content delta (inserts only).
func FromDelta(d delta.Delta) *Document {
	return &Document{
		delta:    d,
		pipeline: extensions.NewPipeline(),
		history:  NewHistory(),
	}
}

func (doc *Document) Delta() delta.Delta { return doc.delta }
func (doc *Document) RevID() int64       { return doc.revID }

// SetRevID aligns the document's revision counter with an external source,
// e.g. after loading a snapshot.
func (doc *Document) SetRevID(revID int64) { doc.revID = revID }

// String returns the concatenated insert texts.
func (doc *Document) String() string { return doc.delta.Content() }

// Insert runs the keystroke through the extension pipeline and composes the
// resulting edit. It returns the edit delta and the new revision id.
func (doc *Document) Insert(index int, text string, replaceLen int) (delta.Delta, int64, error) {
	change := doc.pipeline.Apply(doc.delta, replaceLen, text, index)
	return doc.applyChange(change)
}

// Format re-attributes the interval without changing text.
func (doc *Document) Format(iv delta.Interval, attrs delta.Attributes) (delta.Delta, int64, error) {
	change := delta.NewBuilder().
		Retain(iv.Start).
		RetainAttrs(iv.Size(), attrs).
		Build()
	return doc.applyChange(change)
}

// Delete removes the interval.
func (doc *Document) Delete(iv delta.Interval) (delta.Delta, int64, error) {
	change := delta.NewBuilder().
		Retain(iv.Start).
		Delete(iv.Size()).
		Build()
	return doc.applyChange(change)
}

// Compose applies an externally produced delta (e.g. a reconciled remote
// revision) without recording history.
func (doc *Document) Compose(change delta.Delta) (int64, error) {
	composed, err := doc.delta.Compose(change)
	if err != nil {
		return doc.revID, err
	}
	doc.delta = composed
	doc.revID++
	return doc.revID, nil
}

func (doc *Document) applyChange(change delta.Delta) (delta.Delta, int64, error) {
	base := doc.delta.Content()
	composed, err := doc.delta.Compose(change)
	if err != nil {
		return delta.Delta{}, doc.revID, err
	}
	doc.history.Record(change.Invert(base))
	doc.delta = composed
	doc.revID++
	return change, doc.revID, nil
}

// Undo reverts the latest edit and returns the delta that did so.
func (doc *Document) Undo() (delta.Delta, int64, error) {
	inverse, ok := doc.history.PopUndo()
	if !ok {
		return delta.Delta{}, doc.revID, ErrNoHistory
	}
	base := doc.delta.Content()
	composed, err := doc.delta.Compose(inverse)
	if err != nil {
		return delta.Delta{}, doc.revID, err
	}
	doc.history.PushRedo(inverse.Invert(base))
	doc.delta = composed
	doc.revID++
	return inverse, doc.revID, nil
}

// Redo re-applies the latest undone edit.
func (doc *Document) Redo() (delta.Delta, int64, error) {
	change, ok := doc.history.PopRedo()
	if !ok {
		return delta.Delta{}, doc.revID, ErrNoHistory
	}
	base := doc.delta.Content()
	composed, err := doc.delta.Compose(change)
	if err != nil {
		return delta.Delta{}, doc.revID, err
	}
	doc.history.PushUndo(change.Invert(base))
	doc.delta = composed
	doc.revID++
	return change, doc.revID, nil
}

func (doc *Document) CanUndo() bool { return doc.history.CanUndo() }
func (doc *Document) CanRedo() bool { return doc.history.CanRedo() }
