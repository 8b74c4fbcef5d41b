package document

import (
	"errors"
	"testing"

	"noteserver/backend/internal/ot/delta"
)

func TestInsertAndContent(t *testing.T) {
	doc := New()
	if _, rev, err := doc.Insert(0, "hello", 0); err != nil || rev != 1 {
		t.Fatalf("insert: rev=%d err=%v", rev, err)
	}
	if _, rev, err := doc.Insert(5, " world", 0); err != nil || rev != 2 {
		t.Fatalf("insert: rev=%d err=%v", rev, err)
	}
	if got := doc.String(); got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestInsertReplacesSelection(t *testing.T) {
	doc := New()
	if _, _, err := doc.Insert(0, "abcdef", 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := doc.Insert(1, "XY", 3); err != nil {
		t.Fatal(err)
	}
	if got := doc.String(); got != "aXYef" {
		t.Fatalf("got %q", got)
	}
}

func TestInsertCountsCodeUnits(t *testing.T) {
	doc := New()
	if _, _, err := doc.Insert(0, "a😀b", 0); err != nil {
		t.Fatal(err)
	}
	// Insert right after the emoji: its pair counts as 2 units.
	if _, _, err := doc.Insert(3, "!", 0); err != nil {
		t.Fatal(err)
	}
	if got := doc.String(); got != "a😀!b" {
		t.Fatalf("got %q", got)
	}
}

func TestFormat(t *testing.T) {
	doc := New()
	if _, _, err := doc.Insert(0, "hello", 0); err != nil {
		t.Fatal(err)
	}
	change, _, err := doc.Format(delta.NewInterval(0, 5), delta.Attributes{delta.KeyBold: true})
	if err != nil {
		t.Fatal(err)
	}
	if change.IsEmpty() {
		t.Fatal("format produced empty change")
	}
	ops := doc.Delta().Ops()
	if len(ops) != 1 || ops[0].Attributes()[delta.KeyBold] != true {
		t.Fatalf("got %v", ops)
	}
}

func TestDelete(t *testing.T) {
	doc := New()
	if _, _, err := doc.Insert(0, "hello world", 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := doc.Delete(delta.NewInterval(5, 11)); err != nil {
		t.Fatal(err)
	}
	if got := doc.String(); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestUndoRedo(t *testing.T) {
	doc := New()
	if _, _, err := doc.Insert(0, "hello", 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := doc.Insert(5, " world", 0); err != nil {
		t.Fatal(err)
	}

	if !doc.CanUndo() {
		t.Fatal("undo should be available")
	}
	if _, _, err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := doc.String(); got != "hello" {
		t.Fatalf("after undo: %q", got)
	}

	if !doc.CanRedo() {
		t.Fatal("redo should be available")
	}
	if _, _, err := doc.Redo(); err != nil {
		t.Fatal(err)
	}
	if got := doc.String(); got != "hello world" {
		t.Fatalf("after redo: %q", got)
	}
}

func TestUndoRestoresDeletedText(t *testing.T) {
	doc := New()
	if _, _, err := doc.Insert(0, "hello world", 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := doc.Delete(delta.NewInterval(0, 6)); err != nil {
		t.Fatal(err)
	}
	if got := doc.String(); got != "world" {
		t.Fatalf("after delete: %q", got)
	}
	if _, _, err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := doc.String(); got != "hello world" {
		t.Fatalf("after undo: %q", got)
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	doc := New()
	if _, _, err := doc.Undo(); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("want ErrNoHistory, got %v", err)
	}
	if _, _, err := doc.Redo(); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("want ErrNoHistory, got %v", err)
	}
}

func TestEditClearsRedo(t *testing.T) {
	doc := New()
	doc.Insert(0, "a", 0)
	doc.Insert(1, "b", 0)
	doc.Undo()
	if !doc.CanRedo() {
		t.Fatal("redo should be available")
	}
	doc.Insert(1, "c", 0)
	if doc.CanRedo() {
		t.Fatal("fresh edit must clear redo")
	}
}

func TestComposeSkipsHistory(t *testing.T) {
	doc := New()
	doc.Insert(0, "local", 0)
	remote := delta.NewBuilder().Retain(5).Insert("!").Build()
	rev, err := doc.Compose(remote)
	if err != nil {
		t.Fatal(err)
	}
	if rev != 2 {
		t.Fatalf("rev = %d", rev)
	}
	if got := doc.String(); got != "local!" {
		t.Fatalf("got %q", got)
	}
	// Undo must revert the local edit, not the remote one.
	doc.Undo()
	if got := doc.String(); got != "!" {
		t.Fatalf("after undo: %q", got)
	}
}

func TestHeaderAutoExitThroughDocument(t *testing.T) {
	doc := New()
	doc.Insert(0, "# H\n\n", 0)
	doc.Format(delta.NewInterval(4, 5), delta.Attributes{delta.KeyHeader: 1})
	// Enter on the empty header line rewrites the boundary instead of
	// inserting another newline.
	before := doc.String()
	if _, _, err := doc.Insert(4, "\n", 0); err != nil {
		t.Fatal(err)
	}
	if doc.String() != before {
		t.Fatalf("auto exit should not add text: %q -> %q", before, doc.String())
	}
	ops := doc.Delta().Ops()
	last := ops[len(ops)-1].Attributes()
	if last[delta.KeyHeader] != 1 {
		t.Fatalf("header lost on boundary: %v", last)
	}
}

func TestRevIDMonotonic(t *testing.T) {
	doc := New()
	doc.SetRevID(41)
	_, rev, err := doc.Insert(0, "x", 0)
	if err != nil {
		t.Fatal(err)
	}
	if rev != 42 {
		t.Fatalf("rev = %d, want 42", rev)
	}
}
