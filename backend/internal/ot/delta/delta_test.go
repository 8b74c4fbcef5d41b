package delta

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustApply(t *testing.T, d Delta, doc string) string {
	t.Helper()
	out, err := d.Apply(doc)
	if err != nil {
		t.Fatalf("apply %s on %q: %v", d, doc, err)
	}
	return out
}

// docApply folds a (possibly chopped) change into doc the way the document
// facade does: by composing onto the document delta.
func docApply(t *testing.T, doc string, d Delta) string {
	t.Helper()
	docDelta := New()
	if doc != "" {
		docDelta = NewBuilder().Insert(doc).Build()
	}
	out, err := docDelta.Compose(d)
	if err != nil {
		t.Fatalf("compose %s onto %q: %v", d, doc, err)
	}
	return out.Content()
}

func TestUtf16Len(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"hello", 5},
		{"héllo", 5},
		{"你好", 2},
		{"a😀b", 4}, // the emoji is a surrogate pair
	}
	for _, c := range cases {
		if got := Utf16Len(c.in); got != c.want {
			t.Errorf("Utf16Len(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestUtf16SubStr(t *testing.T) {
	s := "a😀b"
	if got := Utf16SubStr(s, NewInterval(0, 1)); got != "a" {
		t.Errorf("sub [0,1) = %q, want \"a\"", got)
	}
	if got := Utf16SubStr(s, NewInterval(1, 3)); got != "😀" {
		t.Errorf("sub [1,3) = %q, want the emoji", got)
	}
	// A cut through the middle of a surrogate pair excludes the rune.
	if got := Utf16SubStr(s, NewInterval(1, 2)); got != "" {
		t.Errorf("sub [1,2) = %q, want empty", got)
	}
	if got := Utf16SubStr(s, NewInterval(3, 4)); got != "b" {
		t.Errorf("sub [3,4) = %q, want \"b\"", got)
	}
}

func TestApply(t *testing.T) {
	d := NewBuilder().Retain(5).Insert(" world").Build()
	// Retain(5) trails nothing, so base len matches "hello" exactly.
	if got := mustApply(t, d, "hello"); got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestApplyBaseLenMismatch(t *testing.T) {
	d := NewBuilder().Retain(10).Insert("x").Build()
	if _, err := d.Apply("short"); !errors.Is(err, ErrApplyMismatch) {
		t.Fatalf("want ErrApplyMismatch, got %v", err)
	}
}

func TestApplyCountsCodeUnits(t *testing.T) {
	// Deleting 2 units removes the whole emoji.
	d := NewBuilder().Retain(1).Delete(2).Insert("!").Build()
	if got := mustApply(t, d, "a😀"); got != "a!" {
		t.Fatalf("got %q", got)
	}
}

func TestCoalescing(t *testing.T) {
	d := NewBuilder().Insert("ab").Insert("cd").Retain(2).Retain(3).Delete(1).Delete(2).Build()
	ops := d.Ops()
	if len(ops) != 3 {
		t.Fatalf("want 3 ops after coalescing, got %d: %v", len(ops), ops)
	}
	if ops[0].Text != "abcd" || ops[1].N != 5 || ops[2].N != 3 {
		t.Fatalf("unexpected ops: %v", ops)
	}
}

func TestCoalescingKeepsTombstonesApart(t *testing.T) {
	// A retain clearing bold must not fold into a plain retain.
	d := New()
	d.retain(2, nil)
	d.retain(3, Attributes{KeyBold: nil})
	if len(d.Ops()) != 2 {
		t.Fatalf("tombstone retain merged away: %v", d.Ops())
	}
}

func TestInsertBeforeDelete(t *testing.T) {
	d := NewBuilder().Retain(1).Delete(2).Insert("XY").Build()
	ops := d.Ops()
	if len(ops) != 3 || !ops[1].IsInsert() || !ops[2].IsDelete() {
		t.Fatalf("insert should order before delete: %v", ops)
	}
	if got := mustApply(t, d, "abc"); got != "aXY" {
		t.Fatalf("got %q", got)
	}
}

func TestChopDropsTrailingPlainRetain(t *testing.T) {
	d := NewBuilder().Insert("x").Retain(4).Build()
	if len(d.Ops()) != 1 {
		t.Fatalf("trailing plain retain kept: %v", d.Ops())
	}
	if d.BaseLen() != 0 {
		t.Fatalf("base len not adjusted: %d", d.BaseLen())
	}
	// An attributed trailing retain stays.
	d2 := NewBuilder().Insert("x").RetainAttrs(4, Attributes{KeyBold: true}).Build()
	if len(d2.Ops()) != 2 {
		t.Fatalf("attributed trailing retain dropped: %v", d2.Ops())
	}
}

func TestCompose(t *testing.T) {
	a := NewBuilder().Insert("hello").Build()
	b := NewBuilder().Retain(5).Insert(" world").Build()
	ab, err := a.Compose(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := ab.Content(); got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestComposeShorterRight(t *testing.T) {
	// The right delta may cover a prefix of the left's output.
	a := NewBuilder().Insert("hello").Build()
	b := NewBuilder().Insert("X").Build()
	ab, err := a.Compose(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := ab.Content(); got != "Xhello" {
		t.Fatalf("got %q", got)
	}
}

func TestComposeInsertThenDeleteCancels(t *testing.T) {
	a := NewBuilder().Insert("abc").Build()
	b := NewBuilder().Delete(3).Build()
	ab, err := a.Compose(b)
	if err != nil {
		t.Fatal(err)
	}
	if !ab.IsEmpty() {
		t.Fatalf("want empty delta, got %s", ab)
	}
}

func TestComposeRetainMergesAttributes(t *testing.T) {
	a := NewBuilder().RetainAttrs(3, Attributes{KeyBold: true}).Build()
	b := NewBuilder().RetainAttrs(3, Attributes{KeyItalic: true, KeyBold: nil}).Build()
	ab, err := a.Compose(b)
	if err != nil {
		t.Fatal(err)
	}
	ops := ab.Ops()
	if len(ops) != 1 {
		t.Fatalf("got %v", ops)
	}
	// The bold tombstone must survive retain/retain composition.
	attrs := ops[0].Attributes()
	if v, ok := attrs[KeyBold]; !ok || v != nil {
		t.Fatalf("bold tombstone lost: %v", attrs)
	}
	if attrs[KeyItalic] != true {
		t.Fatalf("italic lost: %v", attrs)
	}
}

func TestComposeInsertDropsTombstones(t *testing.T) {
	a := NewBuilder().Insert("hi").Build()
	b := NewBuilder().RetainAttrs(2, Attributes{KeyBold: nil, KeyItalic: true}).Build()
	ab, err := a.Compose(b)
	if err != nil {
		t.Fatal(err)
	}
	attrs := ab.Ops()[0].Attributes()
	if _, ok := attrs[KeyBold]; ok {
		t.Fatalf("tombstone kept on insert: %v", attrs)
	}
	if attrs[KeyItalic] != true {
		t.Fatalf("italic lost: %v", attrs)
	}
}

func TestComposeMismatch(t *testing.T) {
	a := NewBuilder().Insert("ab").Build()
	b := NewBuilder().Retain(5).Insert("x").Build()
	if _, err := a.Compose(b); !errors.Is(err, ErrComposeMismatch) {
		t.Fatalf("want ErrComposeMismatch, got %v", err)
	}
}

func TestTransformConcurrentInserts(t *testing.T) {
	// Both sides insert at index 0 of an empty document; the receiver's own
	// insert keeps the left position.
	a := NewBuilder().Insert("X").Build()
	b := NewBuilder().Insert("Y").Build()

	aPrime, bPrime, err := a.Transform(b)
	if err != nil {
		t.Fatal(err)
	}

	// Both composition orders converge on "XY".
	left, err := a.Compose(bPrime)
	if err != nil {
		t.Fatal(err)
	}
	right, err := b.Compose(aPrime)
	if err != nil {
		t.Fatal(err)
	}
	if got := left.Content(); got != "XY" {
		t.Fatalf("a∘b' produced %q", got)
	}
	if got := right.Content(); got != "XY" {
		t.Fatalf("b∘a' produced %q", got)
	}
}

func TestTransformInsertAgainstDelete(t *testing.T) {
	// Over "abc": a inserts X after "a", b wipes the document.
	a := FromOps([]Op{Retain(1), Insert("X"), Retain(2)})
	b := FromOps([]Op{Delete(3)})

	aPrime, bPrime, err := a.Transform(b)
	if err != nil {
		t.Fatal(err)
	}
	left, err := a.Compose(bPrime)
	if err != nil {
		t.Fatal(err)
	}
	right, err := b.Compose(aPrime)
	if err != nil {
		t.Fatal(err)
	}
	if got := docApply(t, "abc", left); got != "X" {
		t.Fatalf("a∘b' produced %q", got)
	}
	if got := docApply(t, "abc", right); got != "X" {
		t.Fatalf("b∘a' produced %q", got)
	}
}

func TestTransformChoppedDeltasAtDifferentPositions(t *testing.T) {
	// Canonical edit deltas drop their trailing plain retain, so two
	// concurrent edits at different positions carry different base lengths.
	// The shorter side's missing tail acts as a plain retain.
	doc := "hello"
	a := NewBuilder().Retain(2).Insert("x").Build() // base len 2
	b := NewBuilder().Retain(5).Insert("y").Build() // base len 5

	aPrime, bPrime, err := a.Transform(b)
	if err != nil {
		t.Fatal(err)
	}
	left := docApply(t, docApply(t, doc, a), bPrime)
	right := docApply(t, docApply(t, doc, b), aPrime)
	if left != "hexlloy" || right != "hexlloy" {
		t.Fatalf("diverged: a then b' = %q, b then a' = %q", left, right)
	}
}

func TestTransformInsertAtStartAgainstInsertAtEnd(t *testing.T) {
	// The fully chopped case: an insert at index 0 has base len 0.
	doc := "hello"
	a := NewBuilder().Insert("L").Build()
	b := NewBuilder().Retain(5).Insert("R").Build()

	aPrime, bPrime, err := a.Transform(b)
	if err != nil {
		t.Fatal(err)
	}
	left := docApply(t, docApply(t, doc, a), bPrime)
	right := docApply(t, docApply(t, doc, b), aPrime)
	if left != "LhelloR" || right != "LhelloR" {
		t.Fatalf("diverged: a then b' = %q, b then a' = %q", left, right)
	}
}

func TestTransformDeleteBeyondShorterSide(t *testing.T) {
	// b deletes a range entirely past a's explicit ops.
	doc := "hello"
	a := NewBuilder().Insert("L").Build()
	b := NewBuilder().Retain(3).Delete(2).Build()

	aPrime, bPrime, err := a.Transform(b)
	if err != nil {
		t.Fatal(err)
	}
	left := docApply(t, docApply(t, doc, a), bPrime)
	right := docApply(t, docApply(t, doc, b), aPrime)
	if left != "Lhel" || right != "Lhel" {
		t.Fatalf("diverged: a then b' = %q, b then a' = %q", left, right)
	}
}

func TestTransformRetainAttributesLeftWins(t *testing.T) {
	a := NewBuilder().RetainAttrs(3, Attributes{KeyBold: true}).Build()
	b := NewBuilder().RetainAttrs(3, Attributes{KeyBold: false, KeyItalic: true}).Build()
	_, bPrime, err := a.Transform(b)
	if err != nil {
		t.Fatal(err)
	}
	attrs := bPrime.Ops()[0].Attributes()
	if _, ok := attrs[KeyBold]; ok {
		t.Fatalf("bold should be stripped from b': %v", attrs)
	}
	if attrs[KeyItalic] != true {
		t.Fatalf("italic lost: %v", attrs)
	}
}

func TestInvertRestoresDocument(t *testing.T) {
	base := "hello"
	// Capitalize: replace "h" with "H".
	change := FromOps([]Op{Insert("H"), Delete(1), Retain(4)})
	after := mustApply(t, change, base)
	if after != "Hello" {
		t.Fatalf("after = %q", after)
	}
	inv := change.Invert(base)
	if got := docApply(t, after, inv); got != base {
		t.Fatalf("invert produced %q, want %q", got, base)
	}
}

func TestInvertDeleteRestoresText(t *testing.T) {
	base := "a😀b"
	change := NewBuilder().Retain(1).Delete(2).Build()
	after := docApply(t, base, change)
	if after != "ab" {
		t.Fatalf("after = %q", after)
	}
	inv := change.Invert(base)
	if got := docApply(t, after, inv); got != base {
		t.Fatalf("invert produced %q, want %q", got, base)
	}
}

func TestInvertFormatTombstones(t *testing.T) {
	base := "abc"
	change := NewBuilder().RetainAttrs(3, Attributes{KeyBold: true}).Build()
	inv := change.Invert(base)
	ops := inv.Ops()
	if len(ops) != 1 || !ops[0].IsRetain() {
		t.Fatalf("got %v", ops)
	}
	if v, ok := ops[0].Attributes()[KeyBold]; !ok || v != nil {
		t.Fatalf("want bold tombstone, got %v", ops[0].Attributes())
	}
}

func TestContent(t *testing.T) {
	d := NewBuilder().Insert("abc").InsertAttrs("\n", Attributes{KeyHeader: 1}).Build()
	if got := d.Content(); got != "abc\n" {
		t.Fatalf("got %q", got)
	}
}

func TestIteratorNextOpWithLen(t *testing.T) {
	d := NewBuilder().Insert("hello").Retain(3).RetainAttrs(1, Attributes{KeyBold: true}).Build()
	it := NewIterator(d)
	op, ok := it.NextOpWithLen(2)
	if !ok || op.Text != "he" {
		t.Fatalf("got %v %v", op, ok)
	}
	op, ok = it.NextOpWithLen(-1)
	if !ok || op.Text != "llo" {
		t.Fatalf("got %v %v", op, ok)
	}
	op, ok = it.NextOp()
	if !ok || !op.IsRetain() || op.N != 3 {
		t.Fatalf("got %v %v", op, ok)
	}
	if !it.HasNext() {
		t.Fatal("attributed retain still pending")
	}
}

func TestIteratorFromOffset(t *testing.T) {
	d := NewBuilder().Insert("abc").Insert("def").Build() // coalesces to one op
	it := FromOffset(d, 4)
	op, ok := it.NextOp()
	if !ok || op.Text != "ef" {
		t.Fatalf("got %v %v", op, ok)
	}
}

func TestIteratorNextOpWithNewline(t *testing.T) {
	d := NewBuilder().Insert("ab").InsertAttrs("c\nd", Attributes{KeyList: KeyBullet}).Build()
	it := NewIterator(d)
	op, offset, found := it.NextOpWithNewline()
	if !found {
		t.Fatal("newline not found")
	}
	if offset != 3 {
		t.Fatalf("offset = %d, want 3", offset)
	}
	if op.Attributes()[KeyList] != KeyBullet {
		t.Fatalf("got %v", op)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	d := NewBuilder().
		Retain(2).
		InsertAttrs("hi", Attributes{KeyBold: true}).
		RetainAttrs(1, Attributes{KeyBold: nil}).
		Delete(3).
		Build()
	data, err := d.Encode()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Equal(back) {
		t.Fatalf("round trip changed delta: %s vs %s", d, back)
	}
}

func TestJSONEmptyDelta(t *testing.T) {
	data, err := New().Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Fatalf("got %s", data)
	}
}

func TestJSONRejectsMalformedOps(t *testing.T) {
	bad := []string{
		`[{"retain":1,"insert":"x"}]`,          // two op keys
		`[{"delete":2,"attributes":{"b":1}}]`,  // attributes on delete
		`[{"keep":3}]`,                         // unknown key
		`[{}]`,                                 // no op key
		`[{"retain":1,"attributes":{},"x":1}]`, // extra key besides attributes
	}
	for _, src := range bad {
		var d Delta
		if err := json.Unmarshal([]byte(src), &d); err == nil {
			t.Errorf("accepted malformed op %s", src)
		}
	}
}

func TestJSONAcceptsUnknownAttributeNames(t *testing.T) {
	src := `[{"insert":"x","attributes":{"totally-custom":42}}]`
	var d Delta
	if err := json.Unmarshal([]byte(src), &d); err != nil {
		t.Fatalf("unknown attribute rejected: %v", err)
	}
	if d.Ops()[0].Attributes()["totally-custom"] != float64(42) {
		t.Fatalf("got %v", d.Ops()[0].Attributes())
	}
}

func TestComposeTransformConvergence(t *testing.T) {
	// Concurrent edit pairs over the same base; each pair must converge
	// through both composition orders.
	base := "the quick brown fox"
	pairs := []struct {
		name string
		a, b Delta
	}{
		{
			"insert vs insert",
			FromOps([]Op{Retain(4), Insert("very "), Retain(15)}),
			FromOps([]Op{Retain(10), Insert("dark "), Retain(9)}),
		},
		{
			"insert vs delete overlap",
			FromOps([]Op{Retain(4), Insert("X"), Retain(15)}),
			FromOps([]Op{Delete(9), Retain(10)}),
		},
		{
			"delete vs delete overlap",
			FromOps([]Op{Retain(2), Delete(8), Retain(9)}),
			FromOps([]Op{Retain(6), Delete(7), Retain(6)}),
		},
		{
			"format vs delete",
			FromOps([]Op{RetainAttrs(9, Attributes{KeyBold: true}), Retain(10)}),
			FromOps([]Op{Retain(4), Delete(6), Retain(9)}),
		},
	}
	for _, p := range pairs {
		aPrime, bPrime, err := p.a.Transform(p.b)
		if err != nil {
			t.Fatalf("%s: transform: %v", p.name, err)
		}
		left, err := p.a.Compose(bPrime)
		if err != nil {
			t.Fatalf("%s: a∘b': %v", p.name, err)
		}
		right, err := p.b.Compose(aPrime)
		if err != nil {
			t.Fatalf("%s: b∘a': %v", p.name, err)
		}
		lDoc := docApply(t, base, left)
		rDoc := docApply(t, base, right)
		if lDoc != rDoc {
			t.Errorf("%s: diverged: %q vs %q", p.name, lDoc, rDoc)
		}
	}
}
