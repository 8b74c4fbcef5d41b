package delta

import (
	"fmt"
	"strings"
)

// Delta is an ordered op sequence transforming one document string into
// another. baseLen is the code-unit length the delta expects as input,
// targetLen the length it produces. Both are maintained by the coalescing
// mutators, so deltas are built through DeltaBuilder or FromOps rather than
// assembled by hand.
type Delta struct {
	ops       []Op
	baseLen   int
	targetLen int
}

func New() Delta {
	return Delta{}
}

// FromOps normalizes ops (merging adjacent compatible ones) into a delta.
func FromOps(ops []Op) Delta {
	var d Delta
	for _, op := range ops {
		d.add(op)
	}
	return d
}

func (d Delta) Ops() []Op      { return d.ops }
func (d Delta) BaseLen() int   { return d.baseLen }
func (d Delta) TargetLen() int { return d.targetLen }
func (d Delta) IsEmpty() bool  { return len(d.ops) == 0 }

func (d Delta) Equal(other Delta) bool {
	if len(d.ops) != len(other.ops) {
		return false
	}
	for i := range d.ops {
		if !d.ops[i].Equal(other.ops[i]) {
			return false
		}
	}
	return true
}

// Content returns the concatenation of all insert texts. For a document
// delta (inserts only) this is the document string.
func (d Delta) Content() string {
	var b strings.Builder
	for _, op := range d.ops {
		if op.IsInsert() {
			b.WriteString(op.Text)
		}
	}
	return b.String()
}

func (d Delta) String() string {
	parts := make([]string, len(d.ops))
	for i, op := range d.ops {
		parts[i] = op.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// retain appends a retain, merging into the previous op when the attributes
// agree.
func (d *Delta) retain(n int, attrs Attributes) {
	if n <= 0 {
		return
	}
	d.baseLen += n
	d.targetLen += n
	if last := d.lastOp(); last != nil && last.IsRetain() && last.Attrs.literalEqual(attrs) {
		last.N += n
		return
	}
	d.ops = append(d.ops, RetainAttrs(n, attrs))
}

// insert appends an insert. Adjacent inserts with equal attributes merge, and
// an insert never trails an adjacent delete: the pair is kept in
// insert-before-delete order so equivalent deltas normalize identically.
func (d *Delta) insert(s string, attrs Attributes) {
	if s == "" {
		return
	}
	d.targetLen += Utf16Len(s)
	n := len(d.ops)
	if n > 0 {
		last := &d.ops[n-1]
		if last.IsInsert() && last.Attrs.literalEqual(attrs) {
			last.Text += s
			return
		}
		if last.IsDelete() {
			if n >= 2 && d.ops[n-2].IsInsert() && d.ops[n-2].Attrs.literalEqual(attrs) {
				d.ops[n-2].Text += s
				return
			}
			del := *last
			d.ops[n-1] = InsertAttrs(s, attrs)
			d.ops = append(d.ops, del)
			return
		}
	}
	d.ops = append(d.ops, InsertAttrs(s, attrs))
}

func (d *Delta) delete(n int) {
	if n <= 0 {
		return
	}
	d.baseLen += n
	if last := d.lastOp(); last != nil && last.IsDelete() {
		last.N += n
		return
	}
	d.ops = append(d.ops, Delete(n))
}

func (d *Delta) add(op Op) {
	switch op.Kind {
	case KindRetain:
		d.retain(op.N, op.Attrs)
	case KindInsert:
		d.insert(op.Text, op.Attrs)
	case KindDelete:
		d.delete(op.N)
	}
}

func (d *Delta) lastOp() *Op {
	if len(d.ops) == 0 {
		return nil
	}
	return &d.ops[len(d.ops)-1]
}

// chop drops a trailing plain retain; it never changes what the delta does.
func (d *Delta) chop() {
	if last := d.lastOp(); last != nil && last.IsRetain() && last.IsPlain() {
		d.baseLen -= last.N
		d.targetLen -= last.N
		d.ops = d.ops[:len(d.ops)-1]
	}
}

// Apply runs the delta over doc. The document length must equal the delta's
// base length; anything past the last op is an implicit retain.
func (d Delta) Apply(doc string) (string, error) {
	docLen := Utf16Len(doc)
	if docLen != d.baseLen {
		return "", fmt.Errorf("apply: doc len %d, delta base len %d: %w", docLen, d.baseLen, ErrApplyMismatch)
	}
	var b strings.Builder
	pos := 0
	for _, op := range d.ops {
		switch op.Kind {
		case KindRetain:
			b.WriteString(Utf16SubStr(doc, NewInterval(pos, pos+op.N)))
			pos += op.N
		case KindDelete:
			pos += op.N
		case KindInsert:
			b.WriteString(op.Text)
		}
	}
	b.WriteString(Utf16SubStr(doc, NewInterval(pos, docLen)))
	return b.String(), nil
}

// Compose merges d followed by other into a single delta:
// apply(apply(doc, d), other) == apply(doc, d.Compose(other)). The right
// delta may expect a shorter document than d produces; the remainder is an
// implicit retain.
func (d Delta) Compose(other Delta) (Delta, error) {
	if other.baseLen > d.targetLen {
		return Delta{}, fmt.Errorf("compose: right base len %d exceeds left target len %d: %w",
			other.baseLen, d.targetLen, ErrComposeMismatch)
	}
	a := NewIterator(d)
	b := NewIterator(other)
	var out Delta
	for a.HasNext() || b.HasNext() {
		if b.PeekKind() == KindInsert {
			op, _ := b.NextOp()
			out.add(op)
			continue
		}
		if a.PeekKind() == KindDelete {
			op, _ := a.NextOp()
			out.add(op)
			continue
		}
		if !b.HasNext() {
			op, _ := a.NextOp()
			out.add(op)
			continue
		}
		if !a.HasNext() {
			return Delta{}, fmt.Errorf("compose: left delta exhausted: %w", ErrComposeMismatch)
		}
		n := min(a.PeekLen(), b.PeekLen())
		aop, _ := a.NextOpWithLen(n)
		bop, _ := b.NextOpWithLen(n)
		switch {
		case bop.IsRetain() && aop.IsRetain():
			// Tombstones survive a retain/retain merge so composing the
			// result onto the document still strips the attribute.
			out.retain(n, ComposeAttributes(aop.Attrs, bop.Attrs, true))
		case bop.IsRetain():
			out.insert(aop.Text, ComposeAttributes(aop.Attrs, bop.Attrs, false))
		case bop.IsDelete() && aop.IsRetain():
			out.delete(n)
		default:
			// Delete of a fresh insert: the two cancel.
		}
	}
	out.chop()
	return out, nil
}

// Transform reconciles two concurrent deltas over the same base into
// (dPrime, otherPrime) with d.Compose(otherPrime) == other.Compose(dPrime).
// Inserts from d win position ties (left priority); on a retain/retain
// attribute collision d's value takes the shared keys. Canonical deltas are
// chopped, so the shorter side's missing tail counts as a plain retain over
// the other side's remainder.
func (d Delta) Transform(other Delta) (Delta, Delta, error) {
	a := NewIterator(d)
	b := NewIterator(other)
	var aPrime, bPrime Delta
	for a.HasNext() || b.HasNext() {
		if a.PeekKind() == KindInsert {
			op, _ := a.NextOp()
			aPrime.add(op)
			bPrime.retain(op.Len(), nil)
			continue
		}
		if b.PeekKind() == KindInsert {
			op, _ := b.NextOp()
			aPrime.retain(op.Len(), nil)
			bPrime.add(op)
			continue
		}
		var aop, bop Op
		switch {
		case !a.HasNext():
			bop, _ = b.NextOp()
			aop = Retain(bop.Len())
		case !b.HasNext():
			aop, _ = a.NextOp()
			bop = Retain(aop.Len())
		default:
			n := min(a.PeekLen(), b.PeekLen())
			aop, _ = a.NextOpWithLen(n)
			bop, _ = b.NextOpWithLen(n)
		}
		n := aop.Len()
		switch {
		case aop.IsRetain() && bop.IsRetain():
			aPrime.retain(n, aop.Attrs)
			bPrime.retain(n, TransformAttributes(aop.Attrs, bop.Attrs))
		case aop.IsDelete() && bop.IsRetain():
			aPrime.delete(n)
		case aop.IsRetain() && bop.IsDelete():
			bPrime.delete(n)
		case aop.IsDelete() && bop.IsDelete():
			// Both removed the same range.
		default:
			return Delta{}, Delta{}, fmt.Errorf("transform: incompatible ops %s / %s: %w",
				aop, bop, ErrTransformMismatch)
		}
	}
	aPrime.chop()
	bPrime.chop()
	return aPrime, bPrime, nil
}

// Invert builds the delta undoing d against the base document it was applied
// to: apply(apply(base, d), d.Invert(base)) == base. Deleted text is
// reconstructed from base; attribute retains are tombstoned, since a plain
// base string carries no formatting to restore.
func (d Delta) Invert(base string) Delta {
	var inv Delta
	pos := 0
	for _, op := range d.ops {
		switch op.Kind {
		case KindInsert:
			inv.delete(op.Len())
		case KindRetain:
			if op.IsPlain() {
				inv.retain(op.N, nil)
			} else {
				inv.retain(op.N, InvertAttributes(op.Attrs))
			}
			pos += op.N
		case KindDelete:
			inv.insert(Utf16SubStr(base, NewInterval(pos, pos+op.N)), nil)
			pos += op.N
		}
	}
	inv.chop()
	return inv
}
