package delta

import (
	"fmt"
	"log"
)

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Op is one step of a delta: advance, insert or remove. N counts UTF-16 code
// units for retain/delete; an insert's length is derived from Text.
type Op struct {
	Kind  Kind
	N     int
	Text  string
	Attrs Attributes
}

func Retain(n int) Op                       { return Op{Kind: KindRetain, N: n} }
func RetainAttrs(n int, a Attributes) Op    { return Op{Kind: KindRetain, N: n, Attrs: a.Clone()} }
func Insert(s string) Op                    { return Op{Kind: KindInsert, Text: s} }
func InsertAttrs(s string, a Attributes) Op { return Op{Kind: KindInsert, Text: s, Attrs: a.Clone()} }
func Delete(n int) Op                       { return Op{Kind: KindDelete, N: n} }

func (o Op) Len() int {
	if o.Kind == KindInsert {
		return Utf16Len(o.Text)
	}
	return o.N
}

func (o Op) IsEmpty() bool  { return o.Len() == 0 }
func (o Op) IsRetain() bool { return o.Kind == KindRetain }
func (o Op) IsInsert() bool { return o.Kind == KindInsert }
func (o Op) IsDelete() bool { return o.Kind == KindDelete }

// IsPlain reports whether the op carries no attributes. Deletes are always
// plain.
func (o Op) IsPlain() bool { return len(o.Attrs) == 0 }

// Attributes returns a copy of the op's attribute map.
func (o Op) Attributes() Attributes { return o.Attrs.Clone() }

// SetAttributes replaces the op's attributes. A delete never carries
// attributes; trying to set them is reported as misuse and ignored.
func (o *Op) SetAttributes(attrs Attributes) error {
	if o.Kind == KindDelete {
		log.Printf("ot: attributes set on delete op, ignored: %v", attrs)
		return ErrAttributeMisuse
	}
	o.Attrs = attrs.Clone()
	return nil
}

// Split cuts the op at index into two same-kind ops whose concatenation
// equals the original. Requires 0 < index < Len().
func (o Op) Split(index int) (Op, Op, error) {
	if index <= 0 || index >= o.Len() {
		return Op{}, Op{}, fmt.Errorf("split index %d out of range (0, %d): %w", index, o.Len(), ErrApplyMismatch)
	}
	switch o.Kind {
	case KindRetain:
		return RetainAttrs(index, o.Attrs), RetainAttrs(o.N-index, o.Attrs), nil
	case KindDelete:
		return Delete(index), Delete(o.N - index), nil
	default:
		left := Utf16SubStr(o.Text, NewInterval(0, index))
		right := Utf16SubStr(o.Text, NewInterval(index, o.Len()))
		return InsertAttrs(left, o.Attrs), InsertAttrs(right, o.Attrs), nil
	}
}

// Shrink clips the op to [iv.Start, iv.End). The second return is false when
// nothing remains.
func (o Op) Shrink(iv Interval) (Op, bool) {
	var out Op
	switch o.Kind {
	case KindRetain:
		out = RetainAttrs(min(o.N, iv.Size()), o.Attrs)
	case KindDelete:
		out = Delete(min(o.N, iv.Size()))
	default:
		if iv.Start > o.Len() {
			out = Insert("")
		} else {
			out = InsertAttrs(Utf16SubStr(o.Text, iv), o.Attrs)
		}
	}
	if out.IsEmpty() {
		return Op{}, false
	}
	return out, true
}

func (o Op) Equal(other Op) bool {
	if o.Kind != other.Kind {
		return false
	}
	if o.Kind == KindInsert {
		if o.Text != other.Text {
			return false
		}
	} else if o.N != other.N {
		return false
	}
	return o.Attrs.Equal(other.Attrs)
}

func (o Op) String() string {
	switch o.Kind {
	case KindDelete:
		return fmt.Sprintf("{delete: %d}", o.N)
	case KindRetain:
		if o.IsPlain() {
			return fmt.Sprintf("{retain: %d}", o.N)
		}
		return fmt.Sprintf("{retain: %d, attributes: %v}", o.N, o.Attrs)
	default:
		if o.IsPlain() {
			return fmt.Sprintf("{insert: %q}", o.Text)
		}
		return fmt.Sprintf("{insert: %q, attributes: %v}", o.Text, o.Attrs)
	}
}
