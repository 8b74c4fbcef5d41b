package delta

// Attribute keys understood by the editor. Unknown keys coming off the wire
// are carried through untouched.
const (
	KeyHeader     = "header"
	KeyBold       = "bold"
	KeyItalic     = "italic"
	KeyUnderline  = "underline"
	KeyStrike     = "strike"
	KeyCode       = "code"
	KeyLink       = "link"
	KeyBackground = "background"
	KeyColor      = "color"
	KeyAlign      = "align"
	KeyList       = "list"
	KeyBullet     = "bullet"
	KeyOrdered    = "ordered"
	KeyCheckbox   = "checkbox"
	KeyQuote      = "quote"
	KeyCodeBlock  = "code-block"
	KeyIndent     = "indent"
)

// Attributes maps attribute keys to JSON primitive values. A nil value is a
// tombstone: under composition it removes the key from the underlying op.
type Attributes map[string]any

func (a Attributes) IsEmpty() bool {
	return len(a) == 0
}

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// NonNull returns the projection of a without tombstoned keys.
func (a Attributes) NonNull() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Equal reports attribute equality: insertion order is irrelevant and two
// maps are equal iff their non-null projections coincide.
func (a Attributes) Equal(b Attributes) bool {
	an, bn := a.NonNull(), b.NonNull()
	if len(an) != len(bn) {
		return false
	}
	for k, av := range an {
		bv, ok := bn[k]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

// literalEqual compares maps key for key, tombstones included. Coalescing
// adjacent ops uses this rather than Equal: a tombstone must not be folded
// into a neighbouring plain op.
func (a Attributes) literalEqual(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

// MarkAllRemovedExcept tombstones every key in a apart from keep.
func (a Attributes) MarkAllRemovedExcept(keep string) {
	for k := range a {
		if k != keep {
			a[k] = nil
		}
	}
}

// ComposeAttributes overlays b on a. A nil-valued key in b deletes the entry
// when keepNil is false; with keepNil true the tombstone itself survives so a
// later composition against the document still removes the attribute.
func ComposeAttributes(a, b Attributes, keepNil bool) Attributes {
	out := a.Clone()
	if out == nil {
		out = Attributes{}
	}
	for k, v := range b {
		if v == nil && !keepNil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TransformAttributes returns b stripped of every key a also sets: on a
// Retain/Retain collision the left side wins the shared keys.
func TransformAttributes(a, b Attributes) Attributes {
	if len(a) == 0 {
		return b.Clone()
	}
	var out Attributes
	for k, v := range b {
		if _, taken := a[k]; taken {
			continue
		}
		if out == nil {
			out = Attributes{}
		}
		out[k] = v
	}
	return out
}

// InvertAttributes produces the attribute change undoing attrs against a
// plain base: every key attrs touches is tombstoned, since a bare string
// carries no formatting to restore.
func InvertAttributes(attrs Attributes) Attributes {
	if len(attrs) == 0 {
		return nil
	}
	out := make(Attributes, len(attrs))
	for k := range attrs {
		out[k] = nil
	}
	return out
}

// valueEqual compares attribute values across the numeric representations
// JSON decoding produces (float64) and Go literals use (int).
func valueEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
