package extensions

import (
	"unicode/utf16"

	"noteserver/backend/internal/ot/delta"
)

func isNewline(s string) bool { return s == "\n" }

// isEmptyLineAtIndex reports whether the line holding index has no content
// between the previous newline and index.
func isEmptyLineAtIndex(doc delta.Delta, index int) bool {
	if index <= 0 {
		return true
	}
	units := utf16.Encode([]rune(doc.Content()))
	if index > len(units) {
		return false
	}
	return units[index-1] == '\n'
}

// attributesExceptHeader returns the op's attributes with any header key
// stripped.
func attributesExceptHeader(op delta.Op) delta.Attributes {
	attrs := op.Attributes()
	delete(attrs, delta.KeyHeader)
	return attrs
}

var blockKeys = []string{
	delta.KeyList,
	delta.KeyBullet,
	delta.KeyOrdered,
	delta.KeyCheckbox,
	delta.KeyQuote,
	delta.KeyCodeBlock,
	delta.KeyIndent,
}

// blockAttributes filters attrs down to the non-null block-level keys.
func blockAttributes(attrs delta.Attributes) delta.Attributes {
	var out delta.Attributes
	for _, k := range blockKeys {
		if v, ok := attrs[k]; ok && v != nil {
			if out == nil {
				out = delta.Attributes{}
			}
			out[k] = v
		}
	}
	return out
}

// inlineAttributes filters attrs down to the non-null inline keys.
func inlineAttributes(attrs delta.Attributes) delta.Attributes {
	var out delta.Attributes
	for _, k := range []string{
		delta.KeyBold,
		delta.KeyItalic,
		delta.KeyUnderline,
		delta.KeyStrike,
		delta.KeyCode,
		delta.KeyBackground,
		delta.KeyColor,
	} {
		if v, ok := attrs[k]; ok && v != nil {
			if out == nil {
				out = delta.Attributes{}
			}
			out[k] = v
		}
	}
	return out
}
