package delta

import (
	"strings"
	"unicode/utf16"
)

// All offsets and lengths in this package are UTF-16 code units, the unit the
// editor frontend counts in. A rune below U+10000 is one code unit, anything
// above is a surrogate pair (two units). Byte or rune counts must not be
// substituted.

// Utf16Len returns the length of s in UTF-16 code units.
func Utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Utf16SubStr returns the code-unit slice [iv.Start, iv.End) of s. Both ends
// are clamped to the string's code-unit length. A cut that would land inside
// a surrogate pair excludes that rune entirely.
func Utf16SubStr(s string, iv Interval) string {
	if iv.IsEmpty() {
		return ""
	}
	var b strings.Builder
	pos := 0
	for _, r := range s {
		w := utf16.RuneLen(r)
		if pos >= iv.End {
			break
		}
		if pos >= iv.Start && pos+w <= iv.End {
			b.WriteRune(r)
		}
		pos += w
	}
	return b.String()
}
