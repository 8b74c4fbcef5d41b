package delta

import "unicode/utf16"

// Iterator is a read-only cursor over a delta's ops, able to stop mid-op at
// any code-unit offset. It never mutates the delta it walks.
type Iterator struct {
	ops    []Op
	index  int
	offset int // code units consumed inside ops[index]
}

func NewIterator(d Delta) *Iterator {
	return &Iterator{ops: d.Ops()}
}

// FromOffset positions a fresh cursor index code units into the delta.
func FromOffset(d Delta, index int) *Iterator {
	it := NewIterator(d)
	for index > 0 && it.HasNext() {
		take := min(index, it.PeekLen())
		it.NextOpWithLen(take)
		index -= take
	}
	return it
}

func (it *Iterator) HasNext() bool {
	return it.index < len(it.ops)
}

// PeekKind returns the kind of the op under the cursor, or "" when exhausted.
func (it *Iterator) PeekKind() Kind {
	if !it.HasNext() {
		return ""
	}
	return it.ops[it.index].Kind
}

// PeekLen returns how many code units remain in the op under the cursor.
func (it *Iterator) PeekLen() int {
	if !it.HasNext() {
		return 0
	}
	return it.ops[it.index].Len() - it.offset
}

// NextOp returns the remainder of the current op and advances past it.
func (it *Iterator) NextOp() (Op, bool) {
	return it.NextOpWithLen(-1)
}

// NextOpWithLen returns the next op truncated to at most n code units,
// advancing the cursor by that amount and splitting mid-op if necessary.
// n < 0 means the whole remainder.
func (it *Iterator) NextOpWithLen(n int) (Op, bool) {
	if !it.HasNext() {
		return Op{}, false
	}
	op := it.ops[it.index]
	remaining := op.Len() - it.offset
	take := remaining
	if n >= 0 && n < remaining {
		take = n
	}
	start := it.offset
	if take == remaining {
		it.index++
		it.offset = 0
	} else {
		it.offset += take
	}
	if take <= 0 {
		return Op{}, false
	}
	if start == 0 && take == op.Len() {
		return op, true
	}
	out, ok := op.Shrink(NewInterval(start, start+take))
	return out, ok
}

// NextOpWithNewline scans forward for the next insert containing '\n' and
// returns that op together with the code-unit offset of the newline measured
// from the cursor's starting position.
func (it *Iterator) NextOpWithNewline() (Op, int, bool) {
	offset := 0
	for it.HasNext() {
		op, ok := it.NextOp()
		if !ok {
			break
		}
		if op.IsInsert() {
			if idx, found := newlineOffset(op.Text); found {
				return op, offset + idx, true
			}
		}
		offset += op.Len()
	}
	return Op{}, 0, false
}

// newlineOffset returns the code-unit offset of the first '\n' in s.
func newlineOffset(s string) (int, bool) {
	pos := 0
	for _, r := range s {
		if r == '\n' {
			return pos, true
		}
		pos += utf16.RuneLen(r)
	}
	return 0, false
}
