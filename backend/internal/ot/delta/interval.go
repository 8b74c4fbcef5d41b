package delta

// Interval is a half-open range [Start, End) measured in UTF-16 code units.
type Interval struct {
	Start int
	End   int
}

func NewInterval(start, end int) Interval {
	if end < start {
		end = start
	}
	return Interval{Start: start, End: end}
}

func (iv Interval) Size() int {
	return iv.End - iv.Start
}

func (iv Interval) IsEmpty() bool {
	return iv.Size() <= 0
}

func (iv Interval) Contains(index int) bool {
	return index >= iv.Start && index < iv.End
}
