package delta

// Builder assembles a normalized delta. Ops arrive in document order and
// adjacent compatible ops coalesce; Build drops a trailing plain retain.
type Builder struct {
	d Delta
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Retain(n int) *Builder {
	b.d.retain(n, nil)
	return b
}

func (b *Builder) RetainAttrs(n int, attrs Attributes) *Builder {
	b.d.retain(n, attrs.Clone())
	return b
}

func (b *Builder) Insert(s string) *Builder {
	b.d.insert(s, nil)
	return b
}

func (b *Builder) InsertAttrs(s string, attrs Attributes) *Builder {
	b.d.insert(s, attrs.Clone())
	return b
}

func (b *Builder) Delete(n int) *Builder {
	b.d.delete(n)
	return b
}

func (b *Builder) Build() Delta {
	b.d.chop()
	return b.d
}
