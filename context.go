package capnp

// AllocContext is a scoped allocation cursor: it pins a preferred
// segment across a cluster of related allocations so that, say, a
// struct and the several lists and sub-structs it points at all land
// in the same segment when the arena has room, rather than spreading
// out and forcing far pointers between them.  A context never forces
// an allocation into a segment that lacks room for it — Message.alloc
// is always free to pick a different segment — but it remembers
// whichever segment the most recent allocation through it landed in,
// and prefers that one next.
type AllocContext struct {
	msg  *Message
	pref *Segment
}

// NewAllocContext returns an AllocContext that starts out preferring
// pref for its first allocation.
func NewAllocContext(pref *Segment) *AllocContext {
	return &AllocContext{msg: pref.msg, pref: pref}
}

// Segment returns the segment the context currently prefers.
func (c *AllocContext) Segment() *Segment { return c.pref }

// Message returns the message c allocates into.
func (c *AllocContext) Message() *Message { return c.msg }

// Release ends the scope c covers. It clears c's preferred segment so
// that a caller holding a stale *AllocContext after the object tree it
// was building has been fully constructed cannot accidentally keep
// steering unrelated allocations at it.
func (c *AllocContext) Release() {
	c.pref = nil
}

func (c *AllocContext) track(seg *Segment) {
	if seg != nil {
		c.pref = seg
	}
}

// NewStruct allocates a struct through c, updating c's preferred
// segment to wherever the allocation landed.
func (c *AllocContext) NewStruct(sz ObjectSize) (Struct, error) {
	if c.pref == nil {
		return Struct{}, ErrContextReleased
	}
	s, err := NewStruct(c.pref, sz)
	if err != nil {
		return Struct{}, err
	}
	c.track(s.seg)
	return s, nil
}

// NewCompositeList allocates a composite list through c.
func (c *AllocContext) NewCompositeList(sz ObjectSize, n int32) (List, error) {
	if c.pref == nil {
		return List{}, ErrContextReleased
	}
	l, err := NewCompositeList(c.pref, sz, n)
	if err != nil {
		return List{}, err
	}
	c.track(l.seg)
	return l, nil
}

// NewPointerList allocates a pointer list through c.
func (c *AllocContext) NewPointerList(n int32) (PointerList, error) {
	if c.pref == nil {
		return PointerList{}, ErrContextReleased
	}
	l, err := NewPointerList(c.pref, n)
	if err != nil {
		return PointerList{}, err
	}
	c.track(l.seg)
	return l, nil
}

// NewText allocates a text blob through c.
func (c *AllocContext) NewText(v string) (List, error) {
	if c.pref == nil {
		return List{}, ErrContextReleased
	}
	l, err := NewText(c.pref, v)
	if err != nil {
		return List{}, err
	}
	c.track(l.seg)
	return l, nil
}

// NewData allocates a data blob through c.
func (c *AllocContext) NewData(v []byte) (List, error) {
	if c.pref == nil {
		return List{}, ErrContextReleased
	}
	l, err := NewData(c.pref, v)
	if err != nil {
		return List{}, err
	}
	c.track(l.seg)
	return l, nil
}
