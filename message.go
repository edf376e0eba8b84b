package capnp

import "sync/atomic"

// DefaultTraverseLimit is the number of bytes a message may read
// through pointer traversal before ErrTraversalLimitExceeded, if
// the Message does not specify its own TraverseLimit.  Matches the
// 64 MiB default used elsewhere in the ecosystem.
const DefaultTraverseLimit = 64 << 20

// DefaultDepthLimit bounds how many pointers deep a single traversal
// may nest, guarding against cyclic or absurdly deep wire data when a
// message's DepthLimit is left at zero.
const DefaultDepthLimit = 64

// A Message is a tree of Cap'n Proto objects backed by an Arena.  It
// owns the segments materialized from that arena, the capability
// table referenced by the message's "other" pointers, and the budgets
// that bound how much work reading from it can do.
type Message struct {
	Arena Arena

	// CapTable holds the capabilities addressable from this message's
	// interface pointers.
	CapTable CapTable

	// TraverseLimit is the total number of bytes that traversing the
	// message's pointers may read before ErrTraversalLimitExceeded is
	// returned. Zero means DefaultTraverseLimit.
	TraverseLimit uint64

	// DepthLimit bounds pointer nesting depth. Zero means
	// DefaultDepthLimit.
	DepthLimit uint

	rlimit     atomic.Uint64
	rlimitInit int32 // 0 = not yet initialized, via CAS

	segs map[SegmentID]*Segment
	first *Segment
}

// NewMessage creates a message that allocates new objects through
// arena, returning the message and its first segment.
//
// A brand new message's first segment starts empty, but the root
// pointer always lives in the first word of segment 0; if arena
// hands back an empty first segment (as opposed to one already
// holding a decoded message), NewMessage reserves that word up front
// so the first real allocation doesn't collide with it. A brand new
// MultiSegment arena reports zero segments until its first
// allocation, so segment 0 in that case is materialized through
// alloc rather than Arena.Data.
func NewMessage(arena Arena) (*Message, *Segment, error) {
	msg := &Message{Arena: arena}
	seg, err := msg.Segment(0)
	if err == ErrSegmentOutOfRange {
		seg, _, err = msg.alloc(wordSize, nil)
		if err != nil {
			return nil, nil, err
		}
		return msg, seg, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if len(seg.Data()) == 0 {
		if _, _, err := msg.alloc(wordSize, seg); err != nil {
			return nil, nil, err
		}
	}
	return msg, seg, nil
}

// NumSegments returns the number of segments in the message's arena.
func (m *Message) NumSegments() int64 {
	if m.Arena == nil {
		return 0
	}
	return m.Arena.NumSegments()
}

// Segment returns the segment with the given ID, materializing it
// from the arena on first access.
func (m *Message) Segment(id SegmentID) (*Segment, error) {
	if s := m.segs[id]; s != nil {
		return s, nil
	}
	if m.Arena == nil {
		if id != 0 {
			return nil, ErrSegmentOutOfRange
		}
		s := &Segment{msg: m, id: 0}
		m.addSegment(s)
		return s, nil
	}
	data, err := m.Arena.Data(id)
	if err != nil {
		return nil, err
	}
	s := &Segment{msg: m, id: id, data: data}
	m.addSegment(s)
	return s, nil
}

func (m *Message) addSegment(s *Segment) {
	if m.segs == nil {
		m.segs = make(map[SegmentID]*Segment)
	}
	m.segs[s.id] = s
	if s.id == 0 {
		m.first = s
	}
}

func (m *Message) depthLimit() uint {
	if m.DepthLimit == 0 {
		return DefaultDepthLimit
	}
	return m.DepthLimit
}

// canRead deducts sz bytes from m's atomic traversal budget, reporting
// false (and deducting nothing) if fewer than sz bytes remain.
// It is safe to call canRead concurrently from multiple readers of an
// already-built message, even though mutation of a single message is
// not supported.
func (m *Message) canRead(sz Size) bool {
	m.initReadLimit()
	for {
		cur := m.rlimit.Load()
		if uint64(sz) > cur {
			return false
		}
		if m.rlimit.CompareAndSwap(cur, cur-uint64(sz)) {
			return true
		}
	}
}

func (m *Message) initReadLimit() {
	if atomic.CompareAndSwapInt32(&m.rlimitInit, 0, 1) {
		limit := m.TraverseLimit
		if limit == 0 {
			limit = DefaultTraverseLimit
		}
		m.rlimit.Store(limit)
	}
}

// ResetReadLimit resets the traversal budget to n bytes, as if the
// message had just been unmarshaled.
func (m *Message) ResetReadLimit(n uint64) {
	atomic.StoreInt32(&m.rlimitInit, 1)
	m.rlimit.Store(n)
}

// alloc allocates sz bytes, preferring pref's segment if it has room,
// otherwise asking the arena to grow or add a segment.  It returns the
// segment the allocation landed in and the address it starts at.
func (m *Message) alloc(sz Size, pref *Segment) (*Segment, Address, error) {
	sz = sz.padToWord()
	if pref != nil && hasCapacity(pref.data, sz) {
		addr := Address(len(pref.data))
		pref.data = pref.data[:len(pref.data)+int(sz)]
		return pref, addr, nil
	}
	if m.Arena == nil {
		if pref == nil {
			return nil, 0, errArenaExhausted
		}
		addr := Address(len(pref.data))
		pref.data = append(pref.data, make([]byte, sz)...)
		return pref, addr, nil
	}
	id, data, err := m.Arena.Allocate(sz, m.segs)
	if err != nil {
		return nil, 0, err
	}
	s := m.segs[id]
	if s == nil {
		s = &Segment{msg: m, id: id}
		m.addSegment(s)
	}
	s.data = data
	addr := Address(len(s.data))
	s.data = s.data[:len(s.data)+int(sz)]
	return s, addr, nil
}

// Root returns the message's root pointer.
func (m *Message) Root() (Ptr, error) {
	first, err := m.Segment(0)
	if err != nil {
		return Ptr{}, err
	}
	return first.root().At(0)
}

// SetRoot replaces the message's root pointer with p.
func (m *Message) SetRoot(p Ptr) error {
	first, err := m.Segment(0)
	if err != nil {
		return err
	}
	return first.root().SetPtr(0, p)
}

// AllocateRootStruct allocates a new struct of the given size and
// installs it as the message's root.
func (m *Message) AllocateRootStruct(sz ObjectSize) (Struct, error) {
	first, err := m.Segment(0)
	if err != nil {
		return Struct{}, err
	}
	if len(first.Data()) == 0 {
		if _, _, err := m.alloc(wordSize, first); err != nil {
			return Struct{}, err
		}
	}
	s, err := NewStruct(first, sz)
	if err != nil {
		return Struct{}, err
	}
	if err := m.SetRoot(s.ToPtr()); err != nil {
		return Struct{}, err
	}
	return s, nil
}
