package capnp

// An Arena loads and allocates segments for a Message.  Implementations
// need not be safe for use from multiple goroutines, but a Message
// built on top of one is, if the Arena documents it (SingleSegment and
// MultiSegment are not; concurrent mutation of one message is an
// explicit non-goal of this package).
type Arena interface {
	// NumSegments returns the number of segments currently in the
	// arena.  This must not decrease over the lifetime of the arena.
	NumSegments() int64

	// Data returns the data for the segment with the given ID, or an
	// error if the segment does not exist.
	Data(id SegmentID) ([]byte, error)

	// Allocate selects a segment to place a new object in, reporting
	// its capacity.  segs is a snapshot of the message's already
	// materialized segments, keyed by ID, provided so the arena can
	// prefer growing one over opening a new one.  Allocate must either
	// grow an existing segment's Data or allocate a new segment; the
	// Message applies the actual byte allocation afterward via the
	// returned slice's capacity.
	Allocate(sz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error)
}

// SingleSegment returns an Arena that places all objects in the same
// segment, reallocating its buffer as needed.  b may be nil; it need
// not be empty, but any existing bytes are treated as already
// allocated (the segment's high-water mark is len(b)).
func SingleSegment(b []byte) Arena {
	return &roArena{segs: [][]byte{b}}
}

// MultiSegment returns an Arena that allocates new segments instead of
// growing existing ones once the preferred segment runs out of room.
// bs may be nil, in which case the arena starts with zero segments and
// its first allocation creates segment 0; otherwise each element of bs
// becomes a pre-existing segment.
func MultiSegment(bs [][]byte) Arena {
	return &roArena{segs: bs, multi: true}
}

// roArena is the shared implementation behind SingleSegment and
// MultiSegment: the two differ only in whether Allocate is allowed to
// open a new segment.
type roArena struct {
	segs  [][]byte
	multi bool
}

func (a *roArena) NumSegments() int64 { return int64(len(a.segs)) }

func (a *roArena) Data(id SegmentID) ([]byte, error) {
	if int64(id) >= int64(len(a.segs)) {
		return nil, ErrSegmentOutOfRange
	}
	return a.segs[id], nil
}

func (a *roArena) Allocate(sz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error) {
	var total int64
	for id, s := range a.segs {
		if ms := segs[SegmentID(id)]; ms != nil {
			s = ms.data
		}
		total += int64(len(s))
	}
	if !a.multi {
		id := SegmentID(0)
		data := a.segs[0]
		if s := segs[id]; s != nil {
			data = s.data
		}
		if hasCapacity(data, sz) {
			return id, data, nil
		}
		inc, err := nextAlloc(int64(len(data)), 1<<30, sz)
		if err != nil {
			return 0, nil, err
		}
		buf := make([]byte, len(data), int64(len(data))+int64(inc))
		copy(buf, data)
		a.segs[0] = buf
		return id, buf, nil
	}
	for id := SegmentID(0); int(id) < len(a.segs); id++ {
		data := a.segs[id]
		if s := segs[id]; s != nil {
			data = s.data
		}
		if hasCapacity(data, sz) {
			return id, data, nil
		}
	}
	inc, err := nextAlloc(total, 1<<30, sz)
	if err != nil {
		return 0, nil, err
	}
	buf := make([]byte, 0, inc)
	id := SegmentID(len(a.segs))
	a.segs = append(a.segs, buf)
	return id, buf, nil
}

func (a *roArena) String() string {
	if a.multi {
		return "multi-segment arena"
	}
	return "single-segment arena"
}

// hasCapacity reports whether data has room to grow by sz bytes
// without reallocating, i.e. cap(data)-len(data) >= sz.
func hasCapacity(data []byte, sz Size) bool {
	return int64(cap(data)-len(data)) >= int64(sz)
}

// nextAlloc computes the size of the next segment allocation, given
// curr (the total bytes already allocated across the message's
// segments), max (the ceiling on a single segment's size), and req
// (the size the caller needs room for right now).  Growth is
// geometric: each new segment is sized to double the message's total
// allocation so far, floored at a minimum useful size and at req
// itself, and capped at max.
func nextAlloc(curr, max int64, req Size) (Size, error) {
	if int64(req) > max {
		return 0, errArenaExhausted
	}
	const minAlloc = 4096
	next := curr * 2
	if next < minAlloc {
		next = minAlloc
	}
	if next > max {
		next = max
	}
	if next < int64(req) {
		next = int64(req)
	}
	if next > int64(maxSize) {
		next = int64(maxSize)
	}
	return Size(next), nil
}
