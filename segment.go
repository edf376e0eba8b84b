package capnp

import "encoding/binary"

// SegmentID identifies a Segment within the Message that owns it.
type SegmentID uint32

// A Segment is a contiguous allocation arena for Cap'n Proto objects:
// one of the message's word buffers, plus the bookkeeping needed to
// resolve pointers that land in it.  Segment 0 of a message holds the
// root pointer at word 0.
//
// The high-water mark described in §3 ("used") is simply len(data):
// every allocation grows data by appending zero-filled bytes, and
// bytes in [0, len(data)) belong to some already-written object.
type Segment struct {
	msg  *Message
	id   SegmentID
	data []byte
}

// Message returns the message that contains s.
func (s *Segment) Message() *Message { return s.msg }

// ID returns the segment's id within its message.
func (s *Segment) ID() SegmentID { return s.id }

// Data returns the raw bytes backing the segment.  Data is 8-byte
// word aligned; every struct and list within it begins on a word
// boundary.
func (s *Segment) Data() []byte { return s.data }

// Len returns the number of bytes currently allocated in the segment.
func (s *Segment) Len() int { return len(s.data) }

func (s *Segment) inBounds(addr Address) bool {
	return addr < Address(len(s.data))
}

func (s *Segment) regionInBounds(base Address, sz Size) bool {
	end, ok := base.addSize(sz)
	if !ok {
		return false
	}
	return end <= Address(len(s.data))
}

func (s *Segment) slice(base Address, sz Size) []byte {
	return s.data[base : base+Address(sz)]
}

func (s *Segment) readUint8(addr Address) uint8 {
	return s.slice(addr, 1)[0]
}

func (s *Segment) readUint16(addr Address) uint16 {
	return binary.LittleEndian.Uint16(s.slice(addr, 2))
}

func (s *Segment) readUint32(addr Address) uint32 {
	return binary.LittleEndian.Uint32(s.slice(addr, 4))
}

func (s *Segment) readUint64(addr Address) uint64 {
	return binary.LittleEndian.Uint64(s.slice(addr, 8))
}

func (s *Segment) readRawPointer(addr Address) rawPointer {
	return rawPointer(s.readUint64(addr))
}

func (s *Segment) writeUint8(addr Address, v uint8) {
	s.slice(addr, 1)[0] = v
}

func (s *Segment) writeUint16(addr Address, v uint16) {
	binary.LittleEndian.PutUint16(s.slice(addr, 2), v)
}

func (s *Segment) writeUint32(addr Address, v uint32) {
	binary.LittleEndian.PutUint32(s.slice(addr, 4), v)
}

func (s *Segment) writeUint64(addr Address, v uint64) {
	binary.LittleEndian.PutUint64(s.slice(addr, 8), v)
}

func (s *Segment) writeRawPointer(addr Address, v rawPointer) {
	s.writeUint64(addr, uint64(v))
}

// tryReclaim rolls the segment's high-water mark back by sz bytes,
// zeroing the reclaimed region, iff end is exactly the segment's
// current boundary (len(data)).  It is the Segment half of §4.8
// compaction; it is a no-op (returning false) if anything has been
// allocated after end in the meantime.
func (s *Segment) tryReclaim(end Address, sz Size) bool {
	if end != Address(len(s.data)) || sz > Size(len(s.data)) {
		return false
	}
	newLen := len(s.data) - int(sz)
	for i := newLen; i < len(s.data); i++ {
		s.data[i] = 0
	}
	s.data = s.data[:newLen]
	return true
}

// root returns a 1-element pointer list referencing the first word of
// the segment.  Only meaningful for the first segment of a message.
func (s *Segment) root() PointerList {
	sz := ObjectSize{PointerCount: 1}
	if !s.regionInBounds(0, sz.totalSize()) {
		return PointerList{}
	}
	return PointerList{List{
		seg:        s,
		length:     1,
		size:       sz,
		depthLimit: s.msg.depthLimit(),
	}}
}

func (s *Segment) lookupSegment(id SegmentID) (*Segment, error) {
	if s.id == id {
		return s, nil
	}
	return s.msg.Segment(id)
}
