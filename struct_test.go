package capnp

import "testing"

func newTestMessage(t *testing.T) (*Message, *Segment) {
	t.Helper()
	msg, seg, err := NewMessage(SingleSegment(nil))
	if err != nil {
		t.Fatal(err)
	}
	return msg, seg
}

// TestPrimitiveRoundTrip covers E1 from the testable-properties list:
// writing a handful of primitive fields at distinct defaults and
// reading them back, plus checking the raw XORed word encoding.
func TestPrimitiveRoundTrip(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 16})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetInt32(0, -7, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUint64(8, 42, 10); err != nil {
		t.Fatal(err)
	}
	if got := s.Int32(0, 0); got != -7 {
		t.Errorf("Int32(0, 0) = %d; want -7", got)
	}
	if got := s.Uint64(8, 10); got != 42 {
		t.Errorf("Uint64(8, 10) = %d; want 42", got)
	}
	if got := s.seg.readUint32(s.off); got != 0xFFFFFFF9 {
		t.Errorf("word 0 = %#x; want %#x", got, uint32(0xFFFFFFF9))
	}
	if got := s.seg.readUint64(s.off + 8); got != 0x20 {
		t.Errorf("word 1 = %#x; want %#x", got, uint64(0x20))
	}
}

// TestDefaultEncoding covers property 2: a freshly allocated struct
// reads every field as its default, and writing the default leaves
// the underlying word zero.
func TestDefaultEncoding(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Int32(0, 99); got != 99 {
		t.Errorf("fresh struct Int32(0, 99) = %d; want 99", got)
	}
	if err := s.SetInt32(0, 99, 99); err != nil {
		t.Fatal(err)
	}
	if got := s.seg.readUint32(s.off); got != 0 {
		t.Errorf("writing the default left word = %#x; want 0", got)
	}
}

// TestShortStructDefaults covers property 3: fields beyond a short
// struct's allocated data words read as defaults, accept default
// writes, and reject non-default writes with ErrShortStruct.
func TestShortStructDefaults(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 8}) // one data word
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Int32(8, 5); got != 5 {
		t.Errorf("out-of-range read = %d; want default 5", got)
	}
	if err := s.SetInt32(8, 5, 5); err != nil {
		t.Errorf("writing the default out of range failed: %v", err)
	}
	if err := s.SetInt32(8, 6, 5); err != ErrShortStruct {
		t.Errorf("writing a non-default out of range = %v; want ErrShortStruct", err)
	}
}

func TestBitFields(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBit(3, true, false); err != nil {
		t.Fatal(err)
	}
	if !s.Bit(3, false) {
		t.Error("Bit(3, false) = false after SetBit(3, true, false)")
	}
	if s.Bit(4, false) {
		t.Error("Bit(4, false) = true; want false (untouched)")
	}
	if err := s.SetBit(3, false, true); err != nil {
		t.Fatal(err)
	}
	if s.Bit(3, true) {
		t.Error("Bit(3, true) = true after SetBit(3, false, true)")
	}
}

// TestNearPointer covers property 4: a pointer from A to B in the same
// segment decodes to B's own word offset relative to the pointer.
func TestNearPointer(t *testing.T) {
	_, seg := newTestMessage(t)
	a, err := NewStruct(seg, ObjectSize{PointerCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewStruct(seg, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SetPtr(0, b.ToPtr()); err != nil {
		t.Fatal(err)
	}
	raw := a.seg.readRawPointer(a.off)
	if raw.pointerType() != structPointer {
		t.Fatalf("pointer kind = %v; want structPointer", raw.pointerType())
	}
	wantOff := nearPointerOffset(a.off, b.off)
	if raw.offset() != wantOff {
		t.Errorf("pointer offset = %d; want %d", raw.offset(), wantOff)
	}
	p, err := a.Ptr(0)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Struct()
	if got.seg != b.seg || got.off != b.off {
		t.Errorf("dereferenced struct = (%v, %d); want (%v, %d)", got.seg, got.off, b.seg, b.off)
	}
}

// TestFarPointer covers property 5: when B lives in a different
// segment than A and B's segment has a spare word, writing A's pointer
// produces a far pointer through a one-word landing pad.
func TestFarPointer(t *testing.T) {
	// Segment 0 is preallocated with just enough room for A; B's
	// allocation then has nowhere to go but a brand new segment.
	msg := &Message{Arena: MultiSegment([][]byte{make([]byte, 0, 8)})}
	seg0, err := msg.Segment(0)
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewStruct(seg0, ObjectSize{PointerCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a.seg.id != 0 {
		t.Fatalf("A landed in segment %d; want 0", a.seg.id)
	}
	seg1, addr, err := msg.alloc(8, nil)
	if err != nil {
		t.Fatal(err)
	}
	if seg1.id == seg0.id {
		t.Fatal("expected alloc to land in a distinct segment without a preferred one that has room")
	}
	b := Struct{seg: seg1, structData: structData{off: addr, size: ObjectSize{DataSize: 8}, depthLimit: msg.depthLimit()}}
	if err := a.SetPtr(0, b.ToPtr()); err != nil {
		t.Fatal(err)
	}
	raw := a.seg.readRawPointer(a.off)
	if raw.pointerType() != farPointer {
		t.Fatalf("pointer kind = %v; want farPointer", raw.pointerType())
	}
	if raw.farSegment() != seg1.id {
		t.Errorf("far pointer segment = %d; want %d", raw.farSegment(), seg1.id)
	}
	p, err := a.Ptr(0)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Struct()
	if got.off != b.off || got.seg.id != b.seg.id {
		t.Errorf("dereferenced far struct = (%d, %d); want (%d, %d)", got.seg.id, got.off, b.seg.id, b.off)
	}
}

// TestDoubleFarPointer covers property 6 and scenario E4: when B's
// segment has no slack at all for a single-word landing pad, writing
// A's pointer to B must emit a double-far pointer whose two landing
// pad words (allocated wherever there is room, here A's own segment)
// collectively resolve back to B.
func TestDoubleFarPointer(t *testing.T) {
	full := make([]byte, 8, 8) // B's segment: exactly B's size, zero slack.
	msg := &Message{Arena: MultiSegment([][]byte{make([]byte, 0, 64), full})}
	seg0, err := msg.Segment(0)
	if err != nil {
		t.Fatal(err)
	}
	seg1, err := msg.Segment(1)
	if err != nil {
		t.Fatal(err)
	}

	a, err := NewStruct(seg0, ObjectSize{PointerCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	b := Struct{seg: seg1, structData: structData{off: 0, size: ObjectSize{DataSize: 8}, depthLimit: msg.depthLimit()}}

	if err := a.SetPtr(0, b.ToPtr()); err != nil {
		t.Fatal(err)
	}

	raw := a.seg.readRawPointer(a.off)
	if raw.pointerType() != doubleFarPointer {
		t.Fatalf("pointer kind = %v; want doubleFarPointer", raw.pointerType())
	}

	padSeg, err := msg.Segment(raw.farSegment())
	if err != nil {
		t.Fatal(err)
	}
	padAddr := raw.farAddress()
	far := padSeg.readRawPointer(padAddr)
	tag := padSeg.readRawPointer(padAddr + Address(wordSize))
	if far.pointerType() != farPointer {
		t.Fatalf("first landing pad word kind = %v; want farPointer", far.pointerType())
	}
	if far.farSegment() != seg1.id {
		t.Errorf("landing pad's far segment = %d; want %d", far.farSegment(), seg1.id)
	}
	if far.farAddress() != b.off {
		t.Errorf("landing pad's far address = %d; want %d", far.farAddress(), b.off)
	}
	if tag.pointerType() != structPointer || tag.offset() != 0 {
		t.Errorf("landing pad shape word = %#x; want a struct pointer with offset 0", uint64(tag))
	}

	p, err := a.Ptr(0)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Struct()
	if got.seg.id != seg1.id || got.off != b.off {
		t.Errorf("dereferenced double-far struct = (%d, %d); want (%d, %d)", got.seg.id, got.off, seg1.id, b.off)
	}
}

func TestUpgradedListElementWrite(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 4}, 3)
	if err != nil {
		t.Fatal(err)
	}
	elem, err := l.Struct(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := elem.SetUint32(0, 77, 0); err != nil {
		t.Fatal(err)
	}
	if err := elem.SetPtr(0, Ptr{}); err != ErrUpgradedListElement {
		t.Errorf("SetPtr on upgraded element = %v; want ErrUpgradedListElement", err)
	}
}
