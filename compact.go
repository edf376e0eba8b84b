package capnp

// Compact trims s's trailing all-zero data words, and — when dataOnly
// is false — also trims trailing all-zero pointer words, per §4.8.
// If data words are trimmed, any pointer words that remain must be
// slid left to stay immediately adjacent to the shrunk data section
// (a struct's pointer section always begins right where its data
// section ends on the wire); every struct/list pointer word that
// moves has its word offset rewritten since that offset is relative
// to the pointer's own position. Far, double-far, and capability
// pointers encode an absolute target and need no adjustment.
//
// Compact attempts Segment.tryReclaim on the freed tail so the space
// can be reused by a subsequent allocation, but silently leaves the
// segment's high-water mark alone if s was not the most recent
// allocation (tryReclaim is a no-op in that case). Either way, s is
// updated in place to the reduced shape.
func (s *Struct) Compact(dataOnly bool) error {
	if !s.IsValid() {
		return nil
	}
	oldDataWords := s.size.dataWordCount()
	newDataWords := oldDataWords
	for newDataWords > 0 {
		addr := s.off + Address(newDataWords-1)*Address(wordSize)
		if s.seg.readUint64(addr) != 0 {
			break
		}
		newDataWords--
	}

	oldPtrCount := s.size.PointerCount
	newPtrCount := oldPtrCount
	if !dataOnly {
		oldPtrBase := s.off + Address(oldDataWords)*Address(wordSize)
		for newPtrCount > 0 {
			addr := oldPtrBase + Address(newPtrCount-1)*Address(wordSize)
			if s.seg.readRawPointer(addr) != 0 {
				break
			}
			newPtrCount--
		}
	}

	shiftWords := oldDataWords - newDataWords
	if shiftWords > 0 && newPtrCount > 0 {
		oldPtrBase := s.off + Address(oldDataWords)*Address(wordSize)
		newPtrBase := s.off + Address(newDataWords)*Address(wordSize)
		for i := uint16(0); i < newPtrCount; i++ {
			srcAddr := oldPtrBase + Address(i)*Address(wordSize)
			dstAddr := newPtrBase + Address(i)*Address(wordSize)
			raw := s.seg.readRawPointer(srcAddr)
			s.seg.writeRawPointer(dstAddr, shiftPointerOffset(raw, int32(shiftWords)))
		}
	}

	newSize := ObjectSize{DataSize: Size(newDataWords) * wordSize, PointerCount: newPtrCount}
	oldTotal := s.size.totalSize()
	newTotal := newSize.totalSize()
	if trimmed := oldTotal - newTotal; trimmed > 0 {
		zeroRegion(s.seg, s.off+Address(newTotal), trimmed)
		s.seg.tryReclaim(s.off+Address(oldTotal), trimmed)
	}
	s.size = newSize
	return nil
}

// shiftPointerOffset adjusts a near struct or list pointer's word
// offset by delta words, to compensate for the pointer word itself
// having moved within its segment. Far, double-far, and "other"
// (capability) pointers carry no self-relative offset and pass
// through unchanged.
func shiftPointerOffset(raw rawPointer, delta int32) rawPointer {
	if raw == 0 {
		return 0
	}
	switch raw.pointerType() {
	case structPointer, listPointer:
		return raw.withOffset(raw.offset() + pointerOffset(delta))
	default:
		return raw
	}
}

// zeroRegion clears sz bytes starting at addr in seg.
func zeroRegion(seg *Segment, addr Address, sz Size) {
	b := seg.slice(addr, sz)
	for i := range b {
		b[i] = 0
	}
}
