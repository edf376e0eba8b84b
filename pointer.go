package capnp

// readPtr dereferences the pointer word at addr, following far and
// double-far indirection as needed, and returns the object it
// ultimately refers to.  depthLimit is the budget remaining for
// nested traversal; it is decremented for every struct or list
// returned.
func (seg *Segment) readPtr(addr Address, depthLimit uint) (Ptr, error) {
	if depthLimit == 0 {
		return Ptr{}, ErrDepthLimitExceeded
	}
	if !seg.regionInBounds(addr, wordSize) {
		return Ptr{}, ErrSegmentOutOfRange
	}
	raw := seg.readRawPointer(addr)
	if raw == 0 {
		return Ptr{}, nil
	}
	s := seg
	// a starts as the base a near pointer's offset is resolved against;
	// for a far or double-far pointer, resolveFarPointer instead hands
	// back the object's address outright, already resolved.
	a := addr + Address(wordSize)
	switch raw.pointerType() {
	case farPointer, doubleFarPointer:
		var err error
		s, a, raw, err = seg.resolveFarPointer(raw)
		if err != nil {
			return Ptr{}, err
		}
		switch raw.pointerType() {
		case structPointer:
			return s.readStructPtr(a, raw, depthLimit)
		case listPointer:
			return s.readListPtr(a, raw, depthLimit)
		default:
			return Ptr{}, ErrMalformedPointer
		}
	case structPointer:
		addr, ok := raw.offset().resolve(a)
		if !ok {
			return Ptr{}, errOverflow
		}
		return s.readStructPtr(addr, raw, depthLimit)
	case listPointer:
		addr, ok := raw.offset().resolve(a)
		if !ok {
			return Ptr{}, errOverflow
		}
		return s.readListPtr(addr, raw, depthLimit)
	case otherPointer:
		if raw.otherPointerType() != 0 {
			return Ptr{}, ErrUnsupportedOtherPointer
		}
		return Interface{seg: s, cap: raw.capabilityIndex()}.ToPtr(), nil
	default:
		return Ptr{}, ErrMalformedPointer
	}
}

// resolveFarPointer follows a far or double-far pointer all the way to
// the segment and address of the object it designates, plus the
// struct/list pointer word describing that object's shape.  Unlike the
// near-pointer case in readPtr, the returned address needs no further
// offset resolution by the caller — it is already the object's
// absolute address.
//
// For a single far pointer, the landing pad word IS the shape pointer,
// whose offset is relative to the word following the pad. For a
// double-far pointer, the two-word landing pad is folded into an
// equivalent zero-offset pointer via landingPadNearPointer; that
// offset is relative to the start of the target segment (address 0),
// not to the pad, since the pad itself is not part of the target
// segment's object layout — only far.farAddress() (the forwarding
// word's own target) is.
func (seg *Segment) resolveFarPointer(raw rawPointer) (*Segment, Address, rawPointer, error) {
	target, err := seg.lookupSegment(raw.farSegment())
	if err != nil {
		return nil, 0, 0, err
	}
	padAddr := raw.farAddress()
	if raw.pointerType() == farPointer {
		if !target.regionInBounds(padAddr, wordSize) {
			return nil, 0, 0, ErrSegmentOutOfRange
		}
		tag := target.readRawPointer(padAddr)
		if t := tag.pointerType(); t == farPointer || t == doubleFarPointer {
			return nil, 0, 0, errBadLandingPad
		}
		a, ok := tag.offset().resolve(padAddr + Address(wordSize))
		if !ok {
			return nil, 0, 0, errOverflow
		}
		return target, a, tag, nil
	}
	if !target.regionInBounds(padAddr, 2*wordSize) {
		return nil, 0, 0, ErrSegmentOutOfRange
	}
	far := target.readRawPointer(padAddr)
	tag := target.readRawPointer(padAddr + Address(wordSize))
	if far.pointerType() != farPointer {
		return nil, 0, 0, errBadLandingPad
	}
	finalSeg, err := seg.lookupSegment(far.farSegment())
	if err != nil {
		return nil, 0, 0, err
	}
	near := landingPadNearPointer(far, tag)
	a, ok := near.offset().resolve(0)
	if !ok {
		return nil, 0, 0, errOverflow
	}
	return finalSeg, a, near, nil
}

func (s *Segment) readStructPtr(addr Address, raw rawPointer, depthLimit uint) (Ptr, error) {
	sz := raw.structSize()
	if !sz.isValid() {
		return Ptr{}, errObjectSize
	}
	if !s.regionInBounds(addr, sz.totalSize()) {
		return Ptr{}, ErrSegmentOutOfRange
	}
	if !s.msg.canRead(sz.totalSize()) {
		return Ptr{}, ErrTraversalLimitExceeded
	}
	return Struct{seg: s, structData: structData{off: addr, size: sz, depthLimit: depthLimit - 1}}.ToPtr(), nil
}

func (s *Segment) readListPtr(addr Address, raw rawPointer, depthLimit uint) (Ptr, error) {
	if raw.listType() == compositeList {
		if !s.regionInBounds(addr, wordSize) {
			return Ptr{}, ErrSegmentOutOfRange
		}
		tag := s.readRawPointer(addr)
		if tag.pointerType() != structPointer {
			return Ptr{}, errBadTag
		}
		n := int32(tag.offset())
		elemSz := tag.structSize()
		bodyWords := raw.numListElements()
		total, ok := elemSz.totalSize().times(n)
		if !ok || total.padToWord() != wordSize*Size(bodyWords) {
			return Ptr{}, errBadTag
		}
		listAddr := addr + Address(wordSize)
		if !s.regionInBounds(listAddr, total) {
			return Ptr{}, ErrSegmentOutOfRange
		}
		if !s.msg.canRead(total + wordSize) {
			return Ptr{}, ErrTraversalLimitExceeded
		}
		return List{seg: s, off: listAddr, length: n, size: elemSz, depthLimit: depthLimit - 1, flags: compositeListFlag}.ToPtr(), nil
	}
	n := raw.numListElements()
	elemSz := raw.elementSize()
	total, ok := raw.totalListSize()
	if !ok {
		return Ptr{}, ErrOversizedList
	}
	if !s.regionInBounds(addr, total) {
		return Ptr{}, ErrSegmentOutOfRange
	}
	if !s.msg.canRead(total) {
		return Ptr{}, ErrTraversalLimitExceeded
	}
	flags := ptrFlags(0)
	if raw.listType() == bit1List {
		flags = bitListFlag
	}
	return List{seg: s, off: addr, length: n, size: elemSz, depthLimit: depthLimit - 1, flags: flags}.ToPtr(), nil
}

// elementListType returns the raw list-type tag that encodes a list
// of elements of the given size, for lists that are not composite.
// Bit lists cannot be distinguished from void lists by size alone
// (both have a zero-byte per-element size), so callers must check
// isBitList before falling back to this.
func elementListType(sz ObjectSize) listType {
	switch {
	case sz.isZero():
		return voidList
	case sz.PointerCount > 0:
		return pointerList
	case sz.DataSize == 1:
		return byte1List
	case sz.DataSize == 2:
		return byte2List
	case sz.DataSize == 4:
		return byte4List
	default:
		return byte8List
	}
}

// writePtr encodes p into the pointer word at addr in segment s,
// emitting a near, far, or double-far pointer as needed to reach p's
// object. Writing the zero Ptr clears the slot (a null pointer).
func (s *Segment) writePtr(addr Address, p Ptr) error {
	if !p.IsValid() {
		s.writeRawPointer(addr, 0)
		return nil
	}
	if p.seg.msg != s.msg {
		return ErrCrossMessagePointer
	}
	switch p.flags.ptrType() {
	case structPtrType:
		return s.writeObjectPtr(addr, p.seg, p.off, rawStructPointer(0, p.size))
	case listPtrType:
		l := p.list
		if l.isComposite() {
			bodyWordCount := l.size.totalWordCount() * l.length
			raw := rawListPointer(0, compositeList, bodyWordCount)
			return s.writeObjectPtr(addr, l.seg, l.off-Address(wordSize), raw)
		}
		lt := elementListType(l.size)
		if l.flags.isBitList() {
			lt = bit1List
		}
		raw := rawListPointer(0, lt, l.length)
		return s.writeObjectPtr(addr, l.seg, l.off, raw)
	case interfacePtr:
		s.writeRawPointer(addr, rawInterfacePointer(p.iface.cap))
		return nil
	default:
		return ErrMalformedPointer
	}
}

// writeObjectPtr emits a pointer at addr (in segment s) to the object
// of shape raw living at taddr in segment tseg.  If tseg == s, this is
// a simple near pointer.  Otherwise a landing pad must be allocated:
// a single-word pad in tseg if room can be found there (producing a
// one-hop far pointer), falling back to a two-word pad allocated
// alongside addr (producing a double-far pointer) when it cannot.
func (s *Segment) writeObjectPtr(addr Address, tseg *Segment, taddr Address, raw rawPointer) error {
	if tseg == s {
		off := nearPointerOffset(addr, taddr)
		s.writeRawPointer(addr, raw.withOffset(off))
		return nil
	}
	padSeg, padAddr, err := tseg.msg.alloc(wordSize, tseg)
	if err == nil && padSeg == tseg {
		off := nearPointerOffset(padAddr, taddr)
		padSeg.writeRawPointer(padAddr, raw.withOffset(off))
		s.writeRawPointer(addr, rawFarPointer(padSeg.id, padAddr))
		return nil
	}
	padSeg2, padAddr2, err2 := s.msg.alloc(2*wordSize, s)
	if err2 != nil {
		return err2
	}
	padSeg2.writeRawPointer(padAddr2, rawFarPointer(tseg.id, taddr))
	padSeg2.writeRawPointer(padAddr2+Address(wordSize), raw.withOffset(0))
	s.writeRawPointer(addr, rawDoubleFarPointer(padSeg2.id, padAddr2))
	return nil
}
