package capnp

// CopyTo deep-copies s into dst, a struct the caller has already
// allocated in a (possibly different) destination Message; CopyTo
// does not allocate dst and returns no new handle.  Data and pointer
// slots are copied up to the smaller of the two shapes.  If dst is s
// itself (same message and address), nothing is copied; a dst
// elsewhere in s's message receives a copy like any other.  Every
// pointer reachable from s is copied transitively: child structs
// recursively, primitive and bit lists by a single word-wise copy of
// their payload, composite lists tag-then-element, text and data
// byte-wise, and capabilities by interning the referenced Client into
// the destination message's CapTable (translating the index, not the
// handle itself).
//
// CopyTo is the §4.7 deep-copy operation: the only way to move an
// object between messages, since a pointer can never cross a message
// boundary on the wire. writePtr does not call it implicitly — a
// pointer write whose target lives in a different message fails with
// ErrCrossMessagePointer instead, so that callers must copy
// explicitly (and decide where the copy lands) rather than have one
// happen as a side effect of a plain pointer write.
func (s Struct) CopyTo(dst Struct) error {
	if !s.IsValid() {
		return nil
	}
	if s.seg.msg == dst.seg.msg && s.off == dst.off {
		return nil
	}
	n := s.size.DataSize
	if dst.size.DataSize < n {
		n = dst.size.DataSize
	}
	copy(dst.seg.slice(dst.off, n), s.seg.slice(s.off, n))

	pn := s.size.PointerCount
	if dst.size.PointerCount < pn {
		pn = dst.size.PointerCount
	}
	for i := 0; i < int(pn); i++ {
		p, err := s.Ptr(i)
		if err != nil {
			return err
		}
		cp, err := copyPtr(dst.seg, p)
		if err != nil {
			return err
		}
		if err := dst.SetPtr(i, cp); err != nil {
			return err
		}
	}
	return nil
}

// copyPtr copies whatever object p refers to into dst's message,
// returning a Ptr to the copy.  The zero Ptr copies to itself.
func copyPtr(dst *Segment, p Ptr) (Ptr, error) {
	if !p.IsValid() {
		return Ptr{}, nil
	}
	switch p.flags.ptrType() {
	case structPtrType:
		src := p.Struct()
		if src.size.isZero() {
			cs, err := NewStruct(dst, ObjectSize{})
			if err != nil {
				return Ptr{}, err
			}
			return cs.ToPtr(), nil
		}
		cs, err := NewStruct(dst, src.size)
		if err != nil {
			return Ptr{}, err
		}
		if err := src.CopyTo(cs); err != nil {
			return Ptr{}, err
		}
		return cs.ToPtr(), nil
	case listPtrType:
		cl, err := copyList(dst, p.List())
		if err != nil {
			return Ptr{}, err
		}
		return cl.ToPtr(), nil
	case interfacePtr:
		iface := p.Interface()
		idx := dst.msg.CapTable.Add(iface.Client())
		return NewInterface(dst, idx).ToPtr(), nil
	default:
		return Ptr{}, ErrMalformedPointer
	}
}

// copyList copies l's elements into a freshly allocated list in dst's
// message, preserving l's element shape (bit, primitive, pointer, or
// composite).
func copyList(dst *Segment, l List) (List, error) {
	if !l.IsValid() {
		return List{}, nil
	}
	if l.isComposite() {
		return copyCompositeList(dst, l)
	}
	if l.flags.isBitList() {
		cl, err := NewBitList(dst, l.length)
		if err != nil {
			return List{}, err
		}
		total := Size((int64(l.length) + 7) / 8)
		copy(dst.slice(cl.off, total), l.seg.slice(l.off, total))
		return cl.List, nil
	}
	if l.size.PointerCount == 0 {
		// Flat-primitive lists (including Void, Text, Data) are a
		// single contiguous byte run: copy it verbatim.
		total, ok := l.size.totalSize().times(l.length)
		if !ok {
			return List{}, ErrOversizedList
		}
		cl, err := newPrimitiveList(dst, l.size, l.length)
		if err != nil {
			return List{}, err
		}
		copy(dst.slice(cl.off, total), l.seg.slice(l.off, total))
		return cl, nil
	}
	// Pointer list.
	cl, err := NewPointerList(dst, l.length)
	if err != nil {
		return List{}, err
	}
	for i := 0; i < l.Len(); i++ {
		src, err := PointerList{l}.At(i)
		if err != nil {
			return List{}, err
		}
		cp, err := copyPtr(dst, src)
		if err != nil {
			return List{}, err
		}
		if err := cl.SetPtr(i, cp); err != nil {
			return List{}, err
		}
	}
	return cl.List, nil
}

// copyCompositeList copies a composite (inline-struct) list element
// by element, allocating the copy with l's element shape (the shape
// every element shares, taken from l's tag word).  A zero-sized element shape (both
// data_words and pointer_words zero) still produces a list of n empty
// structs, per the open question in §9.
func copyCompositeList(dst *Segment, l List) (List, error) {
	cl, err := NewCompositeList(dst, l.size, l.length)
	if err != nil {
		return List{}, err
	}
	for i := 0; i < l.Len(); i++ {
		srcElem, err := l.Struct(i)
		if err != nil {
			return List{}, err
		}
		dstElem, err := cl.Struct(i)
		if err != nil {
			return List{}, err
		}
		if err := srcElem.CopyTo(dstElem); err != nil {
			return List{}, err
		}
	}
	return cl, nil
}
