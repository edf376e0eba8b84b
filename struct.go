package capnp

import "math"

// structFlags records bookkeeping bits about a Struct that are not
// part of its wire encoding.
type structFlags uint8

const (
	// isUpgradedListElement marks a Struct synthesized from an element
	// of a primitive (non-composite) list, per the list-upgrade
	// compatibility rule: such a struct has no pointer section, and
	// only data offset 0 — the element's own storage — is writable.
	isUpgradedListElement structFlags = 1 << iota
)

// Struct is a handle to a Cap'n Proto struct: a data section of
// primitive fields followed by a pointer section, both word-padded.
// It is a view over its Segment, not an owner.
type Struct struct {
	seg *Segment
	structData
}

// NewStruct allocates a new, zeroed struct of the given size,
// preferring to place it in seg.
func NewStruct(seg *Segment, sz ObjectSize) (Struct, error) {
	if !sz.isValid() {
		return Struct{}, ErrOversizedList
	}
	sz.DataSize = sz.DataSize.padToWord()
	s, addr, err := seg.msg.alloc(sz.totalSize(), seg)
	if err != nil {
		return Struct{}, err
	}
	return Struct{seg: s, structData: structData{off: addr, size: sz, depthLimit: seg.msg.depthLimit()}}, nil
}

// NewRootStruct allocates a new struct of the given size in seg's
// message and installs it as the message's root pointer.
func NewRootStruct(seg *Segment, sz ObjectSize) (Struct, error) {
	return seg.msg.AllocateRootStruct(sz)
}

// IsValid reports whether s references an allocated struct.
func (s Struct) IsValid() bool { return s.seg != nil }

// Segment returns the segment s is encoded in.
func (s Struct) Segment() *Segment { return s.seg }

// Size returns the struct's data and pointer section sizes.
func (s Struct) Size() ObjectSize { return s.size }

// Address returns the byte offset of the start of s's data section.
func (s Struct) Address() Address { return s.off }

// ToPtr converts s to a generic Ptr.
func (s Struct) ToPtr() Ptr {
	if s.seg == nil {
		return Ptr{}
	}
	return Ptr{flags: ptrFlags(structPtrType), seg: s.seg, structData: s.structData}
}

func (s Struct) dataRegion(off DataOffset, width Size) (Address, bool) {
	end := Size(off) + width
	if end > s.size.DataSize {
		return 0, false
	}
	return s.off + Address(off), true
}

func (s Struct) ptrAddress(i int) (Address, bool) {
	if i < 0 || i >= int(s.size.PointerCount) {
		return 0, false
	}
	return s.off + Address(s.size.DataSize) + Address(i)*Address(wordSize), true
}

// Uint8 reads the byte at data offset off, XORed with def, returning
// the field's default value if off lies beyond the struct's allocated
// data section.
func (s Struct) Uint8(off DataOffset, def uint8) uint8 {
	a, ok := s.dataRegion(off, 1)
	if !ok {
		return def
	}
	return s.seg.readUint8(a) ^ def
}

// SetUint8 writes v XORed with def to data offset off.  Writing a
// value beyond the struct's allocated size is only permitted when it
// encodes the default (all-zero) representation.
func (s Struct) SetUint8(off DataOffset, v, def uint8) error {
	return s.setUintN(off, 1, uint64(v^def), func(a Address, raw uint64) { s.seg.writeUint8(a, uint8(raw)) })
}

func (s Struct) Uint16(off DataOffset, def uint16) uint16 {
	a, ok := s.dataRegion(off, 2)
	if !ok {
		return def
	}
	return s.seg.readUint16(a) ^ def
}

func (s Struct) SetUint16(off DataOffset, v, def uint16) error {
	return s.setUintN(off, 2, uint64(v^def), func(a Address, raw uint64) { s.seg.writeUint16(a, uint16(raw)) })
}

func (s Struct) Uint32(off DataOffset, def uint32) uint32 {
	a, ok := s.dataRegion(off, 4)
	if !ok {
		return def
	}
	return s.seg.readUint32(a) ^ def
}

func (s Struct) SetUint32(off DataOffset, v, def uint32) error {
	return s.setUintN(off, 4, uint64(v^def), func(a Address, raw uint64) { s.seg.writeUint32(a, uint32(raw)) })
}

func (s Struct) Uint64(off DataOffset, def uint64) uint64 {
	a, ok := s.dataRegion(off, 8)
	if !ok {
		return def
	}
	return s.seg.readUint64(a) ^ def
}

func (s Struct) SetUint64(off DataOffset, v, def uint64) error {
	return s.setUintN(off, 8, v^def, func(a Address, raw uint64) { s.seg.writeUint64(a, raw) })
}

func (s Struct) Int8(off DataOffset, def int8) int8 { return int8(s.Uint8(off, uint8(def))) }
func (s Struct) SetInt8(off DataOffset, v, def int8) error {
	return s.SetUint8(off, uint8(v), uint8(def))
}
func (s Struct) Int16(off DataOffset, def int16) int16 { return int16(s.Uint16(off, uint16(def))) }
func (s Struct) SetInt16(off DataOffset, v, def int16) error {
	return s.SetUint16(off, uint16(v), uint16(def))
}
func (s Struct) Int32(off DataOffset, def int32) int32 { return int32(s.Uint32(off, uint32(def))) }
func (s Struct) SetInt32(off DataOffset, v, def int32) error {
	return s.SetUint32(off, uint32(v), uint32(def))
}
func (s Struct) Int64(off DataOffset, def int64) int64 { return int64(s.Uint64(off, uint64(def))) }
func (s Struct) SetInt64(off DataOffset, v, def int64) error {
	return s.SetUint64(off, uint64(v), uint64(def))
}

func (s Struct) Float32(off DataOffset, def float32) float32 {
	return math.Float32frombits(s.Uint32(off, math.Float32bits(def)))
}
func (s Struct) SetFloat32(off DataOffset, v, def float32) error {
	return s.SetUint32(off, math.Float32bits(v), math.Float32bits(def))
}
func (s Struct) Float64(off DataOffset, def float64) float64 {
	return math.Float64frombits(s.Uint64(off, math.Float64bits(def)))
}
func (s Struct) SetFloat64(off DataOffset, v, def float64) error {
	return s.SetUint64(off, math.Float64bits(v), math.Float64bits(def))
}

// Bit reads the boolean at the given bit offset, XORed with def.
func (s Struct) Bit(off BitOffset, def bool) bool {
	a, ok := s.dataRegion(DataOffset(off/8), 1)
	if !ok {
		return def
	}
	v := s.seg.readUint8(a)&off.mask() != 0
	return v != def
}

// SetBit writes v XORed with def to the given bit offset.
func (s Struct) SetBit(off BitOffset, v, def bool) error {
	raw := v != def
	var bit uint64
	if raw {
		bit = 1
	}
	return s.setUintN(DataOffset(off/8), 1, bit, func(a Address, rawByte uint64) {
		cur := s.seg.readUint8(a) &^ off.mask()
		if rawByte != 0 {
			cur |= off.mask()
		}
		s.seg.writeUint8(a, cur)
	})
}

// setUintN applies the short-struct and upgraded-list-element write
// rules uniformly across every primitive width: a write beyond the
// struct's data section is only allowed when raw (the XORed value) is
// zero, i.e. the value being written already equals the field's
// default; a write to any nonzero offset of an upgraded list element
// is always rejected.
func (s Struct) setUintN(off DataOffset, width Size, raw uint64, write func(Address, uint64)) error {
	if s.flags&isUpgradedListElement != 0 && off != 0 {
		return ErrUpgradedListElement
	}
	a, ok := s.dataRegion(off, width)
	if !ok {
		if raw != 0 {
			return ErrShortStruct
		}
		return nil
	}
	write(a, raw)
	return nil
}

// Ptr returns the pointer at pointer-section index i, dereferencing
// through any far pointers.  An index beyond the struct's declared
// pointer section, or a null pointer slot, yields the zero Ptr.
func (s Struct) Ptr(i int) (Ptr, error) {
	a, ok := s.ptrAddress(i)
	if !ok {
		return Ptr{}, nil
	}
	if s.depthLimit == 0 {
		return Ptr{}, ErrDepthLimitExceeded
	}
	return s.seg.readPtr(a, s.depthLimit)
}

// SetPtr stores p at pointer-section index i.
func (s Struct) SetPtr(i int, p Ptr) error {
	if s.flags&isUpgradedListElement != 0 {
		return ErrUpgradedListElement
	}
	a, ok := s.ptrAddress(i)
	if !ok {
		return ErrPointerIndexOutOfRange
	}
	return s.seg.writePtr(a, p)
}

// SetClient interns c into s's message's capability table (appending
// it if it has not been seen before) and stores an interface pointer
// referencing it at pointer-section index i, per §4.4's capability
// write rule. Writing the zero Client clears the slot.
func (s Struct) SetClient(i int, c Client) error {
	if !c.IsValid() {
		return s.SetPtr(i, Ptr{})
	}
	idx := s.seg.msg.CapTable.Add(c)
	return s.SetPtr(i, NewInterface(s.seg, idx).ToPtr())
}
