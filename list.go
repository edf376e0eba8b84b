package capnp

import (
	"math"
	"strconv"
	"strings"
)

// List is a handle to a Cap'n Proto list: a run of equally-sized
// elements (primitive, pointer, or struct) stored contiguously, or —
// for composite lists — preceded by a tag word giving the per-element
// size.  Like Struct, it is a non-owning view over its Segment.
type List struct {
	seg        *Segment
	off        Address
	length     int32
	size       ObjectSize
	depthLimit uint
	flags      ptrFlags
}

func (l List) isComposite() bool { return l.flags.isComposite() }

// IsValid reports whether l references an allocated list.
func (l List) IsValid() bool { return l.seg != nil }

// Segment returns the segment l is encoded in.
func (l List) Segment() *Segment { return l.seg }

// Len returns the number of elements in the list.
func (l List) Len() int { return int(l.length) }

// ToPtr converts l to a generic Ptr.
func (l List) ToPtr() Ptr {
	if l.seg == nil {
		return Ptr{}
	}
	return Ptr{flags: ptrFlags(listPtrType) | (l.flags & compositeListFlag), seg: l.seg, list: l}
}

func (l List) elementAddress(i int) (Address, bool) {
	if i < 0 || i >= int(l.length) {
		return 0, false
	}
	a, ok := l.off.element(int32(i), l.size.totalSize())
	return a, ok
}

// Struct returns the i'th element of l as a struct.  For a primitive
// list, this synthesizes an upgraded-list-element struct per the
// list-upgrade compatibility rule: the result has no pointer section
// and only data offset 0 is writable.
func (l List) Struct(i int) (Struct, error) {
	a, ok := l.elementAddress(i)
	if !ok {
		return Struct{}, ErrIndexOutOfRange
	}
	flags := structFlags(0)
	if !l.isComposite() {
		flags = isUpgradedListElement
	}
	return Struct{seg: l.seg, structData: structData{off: a, size: l.size, depthLimit: l.depthLimit, flags: flags}}, nil
}

// SetStruct copies the contents of v into the i'th element of l, as
// if by CopyTo.
func (l List) SetStruct(i int, v Struct) error {
	dst, err := l.Struct(i)
	if err != nil {
		return err
	}
	return v.CopyTo(dst)
}

// NewCompositeList allocates a list of n structs of the given element
// size, preferring to place it in seg.
func NewCompositeList(seg *Segment, sz ObjectSize, n int32) (List, error) {
	if n < 0 {
		return List{}, ErrOversizedList
	}
	sz.DataSize = sz.DataSize.padToWord()
	full, ok := sz.totalSize().times(n)
	if !ok {
		return List{}, ErrOversizedList
	}
	allocSize := full + wordSize // tag word
	s, addr, err := seg.msg.alloc(allocSize, seg)
	if err != nil {
		return List{}, err
	}
	s.writeRawPointer(addr, rawStructPointer(pointerOffset(n), sz))
	return List{seg: s, off: addr + Address(wordSize), length: n, size: sz, depthLimit: seg.msg.depthLimit(), flags: compositeListFlag}, nil
}

func newPrimitiveList(seg *Segment, sz ObjectSize, n int32) (List, error) {
	if n < 0 {
		return List{}, ErrOversizedList
	}
	total, ok := sz.totalSize().times(n)
	if !ok {
		return List{}, ErrOversizedList
	}
	s, addr, err := seg.msg.alloc(total.padToWord(), seg)
	if err != nil {
		return List{}, err
	}
	return List{seg: s, off: addr, length: n, size: sz, depthLimit: seg.msg.depthLimit()}, nil
}

// toTypedList validates that l's element shape matches expected before
// a caller reinterprets a generic List dereferenced off a Ptr (e.g. via
// Ptr.List()) as one of the typed list wrappers below. This is the
// check a code generator would normally bake in via the schema; since
// this package exposes the reader/writer primitives directly, callers
// that accept wire data of unknown provenance and want type safety use
// this instead of the bare struct conversion.
func (l List) toTypedList(expected ObjectSize) (List, error) {
	if !l.IsValid() {
		return l, nil
	}
	if l.flags.isBitList() || l.isComposite() {
		return List{}, errListElemSize
	}
	if l.size != expected {
		return List{}, errListElemSize
	}
	return l, nil
}

// ToUInt8List reinterprets l as a UInt8List, failing if l's elements
// are not one-byte values.
func ToUInt8List(l List) (UInt8List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 1})
	return UInt8List{t}, err
}

// ToInt8List reinterprets l as an Int8List.
func ToInt8List(l List) (Int8List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 1})
	return Int8List{t}, err
}

// ToUInt16List reinterprets l as a UInt16List.
func ToUInt16List(l List) (UInt16List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 2})
	return UInt16List{t}, err
}

// ToInt16List reinterprets l as an Int16List.
func ToInt16List(l List) (Int16List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 2})
	return Int16List{t}, err
}

// ToUInt32List reinterprets l as a UInt32List.
func ToUInt32List(l List) (UInt32List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 4})
	return UInt32List{t}, err
}

// ToInt32List reinterprets l as an Int32List.
func ToInt32List(l List) (Int32List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 4})
	return Int32List{t}, err
}

// ToUInt64List reinterprets l as a UInt64List.
func ToUInt64List(l List) (UInt64List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 8})
	return UInt64List{t}, err
}

// ToInt64List reinterprets l as an Int64List.
func ToInt64List(l List) (Int64List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 8})
	return Int64List{t}, err
}

// ToFloat32List reinterprets l as a Float32List.
func ToFloat32List(l List) (Float32List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 4})
	return Float32List{t}, err
}

// ToFloat64List reinterprets l as a Float64List.
func ToFloat64List(l List) (Float64List, error) {
	t, err := l.toTypedList(ObjectSize{DataSize: 8})
	return Float64List{t}, err
}

// ToPointerList reinterprets l as a PointerList.
func ToPointerList(l List) (PointerList, error) {
	t, err := l.toTypedList(ObjectSize{PointerCount: 1})
	return PointerList{t}, err
}

// PointerList is a list of pointers.
type PointerList struct{ List }

// NewPointerList allocates a list of n null pointers.
func NewPointerList(seg *Segment, n int32) (PointerList, error) {
	l, err := newPrimitiveList(seg, ObjectSize{PointerCount: 1}, n)
	return PointerList{l}, err
}

func (l PointerList) At(i int) (Ptr, error) {
	a, ok := l.elementAddress(i)
	if !ok {
		return Ptr{}, ErrIndexOutOfRange
	}
	if l.depthLimit == 0 {
		return Ptr{}, ErrDepthLimitExceeded
	}
	return l.seg.readPtr(a, l.depthLimit)
}

func (l PointerList) SetPtr(i int, p Ptr) error {
	a, ok := l.elementAddress(i)
	if !ok {
		return ErrIndexOutOfRange
	}
	return l.seg.writePtr(a, p)
}

// BitList is a list of booleans, packed 8 per byte.
type BitList struct{ List }

func NewBitList(seg *Segment, n int32) (BitList, error) {
	if n < 0 {
		return BitList{}, ErrOversizedList
	}
	total := Size((int64(n) + 7) / 8).padToWord()
	s, addr, err := seg.msg.alloc(total, seg)
	if err != nil {
		return BitList{}, err
	}
	return BitList{List{seg: s, off: addr, length: n, depthLimit: seg.msg.depthLimit(), flags: bitListFlag}}, nil
}

func (l BitList) At(i int) bool {
	if i < 0 || i >= int(l.length) {
		return false
	}
	bitAddr := Address(l.off) + Address(i/8)
	return l.seg.readUint8(bitAddr)&(1<<uint(i%8)) != 0
}

func (l BitList) Set(i int, v bool) {
	if i < 0 || i >= int(l.length) {
		return
	}
	bitAddr := Address(l.off) + Address(i/8)
	cur := l.seg.readUint8(bitAddr)
	mask := byte(1 << uint(i%8))
	if v {
		cur |= mask
	} else {
		cur &^= mask
	}
	l.seg.writeUint8(bitAddr, cur)
}

// TextList is a list of NUL-terminated text blobs.
type TextList struct{ List }

func NewTextList(seg *Segment, n int32) (TextList, error) {
	l, err := newPrimitiveList(seg, ObjectSize{PointerCount: 1}, n)
	return TextList{l}, err
}

func (l TextList) At(i int) (string, error) {
	p, err := PointerList{l.List}.At(i)
	if err != nil {
		return "", err
	}
	return p.List().Text(), nil
}

func (l TextList) Set(i int, v string) error {
	p, err := NewText(l.seg, v)
	if err != nil {
		return err
	}
	return PointerList{l.List}.SetPtr(i, p.ToPtr())
}

// String returns a debug representation of the list as a quoted,
// comma-separated sequence, e.g. ["a", "b"].
func (l TextList) String() string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i := 0; i < l.Len(); i++ {
		if i > 0 {
			buf.WriteString(", ")
		}
		s, err := l.At(i)
		if err != nil {
			buf.WriteString("<error>")
			continue
		}
		buf.WriteString(strconv.Quote(s))
	}
	buf.WriteByte(']')
	return buf.String()
}

// DataList is a list of byte-blob data fields.
type DataList struct{ List }

func NewDataList(seg *Segment, n int32) (DataList, error) {
	l, err := newPrimitiveList(seg, ObjectSize{PointerCount: 1}, n)
	return DataList{l}, err
}

func (l DataList) At(i int) ([]byte, error) {
	p, err := PointerList{l.List}.At(i)
	if err != nil {
		return nil, err
	}
	return p.List().Data(), nil
}

func (l DataList) Set(i int, v []byte) error {
	p, err := NewData(l.seg, v)
	if err != nil {
		return err
	}
	return PointerList{l.List}.SetPtr(i, p.ToPtr())
}

// Text returns l's contents decoded as a Go string, assuming l is a
// one-byte list holding a NUL-terminated blob (the Text wire shape).
// If l has not been allocated (the zero List), the empty string is
// returned, matching a null Text pointer's default.
func (l List) Text() string {
	b := l.Data()
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Data returns l's raw element bytes, assuming l is a one-byte list.
func (l List) Data() []byte {
	if l.seg == nil {
		return nil
	}
	return l.seg.slice(l.off, Size(l.length))
}

// NewText allocates a Text blob (a NUL-terminated UInt8List) in seg.
func NewText(seg *Segment, v string) (List, error) {
	return NewTextFromBytes(seg, []byte(v))
}

// NewTextFromBytes allocates a Text blob from raw bytes, appending the
// NUL terminator Text requires on the wire.
func NewTextFromBytes(seg *Segment, v []byte) (List, error) {
	total := int32(len(v)) + 1
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 1}, total)
	if err != nil {
		return List{}, err
	}
	copy(l.seg.slice(l.off, Size(len(v))), v)
	return l, nil
}

// NewData allocates a Data blob in seg.
func NewData(seg *Segment, v []byte) (List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 1}, int32(len(v)))
	if err != nil {
		return List{}, err
	}
	copy(l.seg.slice(l.off, Size(len(v))), v)
	return l, nil
}

// Generic numeric list helpers. Each is a thin view with defaultless
// get/set, matching the absence of a codegen layer to XOR against a
// schema default: list elements always encode their literal value.

type UInt8List struct{ List }

func NewUInt8List(seg *Segment, n int32) (UInt8List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 1}, n)
	return UInt8List{l}, err
}
func (l UInt8List) At(i int) uint8 {
	a, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint8(a)
}
func (l UInt8List) Set(i int, v uint8) {
	if a, ok := l.elementAddress(i); ok {
		l.seg.writeUint8(a, v)
	}
}

type Int8List struct{ List }

func NewInt8List(seg *Segment, n int32) (Int8List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 1}, n)
	return Int8List{l}, err
}
func (l Int8List) At(i int) int8 { return int8(UInt8List{l.List}.At(i)) }
func (l Int8List) Set(i int, v int8) { UInt8List{l.List}.Set(i, uint8(v)) }

type UInt16List struct{ List }

func NewUInt16List(seg *Segment, n int32) (UInt16List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 2}, n)
	return UInt16List{l}, err
}
func (l UInt16List) At(i int) uint16 {
	a, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint16(a)
}
func (l UInt16List) Set(i int, v uint16) {
	if a, ok := l.elementAddress(i); ok {
		l.seg.writeUint16(a, v)
	}
}

type Int16List struct{ List }

func NewInt16List(seg *Segment, n int32) (Int16List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 2}, n)
	return Int16List{l}, err
}
func (l Int16List) At(i int) int16 { return int16(UInt16List{l.List}.At(i)) }
func (l Int16List) Set(i int, v int16) { UInt16List{l.List}.Set(i, uint16(v)) }

type UInt32List struct{ List }

func NewUInt32List(seg *Segment, n int32) (UInt32List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 4}, n)
	return UInt32List{l}, err
}
func (l UInt32List) At(i int) uint32 {
	a, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint32(a)
}
func (l UInt32List) Set(i int, v uint32) {
	if a, ok := l.elementAddress(i); ok {
		l.seg.writeUint32(a, v)
	}
}

type Int32List struct{ List }

func NewInt32List(seg *Segment, n int32) (Int32List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 4}, n)
	return Int32List{l}, err
}
func (l Int32List) At(i int) int32 { return int32(UInt32List{l.List}.At(i)) }
func (l Int32List) Set(i int, v int32) { UInt32List{l.List}.Set(i, uint32(v)) }

type UInt64List struct{ List }

func NewUInt64List(seg *Segment, n int32) (UInt64List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 8}, n)
	return UInt64List{l}, err
}
func (l UInt64List) At(i int) uint64 {
	a, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint64(a)
}
func (l UInt64List) Set(i int, v uint64) {
	if a, ok := l.elementAddress(i); ok {
		l.seg.writeUint64(a, v)
	}
}

type Int64List struct{ List }

func NewInt64List(seg *Segment, n int32) (Int64List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 8}, n)
	return Int64List{l}, err
}
func (l Int64List) At(i int) int64 { return int64(UInt64List{l.List}.At(i)) }
func (l Int64List) Set(i int, v int64) { UInt64List{l.List}.Set(i, uint64(v)) }

type Float32List struct{ List }

func NewFloat32List(seg *Segment, n int32) (Float32List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 4}, n)
	return Float32List{l}, err
}
func (l Float32List) At(i int) float32 { return math.Float32frombits(UInt32List{l.List}.At(i)) }
func (l Float32List) Set(i int, v float32) { UInt32List{l.List}.Set(i, math.Float32bits(v)) }

type Float64List struct{ List }

func NewFloat64List(seg *Segment, n int32) (Float64List, error) {
	l, err := newPrimitiveList(seg, ObjectSize{DataSize: 8}, n)
	return Float64List{l}, err
}
func (l Float64List) At(i int) float64 { return math.Float64frombits(UInt64List{l.List}.At(i)) }
func (l Float64List) Set(i int, v float64) { UInt64List{l.List}.Set(i, math.Float64bits(v)) }

// VoidList is a list of zero-size elements, used for List(Void).
type VoidList struct{ List }

func NewVoidList(seg *Segment, n int32) VoidList {
	return VoidList{List{seg: seg, length: n, depthLimit: seg.msg.depthLimit()}}
}
