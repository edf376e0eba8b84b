package capnp

// ptrType tags which alternative of the Ptr union is in use.
type ptrType int

const (
	structPtrType ptrType = iota
	listPtrType
	interfacePtr
)

// ptrFlags packs a ptrType plus, for list pointers, whether the list
// started life as a composite list (matters when re-deriving its
// pointer encoding on write).
type ptrFlags uint8

const (
	compositeListFlag ptrFlags = 1 << 4
	bitListFlag       ptrFlags = 1 << 5
)

func (f ptrFlags) ptrType() ptrType { return ptrType(f & 0xf) }
func (f ptrFlags) isComposite() bool { return f&compositeListFlag != 0 }
func (f ptrFlags) isBitList() bool   { return f&bitListFlag != 0 }

// Ptr is a tagged handle to a struct, list, or interface pointer.  It
// is a cheap-to-copy view, not an owner: the underlying bytes live in
// the Segment it references.  The zero Ptr is not valid and is the
// value returned for a default (null) pointer field.
type Ptr struct {
	seg   *Segment
	flags ptrFlags

	// struct/list state, populated when flags.ptrType() selects them.
	structData
	list List

	iface Interface
}

// structData holds the fields specific to a struct pointer; it is
// embedded directly into Ptr so Struct can be recovered by value
// without an extra allocation.
type structData struct {
	off        Address
	size       ObjectSize
	depthLimit uint
	flags      structFlags
}

// IsValid reports whether p references an object, as opposed to being
// the zero value returned for an absent (null) pointer.
func (p Ptr) IsValid() bool { return p.seg != nil }

// Segment returns the segment p's pointer is encoded relative to, or
// nil for the zero Ptr.
func (p Ptr) Segment() *Segment { return p.seg }

// Struct returns p as a Struct, or the zero Struct if p is not a
// struct pointer.
func (p Ptr) Struct() Struct {
	if !p.IsValid() || p.flags.ptrType() != structPtrType {
		return Struct{}
	}
	return Struct{seg: p.seg, structData: p.structData}
}

// List returns p as a List, or the zero List if p is not a list
// pointer.
func (p Ptr) List() List {
	if !p.IsValid() || p.flags.ptrType() != listPtrType {
		return List{}
	}
	return p.list
}

// Interface returns p as an Interface, or the zero Interface if p is
// not an interface pointer.
func (p Ptr) Interface() Interface {
	if !p.IsValid() || p.flags.ptrType() != interfacePtr {
		return Interface{}
	}
	return p.iface
}

// SamePtr reports whether p and q reference the same object: the same
// segment and the same starting address.  Two pointers built from
// different reads of the same wire data compare equal under SamePtr
// even though they are distinct Go values.
func SamePtr(p, q Ptr) bool {
	if p.seg != q.seg || p.flags.ptrType() != q.flags.ptrType() {
		return false
	}
	switch p.flags.ptrType() {
	case structPtrType:
		return p.off == q.off
	case listPtrType:
		return p.list.off == q.list.off
	case interfacePtr:
		return p.iface.cap == q.iface.cap
	default:
		return false
	}
}
