package capnp

import "github.com/google/uuid"

// CapabilityID is an index into a Message's CapTable.
type CapabilityID uint32

// A Client is an opaque handle to a capability: something a schema's
// interface field can point at.  The core treats a Client purely as an
// identity to be interned, copied, and released — dispatching calls to
// it is the concern of an RPC layer built on top of this package, not
// of the core itself.
type Client struct {
	id   uuid.UUID
	hook interface{}
}

// NewClient wraps hook — typically an object implementing the
// generated interface for some schema interface type — in a Client
// with a fresh identity.  Two Clients created from the same hook value
// are distinct capabilities unless one is copied from the other via
// CapTable.
func NewClient(hook interface{}) Client {
	return Client{id: uuid.New(), hook: hook}
}

// IsValid reports whether c refers to a capability (as opposed to the
// zero Client, which other pointers encode as capability index -1 is
// not representable; callers instead check IsValid before writing an
// interface pointer).
func (c Client) IsValid() bool { return c.hook != nil }

// Hook returns the value passed to NewClient.
func (c Client) Hook() interface{} { return c.hook }

// CapTable is a Message's append-only table of capabilities.  Other
// pointers reference capabilities by index into this table; the table
// is what lets a capability survive serialization to a [][]byte and
// back without knowing anything about RPC transports.
type CapTable struct {
	caps []Client
	byID map[uuid.UUID]CapabilityID
}

// Len returns the number of capabilities in the table.
func (ct *CapTable) Len() int { return len(ct.caps) }

// At returns the capability at index i.
func (ct *CapTable) At(i CapabilityID) Client {
	if int(i) >= len(ct.caps) {
		return Client{}
	}
	return ct.caps[i]
}

// Add interns c into the table, returning its index.  If c was
// already added (by identity), its existing index is returned instead
// of appending a duplicate entry.
func (ct *CapTable) Add(c Client) CapabilityID {
	if !c.IsValid() {
		return 0
	}
	if ct.byID == nil {
		ct.byID = make(map[uuid.UUID]CapabilityID)
	}
	if i, ok := ct.byID[c.id]; ok {
		return i
	}
	i := CapabilityID(len(ct.caps))
	ct.caps = append(ct.caps, c)
	ct.byID[c.id] = i
	return i
}

// Reset empties the table, releasing its references.
func (ct *CapTable) Reset() {
	ct.caps = nil
	ct.byID = nil
}

// Interface is a Ptr that references a Client in its message's
// CapTable.
type Interface struct {
	seg *Segment
	cap CapabilityID
}

// NewInterface returns an Interface that references capability cap in
// seg's message.
func NewInterface(seg *Segment, cap CapabilityID) Interface {
	return Interface{seg: seg, cap: cap}
}

// ToInterface converts p to an Interface, returning the zero Interface
// if p is not an interface pointer.
func ToInterface(p Ptr) Interface {
	if p.flags.ptrType() != interfacePtr {
		return Interface{}
	}
	return p.iface
}

// ToPtr converts the Interface to a generic Ptr.
func (i Interface) ToPtr() Ptr {
	if i.seg == nil {
		return Ptr{}
	}
	return Ptr{flags: ptrFlags(interfacePtr), seg: i.seg, iface: i}
}

// IsValid reports whether i is non-zero.
func (i Interface) IsValid() bool { return i.seg != nil }

// Segment returns the segment i is associated with.
func (i Interface) Segment() *Segment { return i.seg }

// Capability returns i's index into its message's capability table.
func (i Interface) Capability() CapabilityID { return i.cap }

// Client resolves i to the Client it references.
func (i Interface) Client() Client {
	if i.seg == nil {
		return Client{}
	}
	return i.seg.msg.CapTable.At(i.cap)
}
