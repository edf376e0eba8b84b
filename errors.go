package capnp

import "errors"

// Errors surfaced by the core, named after the invariants they guard.
// A read of a primitive field beyond a struct's data section never
// returns one of these — it returns the default value instead; these
// are returned by writes, by list accesses outside [0, length), and by
// pointer traversal (malformed wire data or an exhausted traversal or
// depth budget).
var (
	// ErrSegmentOutOfRange is returned when a word index falls outside
	// a segment's bounds.
	ErrSegmentOutOfRange = errors.New("capnp: address out of bounds")

	// ErrPointerIndexOutOfRange is returned by a pointer write whose
	// slot index is beyond the struct's declared pointer-word count.
	ErrPointerIndexOutOfRange = errors.New("capnp: pointer index out of range")

	// ErrShortStruct is returned by a write of a non-default value to a
	// field beyond a struct's allocated data words.  (A pointer write
	// beyond the pointer words returns ErrPointerIndexOutOfRange.)
	ErrShortStruct = errors.New("capnp: write exceeds short struct's allocated size")

	// ErrUpgradedListElement is returned, for a struct synthesized from
	// a primitive list element, by a data write at any offset other
	// than 0 and by every pointer write.
	ErrUpgradedListElement = errors.New("capnp: write to upgraded list element field other than 0")

	// ErrMalformedPointer is returned when a pointer's kind/shape
	// combination is not a legal encoding (e.g. a far pointer whose
	// landing pad does not form a valid single or double far).
	ErrMalformedPointer = errors.New("capnp: malformed pointer")

	// ErrOversizedList is returned when a list's element count or, for
	// composite lists, total word count overflows its encoding.
	ErrOversizedList = errors.New("capnp: list size exceeds encoding limit")

	// ErrTraversalLimitExceeded is returned when following a chain of
	// pointers would read more total bytes than the message's
	// configured traversal limit allows.
	ErrTraversalLimitExceeded = errors.New("capnp: traversal limit exceeded")

	// ErrDepthLimitExceeded is returned when a chain of pointers nests
	// deeper than the message's configured depth limit.
	ErrDepthLimitExceeded = errors.New("capnp: depth limit exceeded")

	// ErrIndexOutOfRange is returned by a list access whose index is
	// outside [0, length).
	ErrIndexOutOfRange = errors.New("capnp: list index out of range")

	// ErrUnsupportedOtherPointer is returned when an "other" pointer
	// carries a subtype other than capability.
	ErrUnsupportedOtherPointer = errors.New("capnp: unsupported other-pointer subtype")

	// ErrCrossMessagePointer is returned when code attempts to write a
	// pointer whose target object lives in a different Message than
	// the struct being written into, without going through a copy.
	ErrCrossMessagePointer = errors.New("capnp: pointer target is in a different message")

	// ErrContextReleased is returned by an AllocContext method called
	// after Release.
	ErrContextReleased = errors.New("capnp: alloc context has been released")
)

// internal, lower-level sentinels not part of the documented surface.
var (
	errOverflow       = errors.New("capnp: address or size overflow")
	errListElemSize   = errors.New("capnp: mismatched list element size")
	errBadLandingPad  = errors.New("capnp: invalid far pointer landing pad")
	errBadTag         = errors.New("capnp: invalid composite list tag word")
	errObjectSize     = errors.New("capnp: invalid object size")
	errArenaExhausted = errors.New("capnp: arena cannot satisfy allocation")
)
