package stream

import (
	"bytes"
	"testing"

	capnp "github.com/capnp-core/capnp"
)

func buildMessage(t *testing.T) *capnp.Message {
	t.Helper()
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	if err != nil {
		t.Fatal(err)
	}
	root, err := msg.AllocateRootStruct(capnp.ObjectSize{DataSize: 8, PointerCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := root.SetInt32(0, -99, 0); err != nil {
		t.Fatal(err)
	}
	text, err := capnp.NewText(seg, "stream test")
	if err != nil {
		t.Fatal(err)
	}
	if err := root.SetPtr(0, text.ToPtr()); err != nil {
		t.Fatal(err)
	}
	return msg
}

func checkRoundTrip(t *testing.T, msg *capnp.Message) {
	t.Helper()
	root, err := msg.Root()
	if err != nil {
		t.Fatal(err)
	}
	s := root.Struct()
	if got := s.Int32(0, 0); got != -99 {
		t.Errorf("Int32(0,0) = %d; want -99", got)
	}
	p, err := s.Ptr(0)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.List().Text(); got != "stream test" {
		t.Errorf("text = %q; want %q", got, "stream test")
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	msg := buildMessage(t)
	data, err := Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	checkRoundTrip(t, got)
}

func TestEncoderDecoder(t *testing.T) {
	msg := buildMessage(t)
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(msg); err != nil {
		t.Fatal(err)
	}
	got, err := NewDecoder(&buf).Decode()
	if err != nil {
		t.Fatal(err)
	}
	checkRoundTrip(t, got)
}

func TestMarshalUnmarshalPacked(t *testing.T) {
	msg := buildMessage(t)
	data, err := MarshalPacked(msg)
	if err != nil {
		t.Fatal(err)
	}
	// Packed data for a mostly-zero fresh message should usually be
	// smaller than its unpacked form; not asserted strictly since it
	// depends on segment padding, but decoding must still round-trip.
	got, err := UnmarshalPacked(data)
	if err != nil {
		t.Fatal(err)
	}
	checkRoundTrip(t, got)
}

func TestPackedEncoderDecoder(t *testing.T) {
	msg := buildMessage(t)
	var buf bytes.Buffer
	if err := NewPackedEncoder(&buf).Encode(msg); err != nil {
		t.Fatal(err)
	}
	got, err := NewPackedDecoder(&buf).Decode()
	if err != nil {
		t.Fatal(err)
	}
	checkRoundTrip(t, got)
}

func TestDecodeRejectsOversizedMessage(t *testing.T) {
	msg := buildMessage(t)
	data, err := Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(bytes.NewReader(data))
	dec.MaxMessageSize = 4 // smaller than even the header
	if _, err := dec.Decode(); err != ErrTooLarge {
		t.Errorf("Decode with a tiny MaxMessageSize = %v; want ErrTooLarge", err)
	}
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2, 3}); err == nil {
		t.Error("Unmarshal of a truncated header should fail")
	}
}

func TestMultiSegmentMessageRoundTrips(t *testing.T) {
	msg, seg, err := capnp.NewMessage(capnp.MultiSegment(nil))
	if err != nil {
		t.Fatal(err)
	}
	root, err := msg.AllocateRootStruct(capnp.ObjectSize{PointerCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	list, err := capnp.NewCompositeList(seg, capnp.ObjectSize{DataSize: 64}, 200)
	if err != nil {
		t.Fatal(err)
	}
	if err := root.SetPtr(0, list.ToPtr()); err != nil {
		t.Fatal(err)
	}
	if msg.NumSegments() <= 1 {
		t.Skip("arena did not actually split into multiple segments; nothing to exercise")
	}

	data, err := Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	gotRoot, err := got.Root()
	if err != nil {
		t.Fatal(err)
	}
	p, err := gotRoot.Struct().Ptr(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.List().Len() != 200 {
		t.Errorf("round-tripped list length = %d; want 200", p.List().Len())
	}
}
