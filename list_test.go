package capnp

import "testing"

func TestUInt8ListRoundTrip(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewUInt8List(seg, 4)
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 4 {
		t.Fatalf("Len() = %d; want 4", l.Len())
	}
	for i := 0; i < 4; i++ {
		l.Set(i, uint8(10*i))
	}
	for i := 0; i < 4; i++ {
		if got := l.At(i); got != uint8(10*i) {
			t.Errorf("At(%d) = %d; want %d", i, got, 10*i)
		}
	}
}

func TestInt32ListNegativeValues(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewInt32List(seg, 3)
	if err != nil {
		t.Fatal(err)
	}
	vals := []int32{-1, 0, 2147483647}
	for i, v := range vals {
		l.Set(i, v)
	}
	for i, v := range vals {
		if got := l.At(i); got != v {
			t.Errorf("At(%d) = %d; want %d", i, got, v)
		}
	}
}

func TestFloat64ListRoundTrip(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewFloat64List(seg, 2)
	if err != nil {
		t.Fatal(err)
	}
	l.Set(0, 3.5)
	l.Set(1, -0.25)
	if got := l.At(0); got != 3.5 {
		t.Errorf("At(0) = %v; want 3.5", got)
	}
	if got := l.At(1); got != -0.25 {
		t.Errorf("At(1) = %v; want -0.25", got)
	}
}

func TestBitListRoundTrip(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewBitList(seg, 10)
	if err != nil {
		t.Fatal(err)
	}
	l.Set(0, true)
	l.Set(9, true)
	for i := 0; i < 10; i++ {
		want := i == 0 || i == 9
		if got := l.At(i); got != want {
			t.Errorf("At(%d) = %t; want %t", i, got, want)
		}
	}
}

func TestTextListRoundTrip(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewTextList(seg, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Set(0, "hello"); err != nil {
		t.Fatal(err)
	}
	if err := l.Set(1, ""); err != nil {
		t.Fatal(err)
	}
	got0, err := l.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if got0 != "hello" {
		t.Errorf("At(0) = %q; want %q", got0, "hello")
	}
	got1, err := l.At(1)
	if err != nil {
		t.Fatal(err)
	}
	if got1 != "" {
		t.Errorf("At(1) = %q; want empty", got1)
	}
}

func TestDataListRoundTrip(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewDataList(seg, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4}
	if err := l.Set(0, want); err != nil {
		t.Fatal(err)
	}
	got, err := l.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("len(At(0)) = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("At(0)[%d] = %d; want %d", i, got[i], want[i])
		}
	}
}

func TestPointerListRoundTrip(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewPointerList(seg, 2)
	if err != nil {
		t.Fatal(err)
	}
	target, err := NewStruct(seg, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := target.SetUint32(0, 123, 0); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPtr(1, target.ToPtr()); err != nil {
		t.Fatal(err)
	}
	p, err := l.At(1)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Struct().Uint32(0, 0); got != 123 {
		t.Errorf("round-tripped struct field = %d; want 123", got)
	}
	p0, err := l.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if p0.IsValid() {
		t.Error("At(0) on an untouched slot should be the null pointer")
	}
}

func TestListIndexOutOfRange(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewUInt32List(seg, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.elementAddress(-1); ok {
		t.Error("elementAddress(-1) should fail")
	}
	if _, ok := l.elementAddress(3); ok {
		t.Error("elementAddress(3) should fail on a 3-element list")
	}
	pl, err := NewPointerList(seg, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pl.At(5); err != ErrIndexOutOfRange {
		t.Errorf("At(5) error = %v; want ErrIndexOutOfRange", err)
	}
}

// TestCompositeList covers composite-list construction (a tag word
// followed by n struct-shaped elements) and per-element field access.
func TestCompositeList(t *testing.T) {
	_, seg := newTestMessage(t)
	l, err := NewCompositeList(seg, ObjectSize{DataSize: 8, PointerCount: 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", l.Len())
	}
	for i := 0; i < 3; i++ {
		s, err := l.Struct(i)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetInt64(0, int64(i*100), 0); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		s, err := l.Struct(i)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.Int64(0, 0); got != int64(i*100) {
			t.Errorf("element %d Int64(0,0) = %d; want %d", i, got, i*100)
		}
		// composite elements carry a real pointer section, unlike
		// the upgraded-list-element struct synthesized for primitive
		// lists, so SetPtr must be allowed.
		if err := s.SetPtr(0, Ptr{}); err != nil {
			t.Errorf("element %d SetPtr(0, null) = %v; want nil", i, err)
		}
	}
}

func TestTypedListConversions(t *testing.T) {
	_, seg := newTestMessage(t)
	raw, err := newPrimitiveList(seg, ObjectSize{DataSize: 4}, 2)
	if err != nil {
		t.Fatal(err)
	}
	u32, err := ToUInt32List(raw)
	if err != nil {
		t.Fatal(err)
	}
	u32.Set(0, 0xdeadbeef)
	if got := u32.At(0); got != 0xdeadbeef {
		t.Errorf("ToUInt32List round trip = %#x; want %#x", got, uint32(0xdeadbeef))
	}
	if _, err := ToUInt64List(raw); err != errListElemSize {
		t.Errorf("ToUInt64List on a 4-byte list = %v; want errListElemSize", err)
	}
	if _, err := ToPointerList(raw); err != errListElemSize {
		t.Errorf("ToPointerList on a data list = %v; want errListElemSize", err)
	}

	ptrs, err := newPrimitiveList(seg, ObjectSize{PointerCount: 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ToUInt8List(ptrs); err != errListElemSize {
		t.Errorf("ToUInt8List on a pointer list = %v; want errListElemSize", err)
	}

	bits, err := NewBitList(seg, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ToUInt8List(bits.List); err != errListElemSize {
		t.Errorf("ToUInt8List on a bit list = %v; want errListElemSize", err)
	}
}

func TestVoidList(t *testing.T) {
	_, seg := newTestMessage(t)
	l := NewVoidList(seg, 100)
	if l.Len() != 100 {
		t.Errorf("Len() = %d; want 100", l.Len())
	}
}
