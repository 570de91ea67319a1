package binreader

import "testing"

func TestReadFixedAndCString(t *testing.T) {
	buf := []byte{0x05, 0x00, 0x00, 0x00, 'h', 'i', 0x00}
	r := New(buf)

	n, err := r.U32()
	if err != nil {
		t.Fatalf("U32: %v", err)
	}
	if n != 5 {
		t.Fatalf("U32 = %d, want 5", n)
	}

	s, err := r.CStringStr()
	if err != nil {
		t.Fatalf("CStringStr: %v", err)
	}
	if s != "hi" {
		t.Fatalf("CStringStr = %q, want hi", s)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", r.Remaining())
	}
}

func TestShortRead(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	if _, err := r.U32(); err == nil {
		t.Fatal("expected ShortRead error")
	}
}

func TestCStringMissingTerminator(t *testing.T) {
	r := New([]byte{'a', 'b'})
	if _, err := r.CString(); err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestSubScopesReader(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	r := New(buf)
	sub, err := r.Sub(3)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if sub.Remaining() != 3 {
		t.Fatalf("sub.Remaining() = %d, want 3", sub.Remaining())
	}
	if r.Remaining() != 2 {
		t.Fatalf("r.Remaining() = %d, want 2", r.Remaining())
	}
	if _, err := sub.Advance(4); err == nil {
		t.Fatal("expected short read past sub bound")
	}
}

func TestF64RoundTrip(t *testing.T) {
	// 10.0 little-endian IEEE-754 double bytes.
	buf := []byte{0, 0, 0, 0, 0, 0, 0x24, 0x40}
	r := New(buf)
	f, err := r.F64()
	if err != nil {
		t.Fatalf("F64: %v", err)
	}
	if f != 10.0 {
		t.Fatalf("F64 = %v, want 10.0", f)
	}
}
