package constpool

import (
	"testing"

	"github.com/cwbudde/go-ual/internal/gcshim"
)

func TestInternDedups(t *testing.T) {
	p := New()
	a := p.Intern("x")
	b := p.Intern("x")
	c := p.Intern("y")
	if a != b {
		t.Fatalf("Intern(x) = %d, second call = %d, want equal", a, b)
	}
	if c == a {
		t.Fatal("Intern(y) collided with Intern(x)")
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}

func TestGetRoundTrip(t *testing.T) {
	p := New()
	i := p.Intern("hello")
	s, ok := p.Get(i)
	if !ok || s != "hello" {
		t.Fatalf("Get(%d) = %q,%v want hello,true", i, s, ok)
	}
	if _, ok := p.Get(99); ok {
		t.Fatal("Get(99) should be invalid")
	}
}

func TestMarkAllRootsEveryEntryOnce(t *testing.T) {
	p := New()
	p.Intern("a")
	p.Intern("b")
	gc := gcshim.NewReference()
	if err := p.MarkAll(gc); err != nil {
		t.Fatalf("MarkAll: %v", err)
	}
	for _, slot := range p.slots {
		if gc.MarkCount(slot) != 1 {
			t.Fatalf("MarkCount(%d) = %d, want 1", slot, gc.MarkCount(slot))
		}
	}

	p.Intern("c")
	if err := p.MarkAll(gc); err != nil {
		t.Fatalf("second MarkAll: %v", err)
	}
	if len(p.slots) != 3 {
		t.Fatalf("expected 3 slots after adding a third entry, got %d", len(p.slots))
	}
}

func TestReleaseUnmarksAll(t *testing.T) {
	p := New()
	p.Intern("a")
	gc := gcshim.NewReference()
	_ = p.MarkAll(gc)
	p.Release(gc)
	for _, slot := range p.slots {
		if gc.MarkCount(slot) != 0 {
			t.Fatalf("MarkCount(%d) = %d after Release, want 0", slot, gc.MarkCount(slot))
		}
	}
}
