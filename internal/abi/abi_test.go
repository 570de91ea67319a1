package abi

import "testing"

func TestBuiltinsRegistered(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"ConsoleOut", "PrintInt", "PrintDouble"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("expected built-in %s to be registered", name)
		}
	}
}

func TestUnresolvedExtern(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("DoesNotExist"); ok {
		t.Fatal("expected DoesNotExist to be unresolved")
	}
}

func TestRegisterOverride(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("Custom", func(args []any) (any, error) {
		called = true
		return nil, nil
	})
	fn, ok := r.Lookup("Custom")
	if !ok {
		t.Fatal("expected Custom to be registered")
	}
	if _, err := fn(nil); err != nil {
		t.Fatalf("fn: %v", err)
	}
	if !called {
		t.Fatal("expected Custom function to be invoked")
	}
}

func TestManifestApplyAttachesInfo(t *testing.T) {
	r := NewRegistry()
	m := &Manifest{Externs: []ExternInfo{{Name: "ConsoleOut", Doc: "writes to stdout"}}}
	m.Apply(r)

	info, ok := r.Info("ConsoleOut")
	if !ok || info.Doc != "writes to stdout" {
		t.Fatalf("Info(ConsoleOut) = %+v,%v", info, ok)
	}
}
