package backend_test

import (
	"testing"

	"github.com/seantiz/thumbnail/internal/backend"
)

// stubEngine is a minimal Engine for registry tests.
type stubEngine struct {
	name string
}

func (s *stubEngine) NewSession() backend.Session { return &mockSession{} }

func (s *stubEngine) Capabilities() backend.Capabilities {
	return backend.Capabilities{Name: s.name, Formats: []string{"png"}}
}

func TestRegistryRegisterAndList(t *testing.T) {
	reg := backend.NewRegistry()
	reg.Register("imaging", &stubEngine{name: "imaging"})
	reg.Register("bild", &stubEngine{name: "bild"})

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d engines, want 2", len(list))
	}
	if list[0].Name != "bild" || list[1].Name != "imaging" {
		t.Errorf("List() order = [%s %s], want [bild imaging]", list[0].Name, list[1].Name)
	}
	if list[0].Default || !list[1].Default {
		t.Errorf("first registered engine should be the default, got %+v", list)
	}
}

func TestRegistryResolveExplicit(t *testing.T) {
	reg := backend.NewRegistry()
	reg.Register("imaging", &stubEngine{name: "imaging"})
	reg.Register("bild", &stubEngine{name: "bild"})

	e, name, err := reg.Resolve("bild")
	if err != nil {
		t.Fatalf("Resolve explicit: %v", err)
	}
	if name != "bild" || e.Capabilities().Name != "bild" {
		t.Errorf("resolved %q (%q), want bild", name, e.Capabilities().Name)
	}
}

func TestRegistryResolveDefault(t *testing.T) {
	reg := backend.NewRegistry()
	reg.Register("imaging", &stubEngine{name: "imaging"})
	reg.Register("bild", &stubEngine{name: "bild"})

	if err := reg.SetDefault("bild"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	_, name, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("Resolve default: %v", err)
	}
	if name != "bild" {
		t.Errorf("default resolved to %q, want bild", name)
	}
}

func TestRegistrySetDefaultUnknown(t *testing.T) {
	reg := backend.NewRegistry()
	if err := reg.SetDefault("magick"); err == nil {
		t.Error("expected error for unregistered default, got nil")
	}
}

func TestRegistryResolveNotRegistered(t *testing.T) {
	reg := backend.NewRegistry()
	if _, _, err := reg.Resolve(""); err == nil {
		t.Error("expected error from empty registry, got nil")
	}

	reg.Register("imaging", &stubEngine{name: "imaging"})
	if _, _, err := reg.Resolve("magick"); err == nil {
		t.Error("expected error for unregistered engine, got nil")
	}
}
