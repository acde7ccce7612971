package config

import (
	"errors"
	"testing"
)

func mustRegister(t *testing.T, r *Registry, ds ...Descriptor) {
	t.Helper()
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %s %s: %v", d.Kind(), d.DescriptorName(), err)
		}
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r,
		DaemonDescriptor{Name: "d", Command: "pd", Host: "h", Flavor: ArchX86, Pos: Pos{Line: 1}},
		VisiDescriptor{Name: "d", Command: "v", Host: "h"},
	)
	err := r.Register(DaemonDescriptor{Name: "d", Pos: Pos{Line: 4}})
	var re *RegistryError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RegistryError, got %v", err)
	}
	if re.Prev.Line != 1 || re.Pos.Line != 4 {
		t.Errorf("expected lines 4 and 1, got %s and %s", re.Pos, re.Prev)
	}
	if r.Len(KindDaemon) != 1 {
		t.Errorf("duplicate must not replace the first daemon, have %d", r.Len(KindDaemon))
	}
}

func TestValidateOrder(t *testing.T) {
	// p1 has an empty command and p2 a dangling daemon: the reference check
	// runs first even though p1 is declared first.
	r := NewRegistry()
	mustRegister(t, r,
		DaemonDescriptor{Name: "d", Command: "pd", Host: "h", Flavor: ArchX86},
		ProcessDescriptor{Name: "p1", Command: "", Host: "h", Daemon: "d"},
		ProcessDescriptor{Name: "p2", Command: "a", Host: "h", Daemon: "missing", Flavor: ArchSPARC},
		ProcessDescriptor{Name: "p3", Command: "a", Host: "h", Daemon: "d", Flavor: ArchSPARC},
	)
	_, err := Validate(r)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Kind != UnknownDaemonReference || ve.Name != "p2" || ve.Daemon != "missing" {
		t.Fatalf("expected unknown daemon for p2, got %v", err)
	}

	r = NewRegistry()
	mustRegister(t, r,
		DaemonDescriptor{Name: "d", Command: "pd", Host: "h", Flavor: ArchX86},
		ProcessDescriptor{Name: "p1", Command: "", Host: "h", Daemon: "d"},
		ProcessDescriptor{Name: "p3", Command: "a", Host: "h", Daemon: "d", Flavor: ArchSPARC},
	)
	_, err = Validate(r)
	if !errors.As(err, &ve) || ve.Kind != ArchitectureMismatch || ve.Name != "p3" {
		t.Fatalf("expected architecture mismatch for p3, got %v", err)
	}

	r = NewRegistry()
	mustRegister(t, r,
		DaemonDescriptor{Name: "d", Command: "pd", Host: "h", Flavor: ArchX86},
		ProcessDescriptor{Name: "p1", Command: "", Host: "h", Daemon: "d"},
	)
	_, err = Validate(r)
	if !errors.As(err, &ve) || ve.Kind != EmptyField || ve.Name != "p1" || ve.Field != "command" {
		t.Fatalf("expected empty command for p1, got %v", err)
	}
}

func TestValidateEmptyFields(t *testing.T) {
	tests := []struct {
		name   string
		d      Descriptor
		record RecordKind
		field  string
	}{
		{"daemon host", DaemonDescriptor{Name: "d", Command: "pd", Host: " \t", Flavor: ArchX86}, KindDaemon, "host"},
		{"visi command", VisiDescriptor{Name: "v", Command: "", Host: "h"}, KindVisi, "command"},
		{"visi name", VisiDescriptor{Name: " ", Command: "c", Host: "h"}, KindVisi, "name"},
		{"tunable name", TunableDescriptor{Name: "", Value: 1}, KindTunable, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			mustRegister(t, r, tt.d)
			cs, err := Validate(r)
			if cs != nil {
				t.Error("expected no ConfigSet")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Kind != EmptyField {
				t.Fatalf("expected empty field, got %v", err)
			}
			if ve.Record != tt.record || ve.Field != tt.field {
				t.Errorf("expected %s.%s, got %s.%s", tt.record, tt.field, ve.Record, ve.Field)
			}
		})
	}
}

func TestValidateInheritsFlavor(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r,
		ProcessDescriptor{Name: "p", Command: "a", Host: "h", Daemon: "d", Args: []string{}},
		DaemonDescriptor{Name: "d", Command: "pd", Host: "h", Flavor: ArchHPPA},
	)
	cs, err := Validate(r)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := cs.Process("p"); p.Flavor != ArchHPPA {
		t.Errorf("expected hppa, got %s", p.Flavor)
	}
}
