package config

import (
	"fmt"
	"strings"
)

// ValidationErrorKind classifies a cross-record check failure.
type ValidationErrorKind int

const (
	UnknownDaemonReference ValidationErrorKind = iota
	ArchitectureMismatch
	EmptyField
)

func (k ValidationErrorKind) String() string {
	switch k {
	case UnknownDaemonReference:
		return "unknown daemon reference"
	case ArchitectureMismatch:
		return "architecture mismatch"
	case EmptyField:
		return "empty field"
	}
	return "validation error"
}

// ValidationError is returned by Validate.
type ValidationError struct {
	Kind   ValidationErrorKind
	Record RecordKind
	Name   string
	Field  string
	Daemon string
	Pos    Pos
	// Flavors for ArchitectureMismatch.
	Have, Want Arch
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case UnknownDaemonReference:
		return fmt.Sprintf("%s: process %q references undeclared daemon %q", e.Pos, e.Name, e.Daemon)
	case ArchitectureMismatch:
		return fmt.Sprintf("%s: process %q has flavor %s but daemon %q has flavor %s", e.Pos, e.Name, e.Have, e.Daemon, e.Want)
	case EmptyField:
		return fmt.Sprintf("%s: %s %q: field %q is empty", e.Pos, e.Record, e.Name, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Kind)
}

// Validate cross-checks the registry and, if every check passes, freezes it
// into a ConfigSet. Checks run in a fixed order and the first failure is
// returned:
//
//  1. each process's daemon resolves to a declared daemon
//  2. a process flavor, when given, equals its daemon's flavor
//  3. names and required string fields are not blank
//
// A process without a flavor takes its daemon's.
func Validate(r *Registry) (*ConfigSet, error) {
	for _, name := range r.processOrder {
		p := r.processes[name]
		if _, ok := r.daemons[p.Daemon]; !ok {
			return nil, &ValidationError{Kind: UnknownDaemonReference, Record: KindProcess, Name: p.Name, Field: "daemon", Daemon: p.Daemon, Pos: p.Pos}
		}
	}

	for _, name := range r.processOrder {
		p := r.processes[name]
		d := r.daemons[p.Daemon]
		if p.Flavor != ArchUnknown && p.Flavor != d.Flavor {
			return nil, &ValidationError{Kind: ArchitectureMismatch, Record: KindProcess, Name: p.Name, Field: "flavor", Daemon: d.Name, Pos: p.Pos, Have: p.Flavor, Want: d.Flavor}
		}
	}

	for _, name := range r.daemonOrder {
		d := r.daemons[name]
		if err := nonEmpty(d, "name", d.Name, "command", d.Command, "host", d.Host); err != nil {
			return nil, err
		}
	}
	for _, name := range r.processOrder {
		p := r.processes[name]
		if err := nonEmpty(p, "name", p.Name, "command", p.Command, "host", p.Host, "daemon", p.Daemon); err != nil {
			return nil, err
		}
	}
	for _, name := range r.visiOrder {
		v := r.visis[name]
		if err := nonEmpty(v, "name", v.Name, "command", v.Command, "host", v.Host); err != nil {
			return nil, err
		}
	}
	for _, name := range r.tunableOrder {
		t := r.tunables[name]
		if err := nonEmpty(t, "name", t.Name); err != nil {
			return nil, err
		}
	}

	for name, p := range r.processes {
		if p.Flavor == ArchUnknown {
			p.Flavor = r.daemons[p.Daemon].Flavor
			r.processes[name] = p
		}
	}
	return r.freeze(), nil
}

// nonEmpty checks field/value pairs in order.
func nonEmpty(d Descriptor, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return &ValidationError{Kind: EmptyField, Record: d.Kind(), Name: d.DescriptorName(), Field: pairs[i], Pos: d.Position()}
		}
	}
	return nil
}
