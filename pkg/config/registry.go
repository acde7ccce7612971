package config

import "fmt"

// RegistryError is returned when a name is declared twice within one kind.
type RegistryError struct {
	Record RecordKind
	Name   string
	Pos    Pos
	// Prev is where the name was first declared.
	Prev Pos
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: duplicate %s name %q (first declared at %s)", e.Pos, e.Record, e.Name, e.Prev)
}

// Registry collects completed descriptors during one parse. It is
// append-only.
type Registry struct {
	daemons   map[string]DaemonDescriptor
	processes map[string]ProcessDescriptor
	visis     map[string]VisiDescriptor
	tunables  map[string]TunableDescriptor

	daemonOrder  []string
	processOrder []string
	visiOrder    []string
	tunableOrder []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		daemons:   make(map[string]DaemonDescriptor),
		processes: make(map[string]ProcessDescriptor),
		visis:     make(map[string]VisiDescriptor),
		tunables:  make(map[string]TunableDescriptor),
	}
}

// Register adds d under its name. A name already present for the same kind
// fails with a RegistryError.
func (r *Registry) Register(d Descriptor) error {
	switch d := d.(type) {
	case DaemonDescriptor:
		if prev, ok := r.daemons[d.Name]; ok {
			return r.duplicate(d, prev)
		}
		r.daemons[d.Name] = d
		r.daemonOrder = append(r.daemonOrder, d.Name)
	case ProcessDescriptor:
		if prev, ok := r.processes[d.Name]; ok {
			return r.duplicate(d, prev)
		}
		r.processes[d.Name] = d
		r.processOrder = append(r.processOrder, d.Name)
	case VisiDescriptor:
		if prev, ok := r.visis[d.Name]; ok {
			return r.duplicate(d, prev)
		}
		r.visis[d.Name] = d
		r.visiOrder = append(r.visiOrder, d.Name)
	case TunableDescriptor:
		if prev, ok := r.tunables[d.Name]; ok {
			return r.duplicate(d, prev)
		}
		r.tunables[d.Name] = d
		r.tunableOrder = append(r.tunableOrder, d.Name)
	default:
		return fmt.Errorf("register: unsupported descriptor %T", d)
	}
	return nil
}

func (r *Registry) duplicate(d, prev Descriptor) error {
	return &RegistryError{Record: d.Kind(), Name: d.DescriptorName(), Pos: d.Position(), Prev: prev.Position()}
}

// Len returns the number of registered descriptors of kind.
func (r *Registry) Len(kind RecordKind) int {
	switch kind {
	case KindDaemon:
		return len(r.daemons)
	case KindProcess:
		return len(r.processes)
	case KindVisi:
		return len(r.visis)
	case KindTunable:
		return len(r.tunables)
	}
	return 0
}

// freeze moves the registry contents into a ConfigSet. The registry must not
// be used afterwards.
func (r *Registry) freeze() *ConfigSet {
	cs := &ConfigSet{
		daemons:      r.daemons,
		processes:    r.processes,
		visis:        r.visis,
		tunables:     r.tunables,
		daemonOrder:  r.daemonOrder,
		processOrder: r.processOrder,
		visiOrder:    r.visiOrder,
		tunableOrder: r.tunableOrder,
	}
	*r = Registry{}
	return cs
}
