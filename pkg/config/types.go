package config

import (
	"encoding/json"
	"slices"
)

// RecordKind identifies one of the four declaration kinds.
type RecordKind int

const (
	KindDaemon RecordKind = iota
	KindProcess
	KindVisi
	KindTunable
)

func (k RecordKind) String() string {
	switch k {
	case KindDaemon:
		return "daemon"
	case KindProcess:
		return "process"
	case KindVisi:
		return "visi"
	case KindTunable:
		return "tunable"
	default:
		return "unknown"
	}
}

// Descriptor is a completed, frozen declaration.
type Descriptor interface {
	Kind() RecordKind
	DescriptorName() string
	// Position of the declaration's name.
	Position() Pos
}

// DaemonDescriptor is one control daemon to be launched on a host.
type DaemonDescriptor struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	Host    string `json:"host"`
	Flavor  Arch   `json:"flavor"`
	Pos     Pos    `json:"-"`
}

func (d DaemonDescriptor) Kind() RecordKind       { return KindDaemon }
func (d DaemonDescriptor) DescriptorName() string { return d.Name }
func (d DaemonDescriptor) Position() Pos          { return d.Pos }

// ProcessDescriptor is one monitored application process bound to a daemon.
type ProcessDescriptor struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Host    string   `json:"host"`
	Daemon  string   `json:"daemon"`
	Flavor  Arch     `json:"flavor"`
	Pos     Pos      `json:"-"`
}

func (p ProcessDescriptor) Kind() RecordKind       { return KindProcess }
func (p ProcessDescriptor) DescriptorName() string { return p.Name }
func (p ProcessDescriptor) Position() Pos          { return p.Pos }

// VisiDescriptor is one visualization client process.
type VisiDescriptor struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Host    string   `json:"host"`
	Pos     Pos      `json:"-"`
}

func (v VisiDescriptor) Kind() RecordKind       { return KindVisi }
func (v VisiDescriptor) DescriptorName() string { return v.Name }
func (v VisiDescriptor) Position() Pos          { return v.Pos }

// TunableDescriptor is a named numeric parameter overriding a default.
type TunableDescriptor struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pos   Pos     `json:"-"`
}

func (t TunableDescriptor) Kind() RecordKind       { return KindTunable }
func (t TunableDescriptor) DescriptorName() string { return t.Name }
func (t TunableDescriptor) Position() Pos          { return t.Pos }

// ConfigSet is the validated result of one parse. It is never modified after
// construction; accessors hand out copies.
type ConfigSet struct {
	daemons   map[string]DaemonDescriptor
	processes map[string]ProcessDescriptor
	visis     map[string]VisiDescriptor
	tunables  map[string]TunableDescriptor

	// declaration order per kind
	daemonOrder  []string
	processOrder []string
	visiOrder    []string
	tunableOrder []string
}

// Daemon returns the daemon declared as name.
func (c *ConfigSet) Daemon(name string) (DaemonDescriptor, bool) {
	d, ok := c.daemons[name]
	return d, ok
}

// Process returns the process declared as name.
func (c *ConfigSet) Process(name string) (ProcessDescriptor, bool) {
	p, ok := c.processes[name]
	p.Args = slices.Clone(p.Args)
	return p, ok
}

// Visi returns the visualization client declared as name.
func (c *ConfigSet) Visi(name string) (VisiDescriptor, bool) {
	v, ok := c.visis[name]
	v.Args = slices.Clone(v.Args)
	return v, ok
}

// Tunable returns the tunable declared as name.
func (c *ConfigSet) Tunable(name string) (TunableDescriptor, bool) {
	t, ok := c.tunables[name]
	return t, ok
}

// Daemons returns a copy of the daemons keyed by name.
func (c *ConfigSet) Daemons() map[string]DaemonDescriptor {
	out := make(map[string]DaemonDescriptor, len(c.daemons))
	for k, v := range c.daemons {
		out[k] = v
	}
	return out
}

// Processes returns a copy of the processes keyed by name.
func (c *ConfigSet) Processes() map[string]ProcessDescriptor {
	out := make(map[string]ProcessDescriptor, len(c.processes))
	for k, v := range c.processes {
		v.Args = slices.Clone(v.Args)
		out[k] = v
	}
	return out
}

// Visis returns a copy of the visualization clients keyed by name.
func (c *ConfigSet) Visis() map[string]VisiDescriptor {
	out := make(map[string]VisiDescriptor, len(c.visis))
	for k, v := range c.visis {
		v.Args = slices.Clone(v.Args)
		out[k] = v
	}
	return out
}

// Tunables returns a copy of the tunables keyed by name.
func (c *ConfigSet) Tunables() map[string]TunableDescriptor {
	out := make(map[string]TunableDescriptor, len(c.tunables))
	for k, v := range c.tunables {
		out[k] = v
	}
	return out
}

func (c *ConfigSet) DaemonNames() []string  { return slices.Clone(c.daemonOrder) }
func (c *ConfigSet) ProcessNames() []string { return slices.Clone(c.processOrder) }
func (c *ConfigSet) VisiNames() []string    { return slices.Clone(c.visiOrder) }
func (c *ConfigSet) TunableNames() []string { return slices.Clone(c.tunableOrder) }

// Len returns the number of descriptors of the given kind.
func (c *ConfigSet) Len(kind RecordKind) int {
	switch kind {
	case KindDaemon:
		return len(c.daemons)
	case KindProcess:
		return len(c.processes)
	case KindVisi:
		return len(c.visis)
	case KindTunable:
		return len(c.tunables)
	}
	return 0
}

// Equal reports whether two sets hold the same descriptors in the same
// declaration order. Source positions are ignored.
func (c *ConfigSet) Equal(o *ConfigSet) bool {
	if c == nil || o == nil {
		return c == o
	}
	if !slices.Equal(c.daemonOrder, o.daemonOrder) ||
		!slices.Equal(c.processOrder, o.processOrder) ||
		!slices.Equal(c.visiOrder, o.visiOrder) ||
		!slices.Equal(c.tunableOrder, o.tunableOrder) {
		return false
	}
	for name, d := range c.daemons {
		e := o.daemons[name]
		if d.Command != e.Command || d.Host != e.Host || d.Flavor != e.Flavor {
			return false
		}
	}
	for name, p := range c.processes {
		e := o.processes[name]
		if p.Command != e.Command || p.Host != e.Host || p.Daemon != e.Daemon ||
			p.Flavor != e.Flavor || !slices.Equal(p.Args, e.Args) {
			return false
		}
	}
	for name, v := range c.visis {
		e := o.visis[name]
		if v.Command != e.Command || v.Host != e.Host || !slices.Equal(v.Args, e.Args) {
			return false
		}
	}
	for name, t := range c.tunables {
		if t.Value != o.tunables[name].Value {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as four arrays in declaration order.
func (c *ConfigSet) MarshalJSON() ([]byte, error) {
	type set struct {
		Daemons   []DaemonDescriptor  `json:"daemons"`
		Processes []ProcessDescriptor `json:"processes"`
		Visis     []VisiDescriptor    `json:"visis"`
		Tunables  []TunableDescriptor `json:"tunables"`
	}
	s := set{
		Daemons:   []DaemonDescriptor{},
		Processes: []ProcessDescriptor{},
		Visis:     []VisiDescriptor{},
		Tunables:  []TunableDescriptor{},
	}
	for _, n := range c.daemonOrder {
		s.Daemons = append(s.Daemons, c.daemons[n])
	}
	for _, n := range c.processOrder {
		s.Processes = append(s.Processes, c.processes[n])
	}
	for _, n := range c.visiOrder {
		s.Visis = append(s.Visis, c.visis[n])
	}
	for _, n := range c.tunableOrder {
		s.Tunables = append(s.Tunables, c.tunables[n])
	}
	return json.Marshal(s)
}
