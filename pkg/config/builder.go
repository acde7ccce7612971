package config

import (
	"fmt"
	"slices"
)

// Builder accumulates the fields of one declaration while it is parsed.
type Builder interface {
	Kind() RecordKind
	Name() string
	// SetField stores v in field. Each field may be set once.
	SetField(field string, v Value) error
	// Finish checks required fields and returns the frozen descriptor.
	Finish() (Descriptor, error)
}

type fieldType int

const (
	fieldString fieldType = iota
	fieldList
	fieldArch
	fieldNumber
)

func (t fieldType) accepts(k ValueKind) bool {
	switch t {
	case fieldString:
		return k == ValueString
	case fieldList:
		return k == ValueStringList
	case fieldArch:
		return k == ValueArch
	case fieldNumber:
		return k == ValueInteger || k == ValueFloat
	}
	return false
}

func (t fieldType) String() string {
	switch t {
	case fieldString:
		return "string"
	case fieldList:
		return "string list"
	case fieldArch:
		return "architecture"
	case fieldNumber:
		return "number"
	}
	return "unknown"
}

type fieldSpec struct {
	name     string
	typ      fieldType
	required bool
}

// recordFields lists the fields of each declaration kind in canonical order.
var recordFields = map[RecordKind][]fieldSpec{
	KindDaemon: {
		{name: "command", typ: fieldString, required: true},
		{name: "host", typ: fieldString, required: true},
		{name: "flavor", typ: fieldArch, required: true},
	},
	KindProcess: {
		{name: "command", typ: fieldString, required: true},
		{name: "args", typ: fieldList},
		{name: "host", typ: fieldString, required: true},
		{name: "daemon", typ: fieldString, required: true},
		{name: "flavor", typ: fieldArch},
	},
	KindVisi: {
		{name: "command", typ: fieldString, required: true},
		{name: "args", typ: fieldList},
		{name: "host", typ: fieldString, required: true},
	},
	KindTunable: {
		{name: "value", typ: fieldNumber, required: true},
	},
}

func lookupField(kind RecordKind, name string) (fieldSpec, bool) {
	for _, f := range recordFields[kind] {
		if f.name == name {
			return f, true
		}
	}
	return fieldSpec{}, false
}

// BuilderErrorKind classifies a builder failure.
type BuilderErrorKind int

const (
	BuilderDuplicateField BuilderErrorKind = iota
	BuilderTypeMismatch
	BuilderMissingField
	BuilderUnknownField
)

// BuilderError is returned by SetField and Finish.
type BuilderError struct {
	Kind   BuilderErrorKind
	Record RecordKind
	Name   string
	Field  string
	// Want and Got describe a type mismatch.
	Want string
	Got  ValueKind
	// Prev is where a duplicated field was first set.
	Prev Pos
}

func (e *BuilderError) Error() string {
	switch e.Kind {
	case BuilderDuplicateField:
		return fmt.Sprintf("%s %q: field %q already set at %s", e.Record, e.Name, e.Field, e.Prev)
	case BuilderTypeMismatch:
		return fmt.Sprintf("%s %q: field %q wants %s, got %s", e.Record, e.Name, e.Field, e.Want, e.Got)
	case BuilderMissingField:
		return fmt.Sprintf("%s %q: missing required field %q", e.Record, e.Name, e.Field)
	case BuilderUnknownField:
		return fmt.Sprintf("%s %q: unknown field %q", e.Record, e.Name, e.Field)
	}
	return fmt.Sprintf("%s %q: builder error", e.Record, e.Name)
}

// record is the bookkeeping shared by all builders: which fields have been
// set and where.
type record struct {
	kind RecordKind
	name string
	pos  Pos
	set  map[string]Pos
}

func newRecord(kind RecordKind, name string, pos Pos) record {
	return record{kind: kind, name: name, pos: pos, set: make(map[string]Pos)}
}

func (r *record) Kind() RecordKind { return r.kind }
func (r *record) Name() string     { return r.name }

func (r *record) mark(field string, v Value) error {
	spec, ok := lookupField(r.kind, field)
	if !ok {
		return &BuilderError{Kind: BuilderUnknownField, Record: r.kind, Name: r.name, Field: field}
	}
	if prev, dup := r.set[field]; dup {
		return &BuilderError{Kind: BuilderDuplicateField, Record: r.kind, Name: r.name, Field: field, Prev: prev}
	}
	if !spec.typ.accepts(v.Kind) {
		return &BuilderError{Kind: BuilderTypeMismatch, Record: r.kind, Name: r.name, Field: field, Want: spec.typ.String(), Got: v.Kind}
	}
	r.set[field] = v.Pos
	return nil
}

func (r *record) complete() error {
	for _, f := range recordFields[r.kind] {
		if _, ok := r.set[f.name]; f.required && !ok {
			return &BuilderError{Kind: BuilderMissingField, Record: r.kind, Name: r.name, Field: f.name}
		}
	}
	return nil
}

func (r *record) has(field string) bool {
	_, ok := r.set[field]
	return ok
}

// NewBuilder returns an empty builder for a declaration of kind.
func NewBuilder(kind RecordKind, name string, pos Pos) Builder {
	switch kind {
	case KindDaemon:
		return &DaemonBuilder{record: newRecord(kind, name, pos)}
	case KindProcess:
		return &ProcessBuilder{record: newRecord(kind, name, pos)}
	case KindVisi:
		return &VisiBuilder{record: newRecord(kind, name, pos)}
	case KindTunable:
		return &TunableBuilder{record: newRecord(kind, name, pos)}
	}
	panic(fmt.Sprintf("config: no builder for %s", kind))
}

type DaemonBuilder struct {
	record
	command, host string
	flavor        Arch
}

func (b *DaemonBuilder) SetField(field string, v Value) error {
	if err := b.mark(field, v); err != nil {
		return err
	}
	switch field {
	case "command":
		b.command = v.Str
	case "host":
		b.host = v.Str
	case "flavor":
		b.flavor = v.Arch
	}
	return nil
}

func (b *DaemonBuilder) Finish() (Descriptor, error) {
	if err := b.complete(); err != nil {
		return nil, err
	}
	return DaemonDescriptor{Name: b.name, Command: b.command, Host: b.host, Flavor: b.flavor, Pos: b.pos}, nil
}

type ProcessBuilder struct {
	record
	command, host, daemon string
	args                  []string
	flavor                Arch
}

func (b *ProcessBuilder) SetField(field string, v Value) error {
	if err := b.mark(field, v); err != nil {
		return err
	}
	switch field {
	case "command":
		b.command = v.Str
	case "args":
		b.args = slices.Clone(v.List)
	case "host":
		b.host = v.Str
	case "daemon":
		b.daemon = v.Str
	case "flavor":
		b.flavor = v.Arch
	}
	return nil
}

func (b *ProcessBuilder) Finish() (Descriptor, error) {
	if err := b.complete(); err != nil {
		return nil, err
	}
	args := b.args
	if !b.has("args") {
		args = []string{}
	}
	return ProcessDescriptor{
		Name:    b.name,
		Command: b.command,
		Args:    args,
		Host:    b.host,
		Daemon:  b.daemon,
		Flavor:  b.flavor,
		Pos:     b.pos,
	}, nil
}

type VisiBuilder struct {
	record
	command, host string
	args          []string
}

func (b *VisiBuilder) SetField(field string, v Value) error {
	if err := b.mark(field, v); err != nil {
		return err
	}
	switch field {
	case "command":
		b.command = v.Str
	case "args":
		b.args = slices.Clone(v.List)
	case "host":
		b.host = v.Str
	}
	return nil
}

func (b *VisiBuilder) Finish() (Descriptor, error) {
	if err := b.complete(); err != nil {
		return nil, err
	}
	args := b.args
	if !b.has("args") {
		args = []string{}
	}
	return VisiDescriptor{Name: b.name, Command: b.command, Args: args, Host: b.host, Pos: b.pos}, nil
}

type TunableBuilder struct {
	record
	value float64
}

func (b *TunableBuilder) SetField(field string, v Value) error {
	if err := b.mark(field, v); err != nil {
		return err
	}
	b.value, _ = v.Number()
	return nil
}

func (b *TunableBuilder) Finish() (Descriptor, error) {
	if err := b.complete(); err != nil {
		return nil, err
	}
	return TunableDescriptor{Name: b.name, Value: b.value, Pos: b.pos}, nil
}
