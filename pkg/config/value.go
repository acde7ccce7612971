package config

import (
	"fmt"
	"slices"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInteger
	ValueFloat
	ValueArch
	ValueStringList
	ValueDaemonBuilder
	ValueProcessBuilder
	ValueVisiBuilder
	ValueTunableBuilder
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueInteger:
		return "integer"
	case ValueFloat:
		return "float"
	case ValueArch:
		return "architecture"
	case ValueStringList:
		return "string list"
	case ValueDaemonBuilder:
		return "daemon builder"
	case ValueProcessBuilder:
		return "process builder"
	case ValueVisiBuilder:
		return "visi builder"
	case ValueTunableBuilder:
		return "tunable builder"
	default:
		return "unknown"
	}
}

// Value is a semantic value passed between reduction steps. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind    ValueKind
	Str     string
	Int     int64
	Float   float64
	Arch    Arch
	List    []string
	Builder Builder
	Pos     Pos
}

func StringValue(s string, p Pos) Value { return Value{Kind: ValueString, Str: s, Pos: p} }
func IntValue(i int64, p Pos) Value     { return Value{Kind: ValueInteger, Int: i, Pos: p} }
func FloatValue(f float64, p Pos) Value { return Value{Kind: ValueFloat, Float: f, Pos: p} }
func ArchValue(a Arch, p Pos) Value     { return Value{Kind: ValueArch, Arch: a, Pos: p} }

// ListValue copies items so later appends by the caller cannot reach the value.
func ListValue(items []string, p Pos) Value {
	l := slices.Clone(items)
	if l == nil {
		l = []string{}
	}
	return Value{Kind: ValueStringList, List: l, Pos: p}
}

// BuilderValue wraps an in-progress record.
func BuilderValue(b Builder, p Pos) Value {
	var k ValueKind
	switch b.Kind() {
	case KindDaemon:
		k = ValueDaemonBuilder
	case KindProcess:
		k = ValueProcessBuilder
	case KindVisi:
		k = ValueVisiBuilder
	case KindTunable:
		k = ValueTunableBuilder
	}
	return Value{Kind: k, Builder: b, Pos: p}
}

// IsBuilder reports whether v holds an in-progress record.
func (v Value) IsBuilder() bool {
	return v.Kind >= ValueDaemonBuilder
}

// Number returns the numeric content of an integer or float value.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case ValueInteger:
		return float64(v.Int), true
	case ValueFloat:
		return v.Float, true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return fmt.Sprintf("%q", v.Str)
	case ValueInteger:
		return fmt.Sprintf("%d", v.Int)
	case ValueFloat:
		return fmt.Sprintf("%g", v.Float)
	case ValueArch:
		return v.Arch.String()
	case ValueStringList:
		return fmt.Sprintf("%q", v.List)
	}
	return v.Kind.String()
}

// Stack is the reducer's working memory. At most one builder may be on the
// stack at a time, and it is always the bottom entry.
type Stack struct {
	vals []Value
}

// Push adds v to the top of the stack. Pushing a second builder fails.
func (s *Stack) Push(v Value) error {
	if v.IsBuilder() && s.Active() != nil {
		return fmt.Errorf("%s: %s pushed while a %s is open", v.Pos, v.Kind, s.vals[0].Kind)
	}
	if !v.IsBuilder() && s.Active() == nil {
		return fmt.Errorf("%s: %s pushed with no open declaration", v.Pos, v.Kind)
	}
	s.vals = append(s.vals, v)
	return nil
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (Value, bool) {
	if len(s.vals) == 0 {
		return Value{}, false
	}
	v := s.vals[len(s.vals)-1]
	s.vals[len(s.vals)-1] = Value{}
	s.vals = s.vals[:len(s.vals)-1]
	return v, true
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int {
	return len(s.vals)
}

// Active returns the open builder, or nil.
func (s *Stack) Active() Builder {
	if len(s.vals) == 0 || !s.vals[0].IsBuilder() {
		return nil
	}
	return s.vals[0].Builder
}

// Reduce pops the value on top of the stack and stores it in field of the
// open builder.
func (s *Stack) Reduce(field string) error {
	b := s.Active()
	if b == nil || len(s.vals) < 2 {
		return fmt.Errorf("reduce %s: no value above an open declaration", field)
	}
	v, _ := s.Pop()
	return b.SetField(field, v)
}

// Close pops the open builder, which must be the only entry left, and
// freezes it.
func (s *Stack) Close() (Descriptor, error) {
	if len(s.vals) != 1 || s.Active() == nil {
		return nil, fmt.Errorf("close: stack holds %d values", len(s.vals))
	}
	v, _ := s.Pop()
	return v.Builder.Finish()
}

// Clear drops everything on the stack.
func (s *Stack) Clear() {
	clear(s.vals)
	s.vals = s.vals[:0]
}
