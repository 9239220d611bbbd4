// Package types implements the WDL type lattice: value-semantic descriptors
// for every type a document's declarations, expressions and call outputs can
// carry, plus the subtype/coercion/common-type rules that drive name
// resolution and overload ranking elsewhere in the analyzer.
//
// Every concrete type is a Go value with no pointers. Struct and CallOutput
// hold member slices and so are not comparable with ==; compare types for
// structural equality with Equal, or key maps by the String() form.
package types

import (
	"fmt"
	"strings"
)

// Kind discriminates the concrete variant behind a Type, so callers can do
// exhaustive switches instead of type assertions where that reads cleaner.
type Kind int

const (
	KBoolean Kind = iota
	KInt
	KFloat
	KString
	KFile
	KDirectory
	KArray
	KMap
	KPair
	KObject
	KStruct
	KOptional
	KUnion
	KNone
	KTaskHandle
	KHints
	KInput
	KOutput
	KCallOutput
)

// Type is implemented by every member of the WDL type lattice.
type Type interface {
	Kind() Kind
	// String renders the type using WDL surface syntax, e.g. "Array[File]+?".
	// Diagnostic messages must use this rendering verbatim (spec §4.1).
	String() string
}

// Primitive covers the six scalar WDL types.
type Primitive struct{ kind Kind }

func (p Primitive) Kind() Kind { return p.kind }

func (p Primitive) String() string {
	switch p.kind {
	case KBoolean:
		return "Boolean"
	case KInt:
		return "Int"
	case KFloat:
		return "Float"
	case KString:
		return "String"
	case KFile:
		return "File"
	case KDirectory:
		return "Directory"
	default:
		return "<bad primitive>"
	}
}

var (
	Boolean   = Primitive{KBoolean}
	Int       = Primitive{KInt}
	Float     = Primitive{KFloat}
	String    = Primitive{KString}
	File      = Primitive{KFile}
	Directory = Primitive{KDirectory}
)

// Array is Array[Element], optionally marked non-empty (Array[Element]+).
type Array struct {
	Element  Type
	NonEmpty bool
}

func (a Array) Kind() Kind { return KArray }

func (a Array) String() string {
	suffix := ""
	if a.NonEmpty {
		suffix = "+"
	}
	return fmt.Sprintf("Array[%s]%s", a.Element.String(), suffix)
}

// Map is Map[Key,Value]; Key is always a Primitive per the grammar.
type Map struct {
	Key   Type
	Value Type
}

func (m Map) Kind() Kind { return KMap }

func (m Map) String() string {
	return fmt.Sprintf("Map[%s,%s]", m.Key.String(), m.Value.String())
}

// Pair is Pair[Left,Right].
type Pair struct {
	Left  Type
	Right Type
}

func (p Pair) Kind() Kind { return KPair }

func (p Pair) String() string {
	return fmt.Sprintf("Pair[%s,%s]", p.Left.String(), p.Right.String())
}

// Object is the deprecated loosely-typed bag of string keys. It is the type
// of object literal expressions, and a declared `Object` type resolves to
// it in every supported version; no version rejects the declared form.
type Object struct{}

func (Object) Kind() Kind    { return KObject }
func (Object) String() string { return "Object" }

// Member is one ordered field of a Struct or CallOutput.
type Member struct {
	Name string
	Type Type
}

// Struct is a named record type. Two Struct values are subtype-equivalent
// when they have the same ordered member names with equivalent member
// types, regardless of which document (or import alias) declared them —
// this is what makes struct types declared identically in two files, one
// imported under an alias, interchangeable (spec §4.1).
type Struct struct {
	Name    string
	Members []Member
}

func (s Struct) Kind() Kind { return KStruct }

func (s Struct) String() string { return s.Name }

// StructurallyEqual compares two structs by ordered member name/type,
// ignoring Name (which is only a display label / import-alias artifact).
func (s Struct) StructurallyEqual(o Struct) bool {
	if len(s.Members) != len(o.Members) {
		return false
	}
	for i, m := range s.Members {
		om := o.Members[i]
		if m.Name != om.Name || !Equal(m.Type, om.Type) {
			return false
		}
	}
	return true
}

// Optional wraps any type as T?. Constructing Optional(Optional(T)) is
// normalized to Optional(T) by Opt, since WDL has no nested optionals.
type Optional struct{ Inner Type }

func (o Optional) Kind() Kind { return KOptional }

func (o Optional) String() string {
	inner := o.Inner.String()
	// Parenthesize compound inner types only where the grammar requires it;
	// WDL's actual surface syntax has no ambiguity here, so no parens needed.
	return inner + "?"
}

// Opt wraps t as optional, flattening a redundant nested optional and
// leaving Union/None unwrapped since both are already "optional of
// anything" in spirit.
func Opt(t Type) Type {
	switch tt := t.(type) {
	case Optional:
		return tt
	case Union, NoneType:
		return t
	default:
		return Optional{Inner: t}
	}
}

// Unwrap strips one layer of Optional, returning the inner type and whether
// t was optional at all.
func Unwrap(t Type) (Type, bool) {
	if o, ok := t.(Optional); ok {
		return o.Inner, true
	}
	return t, false
}

// IsOptional reports whether t accepts None, directly or via Union/NoneType.
func IsOptional(t Type) bool {
	switch t.(type) {
	case Optional, Union, NoneType:
		return true
	default:
		return false
	}
}

// Union is the synthetic "any type is acceptable here" type produced by
// empty array/map literals and by recovery from a failed sub-expression.
type Union struct{}

func (Union) Kind() Kind    { return KUnion }
func (Union) String() string { return "Union" }

// Any is the canonical Union value, substituted whenever a sub-expression
// fails to type-check so evaluation can continue without cascading errors.
var Any Type = Union{}

// NoneType is the type of the `None` literal: optional-of-anything.
type NoneType struct{}

func (NoneType) Kind() Kind    { return KNone }
func (NoneType) String() string { return "None" }

// None is the canonical NoneType value.
var None Type = NoneType{}

// TaskHandle is the type of the `task` variable available in command and
// output sections from WDL 1.2 onward.
type TaskHandle struct{}

func (TaskHandle) Kind() Kind    { return KTaskHandle }
func (TaskHandle) String() string { return "task" }

// Hints, Input and Output are the three nominal literal types usable only
// inside a task's `hints` section (spec §4.4): a `hints{}` literal has type
// Hints, and its `input`/`output` sub-literals have their own nominal
// types so that nesting-kind rules can be checked without re-parsing.
type Hints struct{}

func (Hints) Kind() Kind    { return KHints }
func (Hints) String() string { return "hints" }

type Input struct{}

func (Input) Kind() Kind    { return KInput }
func (Input) String() string { return "input" }

type Output struct{}

func (Output) Kind() Kind    { return KOutput }
func (Output) String() string { return "output" }

// CallOutput is the synthetic record type produced by a call node: one
// member per callee output, each possibly Optional-wrapped (conditional
// call) or Array-wrapped (scattered call) per spec §4.6.
type CallOutput struct {
	CallName string
	Members  []Member
}

func (c CallOutput) Kind() Kind { return KCallOutput }

func (c CallOutput) String() string {
	names := make([]string, len(c.Members))
	for i, m := range c.Members {
		names[i] = m.Name + ": " + m.Type.String()
	}
	return fmt.Sprintf("call %s { %s }", c.CallName, strings.Join(names, ", "))
}

// MemberType returns the type of member name on c, and whether it exists.
func (c CallOutput) MemberType(name string) (Type, bool) {
	for _, m := range c.Members {
		if m.Name == name {
			return m.Type, true
		}
	}
	return nil, false
}

// ScatterWrap is applied to every call-output member type visible at the
// end of a `scatter` body: it becomes an array of the original type.
func ScatterWrap(t Type) Type {
	return Array{Element: t}
}

// ConditionalWrap is applied to every call-output member type visible at
// the end of an `if` body: it becomes optional.
func ConditionalWrap(t Type) Type {
	return Opt(t)
}
