// Package stdlib is the Standard Library Catalog (spec §4.3): a declarative
// table of WDL's built-in functions, each with one or more typed signatures,
// plus the overload-resolution algorithm that picks (or rejects) a
// signature for a call site.
package stdlib

import (
	"errors"
	"fmt"

	"github.com/wdlsema/wdlsema/internal/types"
)

// ConstraintKind enumerates the parameter constraint forms spec §4.3 names.
type ConstraintKind int

const (
	ConstraintNone ConstraintKind = iota
	ConstraintPrimitiveType
	ConstraintAnyType
	ConstraintStructWithPrimitiveMembers
	ConstraintOptional
	ConstraintJSONSerializable
)

// satisfies reports whether t meets the constraint, independent of whatever
// formal type the parameter also carries.
func (c ConstraintKind) satisfies(t types.Type) bool {
	switch c {
	case ConstraintNone, ConstraintAnyType:
		return true
	case ConstraintPrimitiveType:
		inner, _ := types.Unwrap(t)
		// The constraint reads through one Array layer, since catalog
		// entries apply it to Array-typed formals to mean "array of
		// primitives" (quote, prefix, sep, contains).
		if arr, ok := inner.(types.Array); ok {
			inner, _ = types.Unwrap(arr.Element)
		}
		if _, ok := inner.(types.Union); ok {
			return true
		}
		_, ok := inner.(types.Primitive)
		return ok
	case ConstraintOptional:
		return types.IsOptional(t)
	case ConstraintStructWithPrimitiveMembers:
		inner, _ := types.Unwrap(t)
		st, ok := inner.(types.Struct)
		if !ok {
			return false
		}
		for _, m := range st.Members {
			mi, _ := types.Unwrap(m.Type)
			if _, ok := mi.(types.Primitive); !ok {
				return false
			}
		}
		return true
	case ConstraintJSONSerializable:
		return isJSONSerializable(t)
	default:
		return true
	}
}

func isJSONSerializable(t Type) bool {
	switch tt := t.(type) {
	case types.Primitive:
		return true
	case types.Optional:
		return isJSONSerializable(tt.Inner)
	case types.Array:
		return isJSONSerializable(tt.Element)
	case types.Map:
		if p, ok := tt.Key.(types.Primitive); !ok || p.Kind() != types.KString {
			return false
		}
		return isJSONSerializable(tt.Value)
	case types.Struct:
		for _, m := range tt.Members {
			if !isJSONSerializable(m.Type) {
				return false
			}
		}
		return true
	case types.Object:
		return true
	default:
		return false
	}
}

// Type is a local alias kept for readability inside this file only.
type Type = types.Type

// Param is one formal parameter of a Signature.
type Param struct {
	Name       string
	Type       Type // the nominal formal type actuals are coerced toward
	Constraint ConstraintKind
	Optional   bool // true if the caller may omit this parameter entirely
}

// ReturnFunc computes a call's return type from its resolved argument types;
// most signatures have a constant return type, modeled as a ReturnFunc that
// ignores its argument.
type ReturnFunc func(args []Type) Type

// constant returns a ReturnFunc that always answers t.
func constant(t Type) ReturnFunc {
	return func([]Type) Type { return t }
}

// Signature is one typed overload of a Function.
type Signature struct {
	Params        []Param
	Return        ReturnFunc
	MinVersion    string
	AllowNarrowing bool // whether this signature's coercion pass may use the Narrow (T? -> T) kind
}

// Function is one built-in name with all of its overloads.
type Function struct {
	Name       string
	Signatures []Signature
}

// Catalog is the full set of built-in functions, keyed by name.
type Catalog struct {
	functions map[string]*Function
}

// Lookup returns the Function named name, if the catalog defines one.
func (c *Catalog) Lookup(name string) (*Function, bool) {
	f, ok := c.functions[name]
	return f, ok
}

func (c *Catalog) add(f Function) {
	if c.functions == nil {
		c.functions = map[string]*Function{}
	}
	c.functions[f.Name] = &f
}

// CoerceResult is one argument's resolved coercion in a candidate signature.
type CoerceResult struct {
	Kind types.CoerceKind
}

// Candidate is one signature that survived arity/version/coercion
// filtering, carrying the per-argument coercion kinds used to rank it.
type Candidate struct {
	Signature *Signature
	Kinds     []types.CoerceKind
}

// ErrAmbiguous reports that two or more overloads ranked equally for a
// call site; callers unwrap it with errors.Is to pick the AmbiguousCall
// rule over NoMatchingOverload.
var ErrAmbiguous = errors.New("ambiguous call")

// AvailableIn reports whether any overload of f exists at docVersion; a
// function whose every signature is gated behind a later release is
// unknown to the document, not overload-mismatched.
func (f *Function) AvailableIn(docVersion string, versionAtLeast func(a, b string) bool) bool {
	for i := range f.Signatures {
		sig := &f.Signatures[i]
		if sig.MinVersion == "" || versionAtLeast(docVersion, sig.MinVersion) {
			return true
		}
	}
	return false
}

// Resolve implements the five-step overload resolution algorithm of
// spec §4.3. docVersion gates MinVersion; each Signature's AllowNarrowing
// field gates the historical T? -> T coercion for that overload.
func (f *Function) Resolve(argTypes []Type, docVersion string, versionAtLeast func(a, b string) bool) (*Signature, []types.CoerceKind, error) {
	var candidates []Candidate

	for i := range f.Signatures {
		sig := &f.Signatures[i]

		// Step 1: filter by argument count, honoring optional trailing params.
		minArgs, maxArgs := arity(sig)
		if len(argTypes) < minArgs || len(argTypes) > maxArgs {
			continue
		}

		// Step 2: filter by minimum version.
		if sig.MinVersion != "" && !versionAtLeast(docVersion, sig.MinVersion) {
			continue
		}

		// Step 3: attempt to coerce each actual to the formal.
		kinds := make([]types.CoerceKind, len(argTypes))
		ok := true
		for j, at := range argTypes {
			p := sig.Params[j]
			if !p.Constraint.satisfies(at) {
				ok = false
				break
			}
			k := types.Coerce(at, p.Type, sig.AllowNarrowing)
			if k == types.NoCoercion {
				ok = false
				break
			}
			kinds[j] = k
		}
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Signature: sig, Kinds: kinds})
	}

	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("no matching overload of %s for the given argument types", f.Name)
	}

	// Step 4/5: rank by lexicographic coercion-kind score, unique best wins.
	best := candidates[0]
	ambiguous := false
	for _, c := range candidates[1:] {
		cmp := compareKinds(c.Kinds, best.Kinds)
		if cmp < 0 {
			best = c
			ambiguous = false
		} else if cmp == 0 {
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, nil, fmt.Errorf("%w to %s: multiple overloads rank equally", ErrAmbiguous, f.Name)
	}
	return best.Signature, best.Kinds, nil
}

// compareKinds returns <0 if a ranks strictly better than b, 0 if tied, >0
// if worse, comparing element-wise in argument order.
func compareKinds(a, b []types.CoerceKind) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func arity(sig *Signature) (min, max int) {
	for _, p := range sig.Params {
		max++
		if !p.Optional {
			min++
		}
	}
	return min, max
}
