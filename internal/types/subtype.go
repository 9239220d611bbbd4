package types

// Equal reports structural equality: same shape, with Struct compared by
// StructurallyEqual rather than by declaring-document identity.
func Equal(a, b Type) bool {
	return subtype(a, b, true) && subtype(b, a, true)
}

// Subtype reports whether every value of type a can be used where a value
// of type b is expected (spec §4.1). It is reflexive and transitive.
func Subtype(a, b Type) bool {
	return subtype(a, b, false)
}

// strict, when true, is used internally by Equal to forbid the one-way
// widenings (File->String, Array[T]+ -> Array[T]) that are subtype-legal
// but not type-equal.
func subtype(a, b Type, strict bool) bool {
	if _, ok := b.(Union); ok {
		return true // Union absorbs everything
	}
	if _, ok := a.(Union); ok {
		return true // every type is a subtype of Union, and vice versa
	}

	// None is a subtype of every optional (and of itself).
	if _, ok := a.(NoneType); ok {
		if _, ok := b.(NoneType); ok {
			return true
		}
		return IsOptional(b)
	}

	// T <: T?; peel one layer of Optional off b first.
	if bOpt, ok := b.(Optional); ok {
		if aOpt, ok := a.(Optional); ok {
			return subtype(aOpt.Inner, bOpt.Inner, strict)
		}
		return subtype(a, bOpt.Inner, strict)
	}
	if _, ok := a.(Optional); ok {
		// An optional is never a subtype of a non-optional b.
		return false
	}

	switch at := a.(type) {
	case Primitive:
		bt, ok := b.(Primitive)
		if !ok {
			return false
		}
		if at == bt {
			return true
		}
		if strict {
			return false
		}
		// File/Directory -> String (WDL 1.1+), one-way.
		if (at.kind == KFile || at.kind == KDirectory) && bt.kind == KString {
			return true
		}
		return false
	case Array:
		bt, ok := b.(Array)
		if !ok {
			return false
		}
		if !subtype(at.Element, bt.Element, strict) {
			return false
		}
		if strict {
			return at.NonEmpty == bt.NonEmpty
		}
		// Array[T]+ <: Array[T]; the reverse requires a runtime check flag
		// and is not modeled as a static subtype here.
		if at.NonEmpty == bt.NonEmpty {
			return true
		}
		return at.NonEmpty && !bt.NonEmpty
	case Map:
		bt, ok := b.(Map)
		if !ok {
			return false
		}
		return subtype(at.Key, bt.Key, strict) && subtype(at.Value, bt.Value, strict)
	case Pair:
		bt, ok := b.(Pair)
		if !ok {
			return false
		}
		return subtype(at.Left, bt.Left, strict) && subtype(at.Right, bt.Right, strict)
	case Object:
		_, ok := b.(Object)
		return ok
	case Struct:
		bt, ok := b.(Struct)
		if !ok {
			return false
		}
		return at.StructurallyEqual(bt)
	case TaskHandle:
		_, ok := b.(TaskHandle)
		return ok
	case Hints:
		_, ok := b.(Hints)
		return ok
	case Input:
		_, ok := b.(Input)
		return ok
	case Output:
		_, ok := b.(Output)
		return ok
	case CallOutput:
		bt, ok := b.(CallOutput)
		if !ok {
			return false
		}
		if len(at.Members) != len(bt.Members) {
			return false
		}
		for _, m := range at.Members {
			bm, ok := bt.MemberType(m.Name)
			if !ok || !subtype(m.Type, bm, strict) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CoerceKind classifies how an actual argument type was adapted to a
// formal parameter type; the ordering below (as int value) is the ranking
// used by stdlib overload resolution (spec §4.3): lower is preferred.
type CoerceKind int

const (
	Identity CoerceKind = iota
	Widen
	OptionalCoerce
	Narrow
	StringCoerce
	NoCoercion // sentinel: no coercion path exists
)

func (k CoerceKind) String() string {
	switch k {
	case Identity:
		return "Identity"
	case Widen:
		return "Widen"
	case OptionalCoerce:
		return "Optional"
	case Narrow:
		return "Narrow"
	case StringCoerce:
		return "String"
	default:
		return "None"
	}
}

// Coerce reports how, if at all, a value of type `from` may be used where
// `to` is expected. allowNarrowing gates the historical T? -> T narrowing
// coercion (spec §4.1); callers that don't have a caller-visible flag for
// it should pass false.
func Coerce(from, to Type, allowNarrowing bool) CoerceKind {
	if Equal(from, to) {
		return Identity
	}
	if Subtype(from, to) {
		if _, toOpt := to.(Optional); toOpt {
			if _, fromOpt := from.(Optional); !fromOpt {
				if _, isNone := from.(NoneType); !isNone {
					return OptionalCoerce
				}
			}
		}
		return Widen
	}

	if fp, ok := from.(Primitive); ok {
		if tp, ok := to.(Primitive); ok {
			// Int -> Float numeric promotion.
			if fp.kind == KInt && tp.kind == KFloat {
				return Widen
			}
			// String -> File/Directory, the literal-path idiom.
			if fp.kind == KString && (tp.kind == KFile || tp.kind == KDirectory) {
				return StringCoerce
			}
		}
	}

	// Compound coercion: recurse structurally when shapes match, so e.g.
	// Array[File] coerces to Array[String] via per-element String coercion.
	switch ft := from.(type) {
	case Array:
		if tt, ok := to.(Array); ok {
			if tt.NonEmpty && !ft.NonEmpty {
				return NoCoercion
			}
			elemKind := Coerce(ft.Element, tt.Element, allowNarrowing)
			if elemKind == NoCoercion {
				return NoCoercion
			}
			return elemKind
		}
	case Map:
		if tt, ok := to.(Map); ok {
			kKind := Coerce(ft.Key, tt.Key, allowNarrowing)
			vKind := Coerce(ft.Value, tt.Value, allowNarrowing)
			if kKind == NoCoercion || vKind == NoCoercion {
				return NoCoercion
			}
			return maxKind(kKind, vKind)
		}
	case Pair:
		if tt, ok := to.(Pair); ok {
			lKind := Coerce(ft.Left, tt.Left, allowNarrowing)
			rKind := Coerce(ft.Right, tt.Right, allowNarrowing)
			if lKind == NoCoercion || rKind == NoCoercion {
				return NoCoercion
			}
			return maxKind(lKind, rKind)
		}
	case Optional:
		if allowNarrowing {
			inner := Coerce(ft.Inner, to, allowNarrowing)
			if inner != NoCoercion {
				return Narrow
			}
		}
		return NoCoercion
	}

	// File/Directory/Int/Float -> String widening used by string-context
	// expressions (interpolation, `+` with a String operand); primitive
	// widening already handled by Subtype for File/Directory, so this
	// covers Int/Float/Boolean -> String.
	if to == Type(String) {
		switch from.(type) {
		case Primitive:
			return StringCoerce
		}
	}

	if toOpt, ok := to.(Optional); ok {
		inner := Coerce(from, toOpt.Inner, allowNarrowing)
		if inner != NoCoercion {
			return OptionalCoerce
		}
	}

	return NoCoercion
}

func maxKind(a, b CoerceKind) CoerceKind {
	if a > b {
		return a
	}
	return b
}

// Common computes the smallest type both a and b coerce to, with a being
// preferred on ties (spec §4.1). It returns (type, ok); ok is false when no
// common type exists.
func Common(a, b Type) (Type, bool) {
	if Equal(a, b) {
		return a, true
	}
	if Subtype(a, b) {
		return b, true
	}
	if Subtype(b, a) {
		return a, true
	}

	// Array[X] | Array[None] = Array[X?], and similar compound recursion.
	if at, ok := a.(Array); ok {
		if bt, ok := b.(Array); ok {
			elem, ok := Common(at.Element, bt.Element)
			if !ok {
				return nil, false
			}
			return Array{Element: elem, NonEmpty: at.NonEmpty && bt.NonEmpty}, true
		}
	}
	if at, ok := a.(Map); ok {
		if bt, ok := b.(Map); ok {
			k, ok := Common(at.Key, bt.Key)
			if !ok {
				return nil, false
			}
			v, ok := Common(at.Value, bt.Value)
			if !ok {
				return nil, false
			}
			return Map{Key: k, Value: v}, true
		}
	}
	if at, ok := a.(Pair); ok {
		if bt, ok := b.(Pair); ok {
			l, ok := Common(at.Left, bt.Left)
			if !ok {
				return nil, false
			}
			r, ok := Common(at.Right, bt.Right)
			if !ok {
				return nil, false
			}
			return Pair{Left: l, Right: r}, true
		}
	}

	// Optional peeling: common(T?, U) = common(T, U)?, when T and U share a
	// common type; common(T, None) = T?.
	if _, ok := b.(NoneType); ok {
		return Opt(a), true
	}
	if _, ok := a.(NoneType); ok {
		return Opt(b), true
	}
	if at, ok := a.(Optional); ok {
		if bt, ok := b.(Optional); ok {
			inner, ok := Common(at.Inner, bt.Inner)
			if !ok {
				return nil, false
			}
			return Opt(inner), true
		}
		inner, ok := Common(at.Inner, b)
		if !ok {
			return nil, false
		}
		return Opt(inner), true
	}
	if bt, ok := b.(Optional); ok {
		inner, ok := Common(a, bt.Inner)
		if !ok {
			return nil, false
		}
		return Opt(inner), true
	}

	// File/Directory/String cross-widen to String as a last resort.
	if isStringish(a) && isStringish(b) {
		return String, true
	}
	// Int/Float numeric promotion.
	if isNumeric(a) && isNumeric(b) {
		return Float, true
	}

	return nil, false
}

func isStringish(t Type) bool {
	p, ok := t.(Primitive)
	return ok && (p.kind == KString || p.kind == KFile || p.kind == KDirectory)
}

func isNumeric(t Type) bool {
	p, ok := t.(Primitive)
	return ok && (p.kind == KInt || p.kind == KFloat)
}
