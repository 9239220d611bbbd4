package eval

import (
	"errors"
	"regexp"
	"sync"

	"github.com/wdlsema/wdlsema/internal/config"
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/scope"
	"github.com/wdlsema/wdlsema/internal/stdlib"
	"github.com/wdlsema/wdlsema/internal/types"
)

// Evaluator walks cst.Expr trees post-order and assigns every node a
// types.Type (spec §4.5), recording the result in TypeMap so a host (spec
// §4.8 "type inferred at a given source offset") can query it later.
//
// One Evaluator is shared across a whole document; CurrentScope is swapped
// as the Document Analyzer descends into task/workflow/scatter/conditional
// bodies.
type Evaluator struct {
	Sink           *diagnostics.Sink
	Catalog        *stdlib.Catalog
	Version        string
	URI            string
	Pos            *diagnostics.PositionResolver
	AllowNarrowing bool
	StructLookup   StructLookup

	CurrentScope *scope.Scope
	TypeMap      map[cst.Expr]types.Type

	// ScatterVarHint lists every scatter loop-variable name declared in
	// the workflow; when an identifier fails to resolve but matches one,
	// the diagnostic becomes OutputReferencesScatterVar instead of a plain
	// UnknownName (spec §4.6: scatter variables do not escape their body).
	ScatterVarHint map[string]bool
}

// New builds an Evaluator. sink, catalog, structLookup and pos must be
// non-nil; scope may be swapped later via SetScope.
func New(sink *diagnostics.Sink, catalog *stdlib.Catalog, version, uri string, pos *diagnostics.PositionResolver, allowNarrowing bool, lookup StructLookup) *Evaluator {
	return &Evaluator{
		Sink:           sink,
		Catalog:        catalog,
		Version:        version,
		URI:            uri,
		Pos:            pos,
		AllowNarrowing: allowNarrowing,
		StructLookup:   lookup,
		TypeMap:        map[cst.Expr]types.Type{},
	}
}

func (e *Evaluator) SetScope(s *scope.Scope) { e.CurrentScope = s }

func (e *Evaluator) span(n cst.Node) diagnostics.Span {
	sp := n.Span()
	return e.Pos.Span(e.URI, sp.Start, sp.End)
}

func (e *Evaluator) record(n cst.Expr, t types.Type) types.Type {
	e.TypeMap[n] = t
	return t
}

// Eval assigns and returns the type of expr, recovering to types.Any on any
// internal failure so callers never need to special-case a nil result
// (spec §4.5 "Failure").
func (e *Evaluator) Eval(expr cst.Expr) types.Type {
	if expr == nil {
		return types.Any
	}
	switch n := expr.(type) {
	case *cst.Ident:
		return e.record(n, e.evalIdent(n))
	case *cst.BoolLit:
		return e.record(n, types.Boolean)
	case *cst.IntLit:
		return e.record(n, types.Int)
	case *cst.FloatLit:
		return e.record(n, types.Float)
	case *cst.NoneLit:
		return e.record(n, types.None)
	case *cst.StringLit:
		e.evalParts(n.Parts)
		return e.record(n, types.String)
	case *cst.ArrayLit:
		return e.record(n, e.evalArrayLit(n))
	case *cst.MapLit:
		return e.record(n, e.evalMapLit(n))
	case *cst.PairLit:
		return e.record(n, types.Pair{Left: e.Eval(n.Left), Right: e.Eval(n.Right)})
	case *cst.ObjectLit:
		return e.record(n, e.evalObjectLit(n))
	case *cst.StructLit:
		return e.record(n, e.evalStructLit(n))
	case *cst.UnaryExpr:
		return e.record(n, e.evalUnary(n))
	case *cst.BinaryExpr:
		return e.record(n, e.evalBinary(n))
	case *cst.TernaryExpr:
		return e.record(n, e.evalTernary(n))
	case *cst.IndexExpr:
		return e.record(n, e.evalIndex(n))
	case *cst.MemberExpr:
		return e.record(n, e.evalMember(n))
	case *cst.ApplyExpr:
		return e.record(n, e.evalApply(n))
	case *cst.TaskVarExpr:
		return e.record(n, e.evalTaskVar(n))
	case *cst.RecordLit:
		return e.record(n, e.evalRecordLit(n, false, 0))
	default:
		return types.Any
	}
}

func (e *Evaluator) evalIdent(n *cst.Ident) types.Type {
	sym, ok := e.CurrentScope.Resolve(n.Name)
	if !ok {
		if e.ScatterVarHint[n.Name] {
			e.Sink.Add(diagnostics.New(diagnostics.OutputReferencesScatterVar, e.span(n),
				"scatter variable %q is not visible outside its scatter body", n.Name))
		} else {
			e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "undefined name %q", n.Name))
		}
		return types.Any
	}
	sym.MarkUsed()
	return sym.Type
}

// evalArrayLit implements spec §4.1/§4.5: an empty array literal gets
// Array[Union]+? so it coerces into whatever array-shaped context it's
// used in; a non-empty literal's type is the common type of its elements.
func (e *Evaluator) evalArrayLit(n *cst.ArrayLit) types.Type {
	if len(n.Elements) == 0 {
		return types.Opt(types.Array{Element: types.Any, NonEmpty: true})
	}
	common := e.Eval(n.Elements[0])
	for _, el := range n.Elements[1:] {
		t := e.Eval(el)
		c, ok := types.Common(common, t)
		if !ok {
			e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(el),
				"array element type %s is not compatible with preceding element type %s", t.String(), common.String()))
			common = types.Any
			continue
		}
		common = c
	}
	return types.Array{Element: common, NonEmpty: true}
}

func (e *Evaluator) evalMapLit(n *cst.MapLit) types.Type {
	if len(n.Keys) == 0 {
		return types.Map{Key: types.Any, Value: types.Any}
	}
	keyCommon := e.Eval(n.Keys[0])
	valCommon := e.Eval(n.Values[0])
	for i := 1; i < len(n.Keys); i++ {
		kt := e.Eval(n.Keys[i])
		vt := e.Eval(n.Values[i])
		if c, ok := types.Common(keyCommon, kt); ok {
			keyCommon = c
		} else {
			e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n.Keys[i]), "map key type %s is not compatible with %s", kt.String(), keyCommon.String()))
		}
		if c, ok := types.Common(valCommon, vt); ok {
			valCommon = c
		} else {
			e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n.Values[i]), "map value type %s is not compatible with %s", vt.String(), valCommon.String()))
		}
	}
	return types.Map{Key: keyCommon, Value: valCommon}
}

func (e *Evaluator) evalObjectLit(n *cst.ObjectLit) types.Type {
	if config.VersionAtLeast(e.Version, "1.2") {
		e.Sink.Add(diagnostics.New(diagnostics.DeprecatedObject, e.span(n), "object literals are deprecated from WDL 1.2 onward; use a struct literal instead"))
	}
	for _, v := range n.Values {
		e.Eval(v)
	}
	return types.Object{}
}

func (e *Evaluator) evalStructLit(n *cst.StructLit) types.Type {
	st, ok := e.StructLookup(n.TypeName)
	if !ok {
		e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "undefined struct type %q", n.TypeName))
		for _, v := range n.Values {
			e.Eval(v)
		}
		return types.Any
	}
	for i, key := range n.Keys {
		vt := e.Eval(n.Values[i])
		mt, ok := memberType(st, key)
		if !ok {
			e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "struct %s has no member %q", st.Name, key))
			continue
		}
		if types.Coerce(vt, mt, e.AllowNarrowing) == types.NoCoercion {
			e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n.Values[i]), "cannot assign %s to member %q of type %s", vt.String(), key, mt.String()))
		}
	}
	return st
}

func memberType(st types.Struct, name string) (types.Type, bool) {
	for _, m := range st.Members {
		if m.Name == name {
			return m.Type, true
		}
	}
	return nil, false
}

func (e *Evaluator) evalUnary(n *cst.UnaryExpr) types.Type {
	t := e.Eval(n.Operand)
	switch n.Op {
	case cst.OpNeg:
		inner, _ := types.Unwrap(t)
		if types.Equal(inner, types.Int) || types.Equal(inner, types.Float) {
			return inner
		}
		e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "unary '-' requires Int or Float, got %s", t.String()))
		return types.Any
	case cst.OpNot:
		if types.Coerce(t, types.Boolean, e.AllowNarrowing) != types.NoCoercion {
			return types.Boolean
		}
		e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "unary '!' requires Boolean, got %s", t.String()))
		return types.Any
	}
	return types.Any
}

func (e *Evaluator) evalBinary(n *cst.BinaryExpr) types.Type {
	lt := e.Eval(n.Left)
	rt := e.Eval(n.Right)

	// A failed operand already has its diagnostic; don't cascade.
	if isUnion(lt) || isUnion(rt) {
		switch n.Op {
		case cst.OpEq, cst.OpNeq, cst.OpLt, cst.OpLte, cst.OpGt, cst.OpGte, cst.OpAnd, cst.OpOr:
			return types.Boolean
		default:
			return types.Any
		}
	}

	switch n.Op {
	case cst.OpAnd, cst.OpOr:
		e.checkCoerce(n.Left, lt, types.Boolean)
		e.checkCoerce(n.Right, rt, types.Boolean)
		return types.Boolean
	case cst.OpEq, cst.OpNeq:
		if _, ok := types.Common(lt, rt); !ok {
			e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "cannot compare %s and %s", lt.String(), rt.String()))
		}
		return types.Boolean
	case cst.OpLt, cst.OpLte, cst.OpGt, cst.OpGte:
		if !isOrdered(lt) || !isOrdered(rt) {
			e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "comparison requires Int, Float or String operands, got %s and %s", lt.String(), rt.String()))
		}
		return types.Boolean
	case cst.OpAdd:
		return e.evalAdd(n, lt, rt)
	case cst.OpSub, cst.OpMul, cst.OpDiv, cst.OpMod:
		return e.evalArith(n, lt, rt)
	}
	return types.Any
}

func isOrdered(t types.Type) bool {
	p, ok := t.(types.Primitive)
	return ok && (p.Kind() == types.KInt || p.Kind() == types.KFloat || p.Kind() == types.KString)
}

// evalAdd implements the numeric-promotion and String-widening rules of
// spec §4.5: Int+Float->Float, and `String + X` widens X to String via
// whatever coercion is available.
func (e *Evaluator) evalAdd(n *cst.BinaryExpr, lt, rt types.Type) types.Type {
	li, lIsNum := lt.(types.Primitive)
	ri, rIsNum := rt.(types.Primitive)
	if lIsNum && rIsNum && isNumericKind(li.Kind()) && isNumericKind(ri.Kind()) {
		if li.Kind() == types.KFloat || ri.Kind() == types.KFloat {
			return types.Float
		}
		return types.Int
	}
	if isStringLike(lt) || isStringLike(rt) {
		if types.Coerce(lt, types.String, e.AllowNarrowing) == types.NoCoercion {
			e.Sink.Add(diagnostics.New(diagnostics.NotCoercible, e.span(n.Left), "cannot widen %s to String", lt.String()))
		}
		if types.Coerce(rt, types.String, e.AllowNarrowing) == types.NoCoercion {
			e.Sink.Add(diagnostics.New(diagnostics.NotCoercible, e.span(n.Right), "cannot widen %s to String", rt.String()))
		}
		return types.String
	}
	e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "'+' is not defined for %s and %s", lt.String(), rt.String()))
	return types.Any
}

func (e *Evaluator) evalArith(n *cst.BinaryExpr, lt, rt types.Type) types.Type {
	li, lok := lt.(types.Primitive)
	ri, rok := rt.(types.Primitive)
	if lok && rok && isNumericKind(li.Kind()) && isNumericKind(ri.Kind()) {
		if li.Kind() == types.KFloat || ri.Kind() == types.KFloat {
			return types.Float
		}
		return types.Int
	}
	e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "arithmetic requires Int/Float operands, got %s and %s", lt.String(), rt.String()))
	return types.Any
}

func isNumericKind(k types.Kind) bool { return k == types.KInt || k == types.KFloat }

func isUnion(t types.Type) bool {
	_, ok := t.(types.Union)
	return ok
}

func isStringLike(t types.Type) bool {
	p, ok := t.(types.Primitive)
	return ok && (p.Kind() == types.KString || p.Kind() == types.KFile || p.Kind() == types.KDirectory)
}

func (e *Evaluator) checkCoerce(n cst.Expr, from, to types.Type) {
	if types.Coerce(from, to, e.AllowNarrowing) == types.NoCoercion {
		e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "expected %s, got %s", to.String(), from.String()))
	}
}

func (e *Evaluator) evalTernary(n *cst.TernaryExpr) types.Type {
	ct := e.Eval(n.Cond)
	e.checkCoerce(n.Cond, ct, types.Boolean)
	at := e.Eval(n.Then)
	bt := e.Eval(n.Else)
	common, ok := types.Common(at, bt)
	if !ok {
		e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "if-then-else branches have incompatible types %s and %s", at.String(), bt.String()))
		return types.Any
	}
	return common
}

func (e *Evaluator) evalIndex(n *cst.IndexExpr) types.Type {
	tt := e.Eval(n.Target)
	it := e.Eval(n.Index)
	switch base := unwrapNonOptional(tt).(type) {
	case types.Array:
		e.checkCoerce(n.Index, it, types.Int)
		return base.Element
	case types.Map:
		e.checkCoerce(n.Index, it, base.Key)
		return base.Value
	case types.Union:
		return types.Any
	default:
		e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "cannot index into %s", tt.String()))
		return types.Any
	}
}

func unwrapNonOptional(t types.Type) types.Type {
	inner, _ := types.Unwrap(t)
	return inner
}

func (e *Evaluator) evalMember(n *cst.MemberExpr) types.Type {
	tt := e.Eval(n.Target)
	base := unwrapNonOptional(tt)
	switch bt := base.(type) {
	case types.Union:
		// The target already failed to type; don't cascade.
		return types.Any
	case types.Pair:
		switch n.Field {
		case "left":
			return bt.Left
		case "right":
			return bt.Right
		}
		e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "Pair has no member %q (expected left or right)", n.Field))
		return types.Any
	case types.Struct:
		if mt, ok := memberType(bt, n.Field); ok {
			return mt
		}
		e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "struct %s has no member %q", bt.Name, n.Field))
		return types.Any
	case types.CallOutput:
		if mt, ok := bt.MemberType(n.Field); ok {
			return mt
		}
		e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "call %s has no output %q", bt.CallName, n.Field))
		return types.Any
	case types.Object:
		return types.Any
	case types.TaskHandle:
		return types.String
	default:
		e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n), "cannot access member %q of %s", n.Field, tt.String()))
		return types.Any
	}
}

// evalTaskVar implements the `task` variable available in command/output
// sections from 1.2 onward (spec §3.1, §6).
func (e *Evaluator) evalTaskVar(n *cst.TaskVarExpr) types.Type {
	if !config.VersionAtLeast(e.Version, "1.2") {
		e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "the 'task' variable requires WDL 1.2 or later"))
		return types.Any
	}
	if n.Field == "" {
		return types.TaskHandle{}
	}
	switch n.Field {
	case "name", "id", "container", "cpu", "memory", "attempt":
		return types.String
	case "ext":
		return types.Map{Key: types.String, Value: types.String}
	default:
		e.Sink.Add(diagnostics.New(diagnostics.UnknownName, e.span(n), "task has no field %q", n.Field))
		return types.Any
	}
}

// regexCache memoizes static pattern validation across documents; distinct
// documents analyze in parallel, hence the lock.
var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]error{}
)

// evalApply implements spec §4.3's overload resolution plus the special
// return-type rules for select_first/select_all/defined (spec §4.5) and
// the static regex validation of S6 (spec §8).
func (e *Evaluator) evalApply(n *cst.ApplyExpr) types.Type {
	argTypes := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = e.Eval(a)
	}

	fn, ok := e.Catalog.Lookup(n.Name)
	if !ok {
		e.Sink.Add(diagnostics.New(diagnostics.UnknownFunction, e.span(n), "undefined function %q", n.Name))
		return types.Any
	}
	if !fn.AvailableIn(e.Version, config.VersionAtLeast) {
		// A function added by a later release is unknown to this document
		// (spec §6), not merely overload-mismatched.
		e.Sink.Add(diagnostics.New(diagnostics.UnknownFunction, e.span(n),
			"function %q is not available in WDL %s", n.Name, e.Version))
		return types.Any
	}

	sig, _, err := fn.Resolve(argTypes, e.Version, config.VersionAtLeast)
	if err != nil {
		rule := diagnostics.NoMatchingOverload
		switch {
		case errors.Is(err, stdlib.ErrAmbiguous):
			rule = diagnostics.AmbiguousCall
		case len(fn.Signatures) == 1:
			rule = diagnostics.NotCoercible
		}
		e.Sink.Add(diagnostics.New(rule, e.span(n), "%s", err.Error()))
		return types.Any
	}

	e.checkSelectWarning(n)
	e.checkStaticRegex(n)

	return sig.Return(argTypes)
}

// checkSelectWarning implements the NonOptionalInSelect warning: select_*
// and defined() no longer require an optional argument, but warn when
// every argument is already non-optional (spec §4.5).
func (e *Evaluator) checkSelectWarning(n *cst.ApplyExpr) {
	if n.Name != "select_first" && n.Name != "select_all" && n.Name != "defined" {
		return
	}
	allNonOptional := true
	for _, a := range n.Args {
		t := e.TypeMap[a]
		// select_first/select_all take an array; the interesting
		// optionality is the element's.
		if arr, ok := t.(types.Array); ok {
			t = arr.Element
		}
		if t == nil || types.IsOptional(t) {
			allNonOptional = false
			break
		}
	}
	if allNonOptional && len(n.Args) > 0 {
		e.Sink.Add(diagnostics.New(diagnostics.NonOptionalInSelect, e.span(n), "%s called with no optional arguments has no effect", n.Name))
	}
}

// checkStaticRegex statically validates the pattern argument of matches()
// and find() when it is a plain string literal with no interpolation,
// per spec §8 scenario S6.
func (e *Evaluator) checkStaticRegex(n *cst.ApplyExpr) {
	if n.Name != "matches" && n.Name != "find" {
		return
	}
	if len(n.Args) != 2 {
		return
	}
	lit, ok := n.Args[1].(*cst.StringLit)
	if !ok || len(lit.Parts) != 1 || lit.Parts[0].IsPlaceholder {
		return
	}
	pattern := lit.Parts[0].Literal
	regexCacheMu.Lock()
	err, cached := regexCache[pattern]
	if !cached {
		_, err = regexp.Compile(pattern)
		regexCache[pattern] = err
	}
	regexCacheMu.Unlock()
	if err != nil {
		e.Sink.Add(diagnostics.New(diagnostics.InvalidRegex, e.span(lit), "invalid regular expression: %s", err.Error()))
	}
}

// EvalParts is exported for internal/document's command-section handling,
// which shares the same placeholder grammar as interpolated strings
// (spec §4.5, §4.6, §6).
func (e *Evaluator) EvalParts(parts []cst.CommandPart) { e.evalParts(parts) }

func (e *Evaluator) evalParts(parts []cst.CommandPart) {
	for _, part := range parts {
		if !part.IsPlaceholder {
			continue
		}
		e.evalPlaceholder(part.Placeholder)
	}
}
