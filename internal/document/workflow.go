package document

import (
	"strings"

	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/scope"
	"github.com/wdlsema/wdlsema/internal/types"
)

func (c *analyzeCtx) analyzeWorkflowBody(w *cst.Workflow) {
	sc := c.newBodyScope(scope.KindWorkflow, c.a.RootScope)
	c.a.WorkflowScope = sc

	c.declareInputs(sc, c.a.Workflow.Inputs)
	c.evalInputDefaults(sc, c.a.Workflow.Inputs)

	c.walkElements(w.Body, sc)

	// Scatter variables do not escape their bodies; references to one from
	// the output section get a dedicated diagnostic instead of UnknownName.
	c.evaluator.ScatterVarHint = c.scatterVarNames
	c.analyzeOutputs(sc, c.a.Workflow.Outputs)
	c.evaluator.ScatterVarHint = nil
}

func (c *analyzeCtx) walkElements(elems []cst.WorkflowElement, sc *scope.Scope) {
	for _, el := range elems {
		switch n := el.(type) {
		case *cst.Decl:
			c.analyzeWorkflowDecl(n, sc)
		case *cst.Call:
			c.analyzeCall(n, sc)
		case *cst.Scatter:
			c.analyzeScatter(n, sc)
		case *cst.Conditional:
			c.analyzeConditional(n, sc)
		}
	}
}

func (c *analyzeCtx) analyzeWorkflowDecl(d *cst.Decl, sc *scope.Scope) {
	t := c.resolveDeclType(d)
	sym := &scope.Symbol{Name: d.Name, Kind: scope.SymDecl, Type: t, Decl: d}
	if prior, ok := sc.Resolve(d.Name); ok && prior.Kind != scope.SymTask && prior.Kind != scope.SymWorkflow {
		diag := c.diag(diagnostics.DuplicateName, c.span(d), "name %q is already declared", d.Name)
		c.sink.Add(diag.WithSecondary(c.span(prior.Decl), "first declared here"))
	} else {
		sc.Define(sym)
	}
	if d.Value == nil {
		return
	}
	c.evaluator.SetScope(sc)
	vt := c.evaluator.Eval(d.Value)
	if types.Coerce(vt, t, c.opts.AllowNarrowing) == types.NoCoercion {
		c.sink.Add(c.diag(diagnostics.TypeMismatch, c.span(d.Value),
			"cannot initialize %s %q with a value of type %s", t.String(), d.Name, vt.String()))
	}
}

// analyzeCall implements the call rules of spec §3.2/§4.6: resolve the
// callee, derive the call name, enforce the flat call namespace, check
// every input binding, and require every non-optional undefaulted callee
// input to be bound.
func (c *analyzeCtx) analyzeCall(call *cst.Call, sc *scope.Scope) {
	name := call.Alias
	if name == "" {
		segs := strings.Split(call.Target, ".")
		name = segs[len(segs)-1]
	}

	conflicted := false
	var register bool
	if prior, taken := c.a.CallNames.Resolve(name); taken {
		d := c.diag(diagnostics.ConflictingCallName, c.span(call), "call name %q is already used by another call", name)
		d = d.WithSecondary(c.span(prior.Decl), "first called here")
		if call.Alias == "" {
			d = d.WithFix("add an `as` clause to give this call a distinct name")
		}
		c.sink.Add(d)
		conflicted = true
	} else {
		if prior, ok := sc.Resolve(name); ok && shadowableByCall(prior.Kind) {
			d := c.diag(diagnostics.ConflictingCallName, c.span(call), "call name %q conflicts with a declaration", name)
			c.sink.Add(d.WithSecondary(c.span(prior.Decl), "first defined here"))
			conflicted = true
		}
		// Registered even after a declaration conflict so later calls to
		// the same name point here, not at the declaration.
		register = true
	}

	// A conflicting call already has its diagnostic; an unknown target on
	// top of it is noise, so resolution stays quiet in that case.
	callee := c.resolveCallTarget(call, conflicted)

	if register {
		sym := &scope.Symbol{Name: name, Kind: scope.SymCallAlias, Type: c.callOutputType(name, callee), Decl: call}
		c.a.CallNames.Define(sym)
		sc.Define(sym)
	}

	c.checkCallInputs(call, callee, sc)

	for _, after := range call.After {
		if _, ok := c.a.CallNames.Resolve(after); !ok {
			c.sink.Add(c.diag(diagnostics.UnknownName, c.span(call), "`after` references unknown call %q", after))
		}
	}
}

// shadowableByCall reports whether a symbol of kind k occupies the name
// space call names must not collide with (spec §3.2: call names must not
// shadow variables).
func shadowableByCall(k scope.SymbolKind) bool {
	switch k {
	case scope.SymDecl, scope.SymInput, scope.SymOutput, scope.SymScatterVar, scope.SymCallAlias:
		return true
	default:
		return false
	}
}

// resolveCallTarget finds the task or workflow signature a call targets,
// following a dotted namespace path through the import table. A nil return
// means the target could not be resolved; quiet suppresses the diagnostic
// when the call site already reported a name conflict.
func (c *analyzeCtx) resolveCallTarget(call *cst.Call, quiet bool) *TaskSignature {
	unknown := func(format string, args ...interface{}) *TaskSignature {
		if !quiet {
			c.sink.Add(c.diag(diagnostics.UnknownName, c.span(call), format, args...))
		}
		return nil
	}

	segs := strings.Split(call.Target, ".")
	switch len(segs) {
	case 1:
		if sig, ok := c.a.Tasks[segs[0]]; ok {
			return sig
		}
		return unknown("unknown task or workflow %q", call.Target)
	case 2:
		entry, ok := c.namespaces[segs[0]]
		if !ok {
			return unknown("unknown import namespace %q", segs[0])
		}
		c.usedNamespaces[segs[0]] = true
		if entry.importee == nil {
			// The import failed; spec §7 says it contributes no symbols.
			return unknown("import %q did not resolve; %q is unavailable", segs[0], call.Target)
		}
		if sig, ok := entry.importee.TaskTable()[segs[1]]; ok {
			return sig
		}
		if wf := entry.importee.WorkflowSignature(); wf != nil && wf.Name == segs[1] {
			return &TaskSignature{Name: wf.Name, Inputs: wf.Inputs, Outputs: wf.Outputs}
		}
		return unknown("namespace %q has no task or workflow %q", segs[0], segs[1])
	default:
		return unknown("invalid call target %q", call.Target)
	}
}

// callOutputType builds the synthetic record type a call introduces
// (spec §3.1 "Call output"); scatter/conditional wrapping is applied when
// the symbol is lifted out of its enclosing body, not here.
func (c *analyzeCtx) callOutputType(name string, callee *TaskSignature) types.Type {
	if callee == nil {
		return types.Any
	}
	members := make([]types.Member, len(callee.Outputs))
	for i, out := range callee.Outputs {
		members[i] = types.Member{Name: out.Name, Type: out.Type}
	}
	return types.CallOutput{CallName: name, Members: members}
}

func (c *analyzeCtx) checkCallInputs(call *cst.Call, callee *TaskSignature, sc *scope.Scope) {
	c.evaluator.SetScope(sc)
	bound := map[string]bool{}

	for i := range call.Inputs {
		in := &call.Inputs[i]
		bound[in.Name] = true

		var formal InputSignature
		var known bool
		if callee != nil {
			formal, known = callee.Input(in.Name)
			if !known {
				c.sink.Add(c.diag(diagnostics.UnknownName, c.span(in), "%q has no input %q", call.Target, in.Name))
			}
		}

		var actual types.Type
		if in.Value != nil {
			actual = c.evaluator.Eval(in.Value)
		} else {
			// Bare `input: name` shorthand: bind the same-named symbol from
			// the enclosing scope.
			sym, ok := sc.Resolve(in.Name)
			if !ok {
				c.sink.Add(c.diag(diagnostics.UnknownName, c.span(in), "undefined name %q", in.Name))
				continue
			}
			sym.MarkUsed()
			actual = sym.Type
		}

		if known {
			if types.Coerce(actual, formal.Type, c.opts.AllowNarrowing) == types.NoCoercion {
				c.sink.Add(c.diag(diagnostics.TypeMismatch, c.span(in),
					"cannot bind a value of type %s to input %q of type %s", actual.String(), in.Name, formal.Type.String()))
			}
		}
	}

	if callee == nil {
		return
	}
	for _, in := range callee.Inputs {
		if in.Required && !bound[in.Name] {
			d := c.diag(diagnostics.MissingRequiredInput, c.span(call),
				"call to %q is missing required input %q", callee.Name, in.Name)
			c.sink.Add(d.WithFix("bind " + in.Name + " in this call's input block"))
		}
	}
}

func (c *analyzeCtx) analyzeScatter(s *cst.Scatter, sc *scope.Scope) {
	c.evaluator.SetScope(sc)
	exprType := c.evaluator.Eval(s.Expr)

	elem := types.Any
	// An empty array literal types as Array[Union]+? (spec §4.5), so one
	// optional layer is peeled before the array check.
	inner, _ := types.Unwrap(exprType)
	switch t := inner.(type) {
	case types.Array:
		elem = t.Element
	case types.Union:
		// Recovery type from a failed sub-expression; stay quiet.
	default:
		c.sink.Add(c.diag(diagnostics.ScatterNotArray, c.span(s.Expr),
			"scatter requires an Array expression, got %s", exprType.String()))
	}

	body := c.newBodyScope(scope.KindScatter, sc)
	c.scatterVarNames[s.Variable] = true
	body.Define(&scope.Symbol{Name: s.Variable, Kind: scope.SymScatterVar, Type: elem, Decl: s})

	c.walkElements(s.Body, body)
	c.liftBodySymbols(body, sc, scatterLift)
}

func (c *analyzeCtx) analyzeConditional(cond *cst.Conditional, sc *scope.Scope) {
	c.evaluator.SetScope(sc)
	exprType := c.evaluator.Eval(cond.Expr)
	if types.Coerce(exprType, types.Boolean, c.opts.AllowNarrowing) == types.NoCoercion {
		c.sink.Add(c.diag(diagnostics.ConditionNotBoolean, c.span(cond.Expr),
			"if requires a Boolean condition, got %s", exprType.String()))
	}

	body := c.newBodyScope(scope.KindConditional, sc)
	c.walkElements(cond.Body, body)
	c.liftBodySymbols(body, sc, conditionalLift)
}

// liftBodySymbols re-exports every call and declaration introduced inside a
// scatter/conditional body into the enclosing scope with its type wrapped
// (spec §4.6: call outputs become arrays after a scatter body, optionals
// after a conditional body). The lifted symbol keeps an Origin link so a
// use of either marks both.
func (c *analyzeCtx) liftBodySymbols(body, parent *scope.Scope, lift func(types.Type) types.Type) {
	for _, sym := range body.All() {
		if sym.Kind == scope.SymScatterVar {
			continue
		}
		lifted := &scope.Symbol{
			Name:   sym.Name,
			Kind:   sym.Kind,
			Type:   lift(sym.Type),
			Decl:   sym.Decl,
			Origin: sym,
		}
		parent.Define(lifted)
	}
}

func scatterLift(t types.Type) types.Type {
	if co, ok := t.(types.CallOutput); ok {
		return types.CallOutput{CallName: co.CallName, Members: wrapMembers(co.Members, types.ScatterWrap)}
	}
	return types.ScatterWrap(t)
}

func conditionalLift(t types.Type) types.Type {
	if co, ok := t.(types.CallOutput); ok {
		return types.CallOutput{CallName: co.CallName, Members: wrapMembers(co.Members, types.ConditionalWrap)}
	}
	return types.ConditionalWrap(t)
}

func wrapMembers(members []types.Member, wrap func(types.Type) types.Type) []types.Member {
	out := make([]types.Member, len(members))
	for i, m := range members {
		out[i] = types.Member{Name: m.Name, Type: wrap(m.Type)}
	}
	return out
}
