package document

import (
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/scope"
	"github.com/wdlsema/wdlsema/internal/types"
)

// runBodyPass implements spec §4.6 step 4: visit every task body and the
// workflow body, building the scope tree and running the Expression
// Evaluator over declarations, command placeholders, call inputs, outputs,
// conditions and scatter expressions.
func (c *analyzeCtx) runBodyPass() {
	c.evaluator = c.newEvaluator(c.a.RootScope)

	for _, t := range c.doc.Tasks {
		if sig, ok := c.a.Tasks[t.Name]; ok && sig.Node == t {
			c.analyzeTaskBody(t, sig)
		}
	}
	if c.doc.Workflow != nil && c.a.Workflow != nil {
		c.analyzeWorkflowBody(c.doc.Workflow)
	}
}

func (c *analyzeCtx) newBodyScope(kind scope.Kind, parent *scope.Scope) *scope.Scope {
	sc := scope.New(kind, parent)
	c.allScopes = append(c.allScopes, sc)
	return sc
}

func (c *analyzeCtx) analyzeTaskBody(t *cst.Task, sig *TaskSignature) {
	sc := c.newBodyScope(scope.KindTask, c.a.RootScope)
	c.a.TaskScopes[t.Name] = sc

	c.declareInputs(sc, sig.Inputs)
	c.evalInputDefaults(sc, sig.Inputs)
	c.analyzeDecls(sc, t.Decls, scope.SymDecl)

	c.evaluator.SetScope(sc)
	c.evaluator.EvalParts(t.Command.Parts)
	for _, entry := range t.Runtime {
		c.evaluator.Eval(entry.Value)
	}
	for _, entry := range t.Requirements {
		c.evaluator.Eval(entry.Value)
	}
	c.evaluator.EvalHintsSection(t.Hints)

	c.analyzeOutputs(sc, sig.Outputs)
}

// declareInputs registers each input as a symbol before any initializer is
// evaluated, so inputs may reference each other regardless of order.
func (c *analyzeCtx) declareInputs(sc *scope.Scope, inputs []InputSignature) {
	for i := range inputs {
		in := &inputs[i]
		sym := &scope.Symbol{Name: in.Name, Kind: scope.SymInput, Type: in.Type, Decl: in.Decl}
		if prior, redefined := sc.Define(sym); redefined {
			d := c.diag(diagnostics.DuplicateName, c.span(in.Decl), "input %q is already declared", in.Name)
			c.sink.Add(d.WithSecondary(c.span(prior.Decl), "first declared here"))
		}
	}
}

func (c *analyzeCtx) evalInputDefaults(sc *scope.Scope, inputs []InputSignature) {
	c.evaluator.SetScope(sc)
	for i := range inputs {
		in := &inputs[i]
		if in.Decl.Value == nil {
			continue
		}
		vt := c.evaluator.Eval(in.Decl.Value)
		if types.Coerce(vt, in.Type, c.opts.AllowNarrowing) == types.NoCoercion {
			c.sink.Add(c.diag(diagnostics.TypeMismatch, c.span(in.Decl.Value),
				"cannot initialize %s %q with a value of type %s", in.Type.String(), in.Name, vt.String()))
		}
	}
}

// analyzeDecls handles a run of private declarations: all names are
// declared first (initializers may reference a declaration written later,
// since a body is a dataflow graph, not a statement sequence), then each
// initializer is evaluated and checked against its declared type.
func (c *analyzeCtx) analyzeDecls(sc *scope.Scope, decls []cst.Decl, kind scope.SymbolKind) {
	resolved := make([]types.Type, len(decls))
	for i := range decls {
		d := &decls[i]
		resolved[i] = c.resolveDeclType(d)
		sym := &scope.Symbol{Name: d.Name, Kind: kind, Type: resolved[i], Decl: d}
		if prior, redefined := sc.Define(sym); redefined {
			diag := c.diag(diagnostics.DuplicateName, c.span(d), "name %q is already declared", d.Name)
			c.sink.Add(diag.WithSecondary(c.span(prior.Decl), "first declared here"))
		}
	}
	c.evaluator.SetScope(sc)
	for i := range decls {
		d := &decls[i]
		if d.Value == nil {
			continue
		}
		vt := c.evaluator.Eval(d.Value)
		if types.Coerce(vt, resolved[i], c.opts.AllowNarrowing) == types.NoCoercion {
			c.sink.Add(c.diag(diagnostics.TypeMismatch, c.span(d.Value),
				"cannot initialize %s %q with a value of type %s", resolved[i].String(), d.Name, vt.String()))
		}
	}
}

// analyzeOutputs declares and checks an output section in order; an output
// may reference inputs, declarations and earlier outputs.
func (c *analyzeCtx) analyzeOutputs(sc *scope.Scope, outputs []OutputSignature) {
	c.evaluator.SetScope(sc)
	for i := range outputs {
		out := &outputs[i]
		sym := &scope.Symbol{Name: out.Name, Kind: scope.SymOutput, Type: out.Type, Decl: out.Decl}
		if prior, redefined := sc.Define(sym); redefined {
			d := c.diag(diagnostics.DuplicateName, c.span(out.Decl), "output %q is already declared", out.Name)
			c.sink.Add(d.WithSecondary(c.span(prior.Decl), "first declared here"))
		}
		if out.Decl.Value == nil {
			continue
		}
		vt := c.evaluator.Eval(out.Decl.Value)
		if types.Coerce(vt, out.Type, c.opts.AllowNarrowing) == types.NoCoercion {
			c.sink.Add(c.diag(diagnostics.TypeMismatch, c.span(out.Decl.Value),
				"cannot initialize %s %q with a value of type %s", out.Type.String(), out.Name, vt.String()))
		}
	}
}
