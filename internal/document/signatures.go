package document

import (
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/eval"
	"github.com/wdlsema/wdlsema/internal/scope"
	"github.com/wdlsema/wdlsema/internal/types"
)

// runSignaturePass implements spec §4.6 step 3: record every task's and
// the workflow's input/output types without visiting any body.
func (c *analyzeCtx) runSignaturePass() {
	for i := range c.doc.Tasks {
		t := c.doc.Tasks[i]
		sig := &TaskSignature{
			Name:    t.Name,
			Inputs:  c.resolveInputs(t.Inputs),
			Outputs: c.resolveOutputs(t.Outputs),
			Node:    t,
		}
		if prior, ok := c.a.Tasks[t.Name]; ok {
			d := c.diag(diagnostics.DuplicateName, c.span(t), "task %q is already declared", t.Name)
			c.sink.Add(d.WithSecondary(c.span(prior.Node), "first declared here"))
			continue
		}
		c.a.Tasks[t.Name] = sig
	}

	if c.doc.Workflow != nil {
		w := c.doc.Workflow
		c.a.Workflow = &WorkflowSignature{
			Name:    w.Name,
			Inputs:  c.resolveInputs(w.Inputs),
			Outputs: c.resolveOutputs(w.Outputs),
			Node:    w,
		}
	}
}

func (c *analyzeCtx) resolveInputs(decls []cst.Decl) []InputSignature {
	out := make([]InputSignature, len(decls))
	for i := range decls {
		d := &decls[i]
		t := c.resolveDeclType(d)
		out[i] = InputSignature{
			Name:     d.Name,
			Type:     t,
			Required: d.Value == nil && !types.IsOptional(t),
			Decl:     d,
		}
	}
	return out
}

func (c *analyzeCtx) resolveOutputs(decls []cst.Decl) []OutputSignature {
	out := make([]OutputSignature, len(decls))
	for i := range decls {
		d := &decls[i]
		out[i] = OutputSignature{Name: d.Name, Type: c.resolveDeclType(d), Decl: d}
	}
	return out
}

func (c *analyzeCtx) resolveDeclType(d *cst.Decl) types.Type {
	t, err := eval.ParseTypeExpr(d.Type.Text, c.structLookup)
	if err != nil {
		c.warn(diagnostics.UnknownName, c.span(d.Type), "%s", err.Error())
		return types.Any
	}
	return t
}

// declareSignatures records task and workflow names as TaskHandle-typed
// symbols in the root scope, after the signature pass has run and before
// the body pass. `call` targets themselves are resolved through the task
// table and import namespaces, not through this scope.
func (c *analyzeCtx) declareSignatures() {
	for _, t := range c.doc.Tasks {
		c.a.RootScope.Define(&scope.Symbol{Name: t.Name, Kind: scope.SymTask, Type: types.TaskHandle{}, Decl: t})
	}
	if c.doc.Workflow != nil {
		w := c.doc.Workflow
		c.a.RootScope.Define(&scope.Symbol{Name: w.Name, Kind: scope.SymWorkflow, Type: types.TaskHandle{}, Decl: w})
	}
}
