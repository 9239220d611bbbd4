// Package document implements the Document Analyzer (spec §4.6): the
// ordered passes that turn one parsed internal/cst.Document, plus the
// already-analyzed Analysis of each of its imports, into a scope tree, a
// resolved struct/task/workflow symbol table, and a finalized diagnostic
// list.
//
// A single document's analysis never touches another document's mutable
// state (spec §5): it reads importee Analysis values immutably and writes
// only its own.
package document

import (
	"github.com/wdlsema/wdlsema/internal/config"
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/eval"
	"github.com/wdlsema/wdlsema/internal/scope"
	"github.com/wdlsema/wdlsema/internal/stdlib"
	"github.com/wdlsema/wdlsema/internal/types"
)

// InputSignature is one resolved input of a task or workflow, recorded
// during the signature pass (spec §4.6 step 3) before any body is visited.
type InputSignature struct {
	Name     string
	Type     types.Type
	Required bool // non-optional and without a default expression
	Decl     *cst.Decl
}

// OutputSignature is one resolved output of a task or workflow.
type OutputSignature struct {
	Name string
	Type types.Type
	Decl *cst.Decl
}

// TaskSignature is a task's resolved input/output shape, independent of
// its command/runtime body (spec §4.6 step 3).
type TaskSignature struct {
	Name    string
	Inputs  []InputSignature
	Outputs []OutputSignature
	Node    *cst.Task
}

// RequiredInput reports whether name is a required input of t.
func (t *TaskSignature) RequiredInput(name string) bool {
	for _, in := range t.Inputs {
		if in.Name == name {
			return in.Required
		}
	}
	return false
}

// Input looks up an input by name.
func (t *TaskSignature) Input(name string) (InputSignature, bool) {
	for _, in := range t.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSignature{}, false
}

// WorkflowSignature is a workflow's resolved input/output shape.
type WorkflowSignature struct {
	Name    string
	Inputs  []InputSignature
	Outputs []OutputSignature
	Node    *cst.Workflow
}

// Analysis is the complete result of analyzing one document (spec §3.2):
// everything a host needs to answer "what does this document export" and
// "what diagnostics did it produce", plus enough internal state
// (RootScope, TypeMap) to answer "what symbol/type is at this offset".
type Analysis struct {
	URI     string
	Version string

	Structs  map[string]types.Struct
	Tasks    map[string]*TaskSignature
	Workflow *WorkflowSignature

	RootScope *scope.Scope
	CallNames *scope.CallNamespace
	TypeMap   map[cst.Expr]types.Type

	// TaskScopes and WorkflowScope expose the body scopes built during the
	// body pass so a host can enumerate symbols per task/workflow (spec
	// §4.8 DocumentView accessors).
	TaskScopes    map[string]*scope.Scope
	WorkflowScope *scope.Scope

	diagnostics *diagnostics.Sink
	// ImportNamespaces maps each namespace declared by this document's
	// import statements to the canonical URI it resolved to, so a host
	// (or a later graph invalidation pass) can tell which imports are
	// live without re-walking the CST.
	ImportNamespaces map[string]string
}

// Diagnostics returns the finalized (sorted) diagnostic list.
func (a *Analysis) Diagnostics() []diagnostics.Diagnostic { return a.diagnostics.Finalize() }

// Importee is the read-only view a document needs of one of its imports'
// analyzed results; *Analysis itself satisfies this.
type Importee interface {
	StructTable() map[string]types.Struct
	TaskTable() map[string]*TaskSignature
	WorkflowSignature() *WorkflowSignature
}

func (a *Analysis) StructTable() map[string]types.Struct         { return a.Structs }
func (a *Analysis) TaskTable() map[string]*TaskSignature          { return a.Tasks }
func (a *Analysis) WorkflowSignature() *WorkflowSignature         { return a.Workflow }

// Options configures one Analyze call.
type Options struct {
	// Catalog is the stdlib function table; callers normally share one
	// Catalog across all documents (it is read-only after construction).
	Catalog *stdlib.Catalog
	// FallbackVersion, if non-empty, is used when doc.Version is missing
	// or unrecognized instead of failing the document outright (spec §9
	// "Pre-version-tag access").
	FallbackVersion string
	// AllowNarrowing gates the historical Optional->T narrowing coercion
	// (spec §4.1); most callers should leave this false.
	AllowNarrowing bool
	// StrictMode promotes UnusedImport/UnusedInput/UnusedDeclaration/
	// UnusedCall from Warning to Error (SPEC_FULL §2's config surface).
	// DeprecatedObject, which the expression evaluator reports directly to
	// the sink, keeps its Warning severity.
	StrictMode bool
	// Presets are diagnostics produced before this document's own analysis
	// started (an ImportCycle detected by the graph when the cycle-closing
	// edge was added); they are deposited into the sink ahead of every
	// pass so Finalize sorts them with everything else.
	Presets []diagnostics.Diagnostic
}

// Analyze runs the five ordered passes of spec §4.6 over doc, given the
// already-analyzed Importee for each of doc's resolved imports (keyed by
// the canonical import URI; a missing or nil entry means that import
// failed to resolve and contributes no symbols, per spec §7).
func Analyze(doc *cst.Document, source []byte, imports map[string]Importee, opts Options) *Analysis {
	sink := diagnostics.NewSink()
	pos := diagnostics.NewPositionResolver(source)

	a := &Analysis{
		URI:              doc.URI,
		Structs:          map[string]types.Struct{},
		Tasks:            map[string]*TaskSignature{},
		TaskScopes:       map[string]*scope.Scope{},
		diagnostics:      sink,
		ImportNamespaces: map[string]string{},
	}
	for _, d := range opts.Presets {
		sink.Add(d)
	}

	version, ok := resolveVersion(doc.Version, opts.FallbackVersion)
	a.Version = version
	if !ok {
		rule := diagnostics.MissingVersion
		if doc.Version != "" {
			rule = diagnostics.UnknownVersion
		}
		sink.Add(diagnostics.New(rule, pos.Span(doc.URI, 0, 0), "document has no usable WDL version header; skipping body analysis"))
		a.RootScope = scope.New(scope.KindDocument, nil)
		a.CallNames = scope.NewCallNamespace()
		return a
	}

	ctx := &analyzeCtx{
		doc:             doc,
		pos:             pos,
		sink:            sink,
		version:         version,
		opts:            opts,
		imports:         imports,
		a:               a,
		usedNamespaces:  map[string]bool{},
		structNS:        map[string]string{},
		scatterVarNames: map[string]bool{},
	}

	ctx.runImportPass()
	ctx.runStructPass()
	ctx.runSignaturePass()

	a.RootScope = scope.New(scope.KindDocument, nil)
	a.CallNames = scope.NewCallNamespace()
	ctx.declareSignatures()

	ctx.runBodyPass()
	ctx.runPostChecks()

	if ctx.evaluator != nil {
		a.TypeMap = ctx.evaluator.TypeMap
	}

	return a
}

// NewFailed builds the degenerate Analysis used when a document could not
// be fetched or parsed at all (spec §7): a single diagnostic and empty
// symbol tables, so importers degrade instead of blocking.
func NewFailed(uri string, rule diagnostics.RuleID, message string) *Analysis {
	sink := diagnostics.NewSink()
	sink.Add(diagnostics.New(rule, diagnostics.Span{URI: uri}, "%s", message))
	return &Analysis{
		URI:              uri,
		Structs:          map[string]types.Struct{},
		Tasks:            map[string]*TaskSignature{},
		TaskScopes:       map[string]*scope.Scope{},
		RootScope:        scope.New(scope.KindDocument, nil),
		CallNames:        scope.NewCallNamespace(),
		diagnostics:      sink,
		ImportNamespaces: map[string]string{},
	}
}

// resolveVersion implements spec §9's pre-version-tag-access policy: an
// empty or unknown version falls back to fallback (if configured and
// itself a supported/development version); otherwise analysis reports
// ok=false and the caller skips the body pass.
func resolveVersion(declared, fallback string) (string, bool) {
	v := declared
	if v == "" || (!isSupported(v) && v != config.DevelopmentVersion) {
		if fallback != "" && (isSupported(fallback) || fallback == config.DevelopmentVersion) {
			v = fallback
		} else {
			return "", false
		}
	}
	if v == config.DevelopmentVersion {
		v = config.DefaultVersion
	}
	return v, true
}

func isSupported(v string) bool {
	for _, sv := range config.SupportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}

// analyzeCtx carries the mutable state threaded through the five passes,
// kept out of Analysis itself so Analysis stays an immutable result value
// once Analyze returns.
type analyzeCtx struct {
	doc     *cst.Document
	pos     *diagnostics.PositionResolver
	sink    *diagnostics.Sink
	version string
	opts    Options
	imports map[string]Importee
	a       *Analysis

	// namespaces is the result of the import pass: namespace -> resolved
	// importee (spec §4.6 step 1).
	namespaces     map[string]*importedNamespace
	usedNamespaces map[string]bool

	// structNS records, for structs merged in from imports, which
	// namespace each one came from, so resolving such a struct marks the
	// import as used.
	structNS map[string]string

	// scatterVarNames collects every scatter loop-variable name declared
	// anywhere in the workflow, so the output section can tell a leaked
	// scatter variable reference apart from a plain undefined name.
	scatterVarNames map[string]bool

	// allScopes records every body scope in creation order for the
	// unused-symbol scan of the post-checks pass.
	allScopes []*scope.Scope

	evaluator *eval.Evaluator
}

func (c *analyzeCtx) span(n cst.Node) diagnostics.Span {
	sp := n.Span()
	return c.pos.Span(c.doc.URI, sp.Start, sp.End)
}

// structLookup is the eval.StructLookup backing ParseTypeExpr calls
// throughout every pass: it sees the fully merged (local + imported)
// struct table built by the import+struct passes. Resolving a struct that
// arrived through an import marks that import's namespace as used.
func (c *analyzeCtx) structLookup(name string) (types.Struct, bool) {
	st, ok := c.a.Structs[name]
	if ok {
		if ns, imported := c.structNS[name]; imported {
			c.usedNamespaces[ns] = true
		}
	}
	return st, ok
}

func (c *analyzeCtx) newEvaluator(sc *scope.Scope) *eval.Evaluator {
	ev := eval.New(c.sink, c.opts.Catalog, c.version, c.doc.URI, c.pos, c.opts.AllowNarrowing, c.structLookup)
	ev.SetScope(sc)
	return ev
}

func (c *analyzeCtx) severity(rule diagnostics.RuleID) diagnostics.Severity {
	if c.opts.StrictMode {
		switch rule {
		case diagnostics.UnusedImport, diagnostics.UnusedInput, diagnostics.DeprecatedObject,
			diagnostics.UnusedDeclaration, diagnostics.UnusedCall:
			return diagnostics.Error
		}
	}
	return diagnostics.DefaultSeverity[rule]
}

// diag builds a Diagnostic at this context's (possibly strict-mode
// promoted) severity for rule, without adding it to the sink yet, so
// callers can chain WithSecondary/WithFix before adding.
func (c *analyzeCtx) diag(rule diagnostics.RuleID, span diagnostics.Span, format string, args ...interface{}) diagnostics.Diagnostic {
	d := diagnostics.New(rule, span, format, args...)
	d.Severity = c.severity(rule)
	return d
}

func (c *analyzeCtx) warn(rule diagnostics.RuleID, span diagnostics.Span, format string, args ...interface{}) {
	c.sink.Add(c.diag(rule, span, format, args...))
}
