package wdlsema

import (
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/document"
	"github.com/wdlsema/wdlsema/internal/graph"
	"github.com/wdlsema/wdlsema/internal/scope"
)

// SymbolKind classifies a Symbol in a DocumentView.
type SymbolKind string

const (
	SymbolDeclaration SymbolKind = "declaration"
	SymbolInput       SymbolKind = "input"
	SymbolOutput      SymbolKind = "output"
	SymbolScatterVar  SymbolKind = "scatter-variable"
	SymbolCall        SymbolKind = "call"
	SymbolTask        SymbolKind = "task"
	SymbolWorkflow    SymbolKind = "workflow"
	SymbolStruct      SymbolKind = "struct"
)

// Symbol is the host-facing projection of one resolved name.
type Symbol struct {
	Name string
	Kind SymbolKind
	// Type is the symbol's resolved type in WDL surface syntax.
	Type string
	// Container names the task or workflow whose body declares the
	// symbol; empty for document-level symbols.
	Container string
	// Start and End are the byte offsets of the declaring node.
	Start, End int
}

// DocumentView answers per-document queries (spec §4.8): diagnostics,
// symbols, and the type inferred at a source offset. Views over results
// restored from the cache expose diagnostics only: Symbols returns nil and
// TypeAt finds nothing.
type DocumentView struct {
	uri      string
	result   graph.Result
	analysis *document.Analysis // nil for cache-restored results
}

func newDocumentView(uri string, result graph.Result) *DocumentView {
	v := &DocumentView{uri: uri, result: result}
	if a, ok := result.(*document.Analysis); ok {
		v.analysis = a
	}
	return v
}

// URI returns the document's URI.
func (v *DocumentView) URI() string { return v.uri }

// Version returns the resolved WDL version, or "" when the result came
// from the cache or a failed document.
func (v *DocumentView) Version() string {
	if v.analysis != nil {
		return v.analysis.Version
	}
	return ""
}

// Diagnostics returns the document's finalized diagnostics, sorted by
// primary span.
func (v *DocumentView) Diagnostics() []diagnostics.Diagnostic {
	return v.result.Diagnostics()
}

// Symbols enumerates every symbol in the document: structs and task or
// workflow names first, then each body's inputs, declarations, calls and
// outputs in declaration order.
func (v *DocumentView) Symbols() []Symbol {
	if v.analysis == nil {
		return nil
	}
	a := v.analysis
	var out []Symbol
	for _, sym := range a.RootScope.All() {
		out = append(out, projectSymbol(sym, ""))
	}
	for _, t := range sortedTaskNames(a) {
		for _, sym := range a.TaskScopes[t].All() {
			out = append(out, projectSymbol(sym, t))
		}
	}
	if a.WorkflowScope != nil && a.Workflow != nil {
		for _, sym := range a.WorkflowScope.All() {
			out = append(out, projectSymbol(sym, a.Workflow.Name))
		}
	}
	return out
}

func sortedTaskNames(a *document.Analysis) []string {
	names := make([]string, 0, len(a.TaskScopes))
	for name := range a.TaskScopes {
		names = append(names, name)
	}
	// Preserve source order via the signature table's declaration nodes.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if declStart(a, names[j]) < declStart(a, names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}

func declStart(a *document.Analysis, task string) int {
	if sig, ok := a.Tasks[task]; ok && sig.Node != nil {
		return sig.Node.Span().Start
	}
	return 0
}

func projectSymbol(sym *scope.Symbol, container string) Symbol {
	s := Symbol{Name: sym.Name, Kind: symbolKind(sym.Kind), Container: container}
	if sym.Type != nil {
		s.Type = sym.Type.String()
	}
	if sym.Decl != nil {
		sp := sym.Decl.Span()
		s.Start, s.End = sp.Start, sp.End
	}
	return s
}

func symbolKind(k scope.SymbolKind) SymbolKind {
	switch k {
	case scope.SymInput:
		return SymbolInput
	case scope.SymOutput:
		return SymbolOutput
	case scope.SymScatterVar:
		return SymbolScatterVar
	case scope.SymCallAlias:
		return SymbolCall
	case scope.SymTask:
		return SymbolTask
	case scope.SymWorkflow:
		return SymbolWorkflow
	case scope.SymStruct:
		return SymbolStruct
	default:
		return SymbolDeclaration
	}
}

// TypeAt returns the WDL surface rendering of the type inferred for the
// innermost expression spanning the given byte offset, if any.
func (v *DocumentView) TypeAt(offset int) (string, bool) {
	if v.analysis == nil || v.analysis.TypeMap == nil {
		return "", false
	}
	bestLen := -1
	var bestType string
	for expr, t := range v.analysis.TypeMap {
		sp := expr.Span()
		if offset < sp.Start || offset >= sp.End {
			continue
		}
		if length := sp.End - sp.Start; bestLen == -1 || length < bestLen {
			bestLen = length
			bestType = t.String()
		}
	}
	return bestType, bestLen >= 0
}
