// Package scope implements the name-resolution model described in spec
// §3.2/§4.4: one Scope per document, task, workflow, scatter and
// conditional, chained to a parent, plus a flat per-document call
// namespace that is NOT chained the way variable scopes are.
package scope

import (
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/types"
)

// Kind classifies what introduced a Scope.
type Kind int

const (
	KindDocument Kind = iota
	KindTask
	KindWorkflow
	KindScatter
	KindConditional
	KindStruct
)

// SymbolKind classifies what a Symbol names.
type SymbolKind int

const (
	SymDecl SymbolKind = iota
	SymInput
	SymOutput
	SymScatterVar
	SymCallAlias
	SymStructMember
	SymTask
	SymWorkflow
	SymStruct
)

// Symbol is one named entity visible in a Scope.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type types.Type
	Decl cst.Node // the node that introduced this symbol, for go-to-definition and secondary labels
	// Used is set by the analyzer once a reference to this symbol is seen;
	// consulted at document-level post-checks to emit Unused* diagnostics.
	Used bool
	// Origin links a re-exported symbol (a call or declaration lifted out
	// of a scatter/conditional body with its type wrapped) back to the
	// symbol it was lifted from, so marking either as used marks both.
	Origin *Symbol
}

// MarkUsed sets Used on s and on every symbol it was lifted from.
func (s *Symbol) MarkUsed() {
	for cur := s; cur != nil; cur = cur.Origin {
		cur.Used = true
	}
}

// Scope is one lexical level of name visibility, parented to the scope it
// is nested inside (nil for a document-level scope).
type Scope struct {
	Kind    Kind
	Parent  *Scope
	symbols map[string]*Symbol
	order   []string // insertion order, for deterministic unused-symbol scans
}

// New creates an empty Scope of the given kind, chained to parent.
func New(kind Kind, parent *Scope) *Scope {
	return &Scope{Kind: kind, Parent: parent, symbols: map[string]*Symbol{}}
}

// Define adds sym to s, returning the symbol that already occupied the name
// in this exact scope (not a parent scope), if any. Callers use the second
// return to decide whether to raise DuplicateName.
func (s *Scope) Define(sym *Symbol) (prior *Symbol, redefined bool) {
	if existing, ok := s.symbols[sym.Name]; ok {
		return existing, true
	}
	s.symbols[sym.Name] = sym
	s.order = append(s.order, sym.Name)
	return nil, false
}

// Resolve looks up name in s, then each ancestor scope in turn, and returns
// the nearest match.
func (s *Scope) Resolve(name string) (*Symbol, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if sym, ok := cur.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// ResolveLocal looks up name only within s itself, ignoring ancestors.
func (s *Scope) ResolveLocal(name string) (*Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// All returns every symbol defined directly in s (not ancestors), in
// declaration order.
func (s *Scope) All() []*Symbol {
	out := make([]*Symbol, len(s.order))
	for i, name := range s.order {
		out[i] = s.symbols[name]
	}
	return out
}

// CallNamespace is the flat, document-wide table of call aliases described
// in spec §4.4: calls nested inside scatter/conditional bodies still share
// one namespace with calls at the workflow's top level, so two calls to the
// same task in different scatters without an `as` clause collide.
type CallNamespace struct {
	calls map[string]*Symbol
	order []string
}

// NewCallNamespace returns an empty CallNamespace.
func NewCallNamespace() *CallNamespace {
	return &CallNamespace{calls: map[string]*Symbol{}}
}

// Define registers a call alias, returning the prior occupant on conflict.
func (c *CallNamespace) Define(sym *Symbol) (prior *Symbol, redefined bool) {
	if existing, ok := c.calls[sym.Name]; ok {
		return existing, true
	}
	c.calls[sym.Name] = sym
	c.order = append(c.order, sym.Name)
	return nil, false
}

// Resolve looks up a call alias.
func (c *CallNamespace) Resolve(name string) (*Symbol, bool) {
	sym, ok := c.calls[name]
	return sym, ok
}

// All returns every registered call symbol in declaration order.
func (c *CallNamespace) All() []*Symbol {
	out := make([]*Symbol, len(c.order))
	for i, name := range c.order {
		out[i] = c.calls[name]
	}
	return out
}
