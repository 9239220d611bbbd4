// Package cst is the concrete-syntax-tree data model the rest of the
// analyzer operates on. It is deliberately a pure value model with no
// lexing or parsing logic of its own: documents arrive already as a *Document
// tree, built by a host-supplied front end (spec §1), and nodes carry
// position and shape; raw text is kept only where a node needs it (a type
// expression as written, literal command and string text).
//
// The node shapes below mirror the tagged-variant idiom (a small getKind-style
// discriminator plus an embedded position) used by single-purpose WDL ASTs
// in the wild, generalized to cover every WDL 1.0-1.2 construct the analyzer
// must understand.
package cst

// Span is a half-open byte range [Start, End) within one document's source.
type Span struct {
	Start, End int
}

// Node is implemented by every CST element.
type Node interface {
	Span() Span
}

type base struct {
	span Span
}

func (b base) Span() Span { return b.span }

func (b *base) setSpan(s Span) { b.span = s }

// NewSpan constructs a Span; start/end are 0-based byte offsets.
func NewSpan(start, end int) Span { return Span{Start: start, End: end} }

// SetSpan assigns a node's span. Front ends building trees by hand (and
// tests) use this, since the span storage itself is unexported.
func SetSpan(n Node, s Span) {
	if setter, ok := n.(interface{ setSpan(Span) }); ok {
		setter.setSpan(s)
	}
}

// Document is the root of one parsed WDL source file.
type Document struct {
	base
	URI      string
	Version  string // as written after the `version` keyword, e.g. "1.1"
	Imports  []*Import
	Structs  []*StructDef
	Tasks    []*Task
	Workflow *Workflow // nil if the document declares no workflow
}

// Import is one `import "uri" as alias` statement, with zero or more
// `alias Orig as New` struct-rename clauses.
type Import struct {
	base
	URI       string
	Alias     string // namespace alias; "" if none given
	Renames   []StructAlias
}

// StructAlias is one `alias Original as Renamed` clause inside an import.
type StructAlias struct {
	Original string
	Renamed  string
}

// TypeExpr is the surface-syntax rendering of a declared type, exactly as
// written (e.g. "Array[File]+?", "MyStruct"). Resolving it to an
// internal/types.Type is internal/eval's job, not this package's.
type TypeExpr struct {
	base
	Text string
}

// Decl is one `Type name = expr` or `Type name` declaration, usable in an
// input section, a private-declaration section, an output section, or a
// struct body.
type Decl struct {
	base
	Type  TypeExpr
	Name  string
	Value Expr // nil if the declaration has no initializer
}

// StructDef is one top-level `struct Name { members... }` definition.
type StructDef struct {
	base
	Name    string
	Members []Decl
}

// MetaEntry is one `key: value` pair in a meta or parameter_meta block.
// Value is carried as an Expr because parameter_meta entries (1.2+) may be
// arbitrary JSON-like literals, not just strings.
type MetaEntry struct {
	base
	Key   string
	Value Expr
}

// Task is one top-level `task Name { ... }` definition.
type Task struct {
	base
	Name          string
	Inputs        []Decl
	Decls         []Decl // private declarations in the task body
	Command       CommandSection
	Outputs       []Decl
	Runtime       []MetaEntry // pre-1.2 `runtime {}` section; empty if using Requirements
	Requirements  []MetaEntry // 1.2+ `requirements {}` section
	Hints         []MetaEntry // `hints {}` section (1.2+)
	Meta          []MetaEntry
	ParameterMeta []MetaEntry
}

// CommandSection is a task's `command <<< ... >>>` (or `command { ... }`)
// body: a sequence of literal text parts interleaved with placeholders.
type CommandSection struct {
	base
	Parts []CommandPart
}

// CommandPart is either a literal text run or a single `~{...}`/`${...}`
// placeholder; exactly one of Literal/Placeholder is meaningful, selected by
// IsPlaceholder.
type CommandPart struct {
	base
	IsPlaceholder bool
	Literal       string
	Placeholder   *Placeholder
}

// Placeholder is one command or string-interpolation placeholder, carrying
// its expression and any `option=value` modifiers (sep, true/false,
// default).
type Placeholder struct {
	base
	Expr    Expr
	Options []PlaceholderOption
}

// PlaceholderOptionKind enumerates the three placeholder option forms WDL
// allows.
type PlaceholderOptionKind int

const (
	OptSep PlaceholderOptionKind = iota
	OptTrueFalse
	OptDefault
)

// PlaceholderOption is one `name=value` modifier attached to a Placeholder.
type PlaceholderOption struct {
	base
	Kind  PlaceholderOptionKind
	Sep   string // OptSep
	True  string // OptTrueFalse
	False string // OptTrueFalse
	Default Expr // OptDefault
}

// Workflow is the (at most one) top-level `workflow Name { ... }`
// definition.
type Workflow struct {
	base
	Name          string
	Inputs        []Decl
	Body          []WorkflowElement // decls, calls, scatters, conditionals in lexical order
	Outputs       []Decl
	Meta          []MetaEntry
	ParameterMeta []MetaEntry
}

// WorkflowElement is implemented by every statement allowed directly inside
// a workflow body or nested scatter/conditional body: *Decl, *Call,
// *Scatter, *Conditional.
type WorkflowElement interface {
	Node
	workflowElement()
}

func (d *Decl) workflowElement()        {}
func (c *Call) workflowElement()        {}
func (s *Scatter) workflowElement()     {}
func (c *Conditional) workflowElement() {}

// Call is one `call Name [as Alias] [after Other]* { input: ... }`
// statement.
type Call struct {
	base
	Target string // dotted task/workflow name as written, e.g. "lib.my_task"
	Alias  string // "" if no `as` clause
	After  []string
	Inputs []CallInput
}

// CallInput is one `name = expr` entry inside a call's `input:` block, or a
// bare `name` shorthand (Value is nil, meaning "use the enclosing scope's
// declaration of the same name").
type CallInput struct {
	base
	Name  string
	Value Expr
}

// Scatter is one `scatter (var in expr) { body }` construct.
type Scatter struct {
	base
	Variable string
	Expr     Expr
	Body     []WorkflowElement
}

// Conditional is one `if (expr) { body }` construct.
type Conditional struct {
	base
	Expr Expr
	Body []WorkflowElement
}
