// Package diagnostics implements the analyzer's labeled-message sink.
//
// A Sink never aborts analysis: every producer in this module deposits a
// Diagnostic and keeps going, substituting a recovery type or an empty
// symbol table as needed. The sink itself only does bookkeeping — sorting
// by primary span at Finalize — so that two analyses of identical source
// bytes always yield byte-identical diagnostic sequences.
package diagnostics

import (
	"fmt"
	"sort"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// RuleID is a stable identifier for a class of diagnostic. Wording attached
// to a rule may change across releases; the RuleID and the shape of its
// span set are the stable contract (see spec §6, §7).
type RuleID string

const (
	// Structural
	ConflictingImport       RuleID = "ConflictingImport"
	InvalidImportNamespace  RuleID = "InvalidImportNamespace"
	ImportCycle             RuleID = "ImportCycle"
	DuplicateStruct         RuleID = "DuplicateStruct"
	DuplicateName           RuleID = "DuplicateName"
	ConflictingCallName     RuleID = "ConflictingCallName"
	UnknownName             RuleID = "UnknownName"

	// Type
	TypeMismatch       RuleID = "TypeMismatch"
	NotCoercible       RuleID = "NotCoercible"
	AmbiguousCall      RuleID = "AmbiguousCall"
	UnknownFunction    RuleID = "UnknownFunction"
	NoMatchingOverload RuleID = "NoMatchingOverload"
	RequiresOptional   RuleID = "RequiresOptional"
	NonOptionalInSelect RuleID = "NonOptionalInSelect"

	// Flow / structure
	InvalidPlaceholderOption     RuleID = "InvalidPlaceholderOption"
	ConflictingPlaceholderOption RuleID = "ConflictingPlaceholderOption"
	DeprecatedPlaceholderOption  RuleID = "DeprecatedPlaceholderOption"
	NestedLiteralKind            RuleID = "NestedLiteralKind"
	ScatterNotArray               RuleID = "ScatterNotArray"
	ConditionNotBoolean           RuleID = "ConditionNotBoolean"
	MissingRequiredInput          RuleID = "MissingRequiredInput"
	OutputReferencesScatterVar    RuleID = "OutputReferencesScatterVar"
	InvalidRegex                  RuleID = "InvalidRegex"

	// Usage warnings
	UnusedImport      RuleID = "UnusedImport"
	UnusedInput       RuleID = "UnusedInput"
	UnusedDeclaration RuleID = "UnusedDeclaration"
	UnusedCall        RuleID = "UnusedCall"
	DeprecatedObject  RuleID = "DeprecatedObject"

	// Document level
	MissingVersion  RuleID = "MissingVersion"
	UnknownVersion  RuleID = "UnknownVersion"
	FailedFetch     RuleID = "FailedFetch"
	FailedParse     RuleID = "FailedParse"
)

// DefaultSeverity is the severity New assigns to each rule; a rule missing
// from the table gets Error. It mirrors the table in spec §7.
var DefaultSeverity = map[RuleID]Severity{
	ConflictingImport:            Error,
	InvalidImportNamespace:       Error,
	ImportCycle:                  Error,
	DuplicateStruct:               Error,
	DuplicateName:                 Error,
	ConflictingCallName:           Error,
	UnknownName:                   Error,
	TypeMismatch:                  Error,
	NotCoercible:                  Error,
	AmbiguousCall:                 Error,
	UnknownFunction:               Error,
	NoMatchingOverload:            Error,
	RequiresOptional:              Error,
	NonOptionalInSelect:           Warning,
	InvalidPlaceholderOption:      Error,
	ConflictingPlaceholderOption:  Error,
	DeprecatedPlaceholderOption:   Warning,
	NestedLiteralKind:             Error,
	ScatterNotArray:               Error,
	ConditionNotBoolean:           Error,
	MissingRequiredInput:          Error,
	OutputReferencesScatterVar:    Error,
	InvalidRegex:                  Error,
	UnusedImport:                  Warning,
	UnusedInput:                   Warning,
	UnusedDeclaration:             Warning,
	UnusedCall:                    Warning,
	DeprecatedObject:              Warning,
	MissingVersion:                Error,
	UnknownVersion:                Error,
	FailedFetch:                   Error,
	FailedParse:                   Error,
}

// Position is a 0-based line/column pair, used only for display; every span
// comparison and sort in this package is on byte Offset.
type Position struct {
	Line, Column int
}

// Span identifies a half-open byte range [Start, End) in one document's
// source, plus a human-facing Position for the Start offset.
type Span struct {
	URI        string
	Start, End int
	Pos        Position
}

// Label attaches a message to a Span; Diagnostic.Secondary entries use this
// to point at e.g. the first definition of a name that is being redefined.
type Label struct {
	Span    Span
	Message string
}

// Diagnostic is one labeled message produced by analysis. It is immutable
// once constructed; Sink only reorders them.
type Diagnostic struct {
	Severity  Severity
	Rule      RuleID
	Message   string
	Primary   Span
	Secondary []Label
	Fix       string // optional "fix:" hint; empty when none
}

func (d Diagnostic) String() string {
	loc := fmt.Sprintf("%d:%d", d.Primary.Pos.Line+1, d.Primary.Pos.Column+1)
	if d.Primary.URI != "" {
		loc = d.Primary.URI + ":" + loc
	}
	s := fmt.Sprintf("%s: %s [%s] %s", loc, d.Severity, d.Rule, d.Message)
	if d.Fix != "" {
		s += "\n  fix: " + d.Fix
	}
	return s
}

func severityFor(rule RuleID) Severity {
	if sev, ok := DefaultSeverity[rule]; ok {
		return sev
	}
	return Error
}

// New builds a Diagnostic at the rule's default severity.
func New(rule RuleID, primary Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Severity: severityFor(rule),
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
		Primary:  primary,
	}
}

// WithSecondary returns a copy of d with one more secondary label, typically
// used to point back at a conflicting prior declaration.
func (d Diagnostic) WithSecondary(span Span, format string, args ...interface{}) Diagnostic {
	d.Secondary = append(append([]Label{}, d.Secondary...), Label{
		Span:    span,
		Message: fmt.Sprintf(format, args...),
	})
	return d
}

// WithFix attaches a "fix:" hint.
func (d Diagnostic) WithFix(hint string) Diagnostic {
	d.Fix = hint
	return d
}

// Sink accumulates diagnostics for one document's analysis. It never
// aborts: callers keep evaluating and substitute a recovery value for the
// part that failed.
type Sink struct {
	diags []Diagnostic
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Add deposits a diagnostic, preserving insertion order until Finalize.
func (s *Sink) Add(d Diagnostic) {
	s.diags = append(s.diags, d)
}

// Errorf is shorthand for Add(New(rule, span, format, args...)).
func (s *Sink) Errorf(rule RuleID, span Span, format string, args ...interface{}) {
	s.Add(New(rule, span, format, args...))
}

// Len reports how many diagnostics have been added so far.
func (s *Sink) Len() int {
	return len(s.diags)
}

// HasErrors reports whether any accumulated diagnostic is Error severity.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Finalize returns all diagnostics sorted by primary span start, breaking
// ties by primary span end, then rule id, then message so the order is
// fully deterministic. The
// Sink is left unmodified; callers may keep adding and Finalize again.
func (s *Sink) Finalize() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Primary.Start != b.Primary.Start {
			return a.Primary.Start < b.Primary.Start
		}
		if a.Primary.End != b.Primary.End {
			return a.Primary.End < b.Primary.End
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
	return out
}
