package eval

import (
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/types"
)

// evalRecordLit types one `hints {...}`/`input {...}`/`output {...}`
// literal (spec §4.4, §8 scenario S4). nested reports whether this literal
// was found as a value inside another such literal; expectedKind is the
// enclosing literal's kind and is only meaningful when nested is true.
func (e *Evaluator) evalRecordLit(n *cst.RecordLit, nested bool, expectedKind types.Kind) types.Type {
	ownKind := recordLitKind(n.Kind)

	if nested {
		e.Sink.Add(diagnostics.New(diagnostics.NestedLiteralKind, e.span(n),
			"a %s literal cannot be nested inside another hints/input/output literal", recordLitName(n.Kind)))
		if ownKind != expectedKind {
			e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(n),
				"expected a value of the enclosing literal's type, got %s", recordLitName(n.Kind)))
		}
	}

	for _, v := range n.Values {
		if rl, ok := v.(*cst.RecordLit); ok {
			e.record(rl, e.evalRecordLit(rl, true, ownKind))
			continue
		}
		e.Eval(v)
	}

	return recordLitType(n.Kind)
}

func recordLitKind(k cst.LiteralKind) types.Kind {
	switch k {
	case cst.LiteralInput:
		return types.KInput
	case cst.LiteralOutput:
		return types.KOutput
	default:
		return types.KHints
	}
}

func recordLitType(k cst.LiteralKind) types.Type {
	switch k {
	case cst.LiteralInput:
		return types.Input{}
	case cst.LiteralOutput:
		return types.Output{}
	default:
		return types.Hints{}
	}
}

func recordLitName(k cst.LiteralKind) string {
	switch k {
	case cst.LiteralInput:
		return "input"
	case cst.LiteralOutput:
		return "output"
	default:
		return "hints"
	}
}

// EvalHintsSection types every entry in a task's `hints {}` section
// (internal/document's body pass calls this instead of plain Eval per
// entry, since a bare top-level entry whose value is itself a record
// literal is not "nested" — only a record literal found inside another
// one is).
func (e *Evaluator) EvalHintsSection(entries []cst.MetaEntry) {
	for _, entry := range entries {
		if rl, ok := entry.Value.(*cst.RecordLit); ok {
			e.record(rl, e.evalRecordLit(rl, false, 0))
			continue
		}
		e.Eval(entry.Value)
	}
}
