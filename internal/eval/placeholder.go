package eval

import (
	"github.com/wdlsema/wdlsema/internal/config"
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/types"
)

// evalPlaceholder implements the three placeholder-option forms of spec
// §4.5/§4.6/§6: at most one option set per placeholder, each imposing a
// precondition on the placeholder's bare expression.
func (e *Evaluator) evalPlaceholder(p *cst.Placeholder) {
	bareType := e.Eval(p.Expr)

	if len(p.Options) == 0 {
		// A bare placeholder renders its value as text; an optional renders
		// empty when undefined, so one optional layer is ignored here.
		inner, _ := types.Unwrap(bareType)
		if types.Coerce(inner, types.String, e.AllowNarrowing) == types.NoCoercion {
			d := diagnostics.New(diagnostics.NotCoercible, e.span(p.Expr),
				"placeholder value of type %s cannot be rendered as String", bareType.String())
			if _, isArray := inner.(types.Array); isArray {
				d = d.WithFix("join array elements with the sep= placeholder option")
			}
			e.Sink.Add(d)
		}
		return
	}
	if len(p.Options) > 1 {
		e.Sink.Add(diagnostics.New(diagnostics.ConflictingPlaceholderOption, e.span(p), "at most one placeholder option may be used per placeholder"))
	}
	opt := p.Options[0]

	switch opt.Kind {
	case cst.OptSep:
		e.checkSepOption(p, bareType)
	case cst.OptTrueFalse:
		e.checkTrueFalseOption(p, bareType)
	case cst.OptDefault:
		e.checkDefaultOption(p, bareType, opt.Default)
	default:
		e.Sink.Add(diagnostics.New(diagnostics.InvalidPlaceholderOption, e.span(p), "unrecognized placeholder option"))
	}
}

func (e *Evaluator) checkSepOption(p *cst.Placeholder, bareType types.Type) {
	inner := unwrapNonOptional(bareType)
	if _, ok := inner.(types.Array); !ok {
		e.Sink.Add(diagnostics.New(diagnostics.TypeMismatch, e.span(p.Expr), "sep= requires an Array expression, got %s", bareType.String()))
	}
}

// checkTrueFalseOption implements the `true=<string> false=<string>`
// option. Per this analyzer's compliance policy (DESIGN.md "Open Question
// decisions"), it is reported as deprecated from WDL 1.1 onward, in favor
// of an `if`-expression, without that affecting its type check.
func (e *Evaluator) checkTrueFalseOption(p *cst.Placeholder, bareType types.Type) {
	if config.VersionAtLeast(e.Version, "1.1") {
		e.Sink.Add(diagnostics.New(diagnostics.DeprecatedPlaceholderOption, e.span(p), "true=/false= placeholder options are deprecated; prefer an if-then-else expression"))
	}
	e.checkCoerce(p.Expr, bareType, types.Boolean)
}

func (e *Evaluator) checkDefaultOption(p *cst.Placeholder, bareType types.Type, defaultExpr cst.Expr) {
	if !types.IsOptional(bareType) {
		e.Sink.Add(diagnostics.New(diagnostics.RequiresOptional, e.span(p.Expr), "default= requires an optional expression, got %s", bareType.String()))
		e.Eval(defaultExpr)
		return
	}
	inner, _ := types.Unwrap(bareType)
	defType := e.Eval(defaultExpr)
	if types.Coerce(defType, inner, e.AllowNarrowing) == types.NoCoercion {
		e.Sink.Add(diagnostics.New(diagnostics.NotCoercible, e.span(defaultExpr), "default value of type %s is not coercible to %s", defType.String(), inner.String()))
	}
}
