package document

import (
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/scope"
)

// runPostChecks implements spec §4.6 step 5. Call-name uniqueness and
// required-input coverage were enforced as calls were walked; what remains
// is the unused-symbol scan over imports, inputs, declarations and calls.
func (c *analyzeCtx) runPostChecks() {
	c.checkUnusedImports()
	c.checkUnusedSymbols()
}

func (c *analyzeCtx) checkUnusedImports() {
	for _, imp := range c.doc.Imports {
		ns := derivedOrAliasNamespace(imp)
		entry, ok := c.namespaces[ns]
		if !ok || entry.node != imp {
			// Rejected by the import pass (invalid or duplicate namespace);
			// it already has a diagnostic.
			continue
		}
		if !c.usedNamespaces[ns] {
			c.warn(diagnostics.UnusedImport, c.span(imp), "import namespace %q is never used", ns)
		}
	}
}

// checkUnusedSymbols walks every body scope in creation order and warns on
// each input, declaration or call that was never referenced (spec §7,
// property 6). Lifted re-exports are skipped — their Origin carries the
// usage bit — and scatter variables never warn (DESIGN.md Open Question 2).
func (c *analyzeCtx) checkUnusedSymbols() {
	for _, sc := range c.allScopes {
		for _, sym := range sc.All() {
			if sym.Used || sym.Origin != nil {
				continue
			}
			var rule diagnostics.RuleID
			var what string
			switch sym.Kind {
			case scope.SymInput:
				rule, what = diagnostics.UnusedInput, "input"
			case scope.SymDecl:
				rule, what = diagnostics.UnusedDeclaration, "declaration"
			case scope.SymCallAlias:
				rule, what = diagnostics.UnusedCall, "call"
			default:
				continue
			}
			c.warn(rule, c.span(sym.Decl), "%s %q is never used", what, sym.Name)
		}
	}
}
