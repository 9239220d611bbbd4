package document

import (
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/utils"
)

// importedNamespace is what the import pass resolves each `import`
// statement to, before the struct pass merges its struct table in.
type importedNamespace struct {
	namespace string
	canonical string
	importee  Importee // nil if unresolved/failed
	node      *cst.Import
}

// runImportPass implements spec §4.6 step 1: derive each import's
// namespace, reject duplicates and invalid namespaces, and record which
// importee (if any) backs each namespace for the struct pass to merge.
func (c *analyzeCtx) runImportPass() {
	c.namespaces = map[string]*importedNamespace{}

	for i := range c.doc.Imports {
		imp := c.doc.Imports[i]
		canonical, derivedNS := utils.NormalizeImportURI(imp.URI)

		ns := derivedNS
		if imp.Alias != "" {
			ns = imp.Alias
		} else if !utils.IsValidIdentifier(derivedNS) {
			c.warn(diagnostics.InvalidImportNamespace, c.span(imp),
				"import %q does not derive a valid namespace (%q); add an explicit `as` alias", imp.URI, derivedNS)
			continue
		}

		if prior, ok := c.namespaces[ns]; ok {
			d := c.diag(diagnostics.ConflictingImport, c.span(imp), "namespace %q is already used by another import", ns)
			d = d.WithSecondary(c.span(prior.node), "first imported here")
			c.sink.Add(d)
			continue
		}

		entry := &importedNamespace{namespace: ns, canonical: canonical, node: imp}
		if importee, ok := c.imports[canonical]; ok {
			entry.importee = importee
		}
		c.namespaces[ns] = entry
		c.a.ImportNamespaces[ns] = canonical
	}
}
