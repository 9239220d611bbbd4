package document

import (
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/eval"
	"github.com/wdlsema/wdlsema/internal/types"
	"github.com/wdlsema/wdlsema/internal/utils"
)

// runStructPass implements spec §4.6 step 2: merge imported structs under
// their (possibly `alias X as Y`-renamed) names, then register and
// resolve this document's own struct definitions, erroring on any
// struct-vs-import or struct-vs-struct name conflict.
func (c *analyzeCtx) runStructPass() {
	structOrigin := map[string]cst.Node{}

	for _, imp := range c.doc.Imports {
		entry, ok := c.namespaces[derivedOrAliasNamespace(imp)]
		if !ok || entry.importee == nil {
			continue
		}
		rename := map[string]string{}
		for _, r := range imp.Renames {
			rename[r.Original] = r.Renamed
		}
		for name, st := range entry.importee.StructTable() {
			target := name
			if renamed, ok := rename[name]; ok {
				target = renamed
			}
			if prior, ok := structOrigin[target]; ok {
				d := c.diag(diagnostics.DuplicateStruct, c.span(imp), "struct %q conflicts with an already-imported or declared struct", target)
				c.sink.Add(d.WithSecondary(c.span(prior), "first defined here"))
				continue
			}
			c.a.Structs[target] = types.Struct{Name: target, Members: st.Members}
			structOrigin[target] = imp
			c.structNS[target] = entry.namespace
		}
	}

	// Phase A: register every local struct name up front (as an empty
	// placeholder) so member type expressions can forward-reference a
	// struct declared later in the same document.
	var toResolve []*cst.StructDef
	for i := range c.doc.Structs {
		sd := c.doc.Structs[i]
		if prior, ok := structOrigin[sd.Name]; ok {
			d := c.diag(diagnostics.DuplicateStruct, c.span(sd), "struct %q is already declared or imported", sd.Name)
			c.sink.Add(d.WithSecondary(c.span(prior), "first defined here"))
			continue
		}
		structOrigin[sd.Name] = sd
		c.a.Structs[sd.Name] = types.Struct{Name: sd.Name}
		toResolve = append(toResolve, sd)
	}

	// Phase B: resolve member types on demand, so a member referencing a
	// struct declared later in the document captures the fully resolved
	// struct value, not the phase-A placeholder. A building set breaks
	// self-reference (WDL forbids recursive structs; the member falls back
	// to the placeholder rather than recursing forever).
	pending := map[string]*cst.StructDef{}
	for _, sd := range toResolve {
		pending[sd.Name] = sd
	}
	building := map[string]bool{}
	var resolveLocal func(sd *cst.StructDef) types.Struct
	lookup := func(name string) (types.Struct, bool) {
		if sd, ok := pending[name]; ok && !building[name] {
			return resolveLocal(sd), true
		}
		return c.structLookup(name)
	}
	resolveLocal = func(sd *cst.StructDef) types.Struct {
		building[sd.Name] = true
		members := make([]types.Member, len(sd.Members))
		for i, m := range sd.Members {
			t, err := eval.ParseTypeExpr(m.Type.Text, lookup)
			if err != nil {
				c.warn(diagnostics.UnknownName, c.span(m.Type), "%s", err.Error())
				t = types.Any
			}
			members[i] = types.Member{Name: m.Name, Type: t}
		}
		delete(building, sd.Name)
		delete(pending, sd.Name)
		st := types.Struct{Name: sd.Name, Members: members}
		c.a.Structs[sd.Name] = st
		return st
	}
	for _, sd := range toResolve {
		if _, ok := pending[sd.Name]; ok {
			resolveLocal(sd)
		}
	}
}

// derivedOrAliasNamespace recomputes the namespace key runImportPass used
// for imp, so the struct pass can look the resolved entry back up without
// the import pass needing to retain a parallel ordered slice.
func derivedOrAliasNamespace(imp *cst.Import) string {
	if imp.Alias != "" {
		return imp.Alias
	}
	_, ns := utils.NormalizeImportURI(imp.URI)
	return ns
}
