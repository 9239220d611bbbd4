package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/stdlib"
)

var testCatalog = stdlib.NewCatalog()

func testOptions() Options {
	return Options{Catalog: testCatalog}
}

// docBuilder hands every node a unique, increasing span so diagnostics
// sort in construction order and secondary labels are distinguishable.
type docBuilder struct {
	offset int
}

func (b *docBuilder) span() cst.Span {
	b.offset += 10
	return cst.NewSpan(b.offset, b.offset+5)
}

func (b *docBuilder) stamp(n cst.Node) cst.Span {
	sp := b.span()
	cst.SetSpan(n, sp)
	return sp
}

func (b *docBuilder) imp(uri, alias string) *cst.Import {
	n := &cst.Import{URI: uri, Alias: alias}
	b.stamp(n)
	return n
}

func (b *docBuilder) decl(typ, name string, value cst.Expr) cst.Decl {
	d := cst.Decl{Name: name, Value: value}
	b.stamp(&d)
	d.Type = cst.TypeExpr{Text: typ}
	cst.SetSpan(&d.Type, d.Span())
	return d
}

func (b *docBuilder) ident(name string) cst.Expr {
	n := &cst.Ident{Name: name}
	b.stamp(n)
	return n
}

func (b *docBuilder) str(text string) cst.Expr {
	part := cst.CommandPart{Literal: text}
	b.stamp(&part)
	n := &cst.StringLit{Parts: []cst.CommandPart{part}}
	b.stamp(n)
	return n
}

func (b *docBuilder) intLit(v int64) cst.Expr {
	n := &cst.IntLit{Value: v}
	b.stamp(n)
	return n
}

func (b *docBuilder) emptyArray() cst.Expr {
	n := &cst.ArrayLit{}
	b.stamp(n)
	return n
}

func (b *docBuilder) call(target, alias string, inputs ...cst.CallInput) *cst.Call {
	n := &cst.Call{Target: target, Alias: alias, Inputs: inputs}
	b.stamp(n)
	return n
}

func (b *docBuilder) callInput(name string, value cst.Expr) cst.CallInput {
	ci := cst.CallInput{Name: name, Value: value}
	b.stamp(&ci)
	return ci
}

func (b *docBuilder) placeholderPart(expr cst.Expr) cst.CommandPart {
	p := &cst.Placeholder{Expr: expr}
	b.stamp(p)
	part := cst.CommandPart{IsPlaceholder: true, Placeholder: p}
	cst.SetSpan(&part, p.Span())
	return part
}

// task builds a minimal task whose command references every input, so the
// unused-input scan stays quiet unless a test wants otherwise.
func (b *docBuilder) task(name string, inputs []cst.Decl, outputs []cst.Decl) *cst.Task {
	t := &cst.Task{Name: name, Inputs: inputs, Outputs: outputs}
	b.stamp(t)
	var parts []cst.CommandPart
	for _, in := range inputs {
		parts = append(parts, b.placeholderPart(b.ident(in.Name)))
	}
	t.Command = cst.CommandSection{Parts: parts}
	return t
}

func (b *docBuilder) doc(uri, version string) *cst.Document {
	d := &cst.Document{URI: uri, Version: version}
	b.stamp(d)
	return d
}

func rulesOf(a *Analysis, rule diagnostics.RuleID) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, d := range a.Diagnostics() {
		if d.Rule == rule {
			out = append(out, d)
		}
	}
	return out
}

func TestMissingVersionSkipsBody(t *testing.T) {
	b := &docBuilder{}
	doc := b.doc("a.wdl", "")
	doc.Tasks = []*cst.Task{b.task("t", nil, nil)}

	a := Analyze(doc, []byte("x"), nil, testOptions())
	if len(rulesOf(a, diagnostics.MissingVersion)) != 1 {
		t.Fatalf("diagnostics = %v", a.Diagnostics())
	}
	if len(a.Tasks) != 0 {
		t.Error("body/signature passes must be skipped without a version")
	}
	if a.RootScope == nil {
		t.Error("the empty scope must still be exposed")
	}
}

func TestUnknownVersionFallback(t *testing.T) {
	b := &docBuilder{}
	doc := b.doc("a.wdl", "9.9")
	a := Analyze(doc, []byte("x"), nil, testOptions())
	if len(rulesOf(a, diagnostics.UnknownVersion)) != 1 {
		t.Fatalf("diagnostics = %v", a.Diagnostics())
	}

	opts := testOptions()
	opts.FallbackVersion = "1.2"
	a = Analyze(doc, []byte("x"), nil, opts)
	if len(a.Diagnostics()) != 0 {
		t.Errorf("fallback version should suppress the error, got %v", a.Diagnostics())
	}
	if a.Version != "1.2" {
		t.Errorf("Version = %q, want 1.2", a.Version)
	}
}

func TestConflictingImports(t *testing.T) {
	// Mirrors the import-normalization scenario: namespaces derive from
	// the percent-decoded basename with query/fragment stripped.
	b := &docBuilder{}
	doc := b.doc("main.wdl", "1.1")
	doc.Imports = []*cst.Import{
		b.imp("foo.wdl", ""),
		b.imp("foo", ""),               // same namespace as foo.wdl
		b.imp("bad-file-name.wdl", ""), // not a valid identifier
		b.imp("qux/baz.wdl", ""),
		b.imp("Baz.wdl", "baz"), // alias collides with derived baz
		b.imp("../x/qux/baz.wdl", ""),
		b.imp("md5sum.wdl", ""),
		b.imp("https://example.com/wf/md5sum.wdl", ""),
		b.imp("https://example.com/wf/md5sum.wdl#frag", ""),
		b.imp("https://example.com/wf/star.wdl?query=foo", ""),
		b.imp("star.wdl", ""),
		b.imp("https://example.com/wf/%73tar.wdl", ""), // %73 -> s
	}

	a := Analyze(doc, []byte("main"), nil, testOptions())
	if got := len(rulesOf(a, diagnostics.ConflictingImport)); got != 7 {
		t.Errorf("ConflictingImport count = %d, want 7: %v", got, a.Diagnostics())
	}
	if got := len(rulesOf(a, diagnostics.InvalidImportNamespace)); got != 1 {
		t.Errorf("InvalidImportNamespace count = %d, want 1", got)
	}
	for _, d := range rulesOf(a, diagnostics.ConflictingImport) {
		if len(d.Secondary) != 1 {
			t.Errorf("conflict diagnostic must point at the first import: %v", d)
		}
	}
}

func TestStructPassMergesAndConflicts(t *testing.T) {
	b := &docBuilder{}

	lib := b.doc("lib.wdl", "1.1")
	lib.Structs = []*cst.StructDef{
		{Name: "Sample", Members: []cst.Decl{b.decl("String", "id", nil)}},
	}
	b.stamp(lib.Structs[0])
	libA := Analyze(lib, []byte("lib"), nil, testOptions())
	if len(libA.Diagnostics()) != 0 {
		t.Fatalf("lib diagnostics: %v", libA.Diagnostics())
	}

	main := b.doc("main.wdl", "1.1")
	imp := b.imp("lib.wdl", "")
	imp.Renames = []cst.StructAlias{{Original: "Sample", Renamed: "LibSample"}}
	main.Imports = []*cst.Import{imp}
	main.Structs = []*cst.StructDef{
		{Name: "Run", Members: []cst.Decl{
			b.decl("LibSample", "sample", nil),
			b.decl("Array[Run2]", "next", nil),
		}},
		{Name: "Run2", Members: []cst.Decl{b.decl("Int", "n", nil)}},
		{Name: "Run2", Members: []cst.Decl{b.decl("Int", "n", nil)}}, // duplicate
	}
	for _, sd := range main.Structs {
		b.stamp(sd)
	}

	a := Analyze(main, []byte("main"), map[string]Importee{"lib.wdl": libA}, testOptions())
	if got := len(rulesOf(a, diagnostics.DuplicateStruct)); got != 1 {
		t.Errorf("DuplicateStruct count = %d: %v", got, a.Diagnostics())
	}
	run, ok := a.Structs["Run"]
	if !ok {
		t.Fatal("struct Run missing")
	}
	if run.Members[0].Type.String() != "LibSample" {
		t.Errorf("imported aliased member type = %s", run.Members[0].Type)
	}
	if run.Members[1].Type.String() != "Array[Run2]" {
		t.Errorf("forward-referenced member type = %s", run.Members[1].Type)
	}
}

func libWithTasks(t *testing.T, b *docBuilder, names ...string) *Analysis {
	t.Helper()
	lib := b.doc("lib.wdl", "1.1")
	for _, name := range names {
		lib.Tasks = append(lib.Tasks, b.task(name, nil, nil))
	}
	a := Analyze(lib, []byte("lib"), nil, testOptions())
	for _, d := range a.Diagnostics() {
		if d.Severity == diagnostics.Error {
			t.Fatalf("lib error: %v", d)
		}
	}
	return a
}

func TestConflictingCallNames(t *testing.T) {
	b := &docBuilder{}
	libA := libWithTasks(t, b, "bar", "baz")

	main := b.doc("main.wdl", "1.1")
	main.Imports = []*cst.Import{b.imp("lib.wdl", "")}
	main.Tasks = []*cst.Task{
		b.task("foo", nil, nil),
		b.task("ok", nil, nil),
	}

	declMyInt := b.decl("Int", "my_int", b.intLit(0))
	callMyInt := b.call("my_int", "")
	callFoo1 := b.call("foo", "")
	callFoo2 := b.call("foo", "")
	callBar1 := b.call("foo", "bar")
	callBar2 := b.call("foo", "bar")
	callLibBar := b.call("lib.bar", "")
	callLibBaz := b.call("lib.baz", "")
	callFooAsBaz := b.call("foo", "baz")
	scatterFoo := b.call("foo", "")
	scatterX := b.call("x", "")
	scatterOk := b.call("ok", "")
	scatter := &cst.Scatter{Variable: "x", Expr: b.emptyArray(), Body: []cst.WorkflowElement{scatterFoo, scatterX, scatterOk}}
	b.stamp(scatter)
	outerX := b.call("x", "")
	outerOk := b.call("ok", "")

	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{
		&declMyInt, callMyInt,
		callFoo1, callFoo2,
		callBar1, callBar2,
		callLibBar,
		callLibBaz, callFooAsBaz,
		scatter,
		outerX, outerOk,
	}}
	b.stamp(wf)
	main.Workflow = wf

	a := Analyze(main, []byte("main"), map[string]Importee{"lib.wdl": libA}, testOptions())
	conflicts := rulesOf(a, diagnostics.ConflictingCallName)
	// my_int, second foo, second bar, lib.bar, foo-as-baz, in-scatter foo,
	// in-scatter x, outer x, outer ok.
	if len(conflicts) != 9 {
		t.Fatalf("ConflictingCallName count = %d, want 9: %v", len(conflicts), conflicts)
	}
	for _, d := range conflicts {
		if len(d.Secondary) != 1 {
			t.Errorf("conflict must carry a secondary label: %v", d)
		}
	}

	// Both the inner and the outer `call x` name the in-scatter call as
	// the first occupant: the inner one points at the scatter variable,
	// the outer one at the in-scatter call statement.
	var innerX, outX diagnostics.Diagnostic
	for _, d := range conflicts {
		switch d.Primary.Start {
		case scatterX.Span().Start:
			innerX = d
		case outerX.Span().Start:
			outX = d
		}
	}
	if innerX.Secondary[0].Span.Start != scatter.Span().Start {
		t.Errorf("inner call x should point at the scatter variable, got %v", innerX.Secondary[0].Span)
	}
	if outX.Secondary[0].Span.Start != scatterX.Span().Start {
		t.Errorf("outer call x should point at the in-scatter call, got %v", outX.Secondary[0].Span)
	}
	if len(rulesOf(a, diagnostics.UnknownName)) != 0 {
		t.Errorf("unexpected UnknownName: %v", rulesOf(a, diagnostics.UnknownName))
	}
}

func TestMissingRequiredInput(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	taskT := b.task("t", []cst.Decl{
		b.decl("String", "required", nil),
		b.decl("String?", "opt", nil),
		b.decl("String", "def", b.str("d")),
	}, nil)
	main.Tasks = []*cst.Task{taskT}

	call1 := b.call("t", "")
	call2 := b.call("t", "t2", b.callInput("required", b.str("r")))
	call3 := b.call("t", "t3",
		b.callInput("required", b.str("r")),
		b.callInput("opt", b.str("o")),
		b.callInput("def", b.str("o")))
	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{call1, call2, call3}}
	b.stamp(wf)
	main.Workflow = wf

	a := Analyze(main, []byte("main"), nil, testOptions())
	missing := rulesOf(a, diagnostics.MissingRequiredInput)
	if len(missing) != 1 {
		t.Fatalf("MissingRequiredInput count = %d, want 1: %v", len(missing), a.Diagnostics())
	}
	if missing[0].Primary.Start != call1.Span().Start {
		t.Errorf("diagnostic should anchor on the bare call, got %v", missing[0].Primary)
	}
	if len(rulesOf(a, diagnostics.TypeMismatch)) != 0 {
		t.Errorf("unexpected TypeMismatch: %v", a.Diagnostics())
	}
}

func TestCallInputTypeMismatch(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	main.Tasks = []*cst.Task{b.task("t", []cst.Decl{b.decl("Int", "n", nil)}, nil)}
	call := b.call("t", "", b.callInput("n", b.str("nope")), b.callInput("ghost", b.intLit(1)))
	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{call}}
	b.stamp(wf)
	main.Workflow = wf

	a := Analyze(main, []byte("main"), nil, testOptions())
	if len(rulesOf(a, diagnostics.TypeMismatch)) != 1 {
		t.Errorf("TypeMismatch count = %d: %v", len(rulesOf(a, diagnostics.TypeMismatch)), a.Diagnostics())
	}
	if len(rulesOf(a, diagnostics.UnknownName)) != 1 {
		t.Errorf("binding an undeclared input must report UnknownName: %v", a.Diagnostics())
	}
}

func TestScatterAndConditionalWrapping(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	taskT := b.task("t",
		[]cst.Decl{b.decl("Int", "n", nil)},
		[]cst.Decl{b.decl("File", "out", b.str("o"))})
	main.Tasks = []*cst.Task{taskT}

	scatterCall := b.call("t", "", b.callInput("n", b.ident("shard")))
	scatter := &cst.Scatter{Variable: "shard", Expr: b.ident("shards"), Body: []cst.WorkflowElement{scatterCall}}
	b.stamp(scatter)

	condCall := b.call("t", "maybe_t", b.callInput("n", b.intLit(1)))
	cond := &cst.Conditional{Expr: b.ident("go"), Body: []cst.WorkflowElement{condCall}}
	b.stamp(cond)

	wf := &cst.Workflow{
		Name:   "w",
		Inputs: []cst.Decl{b.decl("Array[Int]", "shards", nil), b.decl("Boolean", "go", nil)},
		Body:   []cst.WorkflowElement{scatter, cond},
		Outputs: []cst.Decl{
			b.decl("Array[File]", "all_out", &cst.MemberExpr{Target: b.ident("t"), Field: "out"}),
			b.decl("File?", "maybe_out", &cst.MemberExpr{Target: b.ident("maybe_t"), Field: "out"}),
		},
	}
	b.stamp(wf)
	for i := range wf.Outputs {
		cst.SetSpan(wf.Outputs[i].Value.(*cst.MemberExpr), b.span())
	}
	main.Workflow = wf

	a := Analyze(main, []byte("main"), nil, testOptions())
	for _, d := range a.Diagnostics() {
		if d.Severity == diagnostics.Error {
			t.Errorf("unexpected error: %v", d)
		}
	}
	sym, ok := a.WorkflowScope.ResolveLocal("t")
	if !ok {
		t.Fatal("lifted call t not visible at workflow level")
	}
	if got := sym.Type.String(); got != "call t { out: Array[File] }" {
		t.Errorf("scattered call output = %s", got)
	}
	sym, ok = a.WorkflowScope.ResolveLocal("maybe_t")
	if !ok {
		t.Fatal("lifted call maybe_t not visible at workflow level")
	}
	if got := sym.Type.String(); got != "call maybe_t { out: File? }" {
		t.Errorf("conditional call output = %s", got)
	}
}

func TestScatterRequiresArray(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	scatter := &cst.Scatter{Variable: "x", Expr: b.intLit(3)}
	b.stamp(scatter)
	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{scatter}}
	b.stamp(wf)
	main.Workflow = wf

	a := Analyze(main, []byte("main"), nil, testOptions())
	if len(rulesOf(a, diagnostics.ScatterNotArray)) != 1 {
		t.Errorf("diagnostics = %v", a.Diagnostics())
	}
}

func TestConditionRequiresBoolean(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	cond := &cst.Conditional{Expr: b.intLit(3)}
	b.stamp(cond)
	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{cond}}
	b.stamp(wf)
	main.Workflow = wf

	a := Analyze(main, []byte("main"), nil, testOptions())
	if len(rulesOf(a, diagnostics.ConditionNotBoolean)) != 1 {
		t.Errorf("diagnostics = %v", a.Diagnostics())
	}
}

func TestOutputReferencesScatterVar(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	scatter := &cst.Scatter{Variable: "shard", Expr: b.emptyArray()}
	b.stamp(scatter)
	wf := &cst.Workflow{
		Name:    "w",
		Body:    []cst.WorkflowElement{scatter},
		Outputs: []cst.Decl{b.decl("Int", "leak", b.ident("shard"))},
	}
	b.stamp(wf)
	main.Workflow = wf

	a := Analyze(main, []byte("main"), nil, testOptions())
	if len(rulesOf(a, diagnostics.OutputReferencesScatterVar)) != 1 {
		t.Errorf("diagnostics = %v", a.Diagnostics())
	}
	if len(rulesOf(a, diagnostics.UnknownName)) != 0 {
		t.Errorf("scatter-variable leak must not double-report UnknownName: %v", a.Diagnostics())
	}
}

func TestUnusedWarnings(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	main.Imports = []*cst.Import{b.imp("lib.wdl", "")}

	task := &cst.Task{
		Name:   "t",
		Inputs: []cst.Decl{b.decl("String", "unused_in", nil)},
		Decls:  []cst.Decl{b.decl("Int", "unused_decl", b.intLit(1))},
	}
	b.stamp(task)
	main.Tasks = []*cst.Task{task}

	unusedCall := b.call("t", "", b.callInput("unused_in", b.str("x")))
	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{unusedCall}}
	b.stamp(wf)
	main.Workflow = wf

	libA := libWithTasks(t, b, "ignored")
	a := Analyze(main, []byte("main"), map[string]Importee{"lib.wdl": libA}, testOptions())

	for _, want := range []diagnostics.RuleID{
		diagnostics.UnusedImport,
		diagnostics.UnusedDeclaration,
		diagnostics.UnusedCall,
	} {
		if len(rulesOf(a, want)) != 1 {
			t.Errorf("%s count = %d, want 1: %v", want, len(rulesOf(a, want)), a.Diagnostics())
		}
	}
	// The input is bound by the call, but never referenced inside the task
	// body itself.
	if len(rulesOf(a, diagnostics.UnusedInput)) != 1 {
		t.Errorf("UnusedInput count = %d: %v", len(rulesOf(a, diagnostics.UnusedInput)), a.Diagnostics())
	}
}

func TestStrictModePromotesWarnings(t *testing.T) {
	b := &docBuilder{}
	main := b.doc("main.wdl", "1.1")
	main.Imports = []*cst.Import{b.imp("lib.wdl", "")}
	libA := libWithTasks(t, b, "ignored")

	opts := testOptions()
	opts.StrictMode = true
	a := Analyze(main, []byte("main"), map[string]Importee{"lib.wdl": libA}, opts)
	unused := rulesOf(a, diagnostics.UnusedImport)
	if len(unused) != 1 || unused[0].Severity != diagnostics.Error {
		t.Errorf("strict mode should promote UnusedImport to error: %v", unused)
	}
}

func TestDeterministicReanalysis(t *testing.T) {
	build := func() (*cst.Document, map[string]Importee) {
		b := &docBuilder{}
		libA := libWithTasks(t, b, "bar")
		main := b.doc("main.wdl", "1.1")
		main.Imports = []*cst.Import{b.imp("lib.wdl", "")}
		main.Tasks = []*cst.Task{b.task("foo", nil, nil)}
		wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{
			b.call("foo", ""),
			b.call("foo", ""),
			b.call("lib.bar", ""),
			b.call("missing_task", ""),
		}}
		b.stamp(wf)
		main.Workflow = wf
		return main, map[string]Importee{"lib.wdl": libA}
	}

	docA, importsA := build()
	docB, importsB := build()
	first := Analyze(docA, []byte("main"), importsA, testOptions()).Diagnostics()
	second := Analyze(docB, []byte("main"), importsB, testOptions()).Diagnostics()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-analysis diverged (-first +second):\n%s", diff)
	}
}
