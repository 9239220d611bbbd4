package wdlsema

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wdlsema/wdlsema/internal/config"
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
)

// testHost is an in-memory fetcher/parser pair: sources are tags, trees
// are registered per tag so content changes swap parse results.
type testHost struct {
	sources map[string][]byte
	trees   map[string]*cst.Document
}

func newHost() *testHost {
	return &testHost{sources: map[string][]byte{}, trees: map[string]*cst.Document{}}
}

func (h *testHost) options() Options {
	return Options{
		Fetch: func(_ context.Context, uri string) ([]byte, string, error) {
			src, ok := h.sources[uri]
			if !ok {
				return nil, "", errors.New("not found: " + uri)
			}
			return src, "", nil
		},
		Parse: func(uri string, source []byte) (*cst.Document, error) {
			tree, ok := h.trees[string(source)]
			if !ok {
				return nil, errors.New("bad source")
			}
			copied := *tree
			copied.URI = uri
			return &copied, nil
		},
	}
}

// registerPair builds a library document with one task carrying a required
// input and one output, plus a main document calling it.
func (h *testHost) registerPair() {
	lib := &cst.Document{Version: "1.1"}
	task := &cst.Task{
		Name:   "align",
		Inputs: []cst.Decl{{Name: "sample", Type: cst.TypeExpr{Text: "String"}}},
		Outputs: []cst.Decl{{
			Name: "bam",
			Type: cst.TypeExpr{Text: "File"},
		}},
	}
	cst.SetSpan(task, cst.NewSpan(10, 40))
	phExpr := &cst.Ident{Name: "sample"}
	cst.SetSpan(phExpr, cst.NewSpan(20, 26))
	ph := &cst.Placeholder{Expr: phExpr}
	cst.SetSpan(ph, cst.NewSpan(19, 27))
	task.Command = cst.CommandSection{Parts: []cst.CommandPart{{IsPlaceholder: true, Placeholder: ph}}}
	lib.Tasks = []*cst.Task{task}
	h.sources["lib.wdl"] = []byte("lib-v1")
	h.trees["lib-v1"] = lib

	main := &cst.Document{Version: "1.1"}
	imp := &cst.Import{URI: "lib.wdl"}
	cst.SetSpan(imp, cst.NewSpan(0, 8))
	main.Imports = []*cst.Import{imp}
	call := &cst.Call{Target: "lib.align"}
	cst.SetSpan(call, cst.NewSpan(30, 45))
	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{call}}
	cst.SetSpan(wf, cst.NewSpan(25, 60))
	main.Workflow = wf
	h.sources["main.wdl"] = []byte("main-v1")
	h.trees["main-v1"] = main
}

func TestEndToEnd(t *testing.T) {
	h := newHost()
	h.registerPair()

	a, err := New(h.options())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.ID() == "" {
		t.Error("analyzer must carry an instance id")
	}

	a.AddDocuments("main.wdl")
	snap, err := a.WaitUntilQuiescent(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	view, ok := snap.Document("main.wdl")
	if !ok {
		t.Fatal("main.wdl missing from snapshot")
	}
	// The bare call omits the required input.
	var missing int
	for _, d := range view.Diagnostics() {
		if d.Rule == diagnostics.MissingRequiredInput {
			missing++
		}
	}
	if missing != 1 {
		t.Errorf("MissingRequiredInput count = %d: %v", missing, view.Diagnostics())
	}
	if !snap.HasErrors() {
		t.Error("snapshot should report errors")
	}
	if _, ok := snap.Document("lib.wdl"); !ok {
		t.Error("imported documents belong to the snapshot too")
	}
}

func TestRequiredOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New without Fetch/Parse must fail")
	}
}

func TestNotifyChangeReanalyzes(t *testing.T) {
	h := newHost()
	h.registerPair()

	a, err := New(h.options())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.AddDocuments("main.wdl")
	if _, err := a.WaitUntilQuiescent(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Bind the required input via a changed main document.
	main2 := &cst.Document{Version: "1.1"}
	imp := &cst.Import{URI: "lib.wdl"}
	cst.SetSpan(imp, cst.NewSpan(0, 8))
	main2.Imports = []*cst.Import{imp}
	val := &cst.StringLit{Parts: []cst.CommandPart{{Literal: "s1"}}}
	cst.SetSpan(val, cst.NewSpan(50, 54))
	in := cst.CallInput{Name: "sample", Value: val}
	cst.SetSpan(&in, cst.NewSpan(46, 55))
	call := &cst.Call{Target: "lib.align", Inputs: []cst.CallInput{in}}
	cst.SetSpan(call, cst.NewSpan(30, 56))
	wf := &cst.Workflow{Name: "w", Body: []cst.WorkflowElement{call}}
	cst.SetSpan(wf, cst.NewSpan(25, 60))
	main2.Workflow = wf
	h.trees["main-v2"] = main2

	a.NotifyChange("main.wdl", []byte("main-v2"))
	snap, err := a.WaitUntilQuiescent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	view, _ := snap.Document("main.wdl")
	for _, d := range view.Diagnostics() {
		if d.Rule == diagnostics.MissingRequiredInput {
			t.Errorf("stale diagnostic survived the change: %v", d)
		}
	}
}

func TestNotifyIncrementalChange(t *testing.T) {
	h := newHost()
	h.registerPair()

	opts := h.options()
	opts.ApplyEdits = func(uri string, previous []byte, edits any) ([]byte, error) {
		return append(bytes.TrimSuffix(previous, []byte("v1")), []byte(edits.(string))...), nil
	}
	a, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	// Unknown document: no previous revision to edit.
	if err := a.NotifyIncrementalChange("main.wdl", "v2"); err == nil {
		t.Error("incremental change before the first fetch must fail")
	}

	a.AddDocuments("main.wdl")
	if _, err := a.WaitUntilQuiescent(context.Background()); err != nil {
		t.Fatal(err)
	}

	h.trees["main-v2"] = h.trees["main-v1"]
	if err := a.NotifyIncrementalChange("main.wdl", "v2"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.WaitUntilQuiescent(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDocumentViewQueries(t *testing.T) {
	h := newHost()
	h.registerPair()

	a, err := New(h.options())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.AddDocuments("main.wdl")
	if _, err := a.WaitUntilQuiescent(context.Background()); err != nil {
		t.Fatal(err)
	}

	view, ok := a.Document("lib.wdl")
	if !ok {
		t.Fatal("lib.wdl view missing")
	}
	if view.Version() != "1.1" {
		t.Errorf("Version = %q", view.Version())
	}

	var kinds []SymbolKind
	var names []string
	for _, sym := range view.Symbols() {
		kinds = append(kinds, sym.Kind)
		names = append(names, sym.Name)
	}
	wantNames := []string{"align", "sample", "bam"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("symbol names (-want +got):\n%s", diff)
	}
	wantKinds := []SymbolKind{SymbolTask, SymbolInput, SymbolOutput}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Errorf("symbol kinds (-want +got):\n%s", diff)
	}

	// The command placeholder references `sample` at offset 20.
	typ, ok := view.TypeAt(21)
	if !ok || typ != "String" {
		t.Errorf("TypeAt(21) = %q, %v, want String", typ, ok)
	}
	if _, ok := view.TypeAt(5000); ok {
		t.Error("TypeAt far past the document must miss")
	}
}

func TestCacheIntegration(t *testing.T) {
	h := newHost()
	lib := &cst.Document{Version: "1.1"}
	task := &cst.Task{Name: "t"}
	cst.SetSpan(task, cst.NewSpan(0, 5))
	lib.Tasks = []*cst.Task{task}
	h.sources["solo.wdl"] = []byte("solo-v1")
	h.trees["solo-v1"] = lib

	cfg := &config.Config{Cache: config.CacheConfig{Enabled: true, Path: t.TempDir() + "/c.db"}}

	opts := h.options()
	opts.Config = cfg
	a, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	a.AddDocuments("solo.wdl")
	if _, err := a.WaitUntilQuiescent(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.Close()

	// A second analyzer over the same cache restores the document without
	// parsing it.
	opts2 := h.options()
	opts2.Config = cfg
	opts2.Parse = func(uri string, source []byte) (*cst.Document, error) {
		t.Error("unchanged import-free document should come from the cache")
		return nil, errors.New("unreachable")
	}
	b, err := New(opts2)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	b.AddDocuments("solo.wdl")
	snap, err := b.WaitUntilQuiescent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Document("solo.wdl"); !ok {
		t.Error("cached document missing from snapshot")
	}
}
