// Command wdlsema analyzes a set of WDL documents and prints their
// diagnostics. Inputs are pre-parsed document fixtures (JSON-encoded CSTs,
// see fixture.go): lexing and parsing are external collaborators of the
// core, so the CLI stands a JSON codec in for them and exercises the full
// pipeline behind it — import graph, type checking, name resolution.
//
//	wdlsema analyze [-json] [-strict] [-config wdlsema.yaml] doc.wdl...
//
// The exit code is 1 when any document produced an error-severity
// diagnostic, 2 on usage or I/O failure.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/wdlsema/wdlsema/internal/config"
	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/pkg/wdlsema"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 || args[0] != "analyze" {
		fmt.Fprintln(os.Stderr, "usage: wdlsema analyze [-json] [-strict] [-config path] <document>...")
		return 2
	}

	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	strict := fs.Bool("strict", false, "promote unused-symbol warnings to errors")
	configPath := fs.String("config", "", "path to wdlsema.yaml (default: search parent directories)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "wdlsema: no documents given")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wdlsema:", err)
		return 2
	}
	if *strict {
		cfg.StrictMode = true
	}

	var fetchedBytes atomic.Int64
	analyzer, err := wdlsema.New(wdlsema.Options{
		Fetch: func(_ context.Context, uri string) ([]byte, string, error) {
			data, err := os.ReadFile(uri)
			if err != nil {
				return nil, "", err
			}
			fetchedBytes.Add(int64(len(data)))
			sum := sha256.Sum256(data)
			return data, hex.EncodeToString(sum[:]), nil
		},
		Parse: func(uri string, source []byte) (*cst.Document, error) {
			return decodeFixture(uri, source)
		},
		Config: cfg,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "wdlsema:", err)
		return 2
	}
	defer analyzer.Close()

	var roots []string
	for _, p := range paths {
		clean := filepath.ToSlash(filepath.Clean(p))
		if excluded(cfg.Excludes, clean) {
			continue
		}
		roots = append(roots, clean)
	}
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "wdlsema: every given document is excluded by configuration")
		return 2
	}
	analyzer.AddDocuments(roots...)

	started := time.Now()
	snapshot, err := analyzer.WaitUntilQuiescent(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "wdlsema:", err)
		return 2
	}

	if *jsonOut {
		return emitJSON(snapshot)
	}
	return emitHuman(snapshot, started, int(fetchedBytes.Load()))
}

func excluded(globs []string, path string) bool {
	for _, glob := range globs {
		if ok, err := filepath.Match(glob, path); err == nil && ok {
			return true
		}
	}
	return false
}

func loadConfig(explicit string) (*config.Config, error) {
	path := explicit
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return &config.Config{}, nil
		}
		path, err = config.FindConfig(wd)
		if err != nil || path == "" {
			return &config.Config{}, nil
		}
	}
	return config.LoadConfig(path)
}

func emitHuman(snapshot *wdlsema.Snapshot, started time.Time, fetchedBytes int) int {
	renderer := diagnostics.NewRenderer(os.Stdout)
	var errs, warns int
	for _, uri := range snapshot.URIs() {
		view, _ := snapshot.Document(uri)
		e, w := renderer.RenderAll(view.Diagnostics())
		errs += e
		warns += w
	}

	summary := fmt.Sprintf("analyzed %d document(s) (%s) in %s: %s",
		len(snapshot.URIs()),
		humanize.Bytes(uint64(fetchedBytes)),
		time.Since(started).Round(time.Millisecond),
		diagnostics.Summary(errs, warns))
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Println("\x1b[1m" + summary + "\x1b[0m")
	} else {
		fmt.Println(summary)
	}

	if errs > 0 {
		return 1
	}
	return 0
}

func emitJSON(snapshot *wdlsema.Snapshot) int {
	type docReport struct {
		URI         string                    `json:"uri"`
		Diagnostics []diagnostics.Diagnostic  `json:"diagnostics"`
	}
	var report []docReport
	failed := false
	for _, uri := range snapshot.URIs() {
		view, _ := snapshot.Document(uri)
		diags := view.Diagnostics()
		for _, d := range diags {
			if d.Severity == diagnostics.Error {
				failed = true
			}
		}
		report = append(report, docReport{URI: uri, Diagnostics: diags})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(os.Stderr, "wdlsema:", err)
		return 2
	}
	if failed {
		return 1
	}
	return 0
}
