// Package wdlsema is the embeddable public surface of the analyzer
// (spec §4.8): construct an Analyzer with a fetcher and a parser, feed it
// root documents and change notifications, wait for quiescence, and query
// per-document results. Every method is safe for concurrent callers.
package wdlsema

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/wdlsema/wdlsema/internal/cache"
	"github.com/wdlsema/wdlsema/internal/config"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/document"
	"github.com/wdlsema/wdlsema/internal/graph"
	"github.com/wdlsema/wdlsema/internal/stdlib"
)

// FetchFunc is the host-supplied "fetch source for URI" operation; apart
// from the optional on-disk cache, the analyzer performs no other I/O
// (spec §6).
type FetchFunc = graph.FetchFunc

// ParseFunc is the host-supplied parser collaborator (spec §1).
type ParseFunc = graph.ParseFunc

// Event is one node state transition, delivered to OnProgress.
type Event = graph.Event

// ApplyEditsFunc applies host-opaque edits to the previous revision of a
// document's source; the result is re-parsed and re-hashed by the core
// (spec §4.8 notify_incremental_change).
type ApplyEditsFunc func(uri string, previous []byte, edits any) ([]byte, error)

// Options configures New.
type Options struct {
	Fetch FetchFunc // required
	Parse ParseFunc // required

	// OnProgress fires on every document state transition.
	OnProgress func(Event)
	// ApplyEdits backs NotifyIncrementalChange; leaving it nil makes that
	// method return an error.
	ApplyEdits ApplyEditsFunc
	// Config carries strict mode, fallback version, fetch concurrency and
	// the cache location; nil means defaults.
	Config *config.Config
	// AllowNarrowing gates the historical T? -> T coercion (spec §4.1).
	AllowNarrowing bool
}

// Analyzer is one analysis session over a set of root documents.
type Analyzer struct {
	id    string
	opts  Options
	graph *graph.Graph
	cache *cache.Cache

	mu     sync.Mutex
	closed bool
}

// New builds an Analyzer. The returned instance carries a unique ID so a
// host embedding several analyzers can tell their progress events apart.
func New(opts Options) (*Analyzer, error) {
	if opts.Fetch == nil {
		return nil, errors.New("wdlsema: Options.Fetch is required")
	}
	if opts.Parse == nil {
		return nil, errors.New("wdlsema: Options.Parse is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	a := &Analyzer{id: uuid.NewString(), opts: opts}

	if cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.cache = store
	}

	gopts := graph.Options{
		Fetch:       opts.Fetch,
		Parse:       opts.Parse,
		Concurrency: cfg.FetchConcurrency,
		OnProgress:  opts.OnProgress,
		Analyze: document.Options{
			Catalog:         stdlib.NewCatalog(),
			FallbackVersion: cfg.FallbackVersion,
			AllowNarrowing:  opts.AllowNarrowing,
			StrictMode:      cfg.StrictMode,
		},
	}
	if a.cache != nil {
		gopts.Lookup = func(uri, hash string, byteLen int) (graph.Result, bool) {
			entry, ok := a.cache.Get(uri, hash, byteLen)
			if !ok {
				return nil, false
			}
			return entry, true
		}
		gopts.Store = func(uri, hash string, byteLen int, result *document.Analysis) {
			a.cache.Put(uri, hash, byteLen, result)
		}
	}
	a.graph = graph.New(gopts)
	return a, nil
}

// ID returns this analyzer instance's unique identifier.
func (a *Analyzer) ID() string { return a.id }

// AddDocuments registers root documents; they are fetched and analyzed by
// the next WaitUntilQuiescent call.
func (a *Analyzer) AddDocuments(uris ...string) {
	a.graph.AddRoots(uris...)
}

// RemoveDocuments unregisters roots; documents no longer reachable from
// any root are dropped.
func (a *Analyzer) RemoveDocuments(uris ...string) {
	a.graph.RemoveRoots(uris...)
}

// NotifyChange replaces a document's source wholesale and invalidates it
// together with every transitive importer.
func (a *Analyzer) NotifyChange(uri string, source []byte) {
	a.graph.NotifyChange(uri, source)
}

// NotifyIncrementalChange applies host-opaque edits to the document's
// previous revision via Options.ApplyEdits, then behaves like NotifyChange.
func (a *Analyzer) NotifyIncrementalChange(uri string, edits any) error {
	if a.opts.ApplyEdits == nil {
		return errors.New("wdlsema: Options.ApplyEdits is not configured")
	}
	previous, ok := a.graph.Source(uri)
	if !ok {
		return errors.New("wdlsema: no known source for " + uri + "; use NotifyChange first")
	}
	next, err := a.opts.ApplyEdits(uri, previous, edits)
	if err != nil {
		return err
	}
	a.graph.NotifyChange(uri, next)
	return nil
}

// Snapshot is the quiescent state of every document the analyzer reached.
type Snapshot struct {
	views map[string]*DocumentView
	order []string
}

// Document returns the snapshot's view of uri, if analyzed.
func (s *Snapshot) Document(uri string) (*DocumentView, bool) {
	v, ok := s.views[uri]
	return v, ok
}

// URIs lists every document in the snapshot in graph-insertion order.
func (s *Snapshot) URIs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// HasErrors reports whether any document produced an Error diagnostic.
func (s *Snapshot) HasErrors() bool {
	for _, v := range s.views {
		for _, d := range v.Diagnostics() {
			if d.Severity == diagnostics.Error {
				return true
			}
		}
	}
	return false
}

// WaitUntilQuiescent runs fetching and analysis until every reachable
// document is in a terminal state, then returns a consistent snapshot.
// Cancelling ctx makes it return ctx's error without a snapshot once the
// work already in flight has completed; those results are kept or
// discarded by generation (spec §5).
func (a *Analyzer) WaitUntilQuiescent(ctx context.Context) (*Snapshot, error) {
	if err := a.graph.Run(ctx); err != nil {
		return nil, err
	}
	snap := &Snapshot{views: map[string]*DocumentView{}}
	for _, uri := range a.graph.URIs() {
		if result, ok := a.graph.Result(uri); ok {
			snap.views[uri] = newDocumentView(uri, result)
			snap.order = append(snap.order, uri)
		}
	}
	return snap, nil
}

// Document returns the current view of uri, if a terminal result exists.
// Unlike a Snapshot this reads live graph state and may lag behind pending
// change notifications.
func (a *Analyzer) Document(uri string) (*DocumentView, bool) {
	result, ok := a.graph.Result(uri)
	if !ok {
		return nil, false
	}
	return newDocumentView(uri, result), true
}

// Close releases resources (the cache handle, if any).
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}
