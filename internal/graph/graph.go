// Package graph owns the multi-document state of the analyzer (spec §3.3,
// §4.7): a directed graph whose nodes are document URIs and whose edges
// point importer -> importee, plus the scheduler that fetches sources with
// bounded concurrency, detects import cycles as edges are added, and runs
// per-document analysis leaves-first.
//
// The graph's shape (nodes, edges, states, generations) is guarded by one
// mutex taken only for brief metadata mutations; fetching, parsing and
// analysis all happen outside the lock (spec §5).
package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"runtime"
	"sync"

	"github.com/wdlsema/wdlsema/internal/cst"
	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/document"
	"github.com/wdlsema/wdlsema/internal/utils"
)

// State is one step of the per-node lifecycle of spec §4.7.
type State int

const (
	StatePending State = iota
	StateFetching
	StateParsed
	StateAnalyzing
	StateAnalyzed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateFetching:
		return "Fetching"
	case StateParsed:
		return "Parsed"
	case StateAnalyzing:
		return "Analyzing"
	case StateAnalyzed:
		return "Analyzed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// FetchFunc is the caller-provided "fetch source for URI" operation
// (spec §6): it returns the source bytes and a content hash, or an error.
// An empty hash makes the graph compute one itself; a caller-provided hash
// is treated as advisory identity (spec §9).
type FetchFunc func(ctx context.Context, uri string) ([]byte, string, error)

// ParseFunc is the external parser collaborator (spec §1): it turns source
// bytes into a CST or fails.
type ParseFunc func(uri string, source []byte) (*cst.Document, error)

// Result is what a terminal node exposes to importers and to the public
// API: *document.Analysis satisfies it, and so does a cache entry restored
// from a previous process run.
type Result interface {
	document.Importee
	Diagnostics() []diagnostics.Diagnostic
}

// Event describes one node state transition, delivered to the progress
// callback (spec §4.8).
type Event struct {
	URI        string
	State      State
	Generation uint64
}

// Options configures a Graph.
type Options struct {
	Fetch FetchFunc
	Parse ParseFunc
	// Concurrency bounds simultaneous fetches; 0 means number of CPUs.
	Concurrency int
	// OnProgress, if set, fires on every node state transition. It is
	// called with the graph lock held; it must not call back into the
	// Graph.
	OnProgress func(Event)
	// Analyze carries the per-document options shared by every analysis.
	Analyze document.Options
	// Lookup, if set, is consulted after each fetch: a hit for (uri, hash)
	// short-circuits parse and analysis with the restored result. Hosts
	// back this with internal/cache, which only stores import-free
	// documents, so a hit can never serve stale cross-file state.
	Lookup func(uri, hash string, byteLen int) (Result, bool)
	// Store, if set, is offered every freshly analyzed import-free
	// document for persistence.
	Store func(uri, hash string, byteLen int, result *document.Analysis)
}

type importRef struct {
	// canonical is the graph node key: the import target resolved against
	// the importer's own URI.
	canonical string
	// docKey is the canonical form the Document Analyzer derives from the
	// raw import string alone; the importee map handed to analysis is
	// keyed by it.
	docKey string
	node   *cst.Import
}

// node carries everything spec §3.3 names: source hash, parsed CST,
// analysis result or error, and a monotonic generation counter for
// incremental invalidation.
type node struct {
	uri        string
	state      State
	hash       string
	source     []byte
	doc        *cst.Document
	result     Result
	err        error
	generation uint64
	imports    []importRef
	// cycleDiags are ImportCycle diagnostics recorded when this node's
	// cycle-closing import edges were rejected; fed to the next analysis
	// as presets.
	cycleDiags []diagnostics.Diagnostic
	// pendingSource, when non-nil, was supplied by NotifyChange and
	// replaces the next fetch.
	pendingSource []byte
}

// Graph is the import graph plus its scheduler state.
type Graph struct {
	mu         sync.Mutex
	opts       Options
	nodes      []*node
	uriToIndex map[string]int
	edges      [][2]int // importer index, importee index
	roots      map[string]bool
}

// New builds an empty Graph.
func New(opts Options) *Graph {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Graph{
		opts:       opts,
		uriToIndex: map[string]int{},
		roots:      map[string]bool{},
	}
}

func (g *Graph) emit(n *node) {
	if g.opts.OnProgress != nil {
		g.opts.OnProgress(Event{URI: n.uri, State: n.state, Generation: n.generation})
	}
}

func (g *Graph) setState(n *node, s State) {
	n.state = s
	g.emit(n)
}

// ensureNode returns the node for uri, creating it Pending if new. Callers
// must hold g.mu.
func (g *Graph) ensureNode(uri string) *node {
	if i, ok := g.uriToIndex[uri]; ok {
		return g.nodes[i]
	}
	n := &node{uri: uri, state: StatePending}
	g.uriToIndex[uri] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return n
}

// AddRoots registers root documents for analysis.
func (g *Graph) AddRoots(uris ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, uri := range uris {
		g.roots[uri] = true
		g.ensureNode(uri)
	}
}

// RemoveRoots unregisters roots and garbage-collects every node no longer
// reachable from any remaining root (spec §3.3 lifecycle).
func (g *Graph) RemoveRoots(uris ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, uri := range uris {
		delete(g.roots, uri)
	}
	g.collectUnreachable()
}

// collectUnreachable drops nodes unreachable from the root set, rebuilding
// the index-based storage. Callers must hold g.mu.
func (g *Graph) collectUnreachable() {
	reachable := map[int]bool{}
	var visit func(i int)
	visit = func(i int) {
		if reachable[i] {
			return
		}
		reachable[i] = true
		for _, e := range g.edges {
			if e[0] == i {
				visit(e[1])
			}
		}
	}
	for uri := range g.roots {
		if i, ok := g.uriToIndex[uri]; ok {
			visit(i)
		}
	}

	remap := map[int]int{}
	var nodes []*node
	index := map[string]int{}
	for i, n := range g.nodes {
		if !reachable[i] {
			continue
		}
		remap[i] = len(nodes)
		index[n.uri] = len(nodes)
		nodes = append(nodes, n)
	}
	var edges [][2]int
	for _, e := range g.edges {
		from, okFrom := remap[e[0]]
		to, okTo := remap[e[1]]
		if okFrom && okTo {
			edges = append(edges, [2]int{from, to})
		}
	}
	g.nodes, g.uriToIndex, g.edges = nodes, index, edges
}

// NotifyChange replaces uri's source bytes and invalidates the node and
// every transitive importer (spec §4.7): the changed node refetches from
// the supplied bytes; importers keep their parsed CSTs and only re-analyze.
func (g *Graph) NotifyChange(uri string, source []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.ensureNode(uri)
	n.pendingSource = source
	n.generation++
	g.setState(n, StatePending)
	g.invalidateImporters(g.uriToIndex[uri], map[int]bool{})
}

// invalidateImporters walks reverse edges, resetting every transitive
// importer of target. Callers must hold g.mu.
func (g *Graph) invalidateImporters(target int, seen map[int]bool) {
	for _, e := range g.edges {
		if e[1] != target || seen[e[0]] {
			continue
		}
		seen[e[0]] = true
		imp := g.nodes[e[0]]
		imp.generation++
		if imp.doc != nil {
			g.setState(imp, StateParsed)
		} else {
			g.setState(imp, StatePending)
		}
		g.invalidateImporters(e[0], seen)
	}
}

// addEdge links importer -> importee unless doing so would close a cycle,
// in which case an ImportCycle diagnostic is recorded on the importer's
// closing import statement and the edge is not added (spec §4.7: the
// importer proceeds as if that import produced an empty document).
// Callers must hold g.mu.
func (g *Graph) addEdge(importer, importee int, ref importRef, pos *diagnostics.PositionResolver) {
	for _, e := range g.edges {
		if e[0] == importer && e[1] == importee {
			return
		}
	}
	if importee == importer || g.reaches(importee, importer) {
		imp := g.nodes[importer]
		sp := ref.node.Span()
		d := diagnostics.New(diagnostics.ImportCycle, pos.Span(imp.uri, sp.Start, sp.End),
			"import of %q completes an import cycle", ref.node.URI)
		imp.cycleDiags = append(imp.cycleDiags, d)
		return
	}
	g.edges = append(g.edges, [2]int{importer, importee})
}

// reaches reports whether from can reach to along edges. Callers must hold
// g.mu.
func (g *Graph) reaches(from, to int) bool {
	seen := map[int]bool{}
	var visit func(i int) bool
	visit = func(i int) bool {
		if i == to {
			return true
		}
		if seen[i] {
			return false
		}
		seen[i] = true
		for _, e := range g.edges {
			if e[0] == i && visit(e[1]) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// Result returns the terminal analysis result for uri, if the node exists
// and has one.
func (g *Graph) Result(uri string) (Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.uriToIndex[uri]
	if !ok {
		return nil, false
	}
	r := g.nodes[i].result
	return r, r != nil
}

// Source returns the last successfully fetched source bytes for uri, used
// by hosts applying incremental edits on top of the previous revision.
func (g *Graph) Source(uri string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.uriToIndex[uri]
	if !ok || g.nodes[i].source == nil {
		return nil, false
	}
	src := make([]byte, len(g.nodes[i].source))
	copy(src, g.nodes[i].source)
	return src, true
}

// URIs returns every node URI currently in the graph, in the order the
// nodes were first added.
func (g *Graph) URIs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.uri
	}
	return out
}

// hashBytes is the fallback content hash when the fetcher does not supply
// one (spec §9: host-provided identity is advisory).
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// resolveImportURI canonicalizes an import target relative to its importer:
// absolute URLs stand alone; relative paths resolve against the importer's
// directory (URL or filesystem-style).
func resolveImportURI(importerURI, raw string) string {
	canonical, _ := utils.NormalizeImportURI(raw)
	if u, err := url.Parse(canonical); err == nil && u.Scheme != "" {
		return canonical
	}
	if path.IsAbs(canonical) {
		return path.Clean(canonical)
	}
	if base, err := url.Parse(importerURI); err == nil && base.Scheme != "" {
		if ref, err := url.Parse(canonical); err == nil {
			return base.ResolveReference(ref).String()
		}
	}
	return path.Clean(path.Join(path.Dir(importerURI), canonical))
}
