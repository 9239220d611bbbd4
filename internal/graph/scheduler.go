package graph

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/document"
	"github.com/wdlsema/wdlsema/internal/utils"
)

// Run drives the graph to quiescence: alternating fetch/parse rounds over
// Pending nodes and analysis rounds over Parsed nodes whose importees are
// all terminal, until no node can make progress. It honors ctx for
// cooperative cancellation (spec §5); in-flight work completes, but a
// result whose node's generation moved on is discarded.
func (g *Graph) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fetched, err := g.fetchRound(ctx)
		if err != nil {
			return err
		}
		analyzed, err := g.analyzeRound(ctx)
		if err != nil {
			return err
		}
		if fetched == 0 && analyzed == 0 {
			return nil
		}
	}
}

// fetchRound fetches and parses every Pending node, bounded by the
// configured concurrency. It returns how many nodes it moved.
func (g *Graph) fetchRound(ctx context.Context) (int, error) {
	g.mu.Lock()
	var batch []*node
	for _, n := range g.nodes {
		if n.state == StatePending {
			g.setState(n, StateFetching)
			batch = append(batch, n)
		}
	}
	g.mu.Unlock()
	if len(batch) == 0 {
		return 0, nil
	}

	sem := semaphore.NewWeighted(int64(g.opts.Concurrency))
	eg, egCtx := errgroup.WithContext(ctx)
	for _, n := range batch {
		n := n
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			g.fetchAndParse(egCtx, n)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (g *Graph) fetchAndParse(ctx context.Context, n *node) {
	g.mu.Lock()
	gen := n.generation
	source := n.pendingSource
	n.pendingSource = nil
	g.mu.Unlock()

	hash := ""
	if source == nil {
		var err error
		source, hash, err = g.opts.Fetch(ctx, n.uri)
		if err != nil {
			g.fail(n, gen, diagnostics.FailedFetch, err)
			return
		}
	}
	if hash == "" {
		hash = hashBytes(source)
	}

	if g.opts.Lookup != nil {
		if restored, ok := g.opts.Lookup(n.uri, hash, len(source)); ok {
			g.mu.Lock()
			defer g.mu.Unlock()
			if n.generation != gen {
				return
			}
			n.source = source
			n.hash = hash
			n.result = restored
			g.setState(n, StateAnalyzed)
			return
		}
	}

	g.mu.Lock()
	unchanged := n.hash == hash && n.doc != nil
	g.mu.Unlock()

	if unchanged {
		// Identical hash means identical source (spec §6); the parse is
		// reused and only analysis needs to rerun.
		g.mu.Lock()
		if n.generation == gen {
			g.setState(n, StateParsed)
		}
		g.mu.Unlock()
		return
	}

	parsed, err := g.opts.Parse(n.uri, source)
	if err != nil {
		g.fail(n, gen, diagnostics.FailedParse, err)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if n.generation != gen {
		return // superseded by a newer change; discard
	}
	n.source = source
	n.hash = hash
	n.doc = parsed
	n.imports = nil
	n.cycleDiags = nil
	g.setState(n, StateParsed)

	// Discover importees: create their nodes and add edges, rejecting
	// cycle-closing edges as they appear in graph-insertion order (spec §8
	// property 4). A re-parse after a change drops the node's old edges
	// first, since its import set may have shrunk.
	pos := diagnostics.NewPositionResolver(source)
	importer := g.uriToIndex[n.uri]
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e[0] != importer {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	for _, imp := range parsed.Imports {
		docKey, _ := utils.NormalizeImportURI(imp.URI)
		ref := importRef{canonical: resolveImportURI(n.uri, imp.URI), docKey: docKey, node: imp}
		n.imports = append(n.imports, ref)
		importee := g.ensureNode(ref.canonical)
		g.addEdge(importer, g.uriToIndex[importee.uri], ref, pos)
	}
}

func (g *Graph) fail(n *node, gen uint64, rule diagnostics.RuleID, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n.generation != gen {
		return
	}
	n.err = err
	n.result = document.NewFailed(n.uri, rule, err.Error())
	g.setState(n, StateFailed)
}

// analyzeRound analyzes every Parsed node whose importees are all terminal
// (Analyzed or Failed; a Failed importee contributes no symbols but does
// not block, spec §4.7). Ready nodes run in parallel.
func (g *Graph) analyzeRound(ctx context.Context) (int, error) {
	g.mu.Lock()
	type job struct {
		n       *node
		gen     uint64
		imports map[string]document.Importee
		presets []diagnostics.Diagnostic
	}
	var batch []job
	for i, n := range g.nodes {
		if n.state != StateParsed {
			continue
		}
		ready := true
		for _, e := range g.edges {
			if e[0] != i {
				continue
			}
			dep := g.nodes[e[1]]
			if dep.state != StateAnalyzed && dep.state != StateFailed {
				ready = false // a Failed importee contributes no symbols but does not block
			}
		}
		if !ready {
			continue
		}
		// The importee map is keyed the way the Document Analyzer derives
		// each import's canonical URI from the raw string. A cycle-rejected
		// or failed importee simply has no entry (spec §7).
		imports := map[string]document.Importee{}
		for _, ref := range n.imports {
			if j, ok := g.uriToIndex[ref.canonical]; ok {
				if dep := g.nodes[j]; dep.state == StateAnalyzed {
					imports[ref.docKey] = dep.result
				}
			}
		}
		g.setState(n, StateAnalyzing)
		presets := make([]diagnostics.Diagnostic, len(n.cycleDiags))
		copy(presets, n.cycleDiags)
		batch = append(batch, job{n: n, gen: n.generation, imports: imports, presets: presets})
	}
	g.mu.Unlock()
	if len(batch) == 0 {
		return 0, nil
	}

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Concurrency)
	for _, j := range batch {
		j := j
		eg.Go(func() error {
			opts := g.opts.Analyze
			opts.Presets = j.presets
			result := document.Analyze(j.n.doc, j.n.source, j.imports, opts)

			g.mu.Lock()
			if j.n.generation != j.gen {
				// Inputs changed while this analysis ran; discard (spec §4.7).
				g.mu.Unlock()
				return nil
			}
			j.n.result = result
			j.n.err = nil
			g.setState(j.n, StateAnalyzed)
			store := g.opts.Store != nil && len(j.n.imports) == 0
			hash := j.n.hash
			byteLen := len(j.n.source)
			g.mu.Unlock()
			if store {
				g.opts.Store(j.n.uri, hash, byteLen, result)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return len(batch), nil
}
