// Package cache is the optional on-disk incremental-analysis store: a
// sqlite database keyed by (URI, content hash) holding each document's
// finalized diagnostics and exported symbol summary, so a later process
// run against unchanged sources restores the result instead of
// re-analyzing.
//
// Only import-free documents are stored. A document with imports depends
// on state the content hash does not cover, and host-provided hashes are
// advisory identity at best (spec §9), so those always re-analyze. The
// byte length is stored alongside the hash and checked on lookup; a
// mismatch is treated as a suspected hash collision and misses.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/wdlsema/wdlsema/internal/diagnostics"
	"github.com/wdlsema/wdlsema/internal/document"
	"github.com/wdlsema/wdlsema/internal/eval"
	"github.com/wdlsema/wdlsema/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis (
	uri         TEXT NOT NULL,
	hash        TEXT NOT NULL,
	byte_len    INTEGER NOT NULL,
	version     TEXT NOT NULL,
	diagnostics TEXT NOT NULL,
	summary     TEXT NOT NULL,
	PRIMARY KEY (uri, hash)
);
`

// Cache wraps one sqlite database file.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// summary is the JSON shape of a document's exported symbols. Types are
// stored in WDL surface syntax and re-parsed on load, which keeps the
// schema stable across internal type-representation changes.
type summary struct {
	Version   string           `json:"version"`
	Structs   []structSummary  `json:"structs,omitempty"`
	Tasks     []taskSummary    `json:"tasks,omitempty"`
	Workflow  *taskSummary     `json:"workflow,omitempty"`
	ByteLen   int              `json:"byte_len"`
}

type structSummary struct {
	Name    string        `json:"name"`
	Members []declSummary `json:"members,omitempty"`
}

type declSummary struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

type taskSummary struct {
	Name    string        `json:"name"`
	Inputs  []declSummary `json:"inputs,omitempty"`
	Outputs []declSummary `json:"outputs,omitempty"`
}

// Put stores the finalized result of analyzing (uri, hash). Only
// import-free documents should be offered; callers enforce that.
func (c *Cache) Put(uri, hash string, byteLen int, a *document.Analysis) error {
	diagJSON, err := json.Marshal(a.Diagnostics())
	if err != nil {
		return fmt.Errorf("encoding diagnostics: %w", err)
	}
	sumJSON, err := json.Marshal(summarize(a, byteLen))
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO analysis (uri, hash, byte_len, version, diagnostics, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		uri, hash, byteLen, a.Version, string(diagJSON), string(sumJSON))
	return err
}

// Get restores the entry for (uri, hash), if present and its recorded byte
// length matches (a mismatch means the hash collided and the entry is
// dropped). The returned Entry satisfies the graph's Result interface.
func (c *Cache) Get(uri, hash string, byteLen int) (*Entry, bool) {
	row := c.db.QueryRow(
		`SELECT byte_len, diagnostics, summary FROM analysis WHERE uri = ? AND hash = ?`, uri, hash)
	var storedLen int
	var diagJSON, sumJSON string
	if err := row.Scan(&storedLen, &diagJSON, &sumJSON); err != nil {
		return nil, false
	}
	if storedLen != byteLen {
		c.db.Exec(`DELETE FROM analysis WHERE uri = ? AND hash = ?`, uri, hash)
		return nil, false
	}

	var diags []diagnostics.Diagnostic
	if err := json.Unmarshal([]byte(diagJSON), &diags); err != nil {
		return nil, false
	}
	var sum summary
	if err := json.Unmarshal([]byte(sumJSON), &sum); err != nil {
		return nil, false
	}
	entry, err := restore(uri, diags, &sum)
	if err != nil {
		return nil, false
	}
	return entry, true
}

func summarize(a *document.Analysis, byteLen int) summary {
	sum := summary{Version: a.Version, ByteLen: byteLen}
	for _, name := range sortedKeys(a.Structs) {
		st := a.Structs[name]
		ss := structSummary{Name: name}
		for _, m := range st.Members {
			ss.Members = append(ss.Members, declSummary{Name: m.Name, Type: m.Type.String()})
		}
		sum.Structs = append(sum.Structs, ss)
	}
	for _, name := range sortedKeys(a.Tasks) {
		t := a.Tasks[name]
		sum.Tasks = append(sum.Tasks, summarizeTask(name, t.Inputs, t.Outputs))
	}
	if a.Workflow != nil {
		wf := summarizeTask(a.Workflow.Name, a.Workflow.Inputs, a.Workflow.Outputs)
		sum.Workflow = &wf
	}
	return sum
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func summarizeTask(name string, inputs []document.InputSignature, outputs []document.OutputSignature) taskSummary {
	ts := taskSummary{Name: name}
	for _, in := range inputs {
		ts.Inputs = append(ts.Inputs, declSummary{Name: in.Name, Type: in.Type.String(), Required: in.Required})
	}
	for _, out := range outputs {
		ts.Outputs = append(ts.Outputs, declSummary{Name: out.Name, Type: out.Type.String()})
	}
	return ts
}

// Entry is a restored cache row: the stored diagnostics plus reconstructed
// symbol tables, usable as an importee by documents analyzed this run.
type Entry struct {
	URI      string
	Version  string
	diags    []diagnostics.Diagnostic
	structs  map[string]types.Struct
	tasks    map[string]*document.TaskSignature
	workflow *document.WorkflowSignature
}

func (e *Entry) Diagnostics() []diagnostics.Diagnostic               { return e.diags }
func (e *Entry) StructTable() map[string]types.Struct                { return e.structs }
func (e *Entry) TaskTable() map[string]*document.TaskSignature       { return e.tasks }
func (e *Entry) WorkflowSignature() *document.WorkflowSignature      { return e.workflow }

// restore rebuilds types from their stored surface syntax. Struct members
// may reference other structs from the same document, so resolution runs
// through a lookup that recurses into not-yet-built structs on demand.
func restore(uri string, diags []diagnostics.Diagnostic, sum *summary) (*Entry, error) {
	e := &Entry{
		URI:     uri,
		Version: sum.Version,
		diags:   diags,
		structs: map[string]types.Struct{},
		tasks:   map[string]*document.TaskSignature{},
	}

	memberTexts := map[string][]declSummary{}
	for _, ss := range sum.Structs {
		memberTexts[ss.Name] = ss.Members
	}
	building := map[string]bool{}
	var lookup eval.StructLookup
	lookup = func(name string) (types.Struct, bool) {
		if st, ok := e.structs[name]; ok {
			return st, true
		}
		texts, ok := memberTexts[name]
		if !ok || building[name] {
			return types.Struct{}, false
		}
		building[name] = true
		defer delete(building, name)
		st := types.Struct{Name: name}
		for _, m := range texts {
			mt, err := eval.ParseTypeExpr(m.Type, lookup)
			if err != nil {
				mt = types.Any
			}
			st.Members = append(st.Members, types.Member{Name: m.Name, Type: mt})
		}
		e.structs[name] = st
		return st, true
	}
	for _, ss := range sum.Structs {
		lookup(ss.Name)
	}

	parse := func(text string) types.Type {
		t, err := eval.ParseTypeExpr(text, lookup)
		if err != nil {
			return types.Any
		}
		return t
	}
	for _, ts := range sum.Tasks {
		e.tasks[ts.Name] = restoreTask(ts, parse)
	}
	if sum.Workflow != nil {
		t := restoreTask(*sum.Workflow, parse)
		e.workflow = &document.WorkflowSignature{Name: t.Name, Inputs: t.Inputs, Outputs: t.Outputs}
	}
	return e, nil
}

func restoreTask(ts taskSummary, parse func(string) types.Type) *document.TaskSignature {
	sig := &document.TaskSignature{Name: ts.Name}
	for _, in := range ts.Inputs {
		sig.Inputs = append(sig.Inputs, document.InputSignature{Name: in.Name, Type: parse(in.Type), Required: in.Required})
	}
	for _, out := range ts.Outputs {
		sig.Outputs = append(sig.Outputs, document.OutputSignature{Name: out.Name, Type: parse(out.Type)})
	}
	return sig
}
