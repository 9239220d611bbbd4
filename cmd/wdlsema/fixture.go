package main

import (
	"encoding/json"
	"fmt"

	"github.com/wdlsema/wdlsema/internal/cst"
)

// The analyzer's parser is an external collaborator; this CLI stands one
// in with a JSON codec: each input file holds the JSON encoding of an
// already-parsed document tree. decodeFixture turns those bytes into the
// cst.Document the core consumes.

type fixtureDoc struct {
	URI      string            `json:"uri,omitempty"`
	Version  string            `json:"version"`
	Imports  []fixtureImport   `json:"imports,omitempty"`
	Structs  []fixtureStruct   `json:"structs,omitempty"`
	Tasks    []fixtureTask     `json:"tasks,omitempty"`
	Workflow *fixtureWorkflow  `json:"workflow,omitempty"`
}

type fixtureImport struct {
	URI     string         `json:"uri"`
	As      string         `json:"as,omitempty"`
	Aliases []fixtureAlias `json:"aliases,omitempty"`
	Span    []int          `json:"span,omitempty"`
}

type fixtureAlias struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type fixtureStruct struct {
	Name    string        `json:"name"`
	Members []fixtureDecl `json:"members,omitempty"`
	Span    []int         `json:"span,omitempty"`
}

type fixtureDecl struct {
	Type  string          `json:"type"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value,omitempty"`
	Span  []int           `json:"span,omitempty"`
}

type fixtureTask struct {
	Name    string           `json:"name"`
	Inputs  []fixtureDecl    `json:"inputs,omitempty"`
	Decls   []fixtureDecl    `json:"decls,omitempty"`
	Command []fixturePart    `json:"command,omitempty"`
	Outputs []fixtureDecl    `json:"outputs,omitempty"`
	Runtime []fixtureMeta    `json:"runtime,omitempty"`
	Hints   []fixtureMeta    `json:"hints,omitempty"`
	Span    []int            `json:"span,omitempty"`
}

type fixtureMeta struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Span  []int           `json:"span,omitempty"`
}

type fixturePart struct {
	Text        string              `json:"text,omitempty"`
	Placeholder *fixturePlaceholder `json:"placeholder,omitempty"`
	Span        []int               `json:"span,omitempty"`
}

type fixturePlaceholder struct {
	Expr    json.RawMessage `json:"expr"`
	Sep     *string         `json:"sep,omitempty"`
	True    *string         `json:"true,omitempty"`
	False   *string         `json:"false,omitempty"`
	Default json.RawMessage `json:"default,omitempty"`
	Span    []int           `json:"span,omitempty"`
}

type fixtureWorkflow struct {
	Name    string            `json:"name"`
	Inputs  []fixtureDecl     `json:"inputs,omitempty"`
	Body    []json.RawMessage `json:"body,omitempty"`
	Outputs []fixtureDecl     `json:"outputs,omitempty"`
	Span    []int             `json:"span,omitempty"`
}

type fixtureCall struct {
	Call   string             `json:"call"`
	As     string             `json:"as,omitempty"`
	After  []string           `json:"after,omitempty"`
	Inputs []fixtureCallInput `json:"inputs,omitempty"`
	Span   []int              `json:"span,omitempty"`
}

type fixtureCallInput struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value,omitempty"`
	Span  []int           `json:"span,omitempty"`
}

type fixtureScatter struct {
	Scatter  string            `json:"scatter"`
	In       json.RawMessage   `json:"in"`
	Body     []json.RawMessage `json:"body,omitempty"`
	Span     []int             `json:"span,omitempty"`
}

type fixtureConditional struct {
	If   json.RawMessage   `json:"if"`
	Body []json.RawMessage `json:"body,omitempty"`
	Span []int             `json:"span,omitempty"`
}

// decodeFixture parses one fixture file into a cst.Document rooted at uri.
func decodeFixture(uri string, data []byte) (*cst.Document, error) {
	var fd fixtureDoc
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("decoding fixture %s: %w", uri, err)
	}
	b := &fixtureBuilder{uri: uri}
	doc := b.document(&fd)
	if b.err != nil {
		return nil, fmt.Errorf("fixture %s: %w", uri, b.err)
	}
	return doc, nil
}

// fixtureBuilder threads the first decoding error and a synthetic offset
// counter (used when a node carries no explicit span, so diagnostics still
// sort in document order).
type fixtureBuilder struct {
	uri    string
	err    error
	offset int
}

func (b *fixtureBuilder) span(explicit []int) cst.Span {
	if len(explicit) == 2 {
		return cst.NewSpan(explicit[0], explicit[1])
	}
	b.offset++
	return cst.NewSpan(b.offset, b.offset+1)
}

func (b *fixtureBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *fixtureBuilder) document(fd *fixtureDoc) *cst.Document {
	doc := &cst.Document{URI: b.uri, Version: fd.Version}
	for _, fi := range fd.Imports {
		imp := &cst.Import{URI: fi.URI, Alias: fi.As}
		cst.SetSpan(imp, b.span(fi.Span))
		for _, a := range fi.Aliases {
			imp.Renames = append(imp.Renames, cst.StructAlias{Original: a.From, Renamed: a.To})
		}
		doc.Imports = append(doc.Imports, imp)
	}
	for _, fs := range fd.Structs {
		sd := &cst.StructDef{Name: fs.Name, Members: b.decls(fs.Members)}
		cst.SetSpan(sd, b.span(fs.Span))
		doc.Structs = append(doc.Structs, sd)
	}
	for _, ft := range fd.Tasks {
		doc.Tasks = append(doc.Tasks, b.task(&ft))
	}
	if fd.Workflow != nil {
		doc.Workflow = b.workflow(fd.Workflow)
	}
	return doc
}

func (b *fixtureBuilder) decls(fds []fixtureDecl) []cst.Decl {
	out := make([]cst.Decl, len(fds))
	for i, fd := range fds {
		d := cst.Decl{Name: fd.Name}
		cst.SetSpan(&d, b.span(fd.Span))
		d.Type = cst.TypeExpr{Text: fd.Type}
		cst.SetSpan(&d.Type, d.Span())
		if fd.Value != nil {
			d.Value = b.expr(fd.Value)
		}
		out[i] = d
	}
	return out
}

func (b *fixtureBuilder) task(ft *fixtureTask) *cst.Task {
	t := &cst.Task{
		Name:    ft.Name,
		Inputs:  b.decls(ft.Inputs),
		Decls:   b.decls(ft.Decls),
		Outputs: b.decls(ft.Outputs),
	}
	cst.SetSpan(t, b.span(ft.Span))
	t.Command = cst.CommandSection{Parts: b.parts(ft.Command)}
	for _, m := range ft.Runtime {
		t.Runtime = append(t.Runtime, b.meta(m))
	}
	for _, m := range ft.Hints {
		t.Hints = append(t.Hints, b.meta(m))
	}
	return t
}

func (b *fixtureBuilder) meta(fm fixtureMeta) cst.MetaEntry {
	m := cst.MetaEntry{Key: fm.Key, Value: b.expr(fm.Value)}
	cst.SetSpan(&m, b.span(fm.Span))
	return m
}

func (b *fixtureBuilder) parts(fps []fixturePart) []cst.CommandPart {
	out := make([]cst.CommandPart, len(fps))
	for i, fp := range fps {
		p := cst.CommandPart{Literal: fp.Text}
		cst.SetSpan(&p, b.span(fp.Span))
		if fp.Placeholder != nil {
			p.IsPlaceholder = true
			p.Placeholder = b.placeholder(fp.Placeholder)
		}
		out[i] = p
	}
	return out
}

func (b *fixtureBuilder) placeholder(fp *fixturePlaceholder) *cst.Placeholder {
	p := &cst.Placeholder{Expr: b.expr(fp.Expr)}
	cst.SetSpan(p, b.span(fp.Span))
	if fp.Sep != nil {
		p.Options = append(p.Options, cst.PlaceholderOption{Kind: cst.OptSep, Sep: *fp.Sep})
	}
	if fp.True != nil || fp.False != nil {
		opt := cst.PlaceholderOption{Kind: cst.OptTrueFalse}
		if fp.True != nil {
			opt.True = *fp.True
		}
		if fp.False != nil {
			opt.False = *fp.False
		}
		p.Options = append(p.Options, opt)
	}
	if fp.Default != nil {
		p.Options = append(p.Options, cst.PlaceholderOption{Kind: cst.OptDefault, Default: b.expr(fp.Default)})
	}
	return p
}

func (b *fixtureBuilder) workflow(fw *fixtureWorkflow) *cst.Workflow {
	w := &cst.Workflow{
		Name:    fw.Name,
		Inputs:  b.decls(fw.Inputs),
		Outputs: b.decls(fw.Outputs),
	}
	cst.SetSpan(w, b.span(fw.Span))
	w.Body = b.elements(fw.Body)
	return w
}

func (b *fixtureBuilder) elements(raws []json.RawMessage) []cst.WorkflowElement {
	var out []cst.WorkflowElement
	for _, raw := range raws {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			b.fail(err)
			continue
		}
		switch {
		case probe["call"] != nil:
			var fc fixtureCall
			if err := json.Unmarshal(raw, &fc); err != nil {
				b.fail(err)
				continue
			}
			call := &cst.Call{Target: fc.Call, Alias: fc.As, After: fc.After}
			cst.SetSpan(call, b.span(fc.Span))
			for _, in := range fc.Inputs {
				ci := cst.CallInput{Name: in.Name}
				cst.SetSpan(&ci, b.span(in.Span))
				if in.Value != nil {
					ci.Value = b.expr(in.Value)
				}
				call.Inputs = append(call.Inputs, ci)
			}
			out = append(out, call)
		case probe["scatter"] != nil:
			var fs fixtureScatter
			if err := json.Unmarshal(raw, &fs); err != nil {
				b.fail(err)
				continue
			}
			s := &cst.Scatter{Variable: fs.Scatter, Expr: b.expr(fs.In)}
			cst.SetSpan(s, b.span(fs.Span))
			s.Body = b.elements(fs.Body)
			out = append(out, s)
		case probe["if"] != nil:
			var fc fixtureConditional
			if err := json.Unmarshal(raw, &fc); err != nil {
				b.fail(err)
				continue
			}
			cond := &cst.Conditional{Expr: b.expr(fc.If)}
			cst.SetSpan(cond, b.span(fc.Span))
			cond.Body = b.elements(fc.Body)
			out = append(out, cond)
		case probe["type"] != nil:
			var fd fixtureDecl
			if err := json.Unmarshal(raw, &fd); err != nil {
				b.fail(err)
				continue
			}
			decls := b.decls([]fixtureDecl{fd})
			out = append(out, &decls[0])
		default:
			b.fail(fmt.Errorf("unrecognized workflow element %s", string(raw)))
		}
	}
	return out
}

// fixtureExpr is the one-of JSON shape for expressions; exactly one field
// group is set, selected by Kind.
type fixtureExpr struct {
	Kind string `json:"kind"`
	Span []int  `json:"span,omitempty"`

	Name  string  `json:"name,omitempty"`  // ident, apply, struct literal type name
	Bool  *bool   `json:"bool,omitempty"`  // bool literal
	Int   *int64  `json:"int,omitempty"`   // int literal
	Float *float64 `json:"float,omitempty"` // float literal

	Parts []fixturePart `json:"parts,omitempty"` // string literal

	Elements []json.RawMessage `json:"elements,omitempty"` // array literal, apply args
	Keys     []json.RawMessage `json:"keys,omitempty"`     // map literal
	Values   []json.RawMessage `json:"values,omitempty"`   // map/object/struct/record literal

	Names []string `json:"names,omitempty"` // object/struct/record literal keys

	Op    string          `json:"op,omitempty"`
	Left  json.RawMessage `json:"left,omitempty"`
	Right json.RawMessage `json:"right,omitempty"`

	Cond json.RawMessage `json:"cond,omitempty"`
	Then json.RawMessage `json:"then,omitempty"`
	Else json.RawMessage `json:"else,omitempty"`

	Target  json.RawMessage `json:"target,omitempty"` // index/member
	Index   json.RawMessage `json:"index,omitempty"`
	Field   string          `json:"field,omitempty"`
	Operand json.RawMessage `json:"operand,omitempty"`
}

var binaryOps = map[string]cst.BinaryOp{
	"+": cst.OpAdd, "-": cst.OpSub, "*": cst.OpMul, "/": cst.OpDiv, "%": cst.OpMod,
	"==": cst.OpEq, "!=": cst.OpNeq, "<": cst.OpLt, "<=": cst.OpLte, ">": cst.OpGt, ">=": cst.OpGte,
	"&&": cst.OpAnd, "||": cst.OpOr,
}

var recordKinds = map[string]cst.LiteralKind{
	"hints": cst.LiteralHints, "input": cst.LiteralInput, "output": cst.LiteralOutput,
}

func (b *fixtureBuilder) expr(raw json.RawMessage) cst.Expr {
	if raw == nil {
		return nil
	}
	var fe fixtureExpr
	if err := json.Unmarshal(raw, &fe); err != nil {
		b.fail(err)
		return nil
	}
	sp := b.span(fe.Span)
	switch fe.Kind {
	case "ident":
		n := &cst.Ident{Name: fe.Name}
		cst.SetSpan(n, sp)
		return n
	case "bool":
		n := &cst.BoolLit{}
		if fe.Bool != nil {
			n.Value = *fe.Bool
		}
		cst.SetSpan(n, sp)
		return n
	case "int":
		n := &cst.IntLit{}
		if fe.Int != nil {
			n.Value = *fe.Int
		}
		cst.SetSpan(n, sp)
		return n
	case "float":
		n := &cst.FloatLit{}
		if fe.Float != nil {
			n.Value = *fe.Float
		}
		cst.SetSpan(n, sp)
		return n
	case "none":
		n := &cst.NoneLit{}
		cst.SetSpan(n, sp)
		return n
	case "string":
		n := &cst.StringLit{Parts: b.parts(fe.Parts)}
		cst.SetSpan(n, sp)
		return n
	case "array":
		n := &cst.ArrayLit{}
		for _, el := range fe.Elements {
			n.Elements = append(n.Elements, b.expr(el))
		}
		cst.SetSpan(n, sp)
		return n
	case "map":
		n := &cst.MapLit{}
		for _, k := range fe.Keys {
			n.Keys = append(n.Keys, b.expr(k))
		}
		for _, v := range fe.Values {
			n.Values = append(n.Values, b.expr(v))
		}
		cst.SetSpan(n, sp)
		return n
	case "pair":
		n := &cst.PairLit{Left: b.expr(fe.Left), Right: b.expr(fe.Right)}
		cst.SetSpan(n, sp)
		return n
	case "object":
		n := &cst.ObjectLit{Keys: fe.Names}
		for _, v := range fe.Values {
			n.Values = append(n.Values, b.expr(v))
		}
		cst.SetSpan(n, sp)
		return n
	case "struct":
		n := &cst.StructLit{TypeName: fe.Name, Keys: fe.Names}
		for _, v := range fe.Values {
			n.Values = append(n.Values, b.expr(v))
		}
		cst.SetSpan(n, sp)
		return n
	case "not", "neg":
		op := cst.OpNot
		if fe.Kind == "neg" {
			op = cst.OpNeg
		}
		n := &cst.UnaryExpr{Op: op, Operand: b.expr(fe.Operand)}
		cst.SetSpan(n, sp)
		return n
	case "binary":
		bop, ok := binaryOps[fe.Op]
		if !ok {
			b.fail(fmt.Errorf("unknown binary operator %q", fe.Op))
			return nil
		}
		n := &cst.BinaryExpr{Op: bop, Left: b.expr(fe.Left), Right: b.expr(fe.Right)}
		cst.SetSpan(n, sp)
		return n
	case "ternary":
		n := &cst.TernaryExpr{Cond: b.expr(fe.Cond), Then: b.expr(fe.Then), Else: b.expr(fe.Else)}
		cst.SetSpan(n, sp)
		return n
	case "index":
		n := &cst.IndexExpr{Target: b.expr(fe.Target), Index: b.expr(fe.Index)}
		cst.SetSpan(n, sp)
		return n
	case "member":
		n := &cst.MemberExpr{Target: b.expr(fe.Target), Field: fe.Field}
		cst.SetSpan(n, sp)
		return n
	case "apply":
		n := &cst.ApplyExpr{Name: fe.Name}
		for _, a := range fe.Elements {
			n.Args = append(n.Args, b.expr(a))
		}
		cst.SetSpan(n, sp)
		return n
	case "task":
		n := &cst.TaskVarExpr{Field: fe.Field}
		cst.SetSpan(n, sp)
		return n
	case "hints", "input", "output":
		n := &cst.RecordLit{Kind: recordKinds[fe.Kind], Keys: fe.Names}
		for _, v := range fe.Values {
			n.Values = append(n.Values, b.expr(v))
		}
		cst.SetSpan(n, sp)
		return n
	default:
		b.fail(fmt.Errorf("unknown expression kind %q", fe.Kind))
		return nil
	}
}
