// Package eval is the Expression Evaluator (spec §4.5): it walks a
// document's expressions post-order and assigns every node a
// internal/types.Type, consulting internal/stdlib for function calls and
// internal/scope for identifier/member resolution. It also resolves the
// surface-syntax internal/cst.TypeExpr strings (e.g. "Array[File]+?")
// into internal/types.Type values, since internal/cst deliberately only
// carries the written text (spec §4.1 comment in cst.go).
package eval

import (
	"fmt"

	"github.com/wdlsema/wdlsema/internal/types"
)

// StructLookup resolves a bare struct name visible at the point a
// TypeExpr is written (local struct table merged with imported/aliased
// structs; see internal/document's struct pass).
type StructLookup func(name string) (types.Struct, bool)

// ParseTypeExpr parses a WDL type-expression string, as grammar §3.1
// defines it, into a types.Type. Unknown identifiers are resolved via
// lookup; an unresolvable name yields an error the caller turns into an
// UnknownName diagnostic.
func ParseTypeExpr(text string, lookup StructLookup) (types.Type, error) {
	p := &typeParser{src: text, lookup: lookup}
	p.skipSpace()
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected trailing text in type expression %q at offset %d", text, p.pos)
	}
	return t, nil
}

type typeParser struct {
	src    string
	pos    int
	lookup StructLookup
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(b byte) error {
	p.skipSpace()
	if p.peek() != b {
		return fmt.Errorf("expected %q at offset %d in type expression %q", b, p.pos, p.src)
	}
	p.pos++
	return nil
}

func (p *typeParser) parseIdent() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// parseType parses one type, including trailing '+' (non-empty array) and
// '?' (optional) suffixes, which may both apply (e.g. "Array[File]+?").
func (p *typeParser) parseType() (types.Type, error) {
	p.skipSpace()
	name := p.parseIdent()
	if name == "" {
		return nil, fmt.Errorf("expected a type name at offset %d in %q", p.pos, p.src)
	}

	var t types.Type
	var err error
	switch name {
	case "Boolean":
		t = types.Boolean
	case "Int":
		t = types.Int
	case "Float":
		t = types.Float
	case "String":
		t = types.String
	case "File":
		t = types.File
	case "Directory":
		t = types.Directory
	case "Object":
		t = types.Object{}
	case "Array":
		t, err = p.parseArray()
	case "Map":
		t, err = p.parseMap()
	case "Pair":
		t, err = p.parsePair()
	default:
		st, ok := p.lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown type name %q", name)
		}
		t = st
	}
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.peek() == '+' {
		p.pos++
		if arr, ok := t.(types.Array); ok {
			arr.NonEmpty = true
			t = arr
		} else {
			return nil, fmt.Errorf("'+' suffix only applies to Array types, got %s", t.String())
		}
	}
	p.skipSpace()
	if p.peek() == '?' {
		p.pos++
		t = types.Opt(t)
	}
	return t, nil
}

func (p *typeParser) parseArray() (types.Type, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return types.Array{Element: elem}, nil
}

func (p *typeParser) parseMap() (types.Type, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	key, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(','); err != nil {
		return nil, err
	}
	val, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return types.Map{Key: key, Value: val}, nil
}

func (p *typeParser) parsePair() (types.Type, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	left, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(','); err != nil {
		return nil, err
	}
	right, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return types.Pair{Left: left, Right: right}, nil
}

// Display renders t in WDL surface syntax, tolerating nil for callers
// formatting a diagnostic about an expression that never got a type.
func Display(t types.Type) string {
	if t == nil {
		return "Union"
	}
	return t.String()
}
