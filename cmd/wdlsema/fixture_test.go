package main

import (
	"testing"

	"github.com/wdlsema/wdlsema/internal/cst"
)

func TestDecodeFixtureDocument(t *testing.T) {
	data := []byte(`{
		"version": "1.2",
		"imports": [{"uri": "lib.wdl", "as": "lib", "aliases": [{"from": "Sample", "to": "LibSample"}]}],
		"structs": [{"name": "Pairs", "members": [{"type": "Array[Int]", "name": "xs"}]}],
		"tasks": [{
			"name": "t",
			"inputs": [{"type": "String", "name": "msg"}],
			"command": [
				{"text": "echo "},
				{"placeholder": {"expr": {"kind": "ident", "name": "msg"}}}
			],
			"outputs": [{"type": "File", "name": "out", "value": {"kind": "apply", "name": "stdout"}}]
		}],
		"workflow": {
			"name": "w",
			"body": [
				{"type": "Int", "name": "n", "value": {"kind": "int", "int": 3}},
				{"call": "t", "as": "hello", "inputs": [{"name": "msg", "value": {"kind": "string", "parts": [{"text": "hi"}]}}]},
				{"scatter": "x", "in": {"kind": "array", "elements": [{"kind": "int", "int": 1}]}, "body": [
					{"if": {"kind": "binary", "op": ">", "left": {"kind": "ident", "name": "x"}, "right": {"kind": "int", "int": 0}}, "body": []}
				]}
			]
		}
	}`)

	doc, err := decodeFixture("main.wdl", data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != "1.2" || doc.URI != "main.wdl" {
		t.Errorf("header = %q %q", doc.Version, doc.URI)
	}
	if len(doc.Imports) != 1 || doc.Imports[0].Alias != "lib" || doc.Imports[0].Renames[0].Renamed != "LibSample" {
		t.Errorf("imports = %+v", doc.Imports[0])
	}
	if len(doc.Structs) != 1 || doc.Structs[0].Members[0].Type.Text != "Array[Int]" {
		t.Errorf("structs = %+v", doc.Structs[0])
	}

	task := doc.Tasks[0]
	if len(task.Command.Parts) != 2 || !task.Command.Parts[1].IsPlaceholder {
		t.Errorf("command parts = %+v", task.Command.Parts)
	}
	if task.Outputs[0].Value.(*cst.ApplyExpr).Name != "stdout" {
		t.Errorf("output value = %+v", task.Outputs[0].Value)
	}

	body := doc.Workflow.Body
	if _, ok := body[0].(*cst.Decl); !ok {
		t.Errorf("body[0] = %T, want *cst.Decl", body[0])
	}
	call, ok := body[1].(*cst.Call)
	if !ok || call.Alias != "hello" || call.Inputs[0].Name != "msg" {
		t.Errorf("body[1] = %+v", body[1])
	}
	scatter, ok := body[2].(*cst.Scatter)
	if !ok || scatter.Variable != "x" {
		t.Fatalf("body[2] = %T", body[2])
	}
	cond, ok := scatter.Body[0].(*cst.Conditional)
	if !ok {
		t.Fatalf("scatter body = %T", scatter.Body[0])
	}
	if cond.Expr.(*cst.BinaryExpr).Op != cst.OpGt {
		t.Errorf("condition op = %v", cond.Expr.(*cst.BinaryExpr).Op)
	}
}

func TestDecodeFixturePlaceholderOptions(t *testing.T) {
	data := []byte(`{
		"version": "1.0",
		"tasks": [{
			"name": "t",
			"inputs": [{"type": "Array[String]", "name": "xs"}, {"type": "Boolean", "name": "flag"}, {"type": "String?", "name": "opt"}],
			"command": [
				{"placeholder": {"expr": {"kind": "ident", "name": "xs"}, "sep": ","}},
				{"placeholder": {"expr": {"kind": "ident", "name": "flag"}, "true": "-v", "false": ""}},
				{"placeholder": {"expr": {"kind": "ident", "name": "opt"}, "default": {"kind": "string", "parts": [{"text": "none"}]}}}
			]
		}]
	}`)
	doc, err := decodeFixture("t.wdl", data)
	if err != nil {
		t.Fatal(err)
	}
	parts := doc.Tasks[0].Command.Parts
	if parts[0].Placeholder.Options[0].Kind != cst.OptSep || parts[0].Placeholder.Options[0].Sep != "," {
		t.Errorf("sep option = %+v", parts[0].Placeholder.Options[0])
	}
	if parts[1].Placeholder.Options[0].Kind != cst.OptTrueFalse {
		t.Errorf("true/false option = %+v", parts[1].Placeholder.Options[0])
	}
	if parts[2].Placeholder.Options[0].Kind != cst.OptDefault || parts[2].Placeholder.Options[0].Default == nil {
		t.Errorf("default option = %+v", parts[2].Placeholder.Options[0])
	}
}

func TestDecodeFixtureRejectsUnknownExprKind(t *testing.T) {
	data := []byte(`{
		"version": "1.0",
		"workflow": {"name": "w", "body": [{"type": "Int", "name": "n", "value": {"kind": "warp"}}]}
	}`)
	if _, err := decodeFixture("bad.wdl", data); err == nil {
		t.Error("unknown expression kind must fail decoding")
	}
}

func TestDecodeFixtureRejectsBadJSON(t *testing.T) {
	if _, err := decodeFixture("bad.wdl", []byte("{nope")); err == nil {
		t.Error("malformed JSON must fail")
	}
}
