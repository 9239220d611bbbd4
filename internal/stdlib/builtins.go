package stdlib

import "github.com/wdlsema/wdlsema/internal/types"

// NewCatalog builds the catalog of WDL built-in functions, grouped the way
// the WDL specs 1.0-1.2 group them: file I/O, string/regex, array/map
// utilities, and "select" optional helpers.
func NewCatalog() *Catalog {
	c := &Catalog{}

	req := func(name string, t types.Type, constraint ConstraintKind) Param {
		return Param{Name: name, Type: t, Constraint: constraint}
	}
	sig := func(ret types.Type, params ...Param) Signature {
		return Signature{Params: params, Return: constant(ret)}
	}
	sigV := func(version string, ret types.Type, params ...Param) Signature {
		return Signature{Params: params, Return: constant(ret), MinVersion: version}
	}

	// File/string reading.
	c.add(Function{Name: "read_lines", Signatures: []Signature{sig(types.Array{Element: types.String}, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_string", Signatures: []Signature{sig(types.String, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_int", Signatures: []Signature{sig(types.Int, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_float", Signatures: []Signature{sig(types.Float, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_boolean", Signatures: []Signature{sig(types.Boolean, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_map", Signatures: []Signature{sig(types.Map{Key: types.String, Value: types.String}, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_object", Signatures: []Signature{sig(types.Object{}, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_objects", Signatures: []Signature{sig(types.Array{Element: types.Object{}}, req("f", types.File, ConstraintNone))}})
	c.add(Function{Name: "read_json", Signatures: []Signature{sig(types.Any, req("f", types.File, ConstraintJSONSerializable))}})
	c.add(Function{Name: "read_tsv", Signatures: []Signature{sig(types.Array{Element: types.Array{Element: types.String}}, req("f", types.File, ConstraintNone))}})

	// File writing.
	c.add(Function{Name: "write_lines", Signatures: []Signature{sig(types.File, req("lines", types.Array{Element: types.String}, ConstraintNone))}})
	c.add(Function{Name: "write_json", Signatures: []Signature{sig(types.File, req("value", types.Any, ConstraintJSONSerializable))}})
	c.add(Function{Name: "write_map", Signatures: []Signature{sig(types.File, req("m", types.Map{Key: types.String, Value: types.String}, ConstraintNone))}})
	c.add(Function{Name: "write_tsv", Signatures: []Signature{sig(types.File, req("rows", types.Array{Element: types.Array{Element: types.String}}, ConstraintNone))}})
	c.add(Function{Name: "write_object", Signatures: []Signature{sig(types.File, req("obj", types.Object{}, ConstraintStructWithPrimitiveMembers))}})
	c.add(Function{Name: "write_objects", Signatures: []Signature{sig(types.File, req("objs", types.Array{Element: types.Object{}}, ConstraintNone))}})

	// Path/string utilities.
	c.add(Function{Name: "basename", Signatures: []Signature{
		sig(types.String, req("path", types.File, ConstraintNone)),
		sig(types.String, req("path", types.File, ConstraintNone), req("suffix", types.String, ConstraintNone)),
	}})
	c.add(Function{Name: "sub", Signatures: []Signature{
		sig(types.String, req("input", types.String, ConstraintNone), req("pattern", types.String, ConstraintNone), req("replace", types.String, ConstraintNone)),
	}})
	c.add(Function{Name: "length", Signatures: []Signature{
		sig(types.Int, req("a", types.Array{Element: types.Any}, ConstraintNone)),
		sig(types.Int, req("m", types.Map{Key: types.Any, Value: types.Any}, ConstraintNone)),
		sigV("1.1", types.Int, req("s", types.String, ConstraintNone)),
	}})
	c.add(Function{Name: "size", Signatures: []Signature{
		sig(types.Float, req("f", types.Opt(types.File), ConstraintNone)),
		sig(types.Float, req("f", types.Opt(types.File), ConstraintNone), req("unit", types.String, ConstraintNone)),
		sig(types.Float, req("d", types.Opt(types.Directory), ConstraintNone)),
		sig(types.Float, req("files", types.Array{Element: types.Opt(types.File)}, ConstraintNone)),
	}})

	// Rounding/math.
	c.add(Function{Name: "ceil", Signatures: []Signature{sig(types.Int, req("x", types.Float, ConstraintNone))}})
	c.add(Function{Name: "floor", Signatures: []Signature{sig(types.Int, req("x", types.Float, ConstraintNone))}})
	c.add(Function{Name: "round", Signatures: []Signature{sig(types.Int, req("x", types.Float, ConstraintNone))}})
	c.add(Function{Name: "min", Signatures: []Signature{
		sig(types.Int, req("a", types.Int, ConstraintNone), req("b", types.Int, ConstraintNone)),
		sig(types.Float, req("a", types.Float, ConstraintNone), req("b", types.Float, ConstraintNone)),
	}})
	c.add(Function{Name: "max", Signatures: []Signature{
		sig(types.Int, req("a", types.Int, ConstraintNone), req("b", types.Int, ConstraintNone)),
		sig(types.Float, req("a", types.Float, ConstraintNone), req("b", types.Float, ConstraintNone)),
	}})

	// Array utilities.
	c.add(Function{Name: "range", Signatures: []Signature{sig(types.Array{Element: types.Int}, req("n", types.Int, ConstraintNone))}})
	c.add(Function{Name: "transpose", Signatures: []Signature{sig(types.Array{Element: types.Array{Element: types.Any}}, req("a", types.Array{Element: types.Array{Element: types.Any}}, ConstraintNone))}})
	c.add(Function{Name: "zip", Signatures: []Signature{sig(types.Array{Element: types.Pair{Left: types.Any, Right: types.Any}}, req("a", types.Array{Element: types.Any}, ConstraintNone), req("b", types.Array{Element: types.Any}, ConstraintNone))}})
	c.add(Function{Name: "cross", Signatures: []Signature{sig(types.Array{Element: types.Pair{Left: types.Any, Right: types.Any}}, req("a", types.Array{Element: types.Any}, ConstraintNone), req("b", types.Array{Element: types.Any}, ConstraintNone))}})
	c.add(Function{Name: "flatten", Signatures: []Signature{sig(types.Array{Element: types.Any}, req("a", types.Array{Element: types.Array{Element: types.Any}}, ConstraintNone))}})
	c.add(Function{Name: "prefix", Signatures: []Signature{sig(types.Array{Element: types.String}, req("p", types.String, ConstraintNone), req("a", types.Array{Element: types.Any}, ConstraintPrimitiveType))}})
	c.add(Function{Name: "suffix", Signatures: []Signature{sigV("1.2", types.Array{Element: types.String}, req("p", types.String, ConstraintNone), req("a", types.Array{Element: types.Any}, ConstraintPrimitiveType))}})
	c.add(Function{Name: "quote", Signatures: []Signature{sigV("1.1", types.Array{Element: types.String}, req("a", types.Array{Element: types.Any}, ConstraintPrimitiveType))}})
	c.add(Function{Name: "squote", Signatures: []Signature{sigV("1.1", types.Array{Element: types.String}, req("a", types.Array{Element: types.Any}, ConstraintPrimitiveType))}})
	c.add(Function{Name: "sep", Signatures: []Signature{sigV("1.1", types.String, req("separator", types.String, ConstraintNone), req("a", types.Array{Element: types.Any}, ConstraintPrimitiveType))}})
	c.add(Function{Name: "unzip", Signatures: []Signature{sigV("1.2", types.Pair{Left: types.Array{Element: types.Any}, Right: types.Array{Element: types.Any}}, req("a", types.Array{Element: types.Pair{Left: types.Any, Right: types.Any}}, ConstraintNone))}})
	c.add(Function{Name: "contains", Signatures: []Signature{sigV("1.2", types.Boolean, req("a", types.Array{Element: types.Any}, ConstraintPrimitiveType), req("x", types.Any, ConstraintPrimitiveType))}})
	c.add(Function{Name: "chunk", Signatures: []Signature{sigV("1.2", types.Array{Element: types.Array{Element: types.Any}}, req("a", types.Array{Element: types.Any}, ConstraintNone), req("n", types.Int, ConstraintNone))}})
	c.add(Function{Name: "keys", Signatures: []Signature{sig(types.Array{Element: types.Any}, req("m", types.Map{Key: types.Any, Value: types.Any}, ConstraintNone))}})
	c.add(Function{Name: "values", Signatures: []Signature{sigV("1.2", types.Array{Element: types.Any}, req("m", types.Map{Key: types.Any, Value: types.Any}, ConstraintNone))}})
	c.add(Function{Name: "as_pairs", Signatures: []Signature{sigV("1.1", types.Array{Element: types.Pair{Left: types.Any, Right: types.Any}}, req("m", types.Map{Key: types.Any, Value: types.Any}, ConstraintNone))}})
	c.add(Function{Name: "as_map", Signatures: []Signature{sigV("1.1", types.Map{Key: types.Any, Value: types.Any}, req("pairs", types.Array{Element: types.Pair{Left: types.Any, Right: types.Any}}, ConstraintNone))}})
	c.add(Function{Name: "collect_by_key", Signatures: []Signature{sigV("1.1", types.Map{Key: types.Any, Value: types.Array{Element: types.Any}}, req("pairs", types.Array{Element: types.Pair{Left: types.Any, Right: types.Any}}, ConstraintNone))}})

	// String/regex.
	c.add(Function{Name: "matches", Signatures: []Signature{sigV("1.2", types.Boolean, req("s", types.String, ConstraintNone), req("pattern", types.String, ConstraintNone))}})
	c.add(Function{Name: "find", Signatures: []Signature{sigV("1.2", types.Opt(types.String), req("s", types.String, ConstraintNone), req("pattern", types.String, ConstraintNone))}})

	// JSON round-trip.
	c.add(Function{Name: "to_json", Signatures: []Signature{sig(types.String, req("value", types.Any, ConstraintJSONSerializable))}})
	c.add(Function{Name: "from_json", Signatures: []Signature{sig(types.Any, req("s", types.String, ConstraintNone))}})

	// String conversion.
	c.add(Function{Name: "sub_str", Signatures: []Signature{sig(types.String, req("s", types.String, ConstraintNone), req("pattern", types.String, ConstraintNone), req("replace", types.String, ConstraintNone))}})
	c.add(Function{Name: "stdout", Signatures: []Signature{sig(types.File)}})
	c.add(Function{Name: "stderr", Signatures: []Signature{sig(types.File)}})
	c.add(Function{Name: "glob", Signatures: []Signature{sig(types.Array{Element: types.File}, req("pattern", types.String, ConstraintNone))}})

	// select_* / defined: formal types are Any-constrained (ConstraintAnyType);
	// the select_* return types are computed generically below.
	c.add(Function{Name: "select_first", Signatures: []Signature{
		{Params: []Param{req("values", types.Array{Element: types.Any}, ConstraintAnyType)}, Return: selectFirstReturn},
	}})
	c.add(Function{Name: "select_all", Signatures: []Signature{
		{Params: []Param{req("values", types.Array{Element: types.Any}, ConstraintAnyType)}, Return: selectAllReturn},
	}})
	c.add(Function{Name: "defined", Signatures: []Signature{sig(types.Boolean, req("value", types.Any, ConstraintAnyType))}})

	return c
}

// selectFirstReturn unwraps one layer of optional from the argument array's
// element type: select_first(Array[T?]) -> T.
func selectFirstReturn(args []types.Type) types.Type {
	arr, ok := args[0].(types.Array)
	if !ok {
		return types.Any
	}
	inner, _ := types.Unwrap(arr.Element)
	return inner
}

// selectAllReturn is select_all(Array[T?]) -> Array[T].
func selectAllReturn(args []types.Type) types.Type {
	arr, ok := args[0].(types.Array)
	if !ok {
		return types.Any
	}
	inner, _ := types.Unwrap(arr.Element)
	return types.Array{Element: inner}
}
