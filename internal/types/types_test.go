package types

import "testing"

func TestDisplay(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Boolean, "Boolean"},
		{Int, "Int"},
		{Float, "Float"},
		{String, "String"},
		{File, "File"},
		{Directory, "Directory"},
		{Array{Element: File}, "Array[File]"},
		{Array{Element: File, NonEmpty: true}, "Array[File]+"},
		{Opt(Array{Element: File, NonEmpty: true}), "Array[File]+?"},
		{Map{Key: String, Value: Int}, "Map[String,Int]"},
		{Pair{Left: Int, Right: Float}, "Pair[Int,Float]"},
		{Opt(String), "String?"},
		{Object{}, "Object"},
		{Union{}, "Union"},
		{NoneType{}, "None"},
		{Struct{Name: "Sample"}, "Sample"},
		{Array{Element: Map{Key: String, Value: Opt(File)}}, "Array[Map[String,File?]]"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSubtypeReflexive(t *testing.T) {
	all := []Type{
		Boolean, Int, Float, String, File, Directory,
		Array{Element: Int}, Array{Element: Int, NonEmpty: true},
		Map{Key: String, Value: File}, Pair{Left: Int, Right: String},
		Opt(Int), Union{}, NoneType{}, Object{},
		Struct{Name: "S", Members: []Member{{Name: "x", Type: Int}}},
	}
	for _, typ := range all {
		if !Subtype(typ, typ) {
			t.Errorf("Subtype(%s, %s) = false, want true", typ, typ)
		}
	}
}

func TestSubtype(t *testing.T) {
	tests := []struct {
		a, b Type
		want bool
	}{
		{Int, Opt(Int), true},                        // T <: T?
		{Opt(Int), Int, false},                       // reverse needs narrowing
		{NoneType{}, Opt(String), true},              // None <: every optional
		{NoneType{}, String, false},
		{File, String, true},                         // File -> String widening
		{Directory, String, true},
		{String, File, false},
		{Array{Element: Int, NonEmpty: true}, Array{Element: Int}, true},
		{Array{Element: Int}, Array{Element: Int, NonEmpty: true}, false},
		{Array{Element: File}, Array{Element: String}, true}, // element-wise
		{Union{}, Int, true},                         // Union absorbs both ways
		{Int, Union{}, true},
		{Map{Key: String, Value: File}, Map{Key: String, Value: String}, true},
		{Pair{Left: File, Right: Int}, Pair{Left: String, Right: Int}, true},
		{Int, Float, false}, // numeric promotion is a coercion, not a subtype
	}
	for _, tt := range tests {
		if got := Subtype(tt.a, tt.b); got != tt.want {
			t.Errorf("Subtype(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSubtypeTransitive(t *testing.T) {
	// File <: String and String <: String? imply File <: String?.
	if !Subtype(File, String) || !Subtype(String, Opt(String)) {
		t.Fatal("premises failed")
	}
	if !Subtype(File, Opt(String)) {
		t.Error("Subtype(File, String?) = false, want true (transitivity)")
	}
}

func TestStructStructuralEquality(t *testing.T) {
	a := Struct{Name: "A", Members: []Member{{Name: "x", Type: Int}, {Name: "y", Type: Opt(File)}}}
	b := Struct{Name: "AliasedA", Members: []Member{{Name: "x", Type: Int}, {Name: "y", Type: Opt(File)}}}
	c := Struct{Name: "C", Members: []Member{{Name: "y", Type: Opt(File)}, {Name: "x", Type: Int}}}

	if !Subtype(a, b) || !Subtype(b, a) {
		t.Error("structurally identical structs with different names should be subtype-equivalent")
	}
	if Subtype(a, c) {
		t.Error("member order is significant; reordered struct should not match")
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		from, to       Type
		allowNarrowing bool
		want           CoerceKind
	}{
		{Int, Int, false, Identity},
		{Array{Element: Int}, Array{Element: Int}, false, Identity},
		{File, String, false, Widen},
		{Int, Opt(Int), false, OptionalCoerce},
		{Opt(Int), Int, false, NoCoercion},
		{Opt(Int), Int, true, Narrow},
		{Int, Float, false, Widen},
		{Float, Int, false, NoCoercion},
		{Int, String, false, StringCoerce},
		{String, File, false, StringCoerce},
		{Boolean, String, false, StringCoerce},
		{Array{Element: File}, Array{Element: String}, false, Widen},
		{Array{Element: Int}, Array{Element: Int, NonEmpty: true}, false, NoCoercion},
		{Array{Element: Int, NonEmpty: true}, Array{Element: Int}, false, Widen},
		{NoneType{}, Opt(String), false, Widen},
		{Union{}, Int, false, Identity}, // recovery type is absorbed anywhere
		{Map{Key: String, Value: Int}, Array{Element: Int}, false, NoCoercion},
		{Int, Opt(String), false, OptionalCoerce},
	}
	for _, tt := range tests {
		if got := Coerce(tt.from, tt.to, tt.allowNarrowing); got != tt.want {
			t.Errorf("Coerce(%s, %s, narrowing=%v) = %s, want %s", tt.from, tt.to, tt.allowNarrowing, got, tt.want)
		}
	}
}

func TestCoerceRankingOrder(t *testing.T) {
	// The overload ranking of spec relies on this exact ordering.
	order := []CoerceKind{Identity, Widen, OptionalCoerce, Narrow, StringCoerce, NoCoercion}
	for i := 1; i < len(order); i++ {
		if !(order[i-1] < order[i]) {
			t.Errorf("ranking broken: %s should rank before %s", order[i-1], order[i])
		}
	}
}

func TestCommon(t *testing.T) {
	tests := []struct {
		a, b Type
		want string
		ok   bool
	}{
		{Int, Int, "Int", true},
		{Int, Float, "Float", true},
		{Float, Int, "Float", true},
		{File, String, "String", true},
		{Int, Opt(Int), "Int?", true},
		{NoneType{}, Int, "Int?", true},
		{Int, NoneType{}, "Int?", true},
		{Array{Element: Int}, Array{Element: NoneType{}}, "Array[Int?]", true},
		{Array{Element: Int, NonEmpty: true}, Array{Element: Int}, "Array[Int]", true},
		{Pair{Left: Int, Right: File}, Pair{Left: Float, Right: String}, "Pair[Float,String]", true},
		{Int, Boolean, "", false},
		{Array{Element: Int}, Map{Key: String, Value: Int}, "", false},
	}
	for _, tt := range tests {
		got, ok := Common(tt.a, tt.b)
		if ok != tt.ok {
			t.Errorf("Common(%s, %s) ok = %v, want %v", tt.a, tt.b, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("Common(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCommonLeftBias(t *testing.T) {
	// When both directions work, the left operand's preference wins: with
	// a <: b the result is b, and with b <: a the result is a.
	got, ok := Common(Array{Element: Int, NonEmpty: true}, Array{Element: Int})
	if !ok || got.String() != "Array[Int]" {
		t.Errorf("Common(Array[Int]+, Array[Int]) = %v, want Array[Int]", got)
	}
	got, ok = Common(Array{Element: Int}, Array{Element: Int, NonEmpty: true})
	if !ok || got.String() != "Array[Int]" {
		t.Errorf("Common(Array[Int], Array[Int]+) = %v, want Array[Int]", got)
	}
}

func TestOptNormalization(t *testing.T) {
	if got := Opt(Opt(Int)); got.String() != "Int?" {
		t.Errorf("Opt(Opt(Int)) = %s, want Int?", got)
	}
	if got := Opt(Union{}); got.String() != "Union" {
		t.Errorf("Opt(Union) = %s, want Union", got)
	}
	if got := Opt(NoneType{}); got.String() != "None" {
		t.Errorf("Opt(None) = %s, want None", got)
	}
}

func TestCallOutputWrapping(t *testing.T) {
	co := CallOutput{CallName: "align", Members: []Member{
		{Name: "bam", Type: File},
		{Name: "count", Type: Int},
	}}
	if got, ok := co.MemberType("bam"); !ok || got.String() != "File" {
		t.Errorf("MemberType(bam) = %v, %v", got, ok)
	}
	if _, ok := co.MemberType("missing"); ok {
		t.Error("MemberType(missing) should not resolve")
	}
	if got := ScatterWrap(File); got.String() != "Array[File]" {
		t.Errorf("ScatterWrap(File) = %s", got)
	}
	if got := ConditionalWrap(File); got.String() != "File?" {
		t.Errorf("ConditionalWrap(File) = %s", got)
	}
}
