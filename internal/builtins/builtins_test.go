package builtins

import (
	"bytes"
	"strings"
	"testing"

	"vasuki/internal/value"
	"vasuki/internal/vmerr"
)

func TestPrintWritesSpaceJoinedWithNewline(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	_, err := r.Call("print", []value.Value{value.NewString("a"), value.NewInt(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "a 1\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestLengthVariants(t *testing.T) {
	r := New(&bytes.Buffer{})

	s, _ := r.Call("length", []value.Value{value.NewString("hello")})
	if s.Int() != 5 {
		t.Errorf("string length: got %v", s)
	}

	a, _ := r.Call("length", []value.Value{value.NewArray([]value.Value{value.NewInt(1), value.NewInt(2)})})
	if a.Int() != 2 {
		t.Errorf("array length: got %v", a)
	}

	d, _ := r.Call("length", []value.Value{value.NewDict(map[string]value.Value{"a": value.NewInt(1)})})
	if d.Int() != 1 {
		t.Errorf("dict length: got %v", d)
	}

	_, err := r.Call("length", []value.Value{value.NewInt(1)})
	if !vmerr.Is(err, vmerr.TypeMismatch) {
		t.Errorf("expected TypeMismatch for int, got %v", err)
	}
}

func TestArityMismatch(t *testing.T) {
	r := New(&bytes.Buffer{})
	_, err := r.Call("length", nil)
	if !vmerr.Is(err, vmerr.ArityMismatch) {
		t.Errorf("expected ArityMismatch, got %v", err)
	}
}

func TestUnknownBuiltinIsNotCallable(t *testing.T) {
	r := New(&bytes.Buffer{})
	_, err := r.Call("nonexistent", nil)
	if !vmerr.Is(err, vmerr.NotCallable) {
		t.Errorf("expected NotCallable, got %v", err)
	}
}

func TestToIntConversions(t *testing.T) {
	r := New(&bytes.Buffer{})

	cases := []struct {
		in   value.Value
		want int64
	}{
		{value.NewFloat(3.9), 3},
		{value.NewString(" 42 "), 42},
		{value.NewBool(true), 1},
		{value.NewBool(false), 0},
	}
	for _, c := range cases {
		got, err := r.Call("to_int", []value.Value{c.in})
		if err != nil {
			t.Fatalf("unexpected error converting %v: %v", c.in, err)
		}
		if got.Int() != c.want {
			t.Errorf("to_int(%v) = %v, want %d", c.in, got, c.want)
		}
	}
}

func TestSplitOneBasedConvention(t *testing.T) {
	r := New(&bytes.Buffer{})
	result, err := r.Call("split", []value.Value{value.NewString("a,b,c"), value.NewString(",")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elems := result.Array().Elems
	if !elems[0].IsNull() {
		t.Errorf("index 0 should be the placeholder null, got %v", elems[0])
	}
	got := []string{elems[1].Str(), elems[2].Str(), elems[3].Str()}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSplitDefaultDelimiter(t *testing.T) {
	r := New(&bytes.Buffer{})
	result, _ := r.Call("split", []value.Value{value.NewString("a b c")})
	elems := result.Array().Elems
	if len(elems) != 4 {
		t.Fatalf("expected 1 placeholder + 3 tokens, got %d elems", len(elems))
	}
}

func TestDictKeysAndValuesOneBased(t *testing.T) {
	r := New(&bytes.Buffer{})
	d := value.NewDict(map[string]value.Value{"a": value.NewInt(1)})

	keys, err := r.Call("dict_keys", []value.Value{d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !keys.Array().Elems[0].IsNull() || keys.Array().Elems[1].Str() != "a" {
		t.Errorf("dict_keys layout unexpected: %+v", keys.Array().Elems)
	}

	values, err := r.Call("dict_values", []value.Value{d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !values.Array().Elems[0].IsNull() || values.Array().Elems[1].Int() != 1 {
		t.Errorf("dict_values layout unexpected: %+v", values.Array().Elems)
	}
}

func TestDictClearAndSize(t *testing.T) {
	r := New(&bytes.Buffer{})
	d := value.NewDict(map[string]value.Value{"a": value.NewInt(1), "b": value.NewInt(2)})

	size, _ := r.Call("dict_size", []value.Value{d})
	if size.Int() != 2 {
		t.Errorf("expected size 2, got %v", size)
	}

	_, err := r.Call("dict_clear", []value.Value{d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Dict().Entries) != 0 {
		t.Errorf("expected dict to be cleared, still has %d entries", len(d.Dict().Entries))
	}
}

func TestUppercaseLowercase(t *testing.T) {
	r := New(&bytes.Buffer{})
	u, _ := r.Call("uppercase", []value.Value{value.NewString("hi")})
	if u.Str() != "HI" {
		t.Errorf("got %q", u.Str())
	}
	l, _ := r.Call("lowercase", []value.Value{value.NewString("HI")})
	if l.Str() != "hi" {
		t.Errorf("got %q", l.Str())
	}
}

func TestTypeBuiltin(t *testing.T) {
	r := New(&bytes.Buffer{})
	got, _ := r.Call("type", []value.Value{value.NewInt(1)})
	if !strings.EqualFold(got.Str(), "integer") {
		t.Errorf("got %q", got.Str())
	}
}
