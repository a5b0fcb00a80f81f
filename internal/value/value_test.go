package value

import (
	"testing"

	"vasuki/internal/vmerr"
)

func TestToString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{NewNull(), "null"},
		{NewBool(true), "true"},
		{NewBool(false), "false"},
		{NewInt(42), "42"},
		{NewFloat(3.5), "3.5"},
		{NewFloat(3.0), "3"},
		{NewString("hi"), "hi"},
		{NewArray([]Value{NewInt(1), NewInt(2)}), "[1, 2]"},
	}
	for _, c := range cases {
		if got := c.v.ToString(); got != c.want {
			t.Errorf("ToString(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestAddStringCoercion(t *testing.T) {
	r, err := Add(NewString("n="), NewInt(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Str() != "n=5" {
		t.Errorf("got %q, want %q", r.Str(), "n=5")
	}
}

func TestAddFloatPromotion(t *testing.T) {
	r, err := Add(NewInt(1), NewFloat(2.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsFloat() || r.Float() != 3.5 {
		t.Errorf("got %v, want float 3.5", r)
	}
}

func TestAddArrayConcat(t *testing.T) {
	a := NewArray([]Value{NewInt(1)})
	b := NewArray([]Value{NewInt(2)})
	r, err := Add(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Array().Elems) != 2 {
		t.Errorf("got %d elems, want 2", len(r.Array().Elems))
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := Div(NewInt(1), NewInt(0))
	if !vmerr.Is(err, vmerr.DivideByZero) {
		t.Errorf("expected DivideByZero, got %v", err)
	}
}

func TestModuloByZero(t *testing.T) {
	_, err := Mod(NewInt(1), NewInt(0))
	if !vmerr.Is(err, vmerr.ModuloByZero) {
		t.Errorf("expected ModuloByZero, got %v", err)
	}
}

func TestStringRepeat(t *testing.T) {
	r, err := Mul(NewString("ab"), NewInt(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Str() != "ababab" {
		t.Errorf("got %q", r.Str())
	}
}

func TestStringRepeatNegativeCount(t *testing.T) {
	r, err := Mul(NewString("ab"), NewInt(-1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Str() != "" {
		t.Errorf("got %q, want empty string", r.Str())
	}
}

func TestPowIntTruncates(t *testing.T) {
	r, err := Pow(NewInt(2), NewInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsInt() || r.Int() != 1024 {
		t.Errorf("got %v, want int 1024", r)
	}
}

func TestPowFloatPromotion(t *testing.T) {
	r, err := Pow(NewInt(2), NewFloat(0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsFloat() {
		t.Errorf("expected float result, got %v", r)
	}
}

func TestEqualCrossNumeric(t *testing.T) {
	if !Equal(NewInt(2), NewFloat(2.0)) {
		t.Error("expected 2 == 2.0")
	}
	if Equal(NewInt(2), NewString("2")) {
		t.Error("expected int 2 != string \"2\"")
	}
}

func TestComparisonDerivation(t *testing.T) {
	lte, err := LessEqual(NewInt(2), NewInt(2))
	if err != nil || !lte {
		t.Errorf("2 <= 2 should be true, got %v err=%v", lte, err)
	}
	gt, err := Greater(NewInt(3), NewInt(2))
	if err != nil || !gt {
		t.Errorf("3 > 2 should be true, got %v err=%v", gt, err)
	}
	gte, err := GreaterEqual(NewInt(2), NewInt(2))
	if err != nil || !gte {
		t.Errorf("2 >= 2 should be true, got %v err=%v", gte, err)
	}
}

func TestTypeMismatch(t *testing.T) {
	_, err := Sub(NewString("x"), NewInt(1))
	if !vmerr.Is(err, vmerr.TypeMismatch) {
		t.Errorf("expected TypeMismatch, got %v", err)
	}
}

func TestNegUnsupported(t *testing.T) {
	_, err := Neg(NewString("x"))
	if !vmerr.Is(err, vmerr.TypeMismatch) {
		t.Errorf("expected TypeMismatch, got %v", err)
	}
}

// Property 2: for all Int a,b with b != 0, (a/b)*b + (a%b) == a.
func TestPropertyDivModIdentity(t *testing.T) {
	pairs := [][2]int64{{7, 2}, {-7, 2}, {7, -2}, {-7, -2}, {100, 3}, {0, 5}, {5, 1}}
	for _, p := range pairs {
		a, b := NewInt(p[0]), NewInt(p[1])
		q, err := Div(a, b)
		if err != nil {
			t.Fatalf("Div(%d,%d): %v", p[0], p[1], err)
		}
		m, err := Mod(a, b)
		if err != nil {
			t.Fatalf("Mod(%d,%d): %v", p[0], p[1], err)
		}
		qb, err := Mul(q, b)
		if err != nil {
			t.Fatalf("Mul: %v", err)
		}
		sum, err := Add(qb, m)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if sum.Int() != p[0] {
			t.Errorf("(%d/%d)*%d + (%d%%%d) = %d, want %d", p[0], p[1], p[1], p[0], p[1], sum.Int(), p[0])
		}
	}
}
