package bytecode

import (
	"bytes"
	"testing"

	"vasuki/internal/value"
	"vasuki/internal/vmerr"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	asm := NewAssembler().PushInt(42).Print().Halt()
	img := &Image{
		Code:      asm.Bytes(),
		Constants: []value.Value{value.NewFloat(1.5), value.NewString("k")},
		Names:     []string{"x", "total"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !bytes.Equal(got.Code, img.Code) {
		t.Errorf("code mismatch: got %v want %v", got.Code, img.Code)
	}
	if len(got.Constants) != 2 || got.Constants[0].Float() != 1.5 || got.Constants[1].Str() != "k" {
		t.Errorf("constants mismatch: %+v", got.Constants)
	}
	if len(got.Names) != 2 || got.Names[0] != "x" || got.Names[1] != "total" {
		t.Errorf("names mismatch: %+v", got.Names)
	}
}

func TestLoadMalformedTruncatedCode(t *testing.T) {
	var buf bytes.Buffer
	// claims 10 bytes of code but supplies none
	buf.Write([]byte{10, 0, 0, 0})

	_, err := Load(&buf)
	if !vmerr.Is(err, vmerr.MalformedBytecode) {
		t.Errorf("expected MalformedBytecode, got %v", err)
	}
}

func TestLoadMalformedConstantTag(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0}) // zero-length code
	buf.Write([]byte{1, 0, 0, 0}) // one constant
	buf.Write([]byte{99})        // unknown tag

	_, err := Load(&buf)
	if !vmerr.Is(err, vmerr.MalformedBytecode) {
		t.Errorf("expected MalformedBytecode, got %v", err)
	}
}

func TestAssemblerLen(t *testing.T) {
	asm := NewAssembler()
	start := asm.Len()
	asm.PushInt(1)
	if asm.Len() != start+5 {
		t.Errorf("expected PushInt to append 5 bytes, got delta %d", asm.Len()-start)
	}
}
