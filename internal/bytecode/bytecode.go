// Package bytecode implements the on-disk container format described
// in spec §6: a little-endian stream of (code, constant pool, name
// table) sections produced by Vasuki's external compiler and consumed
// here by Load. Write exists only to build test fixtures, since the
// compiler that would normally emit this format is out of scope.
package bytecode

import (
	"bufio"
	"encoding/binary"
	"io"

	"vasuki/internal/value"
	"vasuki/internal/vmerr"
)

const (
	constNull   = 0
	constBool   = 1
	constInt    = 2
	constFloat  = 3
	constString = 4
)

// Image is the fully-decoded result of loading a bytecode container:
// the code stream, the constant pool, and the interned name table.
type Image struct {
	Code      []byte
	Constants []value.Value
	Names     []string
}

// Load decodes a bytecode container from r. Any truncation, negative
// length, or unrecognized constant tag is reported as
// vmerr.MalformedBytecode, matching spec §4.3 — the loader does not
// validate code-level invariants like jump targets; those are only
// discovered lazily during execution.
func Load(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)

	codeSize, err := readU32(br)
	if err != nil {
		return nil, malformed("reading code size: %v", err)
	}
	code := make([]byte, codeSize)
	if _, err := io.ReadFull(br, code); err != nil {
		return nil, malformed("reading code (%d bytes): %v", codeSize, err)
	}

	constCount, err := readU32(br)
	if err != nil {
		return nil, malformed("reading constant count: %v", err)
	}
	constants := make([]value.Value, 0, constCount)
	for i := uint32(0); i < constCount; i++ {
		c, err := readConstant(br)
		if err != nil {
			return nil, malformed("reading constant %d: %v", i, err)
		}
		constants = append(constants, c)
	}

	nameCount, err := readU32(br)
	if err != nil {
		return nil, malformed("reading name count: %v", err)
	}
	names := make([]string, 0, nameCount)
	for i := uint32(0); i < nameCount; i++ {
		n, err := readString(br)
		if err != nil {
			return nil, malformed("reading name %d: %v", i, err)
		}
		names = append(names, n)
	}

	return &Image{Code: code, Constants: constants, Names: names}, nil
}

func readConstant(r io.Reader) (value.Value, error) {
	var tag uint8
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return value.Value{}, err
	}
	switch tag {
	case constNull:
		return value.NewNull(), nil
	case constBool:
		var b uint8
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return value.Value{}, err
		}
		return value.NewBool(b != 0), nil
	case constInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return value.Value{}, err
		}
		return value.NewInt(i), nil
	case constFloat:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return value.Value{}, err
		}
		return value.NewFloat(f), nil
	case constString:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewString(s), nil
	default:
		return value.Value{}, malformed("unknown constant tag %d", tag)
	}
}

func readString(r io.Reader) (string, error) {
	length, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func malformed(format string, args ...any) error {
	return vmerr.New(vmerr.MalformedBytecode, format, args...)
}

// Write encodes img in the container format. It is used by this
// package's own round-trip test to produce a container without a
// compiler.
func Write(w io.Writer, img *Image) error {
	if err := writeU32(w, uint32(len(img.Code))); err != nil {
		return err
	}
	if _, err := w.Write(img.Code); err != nil {
		return err
	}

	if err := writeU32(w, uint32(len(img.Constants))); err != nil {
		return err
	}
	for _, c := range img.Constants {
		if err := writeConstant(w, c); err != nil {
			return err
		}
	}

	if err := writeU32(w, uint32(len(img.Names))); err != nil {
		return err
	}
	for _, n := range img.Names {
		if err := writeString(w, n); err != nil {
			return err
		}
	}
	return nil
}

func writeConstant(w io.Writer, v value.Value) error {
	switch v.Kind() {
	case value.Null:
		return binary.Write(w, binary.LittleEndian, uint8(constNull))
	case value.Bool:
		if err := binary.Write(w, binary.LittleEndian, uint8(constBool)); err != nil {
			return err
		}
		b := uint8(0)
		if v.Bool() {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)
	case value.Int:
		if err := binary.Write(w, binary.LittleEndian, uint8(constInt)); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.Int())
	case value.Float:
		if err := binary.Write(w, binary.LittleEndian, uint8(constFloat)); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.Float())
	case value.String:
		if err := binary.Write(w, binary.LittleEndian, uint8(constString)); err != nil {
			return err
		}
		return writeString(w, v.Str())
	default:
		return vmerr.New(vmerr.MalformedBytecode, "cannot encode %s as a constant", v.Kind())
	}
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}
