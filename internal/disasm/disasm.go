// Package disasm implements a read-only, sequential disassembler over
// a loaded bytecode image: one line per instruction, operands resolved
// against the constant pool and name table where possible.
package disasm

import (
	"encoding/binary"
	"fmt"
	"io"

	"vasuki/internal/bytecode"
)

// Listing decodes every instruction in img.Code from offset 0 and
// writes one line per instruction to w, in the style
// "<offset> <mnemonic> <operands>". A truncated final instruction is
// reported as "<incomplete>" rather than aborting the whole listing,
// and an operand index beyond the constant pool or name table is
// reported as "<invalid index>" rather than panicking.
func Listing(w io.Writer, img *bytecode.Image) error {
	d := &decoder{code: img.Code, img: img}
	for d.ip < len(d.code) {
		offset := d.ip
		op := bytecode.Opcode(d.code[d.ip])
		d.ip++

		if !op.Valid() {
			fmt.Fprintf(w, "%04d %-14s <invalid opcode %d>\n", offset, "?", d.code[offset])
			continue
		}

		operands, ok := d.decode(op)
		if !ok {
			fmt.Fprintf(w, "%04d %-14s <incomplete>\n", offset, op)
			return nil
		}
		if operands == "" {
			fmt.Fprintf(w, "%04d %-14s\n", offset, op)
		} else {
			fmt.Fprintf(w, "%04d %-14s %s\n", offset, op, operands)
		}
	}
	return nil
}

type decoder struct {
	code []byte
	img  *bytecode.Image
	ip   int
}

func (d *decoder) u8() (uint8, bool) {
	if d.ip+1 > len(d.code) {
		return 0, false
	}
	v := d.code[d.ip]
	d.ip++
	return v, true
}

func (d *decoder) u16() (uint16, bool) {
	if d.ip+2 > len(d.code) {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(d.code[d.ip:])
	d.ip += 2
	return v, true
}

func (d *decoder) i32() (int32, bool) {
	if d.ip+4 > len(d.code) {
		return 0, false
	}
	v := int32(binary.LittleEndian.Uint32(d.code[d.ip:]))
	d.ip += 4
	return v, true
}

func (d *decoder) constantRef(idx uint8) string {
	if int(idx) >= len(d.img.Constants) {
		return fmt.Sprintf("#%d <invalid index>", idx)
	}
	return fmt.Sprintf("#%d (%s)", idx, d.img.Constants[idx].ToString())
}

func (d *decoder) nameRef(idx uint16) string {
	if int(idx) >= len(d.img.Names) {
		return fmt.Sprintf("#%d <invalid index>", idx)
	}
	return fmt.Sprintf("#%d (%s)", idx, d.img.Names[idx])
}

// decode reads op's operands and renders them. ok is false only on
// truncation (not enough bytes left in the stream).
func (d *decoder) decode(op bytecode.Opcode) (string, bool) {
	switch op {
	case bytecode.HALT, bytecode.NOP, bytecode.POP, bytecode.DUP,
		bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD, bytecode.NEG, bytecode.POW,
		bytecode.EQ, bytecode.NEQ, bytecode.LT, bytecode.LTE, bytecode.GT, bytecode.GTE,
		bytecode.AND, bytecode.OR, bytecode.NOT,
		bytecode.RETURN, bytecode.GET_PROPERTY, bytecode.SET_PROPERTY, bytecode.PRINT,
		bytecode.PUSH_NULL, bytecode.PUSH_TRUE, bytecode.PUSH_FALSE:
		return "", true

	case bytecode.PUSH_INT:
		v, ok := d.i32()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%d", v), true

	case bytecode.PUSH_FLOAT, bytecode.PUSH_CONSTANT:
		idx, ok := d.u8()
		if !ok {
			return "", false
		}
		return d.constantRef(idx), true

	case bytecode.PUSH_BOOL:
		v, ok := d.u8()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%t", v != 0), true

	case bytecode.POP_N:
		n, ok := d.u8()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%d", n), true

	case bytecode.CALL, bytecode.TAIL_CALL:
		argc, ok := d.u8()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("argc=%d", argc), true

	case bytecode.PUSH_STRING, bytecode.GET_GLOBAL, bytecode.SET_GLOBAL, bytecode.DEFINE_GLOBAL,
		bytecode.GET_LOCAL, bytecode.SET_LOCAL, bytecode.DEFINE_LOCAL:
		idx, ok := d.u16()
		if !ok {
			return "", false
		}
		return d.nameRef(idx), true

	case bytecode.LIST, bytecode.DICT:
		n, ok := d.u16()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("n=%d", n), true

	case bytecode.JUMP, bytecode.JUMP_IF_FALSE, bytecode.JUMP_IF_TRUE:
		offset, ok := d.i32()
		if !ok {
			return "", false
		}
		target := d.ip + int(offset)
		return fmt.Sprintf("%+d -> %04d", offset, target), true

	case bytecode.FUNCTION:
		nameIdx, ok := d.u16()
		if !ok {
			return "", false
		}
		startPos, ok := d.i32()
		if !ok {
			return "", false
		}
		paramCount, ok := d.u8()
		if !ok {
			return "", false
		}
		params := make([]uint16, paramCount)
		for i := range params {
			p, ok := d.u16()
			if !ok {
				return "", false
			}
			params[i] = p
		}
		s := fmt.Sprintf("%s start=%04d params=[", d.nameRef(nameIdx), startPos)
		for i, p := range params {
			if i > 0 {
				s += ", "
			}
			s += d.nameRef(p)
		}
		s += "]"
		return s, true

	default:
		return "", true
	}
}
