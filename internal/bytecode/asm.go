package bytecode

import "encoding/binary"

// Assembler accumulates a little-endian instruction stream by hand.
// It exists to build test fixtures for the VM and loader — the actual
// compiler that emits Vasuki bytecode is out of scope for this module.
type Assembler struct {
	buf []byte
}

func NewAssembler() *Assembler { return &Assembler{} }

func (a *Assembler) Bytes() []byte { return a.buf }

func (a *Assembler) op(op Opcode) *Assembler {
	a.buf = append(a.buf, byte(op))
	return a
}

func (a *Assembler) u8(v uint8) *Assembler {
	a.buf = append(a.buf, v)
	return a
}

func (a *Assembler) u16(v uint16) *Assembler {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *Assembler) i32(v int32) *Assembler {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *Assembler) Halt() *Assembler  { return a.op(HALT) }
func (a *Assembler) Nop() *Assembler   { return a.op(NOP) }
func (a *Assembler) Return() *Assembler { return a.op(RETURN) }

func (a *Assembler) PushInt(v int32) *Assembler       { return a.op(PUSH_INT).i32(v) }
func (a *Assembler) PushFloat(idx uint8) *Assembler   { return a.op(PUSH_FLOAT).u8(idx) }
func (a *Assembler) PushString(idx uint16) *Assembler { return a.op(PUSH_STRING).u16(idx) }
func (a *Assembler) PushBool(v bool) *Assembler {
	b := uint8(0)
	if v {
		b = 1
	}
	return a.op(PUSH_BOOL).u8(b)
}
func (a *Assembler) PushNull() *Assembler     { return a.op(PUSH_NULL) }
func (a *Assembler) PushConstant(idx uint8) *Assembler { return a.op(PUSH_CONSTANT).u8(idx) }
func (a *Assembler) PushTrue() *Assembler     { return a.op(PUSH_TRUE) }
func (a *Assembler) PushFalse() *Assembler    { return a.op(PUSH_FALSE) }

func (a *Assembler) Pop() *Assembler            { return a.op(POP) }
func (a *Assembler) PopN(n uint8) *Assembler    { return a.op(POP_N).u8(n) }
func (a *Assembler) Dup() *Assembler            { return a.op(DUP) }

func (a *Assembler) Add() *Assembler { return a.op(ADD) }
func (a *Assembler) Sub() *Assembler { return a.op(SUB) }
func (a *Assembler) Mul() *Assembler { return a.op(MUL) }
func (a *Assembler) Div() *Assembler { return a.op(DIV) }
func (a *Assembler) Mod() *Assembler { return a.op(MOD) }
func (a *Assembler) Neg() *Assembler { return a.op(NEG) }
func (a *Assembler) Pow() *Assembler { return a.op(POW) }

func (a *Assembler) Eq() *Assembler  { return a.op(EQ) }
func (a *Assembler) Neq() *Assembler { return a.op(NEQ) }
func (a *Assembler) Lt() *Assembler  { return a.op(LT) }
func (a *Assembler) Lte() *Assembler { return a.op(LTE) }
func (a *Assembler) Gt() *Assembler  { return a.op(GT) }
func (a *Assembler) Gte() *Assembler { return a.op(GTE) }

func (a *Assembler) And() *Assembler { return a.op(AND) }
func (a *Assembler) Or() *Assembler  { return a.op(OR) }
func (a *Assembler) Not() *Assembler { return a.op(NOT) }

func (a *Assembler) GetGlobal(nameIdx uint16) *Assembler    { return a.op(GET_GLOBAL).u16(nameIdx) }
func (a *Assembler) SetGlobal(nameIdx uint16) *Assembler    { return a.op(SET_GLOBAL).u16(nameIdx) }
func (a *Assembler) DefineGlobal(nameIdx uint16) *Assembler { return a.op(DEFINE_GLOBAL).u16(nameIdx) }
func (a *Assembler) GetLocal(nameIdx uint16) *Assembler     { return a.op(GET_LOCAL).u16(nameIdx) }
func (a *Assembler) SetLocal(nameIdx uint16) *Assembler     { return a.op(SET_LOCAL).u16(nameIdx) }
func (a *Assembler) DefineLocal(nameIdx uint16) *Assembler  { return a.op(DEFINE_LOCAL).u16(nameIdx) }

func (a *Assembler) Jump(offset int32) *Assembler         { return a.op(JUMP).i32(offset) }
func (a *Assembler) JumpIfFalse(offset int32) *Assembler  { return a.op(JUMP_IF_FALSE).i32(offset) }
func (a *Assembler) JumpIfTrue(offset int32) *Assembler   { return a.op(JUMP_IF_TRUE).i32(offset) }

func (a *Assembler) Call(argc uint8) *Assembler     { return a.op(CALL).u8(argc) }
func (a *Assembler) TailCall(argc uint8) *Assembler { return a.op(TAIL_CALL).u8(argc) }

func (a *Assembler) Function(nameIdx uint16, startPos int32, params []uint16) *Assembler {
	a.op(FUNCTION).u16(nameIdx).i32(startPos).u8(uint8(len(params)))
	for _, p := range params {
		a.u16(p)
	}
	return a
}

func (a *Assembler) List(n uint16) *Assembler { return a.op(LIST).u16(n) }
func (a *Assembler) Dict(n uint16) *Assembler { return a.op(DICT).u16(n) }

func (a *Assembler) GetProperty() *Assembler { return a.op(GET_PROPERTY) }
func (a *Assembler) SetProperty() *Assembler { return a.op(SET_PROPERTY) }

func (a *Assembler) Print() *Assembler { return a.op(PRINT) }

// Len reports the current length of the assembled instruction stream,
// useful for computing jump offsets relative to a known point.
func (a *Assembler) Len() int { return len(a.buf) }
