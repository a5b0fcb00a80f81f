// Package vm implements the Vasuki bytecode interpreter: the operand
// stack, call stack, instruction pointer, fetch/decode/dispatch loop,
// and the tail-call frame rewrite described in spec §4.5.
package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"vasuki/internal/builtins"
	"vasuki/internal/bytecode"
	"vasuki/internal/environment"
	"vasuki/internal/value"
	"vasuki/internal/vmerr"
)

// CallFrame is a single function activation: where to resume on
// RETURN, the environment bindings for this call, and the Function
// being executed (kept around for debugging/tracing).
type CallFrame struct {
	ReturnAddress int
	Env           *environment.Environment
	Fn            *value.FuncData
}

// VM holds all interpreter state for one execution of a loaded image.
type VM struct {
	code      []byte
	constants []value.Value
	names     []string

	stack  []value.Value
	frames []CallFrame
	global *environment.Environment
	ip     int

	builtins *builtins.Registry
	stdout   io.Writer
	tracer   io.Writer // nil disables instruction tracing
}

// New constructs a VM ready to execute img, printing to stdout via
// PRINT/print and writing nothing to a trace sink unless SetTracer is
// called.
func New(img *bytecode.Image, stdout io.Writer) *VM {
	return &VM{
		code:      img.Code,
		constants: img.Constants,
		names:     img.Names,
		global:    environment.New(),
		builtins:  builtins.New(stdout),
		stdout:    stdout,
	}
}

// SetTracer wires an optional per-instruction trace sink. This answers
// spec §9's open question about debug output: instead of interleaving
// trace lines into program stdout unconditionally, they go to a
// separate writer the caller controls (nil by default).
func (vm *VM) SetTracer(w io.Writer) { vm.tracer = w }

func (vm *VM) trace(format string, args ...any) {
	if vm.tracer == nil {
		return
	}
	fmt.Fprintf(vm.tracer, format+"\n", args...)
}

// warn writes a recoverable-condition diagnostic to the tracer, or to
// stderr when no tracer is set.
func (vm *VM) warn(format string, args ...any) {
	w := vm.tracer
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "warning: "+format+"\n", args...)
}

// Run executes the loaded image from ip 0 until HALT, a top-level
// RETURN, or the code stream is exhausted, and returns the resulting
// program value.
func (vm *VM) Run() (value.Value, error) {
	vm.ip = 0
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]

	for vm.ip < len(vm.code) {
		op := bytecode.Opcode(vm.code[vm.ip])
		vm.ip++

		if !op.Valid() {
			return value.Value{}, vmerr.New(vmerr.InvalidOpcode, "unrecognized opcode %d at offset %d", op, vm.ip-1)
		}

		vm.trace("%04d %s", vm.ip-1, op)

		result, done, err := vm.step(op)
		if err != nil {
			return value.Value{}, err
		}
		if done {
			return result, nil
		}
	}

	return vm.topOrNull(), nil
}

// step executes a single decoded instruction. done=true means
// execution should stop and result is the final program value.
func (vm *VM) step(op bytecode.Opcode) (result value.Value, done bool, err error) {
	switch op {
	case bytecode.HALT:
		return vm.topOrNull(), true, nil

	case bytecode.NOP:
		// no-op

	case bytecode.PUSH_INT:
		v, err := vm.readI32()
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(value.NewInt(int64(v)))

	case bytecode.PUSH_FLOAT:
		idx, err := vm.readU8()
		if err != nil {
			return value.Value{}, false, err
		}
		c, err := vm.constant(idx)
		if err != nil {
			return value.Value{}, false, err
		}
		if !c.IsFloat() {
			return value.Value{}, false, vmerr.New(vmerr.TypeMismatch, "PUSH_FLOAT constant %d is not a float", idx)
		}
		vm.push(c)

	case bytecode.PUSH_STRING:
		idx, err := vm.readU16()
		if err != nil {
			return value.Value{}, false, err
		}
		name, err := vm.name(idx)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(value.NewString(name))

	case bytecode.PUSH_BOOL:
		b, err := vm.readU8()
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(value.NewBool(b != 0))

	case bytecode.PUSH_NULL:
		vm.push(value.NewNull())

	case bytecode.PUSH_CONSTANT:
		idx, err := vm.readU8()
		if err != nil {
			return value.Value{}, false, err
		}
		c, err := vm.constant(idx)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(c)

	case bytecode.PUSH_TRUE:
		vm.push(value.NewBool(true))

	case bytecode.PUSH_FALSE:
		vm.push(value.NewBool(false))

	case bytecode.POP:
		vm.pop()

	case bytecode.POP_N:
		n, err := vm.readU8()
		if err != nil {
			return value.Value{}, false, err
		}
		for i := uint8(0); i < n; i++ {
			vm.pop()
		}

	case bytecode.DUP:
		vm.push(vm.peek())

	case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD, bytecode.POW:
		b := vm.pop()
		a := vm.pop()
		r, err := binaryArith(op, a, b)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(r)

	case bytecode.NEG:
		a := vm.pop()
		r, err := value.Neg(a)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(r)

	case bytecode.EQ:
		b, a := vm.pop(), vm.pop()
		vm.push(value.NewBool(value.Equal(a, b)))

	case bytecode.NEQ:
		b, a := vm.pop(), vm.pop()
		vm.push(value.NewBool(!value.Equal(a, b)))

	case bytecode.LT, bytecode.LTE, bytecode.GT, bytecode.GTE:
		b := vm.pop()
		a := vm.pop()
		r, err := compare(op, a, b)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(value.NewBool(r))

	case bytecode.AND, bytecode.OR:
		b := vm.pop()
		a := vm.pop()
		if !a.IsBool() || !b.IsBool() {
			return value.Value{}, false, vmerr.New(vmerr.TypeMismatch, "%s requires boolean operands", op)
		}
		if op == bytecode.AND {
			vm.push(value.NewBool(a.Bool() && b.Bool()))
		} else {
			vm.push(value.NewBool(a.Bool() || b.Bool()))
		}

	case bytecode.NOT:
		a := vm.pop()
		if !a.IsBool() {
			return value.Value{}, false, vmerr.New(vmerr.TypeMismatch, "NOT requires a boolean operand")
		}
		vm.push(value.NewBool(!a.Bool()))

	case bytecode.GET_GLOBAL:
		name, err := vm.readName()
		if err != nil {
			return value.Value{}, false, err
		}
		v, err := vm.global.Lookup(name)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(v)

	case bytecode.SET_GLOBAL:
		name, err := vm.readName()
		if err != nil {
			return value.Value{}, false, err
		}
		v := vm.pop()
		if err := vm.global.Assign(name, v); err != nil {
			return value.Value{}, false, err
		}
		vm.push(v)

	case bytecode.DEFINE_GLOBAL:
		name, err := vm.readName()
		if err != nil {
			return value.Value{}, false, err
		}
		v := vm.pop()
		vm.global.Declare(name, v)

	case bytecode.GET_LOCAL:
		name, err := vm.readName()
		if err != nil {
			return value.Value{}, false, err
		}
		env := vm.currentEnv()
		if env == nil {
			vm.warn("GET_LOCAL %q outside a function, substituting null", name)
			vm.push(value.NewNull())
			break
		}
		v, err := env.Lookup(name)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(v)

	case bytecode.SET_LOCAL:
		name, err := vm.readName()
		if err != nil {
			return value.Value{}, false, err
		}
		env := vm.currentEnv()
		if env == nil {
			return value.Value{}, false, vmerr.New(vmerr.UnboundName, "cannot set local %q outside of a function", name)
		}
		v := vm.pop()
		if err := env.Assign(name, v); err != nil {
			return value.Value{}, false, err
		}
		vm.push(v)

	case bytecode.DEFINE_LOCAL:
		name, err := vm.readName()
		if err != nil {
			return value.Value{}, false, err
		}
		env := vm.currentEnv()
		if env == nil {
			return value.Value{}, false, vmerr.New(vmerr.UnboundName, "cannot define local %q outside of a function", name)
		}
		v := vm.pop()
		env.Declare(name, v)

	case bytecode.JUMP:
		offset, err := vm.readI32()
		if err != nil {
			return value.Value{}, false, err
		}
		vm.ip += int(offset)

	case bytecode.JUMP_IF_FALSE:
		offset, err := vm.readI32()
		if err != nil {
			return value.Value{}, false, err
		}
		cond := vm.pop()
		if !cond.IsBool() {
			return value.Value{}, false, vmerr.New(vmerr.TypeMismatch, "JUMP_IF_FALSE condition must be a boolean")
		}
		if !cond.Bool() {
			vm.ip += int(offset)
		}

	case bytecode.JUMP_IF_TRUE:
		offset, err := vm.readI32()
		if err != nil {
			return value.Value{}, false, err
		}
		cond := vm.pop()
		if !cond.IsBool() {
			return value.Value{}, false, vmerr.New(vmerr.TypeMismatch, "JUMP_IF_TRUE condition must be a boolean")
		}
		if cond.Bool() {
			vm.ip += int(offset)
		}

	case bytecode.CALL, bytecode.TAIL_CALL:
		if err := vm.call(op); err != nil {
			return value.Value{}, false, err
		}

	case bytecode.RETURN:
		ret := vm.pop()
		if len(vm.frames) == 0 {
			return ret, true, nil
		}
		frame := vm.frames[len(vm.frames)-1]
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.ip = frame.ReturnAddress
		vm.push(ret)

	case bytecode.FUNCTION:
		if err := vm.defineFunction(); err != nil {
			return value.Value{}, false, err
		}

	case bytecode.LIST:
		n, err := vm.readU16()
		if err != nil {
			return value.Value{}, false, err
		}
		elems := make([]value.Value, n)
		for i := int(n) - 1; i >= 0; i-- {
			elems[i] = vm.pop()
		}
		vm.push(value.NewArray(elems))

	case bytecode.DICT:
		n, err := vm.readU16()
		if err != nil {
			return value.Value{}, false, err
		}
		entries := make(map[string]value.Value, n)
		for i := uint16(0); i < n; i++ {
			v := vm.pop()
			k := vm.pop()
			if !k.IsString() {
				return value.Value{}, false, vmerr.New(vmerr.TypeMismatch, "dictionary keys must be strings")
			}
			entries[k.Str()] = v
		}
		vm.push(value.NewDict(entries))

	case bytecode.GET_PROPERTY:
		idx := vm.pop()
		obj := vm.pop()
		v, err := getProperty(obj, idx)
		if err != nil {
			return value.Value{}, false, err
		}
		vm.push(v)

	case bytecode.SET_PROPERTY:
		val := vm.pop()
		idx := vm.pop()
		obj := vm.pop()
		if err := setProperty(obj, idx, val); err != nil {
			return value.Value{}, false, err
		}
		vm.push(val)

	case bytecode.PRINT:
		v := vm.pop()
		s := v.ToString()
		if v.IsString() && len(s) > 0 && s[len(s)-1] == '\n' {
			fmt.Fprint(vm.stdout, s)
		} else {
			fmt.Fprintln(vm.stdout, s)
		}

	default:
		return value.Value{}, false, vmerr.New(vmerr.InvalidOpcode, "unhandled opcode %s", op)
	}

	return value.Value{}, false, nil
}

func binaryArith(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	switch op {
	case bytecode.ADD:
		return value.Add(a, b)
	case bytecode.SUB:
		return value.Sub(a, b)
	case bytecode.MUL:
		return value.Mul(a, b)
	case bytecode.DIV:
		return value.Div(a, b)
	case bytecode.MOD:
		return value.Mod(a, b)
	case bytecode.POW:
		return value.Pow(a, b)
	default:
		return value.Value{}, vmerr.New(vmerr.InvalidOpcode, "not an arithmetic opcode: %s", op)
	}
}

func compare(op bytecode.Opcode, a, b value.Value) (bool, error) {
	switch op {
	case bytecode.LT:
		return value.Less(a, b)
	case bytecode.LTE:
		return value.LessEqual(a, b)
	case bytecode.GT:
		return value.Greater(a, b)
	case bytecode.GTE:
		return value.GreaterEqual(a, b)
	default:
		return false, vmerr.New(vmerr.InvalidOpcode, "not a comparison opcode: %s", op)
	}
}

func getProperty(obj, idx value.Value) (value.Value, error) {
	switch obj.Kind() {
	case value.Array:
		if !idx.IsInt() {
			return value.Value{}, vmerr.New(vmerr.TypeMismatch, "array index must be an integer")
		}
		elems := obj.Array().Elems
		i := idx.Int()
		if i < 0 || i >= int64(len(elems)) {
			return value.Value{}, vmerr.New(vmerr.IndexOutOfBounds, "array index %d out of bounds (len %d)", i, len(elems))
		}
		return elems[i], nil
	case value.Dict:
		if !idx.IsString() {
			return value.Value{}, vmerr.New(vmerr.TypeMismatch, "dictionary key must be a string")
		}
		v, ok := obj.Dict().Entries[idx.Str()]
		if !ok {
			return value.Value{}, vmerr.New(vmerr.KeyNotFound, "dictionary key %q not found", idx.Str())
		}
		return v, nil
	case value.String:
		if !idx.IsInt() {
			return value.Value{}, vmerr.New(vmerr.TypeMismatch, "string index must be an integer")
		}
		runes := []rune(obj.Str())
		i := idx.Int()
		if i < 0 || i >= int64(len(runes)) {
			return value.Value{}, vmerr.New(vmerr.IndexOutOfBounds, "string index %d out of bounds (len %d)", i, len(runes))
		}
		return value.NewString(string(runes[i])), nil
	default:
		return value.Value{}, vmerr.New(vmerr.TypeMismatch, "cannot index a %s", obj.Kind())
	}
}

func setProperty(obj, idx, val value.Value) error {
	switch obj.Kind() {
	case value.Array:
		if !idx.IsInt() {
			return vmerr.New(vmerr.TypeMismatch, "array index must be an integer")
		}
		elems := obj.Array().Elems
		i := idx.Int()
		if i < 0 || i >= int64(len(elems)) {
			return vmerr.New(vmerr.IndexOutOfBounds, "array index %d out of bounds (len %d)", i, len(elems))
		}
		elems[i] = val
		return nil
	case value.Dict:
		if !idx.IsString() {
			return vmerr.New(vmerr.TypeMismatch, "dictionary key must be a string")
		}
		obj.Dict().Entries[idx.Str()] = val
		return nil
	default:
		return vmerr.New(vmerr.TypeMismatch, "cannot set a property on a %s", obj.Kind())
	}
}

// currentEnv returns the environment of the innermost call frame, or
// nil if the call stack is empty (i.e. we're at global scope).
func (vm *VM) currentEnv() *environment.Environment {
	if len(vm.frames) == 0 {
		return nil
	}
	return vm.frames[len(vm.frames)-1].Env
}

// call implements CALL and TAIL_CALL, including the tail-call frame
// rewrite: an explicit TAIL_CALL opcode rewrites the current frame in
// place, and (per spec §4.5 and §9) a plain CALL immediately followed by
// RETURN is detected as a peephole fallback for bytecode compiled without
// knowledge of the explicit opcode. With no frame on the call stack, a
// tail call to a Function pushes a new frame like an ordinary CALL.
func (vm *VM) call(op bytecode.Opcode) error {
	argc, err := vm.readU8()
	if err != nil {
		return err
	}

	isTail := op == bytecode.TAIL_CALL || vm.nextIsReturn()

	args := make([]value.Value, argc)
	for i := int(argc) - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	callee := vm.pop()

	switch callee.Kind() {
	case value.Function:
		fn := callee.Function()
		if len(args) != len(fn.Params) {
			return vmerr.New(vmerr.ArityMismatch, "function expects %d arguments, got %d", len(fn.Params), len(args))
		}
		closureEnv, ok := fn.Closure.(*environment.Environment)
		if !ok {
			return vmerr.New(vmerr.TypeMismatch, "function closure has unexpected type")
		}
		env := environment.NewChild(closureEnv)
		for i, p := range fn.Params {
			env.Declare(p, args[i])
		}

		if isTail && len(vm.frames) > 0 {
			frame := &vm.frames[len(vm.frames)-1]
			frame.Env = env
			frame.Fn = fn
			vm.ip = int(fn.StartPos)
			return nil
		}

		returnAddress := vm.ip
		vm.ip = int(fn.StartPos)
		vm.frames = append(vm.frames, CallFrame{ReturnAddress: returnAddress, Env: env, Fn: fn})
		return nil

	case value.String:
		result, err := vm.builtins.Call(callee.Str(), args)
		if err != nil {
			return err
		}
		vm.push(result)
		return nil

	default:
		return vmerr.New(vmerr.NotCallable, "cannot call a %s", callee.Kind())
	}
}

// nextIsReturn peeks at the opcode immediately following the current
// instruction pointer (i.e. right after CALL's argc operand) without
// consuming it.
func (vm *VM) nextIsReturn() bool {
	return vm.ip < len(vm.code) && bytecode.Opcode(vm.code[vm.ip]) == bytecode.RETURN
}

func (vm *VM) defineFunction() error {
	nameIdx, err := vm.readU16()
	if err != nil {
		return err
	}
	name, err := vm.name(nameIdx)
	if err != nil {
		return err
	}
	startPos, err := vm.readI32()
	if err != nil {
		return err
	}
	paramCount, err := vm.readU8()
	if err != nil {
		return err
	}
	params := make([]string, paramCount)
	for i := uint8(0); i < paramCount; i++ {
		idx, err := vm.readU16()
		if err != nil {
			return err
		}
		pname, err := vm.name(idx)
		if err != nil {
			return err
		}
		params[i] = pname
	}

	scope := vm.global
	if env := vm.currentEnv(); env != nil {
		scope = env
	}
	fn := value.NewFunction(startPos, params, scope)
	scope.Declare(name, fn)
	return nil
}

// push/pop/peek implement the operand stack. pop on an empty stack is
// a recoverable warning (§4.5, §7): the VM logs and substitutes Null.
func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	if len(vm.stack) == 0 {
		vm.warn("stack underflow, substituting null")
		return value.NewNull()
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek() value.Value {
	if len(vm.stack) == 0 {
		vm.warn("stack underflow, substituting null")
		return value.NewNull()
	}
	return vm.stack[len(vm.stack)-1]
}

func (vm *VM) topOrNull() value.Value {
	if len(vm.stack) == 0 {
		return value.NewNull()
	}
	return vm.stack[len(vm.stack)-1]
}

func (vm *VM) constant(idx uint8) (value.Value, error) {
	if int(idx) >= len(vm.constants) {
		return value.Value{}, vmerr.New(vmerr.MalformedBytecode, "constant index %d out of range (%d constants)", idx, len(vm.constants))
	}
	return vm.constants[idx], nil
}

func (vm *VM) name(idx uint16) (string, error) {
	if int(idx) >= len(vm.names) {
		return "", vmerr.New(vmerr.MalformedBytecode, "name index %d out of range (%d names)", idx, len(vm.names))
	}
	return vm.names[idx], nil
}

func (vm *VM) readName() (string, error) {
	idx, err := vm.readU16()
	if err != nil {
		return "", err
	}
	return vm.name(idx)
}

func (vm *VM) readU8() (uint8, error) {
	if vm.ip >= len(vm.code) {
		return 0, vmerr.New(vmerr.MalformedBytecode, "unexpected end of code stream reading u8 operand")
	}
	b := vm.code[vm.ip]
	vm.ip++
	return b, nil
}

func (vm *VM) readU16() (uint16, error) {
	if vm.ip+2 > len(vm.code) {
		return 0, vmerr.New(vmerr.MalformedBytecode, "unexpected end of code stream reading u16 operand")
	}
	v := binary.LittleEndian.Uint16(vm.code[vm.ip:])
	vm.ip += 2
	return v, nil
}

func (vm *VM) readI32() (int32, error) {
	if vm.ip+4 > len(vm.code) {
		return 0, vmerr.New(vmerr.MalformedBytecode, "unexpected end of code stream reading i32 operand")
	}
	v := int32(binary.LittleEndian.Uint32(vm.code[vm.ip:]))
	vm.ip += 4
	return v, nil
}
