// Package builtins implements the host primitive functions the VM
// dispatches to when a CALL target is a string rather than a Function
// value, per spec §4.4.
package builtins

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"vasuki/internal/value"
	"vasuki/internal/vmerr"
)

// Func is a host primitive: it receives the evaluated argument list and
// returns a result Value or a runtime error.
type Func func(args []value.Value) (value.Value, error)

// Registry is the name-keyed table of builtins populated at VM
// construction, the Go analogue of the original VM's
// unordered_map<string, function<Value(vector<Value>)>>.
type Registry struct {
	funcs  map[string]Func
	stdout io.Writer
}

// New builds the standard registry. stdout is where `print` writes;
// callers typically pass os.Stdout.
func New(stdout io.Writer) *Registry {
	r := &Registry{funcs: make(map[string]Func), stdout: stdout}
	r.register()
	return r
}

// Lookup returns the builtin bound to name, if any.
func (r *Registry) Lookup(name string) (Func, bool) {
	f, ok := r.funcs[name]
	return f, ok
}

// Call invokes the named builtin, reporting NotCallable if it isn't
// registered.
func (r *Registry) Call(name string, args []value.Value) (value.Value, error) {
	f, ok := r.funcs[name]
	if !ok {
		return value.Value{}, vmerr.New(vmerr.NotCallable, "builtin %q not found", name)
	}
	return f(args)
}

func arityError(name string, want string) error {
	return vmerr.New(vmerr.ArityMismatch, "%s() requires %s", name, want)
}

func typeError(name, want string) error {
	return vmerr.New(vmerr.TypeMismatch, "%s() requires a %s argument", name, want)
}

func (r *Registry) register() {
	r.funcs["print"] = r.print
	r.funcs["length"] = builtinLength
	r.funcs["uppercase"] = builtinUppercase
	r.funcs["lowercase"] = builtinLowercase
	r.funcs["type"] = builtinType
	r.funcs["to_string"] = builtinToString
	r.funcs["to_int"] = builtinToInt
	r.funcs["to_float"] = builtinToFloat
	r.funcs["split"] = builtinSplit
	r.funcs["dict_keys"] = builtinDictKeys
	r.funcs["dict_values"] = builtinDictValues
	r.funcs["dict_clear"] = builtinDictClear
	r.funcs["dict_size"] = builtinDictSize
}

// print writes args space-separated plus a trailing newline and
// returns Null, unconditionally (unlike the PRINT opcode, which
// suppresses the newline for strings already ending in one).
func (r *Registry) print(args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.ToString()
	}
	fmt.Fprintln(r.stdout, strings.Join(parts, " "))
	return value.NewNull(), nil
}

func builtinLength(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("length", "exactly 1 argument")
	}
	switch arg := args[0]; arg.Kind() {
	case value.String:
		return value.NewInt(int64(len([]rune(arg.Str())))), nil
	case value.Array:
		return value.NewInt(int64(len(arg.Array().Elems))), nil
	case value.Dict:
		return value.NewInt(int64(len(arg.Dict().Entries))), nil
	default:
		return value.Value{}, typeError("length", "string, array, or dictionary")
	}
}

func builtinUppercase(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("uppercase", "exactly 1 argument")
	}
	if !args[0].IsString() {
		return value.Value{}, typeError("uppercase", "string")
	}
	return value.NewString(strings.ToUpper(args[0].Str())), nil
}

func builtinLowercase(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("lowercase", "exactly 1 argument")
	}
	if !args[0].IsString() {
		return value.Value{}, typeError("lowercase", "string")
	}
	return value.NewString(strings.ToLower(args[0].Str())), nil
}

func builtinType(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("type", "exactly 1 argument")
	}
	return value.NewString(args[0].Kind().String()), nil
}

func builtinToString(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("to_string", "exactly 1 argument")
	}
	return value.NewString(args[0].ToString()), nil
}

func builtinToInt(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("to_int", "exactly 1 argument")
	}
	switch arg := args[0]; arg.Kind() {
	case value.Int:
		return arg, nil
	case value.Float:
		return value.NewInt(int64(arg.Float())), nil
	case value.String:
		i, err := strconv.ParseInt(strings.TrimSpace(arg.Str()), 10, 64)
		if err != nil {
			return value.Value{}, vmerr.New(vmerr.TypeMismatch, "cannot convert string to integer: %q", arg.Str())
		}
		return value.NewInt(i), nil
	case value.Bool:
		if arg.Bool() {
			return value.NewInt(1), nil
		}
		return value.NewInt(0), nil
	default:
		return value.Value{}, vmerr.New(vmerr.TypeMismatch, "cannot convert %s to integer", arg.Kind())
	}
}

func builtinToFloat(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("to_float", "exactly 1 argument")
	}
	switch arg := args[0]; arg.Kind() {
	case value.Float:
		return arg, nil
	case value.Int:
		return value.NewFloat(float64(arg.Int())), nil
	case value.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(arg.Str()), 64)
		if err != nil {
			return value.Value{}, vmerr.New(vmerr.TypeMismatch, "cannot convert string to float: %q", arg.Str())
		}
		return value.NewFloat(f), nil
	case value.Bool:
		if arg.Bool() {
			return value.NewFloat(1), nil
		}
		return value.NewFloat(0), nil
	default:
		return value.Value{}, vmerr.New(vmerr.TypeMismatch, "cannot convert %s to float", arg.Kind())
	}
}

// split implements the 1-based array convention: index 0 is a
// placeholder Null and real tokens begin at index 1.
func builtinSplit(args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Value{}, arityError("split", "1 or 2 arguments")
	}
	if !args[0].IsString() {
		return value.Value{}, typeError("split", "string as first")
	}
	delim := " "
	if len(args) == 2 {
		if !args[1].IsString() {
			return value.Value{}, typeError("split", "string as second")
		}
		delim = args[1].Str()
	}

	s := args[0].Str()
	result := []value.Value{value.NewNull()}
	if delim == "" {
		result = append(result, value.NewString(s))
		return value.NewArray(result), nil
	}
	for {
		idx := strings.Index(s, delim)
		if idx < 0 {
			break
		}
		result = append(result, value.NewString(s[:idx]))
		s = s[idx+len(delim):]
	}
	result = append(result, value.NewString(s))
	return value.NewArray(result), nil
}

func builtinDictKeys(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("dict_keys", "exactly 1 argument")
	}
	if !args[0].IsDict() {
		return value.Value{}, typeError("dict_keys", "dictionary")
	}
	result := []value.Value{value.NewNull()}
	for k := range args[0].Dict().Entries {
		result = append(result, value.NewString(k))
	}
	return value.NewArray(result), nil
}

func builtinDictValues(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("dict_values", "exactly 1 argument")
	}
	if !args[0].IsDict() {
		return value.Value{}, typeError("dict_values", "dictionary")
	}
	result := []value.Value{value.NewNull()}
	for _, v := range args[0].Dict().Entries {
		result = append(result, v)
	}
	return value.NewArray(result), nil
}

func builtinDictClear(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("dict_clear", "exactly 1 argument")
	}
	if !args[0].IsDict() {
		return value.Value{}, typeError("dict_clear", "dictionary")
	}
	d := args[0].Dict()
	for k := range d.Entries {
		delete(d.Entries, k)
	}
	return value.NewNull(), nil
}

func builtinDictSize(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, arityError("dict_size", "exactly 1 argument")
	}
	if !args[0].IsDict() {
		return value.Value{}, typeError("dict_size", "dictionary")
	}
	return value.NewInt(int64(len(args[0].Dict().Entries))), nil
}
