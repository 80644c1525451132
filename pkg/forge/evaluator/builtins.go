package evaluator

import (
	"math"
	"sort"
)

type builtinKind int

const (
	binaryBuiltin builtinKind = iota
	unaryBuiltin
)

// builtins lists the arithmetic functions callable as name[args].
var builtins = map[string]builtinKind{
	"add":       binaryBuiltin,
	"subtract":  binaryBuiltin,
	"multiply":  binaryBuiltin,
	"divide":    binaryBuiltin,
	"remainder": binaryBuiltin,
	"abs":       unaryBuiltin,
	"sign":      unaryBuiltin,
}

// IsBuiltin reports whether name is a builtin function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// BuiltinNames returns the builtin function names.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// callBuiltin applies the builtin name to args, each of which is one tuple
// of the argument list.
func callBuiltin(name string, args []Tuple) (Value, error) {
	if builtins[name] == unaryBuiltin {
		return callUnary(name, args)
	}
	return callBinary(name, args)
}

func callBinary(name string, args []Tuple) (Value, error) {
	if len(args) != 2 {
		return nil, newArityError("ARITY-0004", map[string]any{
			"Function": name,
			"Expected": 2,
			"Got":      len(args),
		})
	}

	var operands [2]float64
	for i, arg := range args {
		f, ok := numericArg(arg)
		if !ok {
			return nil, newTypeError("TYPE-0006", map[string]any{
				"Function": name,
				"Got":      arg.String(),
			})
		}
		operands[i] = f
	}
	a, b := operands[0], operands[1]

	switch name {
	case "add":
		return Number(a + b), nil
	case "subtract":
		return Number(a - b), nil
	case "multiply":
		return Number(a * b), nil
	case "divide":
		if b == 0 {
			return nil, newArithmeticError()
		}
		return Number(math.Floor(a / b)), nil
	case "remainder":
		if b == 0 {
			return nil, newArithmeticError()
		}
		return Number(math.Mod(a, b)), nil
	}
	return nil, newUnsupportedError(name)
}

func callUnary(name string, args []Tuple) (Value, error) {
	if len(args) != 1 {
		return nil, newArityError("ARITY-0004", map[string]any{
			"Function": name,
			"Expected": 1,
			"Got":      len(args),
		})
	}
	f, ok := numericArg(args[0])
	if !ok {
		return nil, newTypeError("TYPE-0006", map[string]any{
			"Function": name,
			"Got":      args[0].String(),
		})
	}

	switch name {
	case "abs":
		return Number(math.Abs(f)), nil
	case "sign":
		switch {
		case f > 0:
			return Number(1), nil
		case f < 0:
			return Number(-1), nil
		}
		return Number(0), nil
	}
	return nil, newUnsupportedError(name)
}

// numericArg unwraps a one-element argument holding a number.
func numericArg(arg Tuple) (float64, bool) {
	if len(arg) != 1 {
		return 0, false
	}
	f, ok := arg[0].(float64)
	return f, ok
}
