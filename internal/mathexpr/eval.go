// Package mathexpr evaluates arithmetic expressions under a strict
// allow-list. Expressions are parsed with go/parser and the resulting tree is
// walked node by node; anything outside the allow-list fails closed with
// ErrUnsupported. This is a security boundary: no identifier lookup, no
// method calls, no arbitrary code paths.
package mathexpr

import (
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// ErrUnsupported marks a construct outside the evaluator's allow-list,
// including anything the parser rejects.
var ErrUnsupported = errors.New("unsupported operation")

const maxExactInt = 1 << 53 // beyond this float64 cannot represent integers exactly

// Evaluate parses and evaluates an arithmetic expression.
//
// Allowed: integer and float literals, binary + - * / and ^ (integer xor),
// unary + -, parentheses, calls to sin cos tan sqrt log log10 exp abs round,
// and the names pi and e.
func Evaluate(expression string) (float64, error) {
	node, err := parser.ParseExpr(expression)
	if err != nil {
		return 0, errors.WithMessagef(ErrUnsupported, "parse: %v", err)
	}
	return eval(node)
}

func eval(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		return evalLiteral(n)
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		return evalUnary(n)
	case *ast.BinaryExpr:
		return evalBinary(n)
	case *ast.CallExpr:
		return evalCall(n)
	case *ast.Ident:
		return evalName(n)
	default:
		return 0, errors.WithMessagef(ErrUnsupported, "syntax node %T", node)
	}
}

func evalLiteral(lit *ast.BasicLit) (float64, error) {
	switch lit.Kind {
	case token.INT, token.FLOAT:
		v, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return 0, errors.WithMessagef(ErrUnsupported, "literal %q", lit.Value)
		}
		return v, nil
	default:
		return 0, errors.WithMessagef(ErrUnsupported, "%s literal", lit.Kind)
	}
}

func evalUnary(expr *ast.UnaryExpr) (float64, error) {
	operand, err := eval(expr.X)
	if err != nil {
		return 0, err
	}

	switch expr.Op {
	case token.ADD:
		return operand, nil
	case token.SUB:
		return -operand, nil
	default:
		return 0, errors.WithMessagef(ErrUnsupported, "unary operator %s", expr.Op)
	}
}

func evalBinary(expr *ast.BinaryExpr) (float64, error) {
	left, err := eval(expr.X)
	if err != nil {
		return 0, err
	}
	right, err := eval(expr.Y)
	if err != nil {
		return 0, err
	}

	switch expr.Op {
	case token.ADD:
		return left + right, nil
	case token.SUB:
		return left - right, nil
	case token.MUL:
		return left * right, nil
	case token.QUO:
		if right == 0 {
			return 0, errors.New("division by zero")
		}
		return left / right, nil
	case token.XOR:
		return evalXor(left, right)
	default:
		return 0, errors.WithMessagef(ErrUnsupported, "binary operator %s", expr.Op)
	}
}

// evalXor performs bitwise xor; both operands must be exact integers.
func evalXor(left, right float64) (float64, error) {
	for _, v := range [2]float64{left, right} {
		if math.Trunc(v) != v || math.Abs(v) > maxExactInt {
			return 0, errors.Errorf("xor requires integer operands, got %v", v)
		}
	}
	return float64(int64(left) ^ int64(right)), nil
}

func evalName(ident *ast.Ident) (float64, error) {
	switch ident.Name {
	case "pi":
		return math.Pi, nil
	case "e":
		return math.E, nil
	default:
		return 0, errors.WithMessagef(ErrUnsupported, "unknown name %q", ident.Name)
	}
}

func evalCall(call *ast.CallExpr) (float64, error) {
	ident, ok := call.Fun.(*ast.Ident)
	if !ok {
		return 0, errors.WithMessage(ErrUnsupported, "only simple function calls are allowed")
	}

	args := make([]float64, 0, len(call.Args))
	for _, arg := range call.Args {
		v, err := eval(arg)
		if err != nil {
			return 0, err
		}
		args = append(args, v)
	}

	return applyFunction(ident.Name, args)
}

func applyFunction(name string, args []float64) (float64, error) {
	switch name {
	case "sin":
		return applyUnary(name, args, math.Sin)
	case "cos":
		return applyUnary(name, args, math.Cos)
	case "tan":
		return applyUnary(name, args, math.Tan)
	case "exp":
		return applyUnary(name, args, math.Exp)
	case "abs":
		return applyUnary(name, args, math.Abs)
	case "sqrt":
		if err := wantArgs(name, args, 1); err != nil {
			return 0, err
		}
		if args[0] < 0 {
			return 0, errors.Errorf("sqrt of negative number %v", args[0])
		}
		return math.Sqrt(args[0]), nil
	case "log":
		return evalLog(args)
	case "log10":
		if err := wantArgs(name, args, 1); err != nil {
			return 0, err
		}
		if args[0] <= 0 {
			return 0, errors.Errorf("log10 of non-positive number %v", args[0])
		}
		return math.Log10(args[0]), nil
	case "round":
		return evalRound(args)
	default:
		return 0, errors.WithMessagef(ErrUnsupported, "function %q is not allowed", name)
	}
}

func applyUnary(name string, args []float64, fn func(float64) float64) (float64, error) {
	if err := wantArgs(name, args, 1); err != nil {
		return 0, err
	}
	return fn(args[0]), nil
}

// evalLog is natural log, or log base b with a second argument.
func evalLog(args []float64) (float64, error) {
	if len(args) != 1 && len(args) != 2 {
		return 0, errors.Errorf("log takes 1 or 2 arguments, got %d", len(args))
	}
	if args[0] <= 0 {
		return 0, errors.Errorf("log of non-positive number %v", args[0])
	}
	if len(args) == 1 {
		return math.Log(args[0]), nil
	}
	if args[1] <= 0 || args[1] == 1 {
		return 0, errors.Errorf("invalid log base %v", args[1])
	}
	return math.Log(args[0]) / math.Log(args[1]), nil
}

// evalRound rounds half away from zero, optionally to n decimal places.
func evalRound(args []float64) (float64, error) {
	switch len(args) {
	case 1:
		return math.Round(args[0]), nil
	case 2:
		digits := args[1]
		if math.Trunc(digits) != digits {
			return 0, errors.Errorf("round digits must be an integer, got %v", digits)
		}
		scale := math.Pow(10, digits)
		return math.Round(args[0]*scale) / scale, nil
	default:
		return 0, errors.Errorf("round takes 1 or 2 arguments, got %d", len(args))
	}
}

func wantArgs(name string, args []float64, n int) error {
	if len(args) != n {
		return errors.Errorf("%s takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}
