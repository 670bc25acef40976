package problog

import (
	"fmt"
	"math"
)

// EvalNumber evaluates an arithmetic expression under s.
//
// Supported: + - * / // mod ** ^ min max (binary), - abs sqrt exp log sin
// cos float integer floor ceiling (unary), the constants pi and e, and
// numbers. Integer operands stay integers where the operation allows it;
// / yields an integer only for exact integer division.
func EvalNumber(t Term, s *Substitution) (*Number, error) {
	switch v := s.Walk(t).(type) {
	case *Number:
		return v, nil
	case *Var:
		return nil, fmt.Errorf("%w: unbound variable in arithmetic", ErrNonGround)
	case *Atom:
		switch v.name {
		case "pi":
			return NewFloat(math.Pi), nil
		case "e":
			return NewFloat(math.E), nil
		case "inf", "infinite":
			return NewFloat(math.Inf(1)), nil
		}
		return nil, fmt.Errorf("%w: %s is not a function", ErrArithmetic, v)
	case *Compound:
		switch len(v.args) {
		case 1:
			x, err := EvalNumber(v.args[0], s)
			if err != nil {
				return nil, err
			}
			return evalUnary(v.functor, x)
		case 2:
			x, err := EvalNumber(v.args[0], s)
			if err != nil {
				return nil, err
			}
			y, err := EvalNumber(v.args[1], s)
			if err != nil {
				return nil, err
			}
			return evalBinary(v.functor, x, y)
		}
		return nil, fmt.Errorf("%w: %s/%d is not a function", ErrArithmetic, v.functor, len(v.args))
	default:
		return nil, fmt.Errorf("%w: cannot evaluate %v", ErrArithmetic, t)
	}
}

func evalUnary(op string, x *Number) (*Number, error) {
	switch op {
	case "-":
		if x.isInt {
			return NewInt(-x.i), nil
		}
		return NewFloat(-x.f), nil
	case "+":
		return x, nil
	case "abs":
		if x.isInt {
			if x.i < 0 {
				return NewInt(-x.i), nil
			}
			return x, nil
		}
		return NewFloat(math.Abs(x.f)), nil
	case "sqrt":
		if x.f < 0 {
			return nil, fmt.Errorf("%w: sqrt of negative number", ErrArithmetic)
		}
		return NewFloat(math.Sqrt(x.f)), nil
	case "exp":
		return NewFloat(math.Exp(x.f)), nil
	case "log":
		if x.f <= 0 {
			return nil, fmt.Errorf("%w: log of non-positive number", ErrArithmetic)
		}
		return NewFloat(math.Log(x.f)), nil
	case "sin":
		return NewFloat(math.Sin(x.f)), nil
	case "cos":
		return NewFloat(math.Cos(x.f)), nil
	case "float":
		return NewFloat(x.f), nil
	case "integer":
		return NewInt(int64(math.Round(x.f))), nil
	case "floor":
		return NewInt(int64(math.Floor(x.f))), nil
	case "ceiling":
		return NewInt(int64(math.Ceil(x.f))), nil
	}
	return nil, fmt.Errorf("%w: %s/1 is not a function", ErrArithmetic, op)
}

func evalBinary(op string, x, y *Number) (*Number, error) {
	ints := x.isInt && y.isInt
	switch op {
	case "+":
		if ints {
			return NewInt(x.i + y.i), nil
		}
		return NewFloat(x.f + y.f), nil
	case "-":
		if ints {
			return NewInt(x.i - y.i), nil
		}
		return NewFloat(x.f - y.f), nil
	case "*":
		if ints {
			return NewInt(x.i * y.i), nil
		}
		return NewFloat(x.f * y.f), nil
	case "/":
		if y.f == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrArithmetic)
		}
		if ints && x.i%y.i == 0 {
			return NewInt(x.i / y.i), nil
		}
		return NewFloat(x.f / y.f), nil
	case "//":
		if !ints {
			return nil, fmt.Errorf("%w: // expects integers", ErrArithmetic)
		}
		if y.i == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrArithmetic)
		}
		return NewInt(x.i / y.i), nil
	case "mod":
		if !ints {
			return nil, fmt.Errorf("%w: mod expects integers", ErrArithmetic)
		}
		if y.i == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrArithmetic)
		}
		m := x.i % y.i
		if m != 0 && (m < 0) != (y.i < 0) {
			m += y.i
		}
		return NewInt(m), nil
	case "**":
		return NewFloat(math.Pow(x.f, y.f)), nil
	case "^":
		if ints && y.i >= 0 {
			r := int64(1)
			for k := int64(0); k < y.i; k++ {
				r *= x.i
			}
			return NewInt(r), nil
		}
		return NewFloat(math.Pow(x.f, y.f)), nil
	case "min":
		if compareNumbers(x, y) <= 0 {
			return x, nil
		}
		return y, nil
	case "max":
		if compareNumbers(x, y) >= 0 {
			return x, nil
		}
		return y, nil
	}
	return nil, fmt.Errorf("%w: %s/2 is not a function", ErrArithmetic, op)
}

// compareNumbers orders two numbers arithmetically (1 and 1.0 are equal).
func compareNumbers(x, y *Number) int {
	if x.isInt && y.isInt {
		switch {
		case x.i < y.i:
			return -1
		case x.i > y.i:
			return 1
		}
		return 0
	}
	switch {
	case x.f < y.f:
		return -1
	case x.f > y.f:
		return 1
	}
	return 0
}

// probabilityValue evaluates a probability annotation to a float.
func probabilityValue(t Term) (float64, error) {
	n, err := EvalNumber(t, NewSubstitution())
	if err != nil {
		return 0, err
	}
	return n.f, nil
}
