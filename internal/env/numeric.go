package env

import (
	"math"

	"github.com/xirelogy/go-moondec/internal/bytecode"
)

// Number returns a fresh numeric proxy for n.
func (s *Simulator) Number(n float64) Handle {
	h := s.reg.New(bytecode.FormatNumber(n), NumericProxy, None)
	o := s.reg.obj(h)
	o.Num, o.HasNum = n, true
	return h
}

// NumberValue returns the folded value of a numeric proxy.
func (s *Simulator) NumberValue(h Handle) (float64, bool) {
	o, ok := s.reg.Get(h)
	if !ok || o.Kind != NumericProxy || !o.HasNum {
		return 0, false
	}
	return o.Num, true
}

// Arith folds a binary arithmetic op over two numeric proxies. It returns
// None when either side is not a tracked constant.
func (s *Simulator) Arith(op bytecode.OpKind, a, b Handle) Handle {
	x, ok := s.NumberValue(a)
	if !ok {
		return None
	}
	y, ok := s.NumberValue(b)
	if !ok {
		return None
	}
	v, ok := foldArith(op, x, y)
	if !ok {
		return None
	}
	return s.Number(v)
}

// Negate folds unary minus over a numeric proxy.
func (s *Simulator) Negate(a Handle) Handle {
	x, ok := s.NumberValue(a)
	if !ok {
		return None
	}
	return s.Number(-x)
}

// Compare folds a comparison over two numeric proxies.
func (s *Simulator) Compare(op bytecode.OpKind, a, b Handle) (result, ok bool) {
	x, ok := s.NumberValue(a)
	if !ok {
		return false, false
	}
	y, ok := s.NumberValue(b)
	if !ok {
		return false, false
	}
	switch op {
	case bytecode.CompareEq:
		return x == y, true
	case bytecode.CompareLt:
		return x < y, true
	case bytecode.CompareLe:
		return x <= y, true
	}
	return false, false
}

// foldArith never fails on a zero divisor: x/0 and x%0 are 0.
func foldArith(op bytecode.OpKind, x, y float64) (float64, bool) {
	switch op {
	case bytecode.Add:
		return x + y, true
	case bytecode.Sub:
		return x - y, true
	case bytecode.Mul:
		return x * y, true
	case bytecode.Div:
		if y == 0 {
			return 0, true
		}
		return x / y, true
	case bytecode.Mod:
		if y == 0 {
			return 0, true
		}
		return x - math.Floor(x/y)*y, true
	case bytecode.Pow:
		return math.Pow(x, y), true
	}
	return 0, false
}
