package decompiler

import (
	"fmt"
	"strconv"

	"github.com/xirelogy/go-moondec/internal/ast"
	"github.com/xirelogy/go-moondec/internal/bytecode"
	"github.com/xirelogy/go-moondec/internal/env"
)

// ValueKind tags a RegisterValue.
type ValueKind uint8

const (
	Unset ValueKind = iota
	Literal
	Expr
	ClosureLiteral
)

func (k ValueKind) String() string {
	switch k {
	case Unset:
		return "unset"
	case Literal:
		return "literal"
	case Expr:
		return "expr"
	case ClosureLiteral:
		return "closure"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// RegisterValue is the symbolic content of one register.
type RegisterValue struct {
	Kind ValueKind
	Text string
	Obj  env.Handle // simulator object, if any

	Str   string // literal string value when IsStr
	IsStr bool

	// set by SelfIndex on the callee register
	Method   string
	RecvText string
	RecvObj  env.Handle
	// set by SelfIndex on the duplicated receiver register
	receiver bool
}

// regName is the local name owned by register n.
func regName(n int) string {
	return "reg" + strconv.Itoa(n)
}

// MaxRegisters is the register frame size of one function (the Lua 5.1
// MAXSTACK). Instructions whose base register lies beyond it are dropped.
const MaxRegisters = 250

// registerLimit bounds every slot the table will ever allocate: a base
// register below MaxRegisters plus a range of at most maxSpan.
const registerLimit = MaxRegisters + maxSpan + 1

// registers is the table for one function invocation of the builder.
type registers struct {
	vals    []RegisterValue
	written []bool
	top     int // highest register written so far, -1 when none
}

func newRegisters() *registers {
	return &registers{top: -1}
}

func (r *registers) grow(n int) {
	for len(r.vals) <= n {
		r.vals = append(r.vals, RegisterValue{})
		r.written = append(r.written, false)
	}
}

// get returns the value in register n; an unwritten register reads as its
// placeholder name.
func (r *registers) get(n int) RegisterValue {
	if n < 0 {
		return RegisterValue{Kind: Expr, Text: regName(n)}
	}
	if n < len(r.vals) && r.vals[n].Kind != Unset {
		return r.vals[n]
	}
	return RegisterValue{Kind: Expr, Text: regName(n)}
}

// set replaces register n unconditionally.
func (r *registers) set(n int, v RegisterValue) {
	if n < 0 || n >= registerLimit {
		return
	}
	r.grow(n)
	r.vals[n] = v
	r.written[n] = true
	if n > r.top {
		r.top = n
	}
}

func (r *registers) wasWritten(n int) bool {
	return n >= 0 && n < len(r.written) && r.written[n]
}

// literal builds the register value for constant c.
func literal(c bytecode.Constant) RegisterValue {
	v := RegisterValue{Kind: Literal, Text: bytecode.FormatConstant(c)}
	if c.IsString() {
		v.Str, v.IsStr = c.Str, true
	}
	return v
}

// resolveRK resolves an operand that may address a register or the constant
// pool. An out-of-range constant degrades to nil and reports ok=false.
func (f *funcState) resolveRK(operand int32) (RegisterValue, bool) {
	if !bytecode.IsConstantOperand(operand) {
		return f.regs.get(int(operand)), true
	}
	return f.constant(int(operand - bytecode.RKOffset))
}

func (f *funcState) constant(idx int) (RegisterValue, bool) {
	c, ok := f.fn.Constant(idx)
	if !ok {
		return RegisterValue{Kind: Literal, Text: "nil"}, false
	}
	f.b.strings.offer(c)
	v := literal(c)
	if f.b.sim != nil && c.Kind == bytecode.ConstNumber {
		v.Obj = f.b.sim.Number(c.Num)
	}
	return v, true
}

// rk is resolveRK that records an out-of-range constant as a diagnostic.
func (f *funcState) rk(pc int, operand int32) RegisterValue {
	v, ok := f.resolveRK(operand)
	if !ok {
		f.diagnose(pc, CodeConstantIndexOutOfRange, "constant index %d out of range (pool size %d)",
			operand-bytecode.RKOffset, len(f.fn.Constants))
	}
	return v
}

// fieldAccess renders tbl.key, or tbl[key] when key is not a bare identifier.
func fieldAccess(tbl string, key RegisterValue) string {
	if key.IsStr && ast.IsIdentifier(key.Str) {
		return tbl + "." + key.Str
	}
	if key.IsStr {
		return tbl + "[" + bytecode.QuoteString(key.Str) + "]"
	}
	return tbl + "[" + key.Text + "]"
}

// operand wraps compound expressions in parentheses.
func operand(v RegisterValue) string {
	if v.Kind == Literal || !topLevelSpace(v.Text) {
		return v.Text
	}
	return "(" + v.Text + ")"
}

// topLevelSpace reports whether s has a space outside brackets and strings.
func topLevelSpace(s string) bool {
	depth := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch ch {
			case '\\':
				i++
			case '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ' ':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}
