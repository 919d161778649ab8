package bytecode

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConstKind tags a Constant.
type ConstKind uint8

const (
	ConstNil ConstKind = iota
	ConstBool
	ConstNumber
	ConstString
)

func (k ConstKind) String() string {
	switch k {
	case ConstNil:
		return "nil"
	case ConstBool:
		return "bool"
	case ConstNumber:
		return "number"
	case ConstString:
		return "string"
	default:
		return fmt.Sprintf("ConstKind(%d)", uint8(k))
	}
}

// Constant is a constant pool entry.
type Constant struct {
	Kind ConstKind
	Str  string
	Num  float64
	B    bool
}

func Nil() Constant               { return Constant{Kind: ConstNil} }
func Bool(b bool) Constant        { return Constant{Kind: ConstBool, B: b} }
func Number(n float64) Constant   { return Constant{Kind: ConstNumber, Num: n} }
func String(s string) Constant    { return Constant{Kind: ConstString, Str: s} }
func (c Constant) IsString() bool { return c.Kind == ConstString }

// FormatConstant renders c as a source literal.
func FormatConstant(c Constant) string {
	switch c.Kind {
	case ConstString:
		return QuoteString(c.Str)
	case ConstNumber:
		return FormatNumber(c.Num)
	case ConstBool:
		if c.B {
			return "true"
		}
		return "false"
	default:
		return "nil"
	}
}

// FormatNumber renders n in canonical decimal form.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "0/0"
	case math.IsInf(n, 1):
		return "math.huge"
	case math.IsInf(n, -1):
		return "-math.huge"
	case n == math.Trunc(n) && math.Abs(n) < 1e15:
		return strconv.FormatInt(int64(n), 10)
	default:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
}

// QuoteString quotes s using Lua escape sequences.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if ch < 0x20 || ch == 0x7f {
				fmt.Fprintf(&b, `\%03d`, ch)
				continue
			}
			b.WriteByte(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

type constantJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes c as {"type": ..., "value": ...}.
func (c Constant) MarshalJSON() ([]byte, error) {
	var (
		val any
		out = constantJSON{Type: c.Kind.String()}
	)
	switch c.Kind {
	case ConstString:
		val = c.Str
	case ConstNumber:
		val = c.Num
	case ConstBool:
		val = c.B
	default:
		return json.Marshal(out)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	out.Value = raw
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (c *Constant) UnmarshalJSON(data []byte) error {
	var in constantJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("constant: %w", err)
	}
	switch in.Type {
	case "nil", "":
		*c = Nil()
		return nil
	case "string":
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return fmt.Errorf("string constant: %w", err)
		}
		*c = String(s)
	case "number":
		var n float64
		if err := json.Unmarshal(in.Value, &n); err != nil {
			return fmt.Errorf("number constant: %w", err)
		}
		*c = Number(n)
	case "bool":
		var b bool
		if err := json.Unmarshal(in.Value, &b); err != nil {
			return fmt.Errorf("bool constant: %w", err)
		}
		*c = Bool(b)
	default:
		return fmt.Errorf("unknown constant type %q", in.Type)
	}
	return nil
}
