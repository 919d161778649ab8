package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisassembleListsNestedFunctions(t *testing.T) {
	child := &Function{
		Instructions: []Instruction{
			Ins(GetUpvalue, 0, 0, 0),
			Ins(Return, 0, 1, 0),
		},
		UpvalueNames: []string{"counter"},
	}
	fn := &Function{
		Name: "main",
		Instructions: []Instruction{
			Ins(LoadGlobal, 0, 0, 0),
			Ins(GetField, 1, 0, RK(1)),
			Ins(CompareEq, 0, 1, RK(2)),
			Ins(Jump, 0, 2, 0),
			Ins(MakeClosure, 2, 0, 0),
			Ins(OpKind(200), 0, 0, 0),
		},
		Constants: []Constant{String("game"), String("Players"), Number(3)},
		Children:  []*Function{child},
	}
	var buf bytes.Buffer
	dis := NewDisassembler(&buf)
	require.NoError(t, dis.DisassembleFunction("", fn))
	out := buf.String()

	require.Contains(t, out, "function main (params=0")
	require.Contains(t, out, `K(0)="game"`)
	require.Contains(t, out, `K(1)="Players"`)
	require.Contains(t, out, "K(2)=3")
	require.Contains(t, out, "to 0006")
	require.Contains(t, out, "Op(200)")
	require.Contains(t, out, "unknown opcode")
	require.Contains(t, out, "function main/<closure@0>")
	require.Contains(t, out, "upvalue counter")
	require.Equal(t, 2, strings.Count(out, "function "))
}

func TestDisassembleInvalidConstant(t *testing.T) {
	fn := &Function{Instructions: []Instruction{Ins(LoadConst, 0, 7, 0)}}
	var buf bytes.Buffer
	require.NoError(t, NewDisassembler(&buf).DisassembleFunction("f", fn))
	require.Contains(t, buf.String(), "K(7)=<invalid>")
}

func TestDisassembleNil(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, NewDisassembler(&buf).DisassembleFunction("f", nil))
}

func TestDisassembleMissingChild(t *testing.T) {
	leaf := &Function{Name: "leaf", Instructions: []Instruction{Ins(Return, 0, 1, 0)}}
	fn := &Function{
		Instructions: []Instruction{Ins(MakeClosure, 0, 0, 0), Ins(MakeClosure, 1, 1, 0)},
		Children:     []*Function{nil, leaf},
	}
	var buf bytes.Buffer
	require.NoError(t, NewDisassembler(&buf).DisassembleFunction("main", fn))
	out := buf.String()
	require.Contains(t, out, "; main/<closure@0>: missing child\n")
	require.Contains(t, out, "function leaf (params=0")
}
