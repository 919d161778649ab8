package decompiler_test

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xirelogy/go-moondec/internal/bytecode"
	"github.com/xirelogy/go-moondec/internal/decompiler"
	"github.com/xirelogy/go-moondec/internal/printer"
)

var compareOps = []bytecode.OpKind{bytecode.CompareEq, bytecode.CompareLt, bytecode.CompareLe}

// randomProgram emits a stream of moves, loads, calls, lone jumps and
// compare+jump pairs with forward and backward offsets.
func randomProgram(r *rand.Rand) *bytecode.Function {
	consts := []K{S("x"), S("y"), N(1), S("print")}
	n := 2 + r.IntN(48)
	var code []bytecode.Instruction
	for len(code) < n {
		a := uint32(r.IntN(6))
		switch r.IntN(9) {
		case 0:
			code = append(code, ins(bytecode.Move, a, int32(r.IntN(6)), 0))
		case 1:
			code = append(code, ins(bytecode.LoadConst, a, int32(r.IntN(len(consts))), 0))
		case 2:
			code = append(code, ins(bytecode.LoadGlobal, a, int32(r.IntN(len(consts))), 0))
		case 3:
			code = append(code, ins(bytecode.SetGlobal, a, int32(r.IntN(2)), 0))
		case 4:
			code = append(code, ins(bytecode.Call, a, int32(r.IntN(4)), int32(r.IntN(3))))
		case 5, 6:
			op := compareOps[r.IntN(len(compareOps))]
			code = append(code,
				ins(op, uint32(r.IntN(2)), int32(r.IntN(6)), rk(r.IntN(3))),
				ins(bytecode.Jump, 0, int32(r.IntN(16)-4), 0))
		case 7:
			code = append(code, ins(bytecode.Jump, 0, int32(r.IntN(20)-10), 0))
		case 8:
			code = append(code, ins(bytecode.Return, a, int32(r.IntN(3)), 0))
		}
	}
	return function(consts, code...)
}

// checkBalanced prints the recovered tree and requires every opened block to
// be closed without the indentation ever dropping below zero.
func checkBalanced(t *testing.T, fn *bytecode.Function, envOn bool) {
	t.Helper()
	out, _ := decompiler.Build(context.Background(), fn, decompiler.Options{Environment: envOn})
	require.NotNil(t, out)
	text, stats, err := printer.Sprint(out.Root, printer.Options{})
	require.NoError(t, err, text)
	require.Equal(t, stats.Opens, stats.Closes, text)
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		indent := len(line) - len(strings.TrimLeft(line, " "))
		require.Zero(t, indent%4, text)
	}
	require.True(t, strings.HasSuffix(text, "\nend\n"), text)
}

func TestRandomProgramsStayBalanced(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		checkBalanced(t, randomProgram(r), i%2 == 0)
	}
}

func FuzzBuild(f *testing.F) {
	f.Add([]byte{11, 0, 1, 3, 14, 0, 2, 0, 9, 1, 2, 1})
	f.Add([]byte{12, 1, 0, 1, 14, 0, 250, 0, 14, 0, 3, 0})
	f.Add([]byte{14, 0, 0, 0, 1, 2, 3, 4, 15, 0, 1, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		consts := []K{S("x"), S("game"), N(2), S("Foo")}
		var code []bytecode.Instruction
		for i := 0; i+4 <= len(data) && len(code) < 256; i += 4 {
			code = append(code, ins(bytecode.OpKind(data[i]%32), uint32(data[i+1]%8), int32(int8(data[i+2])), int32(data[i+3])))
		}
		if len(code) == 0 {
			return
		}
		checkBalanced(t, function(consts, code...), data[0]%2 == 0)
	})
}
