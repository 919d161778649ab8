package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTreeDump(t *testing.T) {
	inner := &FunctionLiteral{
		IsAnonymous: true,
		Upvalues:    []string{"count"},
		Body:        &Block{Statements: []Node{&Return{PC: 0, Values: []string{"count"}}}},
	}
	fn := &FunctionLiteral{
		Name:   "main",
		Params: []string{"reg0"},
		Body: &Block{Statements: []Node{
			&Assign{PC: 0, Target: "reg1", Value: `"x"`, IsDeclaration: true},
			OpenIf(1, "reg1 == 1"),
			&Call{PC: 3, Callee: "print", Args: []string{"reg1"}},
			End(4),
			&Assign{PC: 4, Target: "reg2", Func: inner, IsDeclaration: true},
			Comment(5, "[UnknownOpcode] Op(99)"),
		}},
	}
	out := Tree(fn)
	assert.Contains(t, out, "main(reg0)")
	assert.Contains(t, out, `local reg1 = "x"`)
	assert.Contains(t, out, `open "if reg1 == 1 then"`)
	assert.Contains(t, out, "call print(reg1)")
	assert.Contains(t, out, `close "end"`)
	assert.Contains(t, out, "<anonymous>()")
	assert.Contains(t, out, "count")
	assert.Contains(t, out, "-- [UnknownOpcode] Op(99)")
}

func TestBlockLen(t *testing.T) {
	var b *Block
	assert.Equal(t, 0, b.Len())
	b = &Block{}
	b.Append(Else(0), End(1))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, MarkerReopen, b.Statements[0].(*BlockMarker).Kind)
}
