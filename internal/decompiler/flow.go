package decompiler

import (
	"strconv"

	"github.com/xirelogy/go-moondec/internal/ast"
	"github.com/xirelogy/go-moondec/internal/bytecode"
)

type blockKind uint8

const (
	blockIf blockKind = iota
	blockWhile
)

func (k blockKind) String() string {
	if k == blockWhile {
		return "while"
	}
	return "if"
}

// openBlock is a recovered construct whose end has not been emitted yet.
// endAt is the instruction index the deferred end falls due at; loops opened
// by a backward compare have none and are closed by their back edge.
type openBlock struct {
	kind    blockKind
	pc      int
	endAt   int
	hasElse bool
	marker  *ast.BlockMarker
}

// flow is the deferred-marker scheduler for one function. The stack holds
// open blocks innermost last; an if's scheduled end lives on its block.
type flow struct {
	stack []*openBlock
}

func newFlow() *flow {
	return &flow{}
}

func (fl *flow) push(b *openBlock) {
	fl.stack = append(fl.stack, b)
}

func (fl *flow) pop() *openBlock {
	top := fl.stack[len(fl.stack)-1]
	fl.stack = fl.stack[:len(fl.stack)-1]
	return top
}

func (fl *flow) top() *openBlock {
	if len(fl.stack) == 0 {
		return nil
	}
	return fl.stack[len(fl.stack)-1]
}

func (fl *flow) depth() int {
	return len(fl.stack)
}

// dueIndex returns the stack index of the innermost if whose end falls due at pc.
func (fl *flow) dueIndex(pc int) int {
	for k := len(fl.stack) - 1; k >= 0; k-- {
		if b := fl.stack[k]; b.kind == blockIf && b.endAt == pc {
			return k
		}
	}
	return -1
}

func (fl *flow) due(pc int) bool {
	return fl.dueIndex(pc) >= 0
}

// innermostWhile returns the stack index of the innermost open loop.
func (fl *flow) innermostWhile() int {
	for k := len(fl.stack) - 1; k >= 0; k-- {
		if fl.stack[k].kind == blockWhile {
			return k
		}
	}
	return -1
}

// closeDue emits every end marker due at pc, innermost first. Several ends
// may fall due at the same index.
func (f *funcState) closeDue(pc int) {
	for {
		idx := f.flow.dueIndex(pc)
		if idx < 0 {
			return
		}
		f.closeTo(pc, idx)
	}
}

// closeTo pops blocks down to and including stack index idx, emitting one end
// per block. Blocks above idx are closed early because their range crosses
// the enclosing block's end.
func (f *funcState) closeTo(pc, idx int) {
	for f.flow.depth() > idx {
		b := f.flow.pop()
		if f.flow.depth() > idx {
			f.diagnose(pc, CodeUnbalancedBlocks, "%s opened at pc %d closed early by an enclosing block", b.kind, b.pc)
		}
		f.emit(ast.End(pc))
	}
}

var compareSymbols = map[bytecode.OpKind]string{
	bytecode.CompareEq: "==",
	bytecode.CompareLt: "<",
	bytecode.CompareLe: "<=",
}

// compare consumes a compare+jump pair at pc and opens the recovered block.
func (f *funcState) compare(pc int, ins bytecode.Instruction) error {
	insts := f.fn.Instructions
	if pc+1 >= len(insts) || insts[pc+1].Op != bytecode.Jump {
		next := "end of function"
		if pc+1 < len(insts) {
			next = insts[pc+1].Op.String()
		}
		return newError(CodeMalformedControlFlow, f.frame(pc), "%s at pc %d is followed by %s, not a jump", ins.Op, pc, next)
	}
	jmp := insts[pc+1]
	if hook := f.b.opts.TraceHook; hook != nil {
		hook(TraceInfo{Function: f.label, PC: pc + 1, Op: jmp.Op})
	}
	// markers due at the jump slot belong before the new block
	f.closeDue(pc + 1)

	lhs, rhs := f.rk(pc, ins.B), f.rk(pc, ins.C)
	cond := operand(lhs) + " " + compareSymbols[ins.Op] + " " + operand(rhs)
	if ins.A != 0 {
		cond = "not (" + cond + ")"
	}
	if f.b.sim != nil {
		if r, ok := f.b.sim.Compare(ins.Op, lhs.Obj, rhs.Obj); ok {
			cond = strconv.FormatBool(r != (ins.A != 0))
		}
	}

	if jmp.B < 0 {
		m := ast.OpenWhile(pc, cond)
		f.emit(m)
		f.flow.push(&openBlock{kind: blockWhile, pc: pc, endAt: -1, marker: m})
		return nil
	}
	m := ast.OpenIf(pc, cond)
	f.emit(m)
	f.flow.push(&openBlock{kind: blockIf, pc: pc, endAt: pc + int(jmp.B) + 2, marker: m})
	return nil
}

// jump handles a Jump that is not part of a compare pair.
func (f *funcState) jump(pc int, ins bytecode.Instruction) {
	target := pc + 1 + int(ins.B)
	top := f.flow.top()

	if ins.B < 0 {
		// back edge of a loop compiled as a forward conditional exit
		if top != nil && top.kind == blockIf && !top.hasElse && top.endAt == pc+1 && target <= top.pc {
			top.kind = blockWhile
			top.marker.Text = "while " + top.marker.Text[len("if "):len(top.marker.Text)-len(" then")] + " do"
			f.closeTo(pc, f.flow.depth()-1)
			return
		}
		if idx := f.flow.innermostWhile(); idx >= 0 {
			f.closeTo(pc, idx)
			return
		}
		f.emit(ast.Comment(pc, "goto pc "+strconv.Itoa(target)))
		return
	}

	if top != nil && top.kind == blockIf && !top.hasElse && top.endAt == pc+1 {
		f.emit(ast.Else(pc))
		top.hasElse = true
		top.endAt = target
		return
	}
	f.emit(ast.Comment(pc, "goto pc "+strconv.Itoa(target)))
}

// finishBlocks closes whatever is still open when the instruction stream ends.
func (f *funcState) finishBlocks(end int) {
	for f.flow.depth() > 0 {
		b := f.flow.pop()
		if b.kind != blockIf || b.endAt < end {
			f.diagnose(end, CodeUnbalancedBlocks, "%s opened at pc %d has no end before the function ends", b.kind, b.pc)
		}
		f.emit(ast.End(end))
	}
}

// abandonBlocks closes open blocks after a fatal failure.
func (f *funcState) abandonBlocks(pc int) {
	for f.flow.depth() > 0 {
		f.flow.pop()
		f.emit(ast.End(pc))
	}
}
