package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassembler formats a function tree as a readable assembly-style listing.
type Disassembler struct {
	w       io.Writer
	visited map[*Function]bool
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{
		w:       w,
		visited: make(map[*Function]bool),
	}
}

// DisassembleFunction emits a listing for fn and every nested child.
func (d *Disassembler) DisassembleFunction(label string, fn *Function) error {
	if fn == nil {
		return fmt.Errorf("nil function")
	}
	if d.visited[fn] {
		return nil
	}
	d.visited[fn] = true
	d.startSection()
	name := label
	if name == "" {
		name = fn.Name
	}
	if name == "" {
		name = "<anon>"
	}
	fmt.Fprintf(d.w, "function %s (params=%d, vararg=%t, upvalues=%d, constants=%d)\n",
		name, fn.NumParams, fn.IsVararg, len(fn.Upvalues), len(fn.Constants))
	for pc, ins := range fn.Instructions {
		operands, comment := d.operands(fn, pc, ins)
		fmt.Fprintf(d.w, "%04d %-12s %s", pc, ins.Op, operands)
		if comment != "" {
			fmt.Fprintf(d.w, " ; %s", comment)
		}
		fmt.Fprintln(d.w)
	}
	for idx, child := range fn.Children {
		if child == nil {
			d.startSection()
			fmt.Fprintf(d.w, "; %s/<closure@%d>: missing child\n", name, idx)
			continue
		}
		childName := child.Name
		if childName == "" {
			childName = fmt.Sprintf("%s/<closure@%d>", name, idx)
		}
		if err := d.DisassembleFunction(childName, child); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

func (d *Disassembler) operands(fn *Function, pc int, ins Instruction) (string, string) {
	abc := fmt.Sprintf("A=%d B=%d C=%d", ins.A, ins.B, ins.C)
	switch ins.Op {
	case LoadConst, LoadGlobal, SetGlobal:
		return fmt.Sprintf("A=%d K=%d", ins.A, ins.B), formatConstRef(fn, int(ins.B))
	case GetField, SelfIndex:
		return abc, rkComment(fn, ins.C)
	case SetField, Add, Sub, Mul, Div, Mod, Pow, CompareEq, CompareLt, CompareLe:
		return abc, joinComments(rkComment(fn, ins.B), rkComment(fn, ins.C))
	case Jump:
		return fmt.Sprintf("sBx=%d", ins.B), fmt.Sprintf("to %04d", pc+1+int(ins.B))
	case MakeClosure:
		return fmt.Sprintf("A=%d child=%d", ins.A, ins.B), ""
	case GetUpvalue, SetUpvalue:
		return fmt.Sprintf("A=%d U=%d", ins.A, ins.B), upvalueComment(fn, int(ins.B))
	default:
		if !ins.Op.Known() {
			return abc, "unknown opcode"
		}
		return abc, ""
	}
}

func rkComment(fn *Function, operand int32) string {
	if !IsConstantOperand(operand) {
		return ""
	}
	return formatConstRef(fn, int(operand-RKOffset))
}

func joinComments(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func upvalueComment(fn *Function, idx int) string {
	if idx >= 0 && idx < len(fn.UpvalueNames) {
		return "upvalue " + fn.UpvalueNames[idx]
	}
	return ""
}

func formatConstRef(fn *Function, idx int) string {
	c, ok := fn.Constant(idx)
	if !ok {
		return fmt.Sprintf("K(%d)=<invalid>", idx)
	}
	return fmt.Sprintf("K(%d)=%s", idx, FormatConstant(c))
}
