package decompiler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xirelogy/go-moondec/internal/ast"
	"github.com/xirelogy/go-moondec/internal/bytecode"
	"github.com/xirelogy/go-moondec/internal/env"
	"github.com/xirelogy/go-moondec/internal/log"
)

const (
	DefaultMaxDepth            = 64
	DefaultLongStringThreshold = 40

	// maxSpan bounds register ranges taken from a single operand.
	maxSpan = 255
)

// Options configures one Build.
type Options struct {
	MaxDepth            int
	Environment         bool
	LongStringThreshold int
	TraceHook           TraceHook
}

// Output is everything recovered from one function tree.
type Output struct {
	Root        *ast.FunctionLiteral
	Diagnostics []Diagnostic
	CallGraph   []env.CallEntry
	StringRefs  []StringRef
}

type builder struct {
	ctx     context.Context
	opts    Options
	sim     *env.Simulator
	strings *stringRefs
	diags   []Diagnostic
}

type pendingCall struct {
	pc     int
	reg    int
	callee string
	args   []string
}

// Build recovers the AST of fn and its nested prototypes. On a structural
// failure it returns the partial output together with an *Error.
func Build(ctx context.Context, fn *bytecode.Function, opts Options) (*Output, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.LongStringThreshold <= 0 {
		opts.LongStringThreshold = DefaultLongStringThreshold
	}
	b := &builder{
		ctx:     ctx,
		opts:    opts,
		strings: newStringRefs(opts.LongStringThreshold),
	}
	if opts.Environment {
		b.sim = env.New()
	}

	label := "main"
	if fn != nil && fn.Name != "" {
		label = fn.Name
	}
	if fn == nil || len(fn.Instructions) == 0 {
		root := &ast.FunctionLiteral{PC: -1, Name: label, Body: &ast.Block{}}
		return &Output{Root: root}, newError(CodeEmptyOrInvalidInput, Frame{Function: label, PC: -1}, "function has no instructions")
	}

	root := newFuncState(b, nil, fn, label, 0)
	lit, err := b.function(root, -1)
	lit.Name = label

	out := &Output{Root: lit, Diagnostics: b.diags, StringRefs: b.strings.list()}
	if b.sim != nil {
		out.CallGraph = b.sim.CallGraph()
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

func (b *builder) function(f *funcState, pc int) (*ast.FunctionLiteral, error) {
	log.Trace(log.Decompile, "build function", "function", f.label, "depth", f.depth, "instructions", len(f.fn.Instructions))
	lit := &ast.FunctionLiteral{
		PC:       pc,
		Params:   f.bindParams(),
		IsVararg: f.fn.IsVararg,
		Body:     f.body,
	}
	err := f.run()
	lit.Upvalues = f.referenced
	return lit, err
}

// run is the single forward pass over the instructions of f.
func (f *funcState) run() error {
	insts := f.fn.Instructions
	n := len(insts)
	for pc := 0; pc < n; pc++ {
		if err := f.b.ctx.Err(); err != nil {
			return f.abort(pc, &Error{
				Code:    CodeCanceled,
				Message: "decompilation canceled",
				Frame:   f.frame(pc),
				Cause:   fmt.Errorf("%w: %w", ErrCanceled, err),
			})
		}
		ins := insts[pc]
		if f.pending != nil && (f.flow.due(pc) || !consumesOpen(ins)) {
			f.flushPending()
		}
		f.closeDue(pc)
		if hook := f.b.opts.TraceHook; hook != nil {
			hook(TraceInfo{Function: f.label, PC: pc, Op: ins.Op})
		}

		if ins.Op.IsCompare() {
			if err := f.compare(pc, ins); err != nil {
				return f.abort(pc, err)
			}
			pc++
			continue
		}
		if err := f.step(pc, ins); err != nil {
			return f.abort(pc, err)
		}
	}
	f.flushPending()
	f.finishBlocks(n)
	return nil
}

// abort marks the failure point in the partial body and keeps it balanced.
func (f *funcState) abort(pc int, err error) error {
	var de *Error
	if !errors.As(err, &de) {
		de = wrapError(f.frame(pc), err)
	} else if de.Frame.Function != f.label {
		de.Stack = append(de.Stack, f.frame(pc))
	}
	f.flushPending()
	f.emit(ast.Comment(pc, "["+string(de.Code)+"] build aborted: "+de.Message))
	f.abandonBlocks(pc)
	log.Warn(log.Decompile, "function build aborted", "function", f.label, "pc", pc, "code", de.Code, "err", de.Message)
	return de
}

func consumesOpen(ins bytecode.Instruction) bool {
	return (ins.Op == bytecode.Call || ins.Op == bytecode.Return) && ins.B == 0
}

func (f *funcState) flushPending() {
	p := f.pending
	if p == nil {
		return
	}
	f.pending = nil
	f.emit(&ast.Call{PC: p.pc, Callee: p.callee, Args: p.args})
	f.regs.set(p.reg, RegisterValue{Kind: Expr, Text: regName(p.reg)})
}

// materialise binds v to the local owned by register n.
func (f *funcState) materialise(pc, n int, v RegisterValue) {
	name := regName(n)
	f.emit(&ast.Assign{PC: pc, Target: name, Value: v.Text, IsDeclaration: f.declare(name)})
	v.Kind = Expr
	v.Text = name
	v.receiver = false
	v.Method = ""
	f.regs.set(n, v)
}

// bindObject binds a named simulator object to its display name, reusing a
// declaration that is already visible.
func (f *funcState) bindObject(pc, n int, v RegisterValue) {
	name := f.b.sim.Name(v.Obj)
	bound := RegisterValue{Kind: Expr, Text: name, Obj: v.Obj, Str: v.Str, IsStr: v.IsStr}
	if f.visible(name) {
		f.regs.set(n, bound)
		return
	}
	f.declare(name)
	f.emit(&ast.Assign{PC: pc, Target: name, Value: v.Text, IsDeclaration: true})
	f.regs.set(n, bound)
}

// bindFirst materialises v when register n has never been written, and
// otherwise propagates it.
func (f *funcState) bindFirst(pc, n int, v RegisterValue) {
	if !f.regs.wasWritten(n) {
		f.materialise(pc, n, v)
		return
	}
	f.regs.set(n, v)
}

var arithSymbols = map[bytecode.OpKind]string{
	bytecode.Add: "+",
	bytecode.Sub: "-",
	bytecode.Mul: "*",
	bytecode.Div: "/",
	bytecode.Mod: "%",
	bytecode.Pow: "^",
}

// usesRegisterA reports whether operand A of op names a register.
func usesRegisterA(op bytecode.OpKind) bool {
	return op.Known() && op != bytecode.Nop && op != bytecode.Jump && !op.IsCompare()
}

// step applies one non-compare instruction.
func (f *funcState) step(pc int, ins bytecode.Instruction) error {
	a := int(ins.A)
	if a >= MaxRegisters && usesRegisterA(ins.Op) {
		f.diagnose(pc, CodeRegisterOutOfRange, "%s register %d exceeds the %d-register frame, treated as no-op", ins.Op, ins.A, MaxRegisters)
		return nil
	}
	switch ins.Op {
	case bytecode.Nop:

	case bytecode.Move:
		v := f.regs.get(int(ins.B))
		v.receiver = false
		f.regs.set(a, v)

	case bytecode.LoadConst:
		v, ok := f.constant(int(ins.B))
		if !ok {
			f.diagnose(pc, CodeConstantIndexOutOfRange, "constant index %d out of range (pool size %d)", ins.B, len(f.fn.Constants))
		}
		if v.IsStr && len(v.Str) > f.b.opts.LongStringThreshold {
			f.materialise(pc, a, v)
			break
		}
		f.bindFirst(pc, a, v)

	case bytecode.LoadBool:
		f.bindFirst(pc, a, RegisterValue{Kind: Literal, Text: strconv.FormatBool(ins.B != 0)})

	case bytecode.LoadNil:
		last := int(ins.B)
		if last < a {
			last = a
		}
		if last > a+maxSpan {
			last = a + maxSpan
		}
		for r := a; r <= last; r++ {
			f.bindFirst(pc, r, RegisterValue{Kind: Literal, Text: "nil"})
		}

	case bytecode.LoadGlobal:
		f.regs.set(a, f.global(pc, int(ins.B)))

	case bytecode.SetGlobal:
		target := f.global(pc, int(ins.B))
		f.emit(&ast.Assign{PC: pc, Target: target.Text, Value: f.regs.get(a).Text})

	case bytecode.GetUpvalue:
		f.materialise(pc, a, RegisterValue{Kind: Expr, Text: f.upvalue(int(ins.B))})

	case bytecode.SetUpvalue:
		f.emit(&ast.Assign{PC: pc, Target: f.upvalue(int(ins.B)), Value: f.regs.get(a).Text})

	case bytecode.GetField:
		f.getField(pc, a, f.regs.get(int(ins.B)), f.rk(pc, ins.C))

	case bytecode.SetField:
		tbl := f.regs.get(a)
		key, val := f.rk(pc, ins.B), f.rk(pc, ins.C)
		f.emit(&ast.Assign{PC: pc, Target: fieldAccess(prefix(tbl), key), Value: val.Text})
		if f.b.sim != nil && key.IsStr {
			f.b.sim.Write(tbl.Obj, key.Str, val.Text)
		}

	case bytecode.SelfIndex:
		obj := f.regs.get(int(ins.B))
		key := f.rk(pc, ins.C)
		callee := RegisterValue{Kind: Expr, RecvText: obj.Text, RecvObj: obj.Obj}
		if key.IsStr && ast.IsIdentifier(key.Str) {
			callee.Text = prefix(obj) + ":" + key.Str
			callee.Method = key.Str
		} else {
			callee.Text = fieldAccess(prefix(obj), key)
		}
		recv := obj
		recv.receiver = true
		f.regs.set(a+1, recv)
		f.regs.set(a, callee)

	case bytecode.Call:
		f.call(pc, a, ins)

	case bytecode.MakeClosure:
		return f.closure(pc, a, int(ins.B))

	case bytecode.Return:
		f.ret(pc, a, int(ins.B))

	case bytecode.Jump:
		f.jump(pc, ins)

	case bytecode.NewTable:
		f.materialise(pc, a, RegisterValue{Kind: Expr, Text: "{}"})

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod, bytecode.Pow:
		l, r := f.rk(pc, ins.B), f.rk(pc, ins.C)
		v := RegisterValue{Kind: Expr, Text: operand(l) + " " + arithSymbols[ins.Op] + " " + operand(r)}
		if f.b.sim != nil {
			if h := f.b.sim.Arith(ins.Op, l.Obj, r.Obj); h != env.None {
				v = f.folded(h)
			}
		}
		f.regs.set(a, v)

	case bytecode.Unm:
		src := f.regs.get(int(ins.B))
		text := operand(src)
		if strings.HasPrefix(text, "-") {
			text = "(" + text + ")"
		}
		v := RegisterValue{Kind: Expr, Text: "-" + text}
		if f.b.sim != nil {
			if h := f.b.sim.Negate(src.Obj); h != env.None {
				v = f.folded(h)
			}
		}
		f.regs.set(a, v)

	case bytecode.Not:
		f.regs.set(a, RegisterValue{Kind: Expr, Text: "not " + operand(f.regs.get(int(ins.B)))})

	case bytecode.Len:
		f.regs.set(a, RegisterValue{Kind: Expr, Text: "#" + operand(f.regs.get(int(ins.B)))})

	case bytecode.Concat:
		first, last := int(ins.B), int(ins.C)
		if last < first {
			last = first
		}
		if last > first+maxSpan {
			last = first + maxSpan
		}
		parts := make([]string, 0, last-first+1)
		for r := first; r <= last; r++ {
			parts = append(parts, operand(f.regs.get(r)))
		}
		f.regs.set(a, RegisterValue{Kind: Expr, Text: strings.Join(parts, " .. ")})

	default:
		f.diagnose(pc, CodeUnknownOpcode, "%s (a=%d b=%d c=%d) treated as no-op", ins.Op, ins.A, ins.B, ins.C)
	}
	return nil
}

func (f *funcState) folded(h env.Handle) RegisterValue {
	n, _ := f.b.sim.NumberValue(h)
	return RegisterValue{Kind: Literal, Text: bytecode.FormatNumber(n), Obj: h}
}

// prefix renders v so that it can be indexed or called.
func prefix(v RegisterValue) string {
	if v.Kind == Literal || topLevelSpace(v.Text) {
		return "(" + v.Text + ")"
	}
	return v.Text
}

// global resolves constant idx as a global name.
func (f *funcState) global(pc, idx int) RegisterValue {
	c, ok := f.fn.Constant(idx)
	if !ok {
		f.diagnose(pc, CodeConstantIndexOutOfRange, "global name constant %d out of range (pool size %d)", idx, len(f.fn.Constants))
		return RegisterValue{Kind: Literal, Text: "nil"}
	}
	if !c.IsString() || !ast.IsIdentifier(c.Str) {
		return RegisterValue{Kind: Expr, Text: "_G[" + bytecode.FormatConstant(c) + "]"}
	}
	v := RegisterValue{Kind: Expr, Text: c.Str}
	if f.b.sim != nil {
		v.Obj = f.b.sim.Global(c.Str)
	}
	return v
}

func (f *funcState) getField(pc, a int, tbl, key RegisterValue) {
	v := RegisterValue{Kind: Expr, Text: fieldAccess(prefix(tbl), key)}
	if f.b.sim != nil && key.IsStr && tbl.Obj != env.None {
		ref := f.b.sim.Index(tbl.Obj, tbl.Text, key.Str)
		v.Obj = ref.Handle
		if ref.Text != "" {
			v.Text = ref.Text
		}
		if ref.Named {
			f.bindObject(pc, a, v)
			return
		}
	}
	f.bindFirst(pc, a, v)
}

// args collects the values of registers from..from+b-2, or an open list when b is 0.
func (f *funcState) args(pc, from, b int) []RegisterValue {
	if b > 0 {
		count := b - 1
		if count > maxSpan {
			count = maxSpan
		}
		out := make([]RegisterValue, 0, count)
		for r := from; r < from+count; r++ {
			out = append(out, f.regs.get(r))
		}
		return out
	}
	if p := f.pending; p != nil && p.reg >= from {
		f.pending = nil
		out := make([]RegisterValue, 0, p.reg-from+1)
		for r := from; r <= p.reg; r++ {
			out = append(out, f.regs.get(r))
		}
		return out
	}
	f.flushPending()
	f.emit(ast.Comment(pc, "[OpenArgs] value list extends to the top of the stack"))
	top := f.regs.top
	if top > from+maxSpan {
		top = from + maxSpan
	}
	var out []RegisterValue
	for r := from; r <= top; r++ {
		out = append(out, f.regs.get(r))
	}
	return out
}

func texts(vals []RegisterValue) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.Text
	}
	return out
}

func (f *funcState) call(pc, a int, ins bytecode.Instruction) {
	callee := f.regs.get(a)
	args := f.args(pc, a+1, int(ins.B))

	name, method, recv := prefix(callee), callee.Method, callee.RecvObj
	if method != "" {
		name = callee.Text
		if len(args) > 0 && args[0].receiver {
			args = args[1:]
		}
	}
	// "Lib"("Method", ...) is the UI library convention Lib:Method(...)
	if method == "" && callee.IsStr && ast.IsIdentifier(callee.Str) &&
		len(args) > 0 && args[0].IsStr && ast.IsIdentifier(args[0].Str) {
		method = args[0].Str
		name = callee.Str + ":" + method
		args = args[1:]
		if f.b.sim != nil {
			recv = f.b.sim.Global(callee.Str)
		}
	}
	argTexts := texts(args)
	text := name + "(" + strings.Join(argTexts, ", ") + ")"

	var ref env.Ref
	if f.b.sim != nil {
		site := env.CallSite{PC: pc, Callee: callee.Obj, Name: name, Method: method, Receiver: recv}
		for _, v := range args {
			site.Args = append(site.Args, env.Arg{Text: v.Text, Handle: v.Obj, Str: v.Str, IsStr: v.IsStr})
		}
		ref = f.b.sim.Call(site)
	}

	switch {
	case ins.C == 0:
		f.pending = &pendingCall{pc: pc, reg: a, callee: name, args: argTexts}
		f.regs.set(a, RegisterValue{Kind: Expr, Text: text, Obj: ref.Handle})
	case ins.C == 1:
		f.emit(&ast.Call{PC: pc, Callee: name, Args: argTexts})
	case ins.C == 2:
		v := RegisterValue{Kind: Expr, Text: text, Obj: ref.Handle}
		switch {
		case ref.Named:
			if ref.Text != "" {
				v.Text = ref.Text
			}
			f.bindObject(pc, a, v)
		case ref.Text != "":
			v.Text = ref.Text
			f.regs.set(a, v)
		default:
			f.materialise(pc, a, v)
		}
	default:
		f.multiAssign(pc, a, int(ins.C)-1, text)
	}
}

// multiAssign binds several call results to consecutive register locals.
func (f *funcState) multiAssign(pc, a, count int, value string) {
	if count > maxSpan {
		count = maxSpan
	}
	var targets, fresh []string
	for r := a; r < a+count; r++ {
		name := regName(r)
		targets = append(targets, name)
		if !f.locals[name] {
			fresh = append(fresh, name)
		}
	}
	for _, name := range fresh {
		f.declare(name)
	}
	switch {
	case len(fresh) == count:
		f.emit(&ast.Assign{PC: pc, Target: strings.Join(targets, ", "), Value: value, IsDeclaration: true})
	case len(fresh) > 0:
		f.emit(&ast.Assign{PC: pc, Target: strings.Join(fresh, ", "), IsDeclaration: true})
		fallthrough
	default:
		f.emit(&ast.Assign{PC: pc, Target: strings.Join(targets, ", "), Value: value})
	}
	for i, name := range targets {
		f.regs.set(a+i, RegisterValue{Kind: Expr, Text: name})
	}
}

func (f *funcState) ret(pc, a, b int) {
	switch {
	case b == 1:
		if pc == len(f.fn.Instructions)-1 {
			return
		}
		f.emit(&ast.Return{PC: pc})
	default:
		f.emit(&ast.Return{PC: pc, Values: texts(f.args(pc, a, b))})
	}
}

func childLabel(parent string, child *bytecode.Function, idx int) string {
	if child.Name != "" {
		return parent + "/" + child.Name
	}
	return fmt.Sprintf("%s/<closure@%d>", parent, idx)
}

// closure builds child prototype idx and binds it to register a.
func (f *funcState) closure(pc, a, idx int) error {
	child := f.fn.Child(idx)
	if child == nil {
		f.diagnose(pc, CodeClosureIndexOutOfRange, "closure index %d out of range (%d children)", idx, len(f.fn.Children))
		f.regs.set(a, RegisterValue{Kind: Literal, Text: "nil"})
		return nil
	}
	if f.depth+1 > f.b.opts.MaxDepth {
		return newError(CodeDepthExceeded, f.frame(pc), "closure nesting depth %d exceeds limit %d", f.depth+1, f.b.opts.MaxDepth)
	}

	cs := newFuncState(f.b, f, child, childLabel(f.label, child, idx), f.depth+1)
	cs.resolveUpvalues(pc)
	lit, err := f.b.function(cs, pc)

	name := regName(a)
	lit.IsAnonymous = true
	if ast.IsIdentifier(child.Name) {
		name = child.Name
		lit.Name = child.Name
		lit.IsAnonymous = false
	}
	f.emit(&ast.Assign{PC: pc, Target: name, Func: lit, IsDeclaration: f.declare(name)})
	f.regs.set(a, RegisterValue{Kind: ClosureLiteral, Text: name})
	return err
}
