package decompiler

import (
	"fmt"
	"strconv"

	"github.com/xirelogy/go-moondec/internal/ast"
	"github.com/xirelogy/go-moondec/internal/bytecode"
	"github.com/xirelogy/go-moondec/internal/log"
)

// funcState is the builder state for one function prototype. Nothing in it
// outlives the build of that function except through upvalue names.
type funcState struct {
	b         *builder
	enclosing *funcState
	fn        *bytecode.Function
	label     string
	depth     int

	regs *registers
	body *ast.Block
	flow *flow

	locals     map[string]bool // names declared in this function
	upvalues   []string        // resolved upvalue names by index
	referenced []string        // upvalues read or written, first-seen order
	refSeen    map[string]bool

	pending *pendingCall
}

func newFuncState(b *builder, enclosing *funcState, fn *bytecode.Function, label string, depth int) *funcState {
	return &funcState{
		b:         b,
		enclosing: enclosing,
		fn:        fn,
		label:     label,
		depth:     depth,
		regs:      newRegisters(),
		body:      &ast.Block{},
		flow:      newFlow(),
		locals:    make(map[string]bool),
		refSeen:   make(map[string]bool),
	}
}

func (f *funcState) frame(pc int) Frame {
	return Frame{Function: f.label, PC: pc}
}

func (f *funcState) emit(nodes ...ast.Node) {
	f.body.Append(nodes...)
}

// diagnose records a recovered anomaly and leaves an inline comment.
func (f *funcState) diagnose(pc int, code ErrorCode, format string, args ...interface{}) {
	d := Diagnostic{Code: code, Frame: f.frame(pc), Message: fmt.Sprintf(format, args...)}
	f.b.diags = append(f.b.diags, d)
	f.emit(ast.Comment(pc, "["+string(code)+"] "+d.Message))
	log.Debug(log.Decompile, "recovered anomaly", "code", code, "function", f.label, "pc", pc, "msg", d.Message)
}

// declare marks name as a local of this function and reports whether this
// is its first declaration.
func (f *funcState) declare(name string) bool {
	if f.locals[name] {
		return false
	}
	f.locals[name] = true
	return true
}

// visible reports whether name is declared here or in an enclosing function.
func (f *funcState) visible(name string) bool {
	for s := f; s != nil; s = s.enclosing {
		if s.locals[name] {
			return true
		}
	}
	return false
}

// bindParams names the parameter registers.
func (f *funcState) bindParams() []string {
	count := min(f.fn.NumParams, MaxRegisters)
	params := make([]string, 0, max(count, 0))
	for i := 0; i < count; i++ {
		name := regName(i)
		f.declare(name)
		f.regs.set(i, RegisterValue{Kind: Expr, Text: name})
		params = append(params, name)
	}
	return params
}

// resolveUpvalues names the upvalues of f from its descriptors and the
// enclosing function's state at closure-build time.
func (f *funcState) resolveUpvalues(pc int) {
	count := len(f.fn.Upvalues)
	if len(f.fn.UpvalueNames) > count {
		count = len(f.fn.UpvalueNames)
	}
	f.upvalues = make([]string, count)
	for i := range f.upvalues {
		f.upvalues[i] = f.upvalueName(pc, i)
	}
}

// upvalueName prefers what the enclosing function declared over debug names.
func (f *funcState) upvalueName(pc, i int) string {
	if parent := f.enclosing; parent != nil && i < len(f.fn.Upvalues) {
		desc := f.fn.Upvalues[i]
		switch {
		case desc.InStack && parent.regs.wasWritten(desc.Index):
			return parent.localFor(pc, desc.Index)
		case !desc.InStack && desc.Index >= 0 && desc.Index < len(parent.upvalues):
			return parent.upvalues[desc.Index]
		}
	}
	if i < len(f.fn.UpvalueNames) && ast.IsIdentifier(f.fn.UpvalueNames[i]) {
		return f.fn.UpvalueNames[i]
	}
	if parent := f.enclosing; parent != nil && i < len(f.fn.Upvalues) && f.fn.Upvalues[i].InStack {
		return regName(f.fn.Upvalues[i].Index)
	}
	return "upval" + strconv.Itoa(i)
}

// localFor returns a declared local holding register n, materialising the
// register first when its value is inline-only.
func (f *funcState) localFor(pc, n int) string {
	if !f.regs.wasWritten(n) {
		return regName(n)
	}
	v := f.regs.get(n)
	if ast.IsIdentifier(v.Text) && f.visible(v.Text) {
		return v.Text
	}
	f.materialise(pc, n, v)
	return regName(n)
}

// upvalue returns the name of upvalue idx and records the reference.
func (f *funcState) upvalue(idx int) string {
	name := "upval" + strconv.Itoa(idx)
	if idx >= 0 && idx < len(f.upvalues) {
		name = f.upvalues[idx]
	}
	if !f.refSeen[name] {
		f.refSeen[name] = true
		f.referenced = append(f.referenced, name)
	}
	return name
}
