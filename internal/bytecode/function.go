package bytecode

// RKOffset is the operand threshold above which an RK operand addresses the constant pool.
const RKOffset = 256

// Instruction is a decoded fixed-width instruction.
type Instruction struct {
	Op OpKind `json:"op"`
	A  uint32 `json:"a"`
	B  int32  `json:"b"`
	C  int32  `json:"c"`
}

// Ins is shorthand for building an Instruction.
func Ins(op OpKind, a uint32, b, c int32) Instruction {
	return Instruction{Op: op, A: a, B: b, C: c}
}

// IsConstantOperand reports whether an RK operand addresses the constant pool.
func IsConstantOperand(operand int32) bool {
	return operand >= RKOffset
}

// RK encodes constant index idx as an RK operand.
func RK(idx int) int32 {
	return int32(idx + RKOffset)
}

// UpvalueDesc describes where a closure captures an upvalue from.
type UpvalueDesc struct {
	InStack bool `json:"in_stack"` // parent register when true, parent upvalue otherwise
	Index   int  `json:"index"`
}

// Function is a decoded function prototype. Children are owned exclusively by their parent.
type Function struct {
	Name         string        `json:"name,omitempty"`
	NumParams    int           `json:"num_params,omitempty"`
	IsVararg     bool          `json:"is_vararg,omitempty"`
	Instructions []Instruction `json:"instructions"`
	Constants    []Constant    `json:"constants,omitempty"`
	Children     []*Function   `json:"children,omitempty"`
	Upvalues     []UpvalueDesc `json:"upvalues,omitempty"`
	UpvalueNames []string      `json:"upvalue_names,omitempty"`
}

// Constant returns the constant at idx, or false when idx is out of range.
func (f *Function) Constant(idx int) (Constant, bool) {
	if f == nil || idx < 0 || idx >= len(f.Constants) {
		return Constant{}, false
	}
	return f.Constants[idx], true
}

// Child returns the nested prototype at idx, or nil when idx is out of range.
func (f *Function) Child(idx int) *Function {
	if f == nil || idx < 0 || idx >= len(f.Children) {
		return nil
	}
	return f.Children[idx]
}

// Count returns the number of functions and instructions in the tree rooted at f.
func (f *Function) Count() (functions, instructions int) {
	if f == nil {
		return 0, 0
	}
	functions, instructions = 1, len(f.Instructions)
	for _, child := range f.Children {
		fn, in := child.Count()
		functions += fn
		instructions += in
	}
	return functions, instructions
}
