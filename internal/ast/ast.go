package ast

// Node represents any decompiled statement. Pos is the index of the instruction
// that produced it, or -1 for synthesized nodes.
type Node interface {
	Pos() int
	stmtNode()
}

// Block is an ordered statement list; order is source order.
type Block struct {
	Statements []Node
}

// Append adds nodes to the end of the block.
func (b *Block) Append(nodes ...Node) {
	b.Statements = append(b.Statements, nodes...)
}

// Len returns the number of statements.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Statements)
}

// Assign binds Value to Target. Func is set when the value is a function literal.
// A declaration with an empty Value renders as a bare `local` statement.
type Assign struct {
	PC            int
	Target        string
	Value         string
	Func          *FunctionLiteral
	IsDeclaration bool
}

func (a *Assign) Pos() int  { return a.PC }
func (a *Assign) stmtNode() {}

// Call is a call statement whose results are discarded.
type Call struct {
	PC     int
	Callee string
	Args   []string
}

func (c *Call) Pos() int  { return c.PC }
func (c *Call) stmtNode() {}

// FunctionLiteral is a decompiled function prototype.
type FunctionLiteral struct {
	PC          int
	Name        string
	Params      []string
	IsVararg    bool
	Body        *Block
	IsAnonymous bool
	Upvalues    []string // captured upvalues referenced by the body
}

func (f *FunctionLiteral) Pos() int  { return f.PC }
func (f *FunctionLiteral) stmtNode() {}

// Return returns zero or more values.
type Return struct {
	PC     int
	Values []string
}

func (r *Return) Pos() int  { return r.PC }
func (r *Return) stmtNode() {}

// MarkerKind says how a block marker affects nesting.
type MarkerKind int

const (
	MarkerOpen   MarkerKind = iota // if ... then, while ... do
	MarkerClose                    // end
	MarkerReopen                   // else
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerOpen:
		return "open"
	case MarkerClose:
		return "close"
	case MarkerReopen:
		return "reopen"
	default:
		return "unknown"
	}
}

// BlockMarker opens or closes a structured construct recovered from jumps.
type BlockMarker struct {
	PC   int
	Kind MarkerKind
	Text string
}

func (m *BlockMarker) Pos() int  { return m.PC }
func (m *BlockMarker) stmtNode() {}

// Raw is verbatim text, used for comments and diagnostics.
type Raw struct {
	PC   int
	Text string
}

func (r *Raw) Pos() int  { return r.PC }
func (r *Raw) stmtNode() {}

// OpenIf returns the marker opening a conditional block.
func OpenIf(pc int, cond string) *BlockMarker {
	return &BlockMarker{PC: pc, Kind: MarkerOpen, Text: "if " + cond + " then"}
}

// OpenWhile returns the marker opening a loop block.
func OpenWhile(pc int, cond string) *BlockMarker {
	return &BlockMarker{PC: pc, Kind: MarkerOpen, Text: "while " + cond + " do"}
}

// End returns a closing marker.
func End(pc int) *BlockMarker {
	return &BlockMarker{PC: pc, Kind: MarkerClose, Text: "end"}
}

// Else returns the marker separating a conditional's branches.
func Else(pc int) *BlockMarker {
	return &BlockMarker{PC: pc, Kind: MarkerReopen, Text: "else"}
}

// Comment returns a Raw line comment.
func Comment(pc int, text string) *Raw {
	return &Raw{PC: pc, Text: "-- " + text}
}
