package printer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xirelogy/go-moondec/internal/ast"
)

// ErrNegativeDepth reports a close marker with no open block to close.
var ErrNegativeDepth = errors.New("printer: block close without matching open")

// ErrUnclosedBlock reports a function body that ends with open blocks.
var ErrUnclosedBlock = errors.New("printer: block left open at end of function")

// Options configures rendering.
type Options struct {
	Indent string // one indentation level; four spaces when empty
	// Clamp ignores close markers that would take the depth below zero
	// instead of reporting them. Intended for fuzzing only.
	Clamp bool
}

// Stats summarises a rendering.
type Stats struct {
	Lines     int
	Functions int
	Opens     int
	Closes    int
	MaxDepth  int
}

// Printer renders a FunctionLiteral tree as indented source text.
type Printer struct {
	w     io.Writer
	opts  Options
	depth int
	stats Stats
	err   error
	werr  error
}

// New constructs a Printer that writes to w.
func New(w io.Writer, opts Options) *Printer {
	if opts.Indent == "" {
		opts.Indent = "    "
	}
	return &Printer{w: w, opts: opts}
}

// Sprint renders fn and returns the text.
func Sprint(fn *ast.FunctionLiteral, opts Options) (string, Stats, error) {
	var sb strings.Builder
	p := New(&sb, opts)
	err := p.PrintMain(fn)
	return sb.String(), p.Stats(), err
}

// Stats returns the counters accumulated so far.
func (p *Printer) Stats() Stats { return p.stats }

// PrintMain renders fn as the top-level function. The first structural
// problem is returned after the whole tree has been written.
func (p *Printer) PrintMain(fn *ast.FunctionLiteral) error {
	if fn == nil {
		return errors.New("printer: nil function")
	}
	name := fn.Name
	if name == "" {
		name = "main"
	}
	params := append(append([]string(nil), fn.Params...), "...")
	p.function("local function "+name+"("+strings.Join(params, ", ")+")", fn)
	if p.werr != nil {
		return p.werr
	}
	return p.err
}

func (p *Printer) line(text string) {
	if p.werr != nil {
		return
	}
	if _, err := fmt.Fprintf(p.w, "%s%s\n", strings.Repeat(p.opts.Indent, p.depth), text); err != nil {
		p.werr = err
		return
	}
	p.stats.Lines++
}

func (p *Printer) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func header(fn *ast.FunctionLiteral) string {
	params := append([]string(nil), fn.Params...)
	if fn.IsVararg {
		params = append(params, "...")
	}
	return "(" + strings.Join(params, ", ") + ")"
}

// function writes head, the body of fn one level deeper, and the closing end.
func (p *Printer) function(head string, fn *ast.FunctionLiteral) {
	p.stats.Functions++
	p.line(head)
	base := p.depth
	p.depth++
	if len(fn.Upvalues) > 0 {
		p.line("-- upvalues: " + strings.Join(fn.Upvalues, ", "))
	}
	p.block(fn.Body, base+1)
	if p.depth != base+1 {
		if !p.opts.Clamp {
			p.fail(fmt.Errorf("%w: %d open in %s", ErrUnclosedBlock, p.depth-base-1, displayName(fn)))
		}
		p.depth = base + 1
	}
	p.depth = base
	p.line("end")
}

func displayName(fn *ast.FunctionLiteral) string {
	if fn.IsAnonymous || fn.Name == "" {
		return "anonymous function"
	}
	return fn.Name
}

func (p *Printer) block(b *ast.Block, floor int) {
	if b == nil {
		return
	}
	for _, node := range b.Statements {
		p.statement(node, floor)
	}
}

func (p *Printer) statement(node ast.Node, floor int) {
	switch n := node.(type) {
	case *ast.Assign:
		p.assign(n)
	case *ast.Call:
		p.line(n.Callee + "(" + strings.Join(n.Args, ", ") + ")")
	case *ast.Return:
		if len(n.Values) == 0 {
			p.line("return")
			return
		}
		p.line("return " + strings.Join(n.Values, ", "))
	case *ast.BlockMarker:
		p.marker(n, floor)
	case *ast.Raw:
		p.line(n.Text)
	case *ast.FunctionLiteral:
		p.function("function"+header(n), n)
	default:
		p.line(fmt.Sprintf("-- unsupported node %T", node))
	}
}

func (p *Printer) assign(a *ast.Assign) {
	local := ""
	if a.IsDeclaration {
		local = "local "
	}
	switch {
	case a.Func != nil && !a.Func.IsAnonymous:
		p.function(local+"function "+a.Target+header(a.Func), a.Func)
	case a.Func != nil:
		p.function(local+a.Target+" = function"+header(a.Func), a.Func)
	case a.Value == "":
		p.line(local + a.Target)
	default:
		p.line(local + a.Target + " = " + a.Value)
	}
}

// marker adjusts the depth around a block marker. floor is the body depth
// of the enclosing function; going below it is a recovery bug upstream.
func (p *Printer) marker(m *ast.BlockMarker, floor int) {
	switch m.Kind {
	case ast.MarkerOpen:
		p.stats.Opens++
		p.line(m.Text)
		p.depth++
		if rel := p.depth - floor; rel > p.stats.MaxDepth {
			p.stats.MaxDepth = rel
		}
	case ast.MarkerClose:
		p.stats.Closes++
		if !p.dedent(m, floor) {
			return
		}
		p.line(m.Text)
	case ast.MarkerReopen:
		if !p.dedent(m, floor) {
			return
		}
		p.line(m.Text)
		p.depth++
	}
}

func (p *Printer) dedent(m *ast.BlockMarker, floor int) bool {
	if p.depth-1 < floor {
		if p.opts.Clamp {
			return false
		}
		p.fail(fmt.Errorf("%w: %q at pc %d", ErrNegativeDepth, m.Text, m.PC))
		p.line("-- [UnbalancedBlocks] " + m.Text + " without an open block")
		return false
	}
	p.depth--
	return true
}
