package moondec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xirelogy/go-moondec/internal/ast"
	"github.com/xirelogy/go-moondec/internal/bytecode"
	"github.com/xirelogy/go-moondec/internal/decompiler"
	"github.com/xirelogy/go-moondec/internal/env"
	"github.com/xirelogy/go-moondec/internal/log"
	"github.com/xirelogy/go-moondec/internal/printer"
	"github.com/xirelogy/go-moondec/internal/rename"
)

// Bytecode model.
type (
	Function    = bytecode.Function
	Instruction = bytecode.Instruction
	OpKind      = bytecode.OpKind
	Constant    = bytecode.Constant
	UpvalueDesc = bytecode.UpvalueDesc
)

// Instruction kinds.
const (
	Nop         = bytecode.Nop
	Move        = bytecode.Move
	LoadConst   = bytecode.LoadConst
	LoadGlobal  = bytecode.LoadGlobal
	GetUpvalue  = bytecode.GetUpvalue
	SetUpvalue  = bytecode.SetUpvalue
	GetField    = bytecode.GetField
	SetField    = bytecode.SetField
	SelfIndex   = bytecode.SelfIndex
	Call        = bytecode.Call
	MakeClosure = bytecode.MakeClosure
	CompareEq   = bytecode.CompareEq
	CompareLt   = bytecode.CompareLt
	CompareLe   = bytecode.CompareLe
	Jump        = bytecode.Jump
	Return      = bytecode.Return
	NewTable    = bytecode.NewTable
	SetGlobal   = bytecode.SetGlobal
	LoadBool    = bytecode.LoadBool
	LoadNil     = bytecode.LoadNil
	Add         = bytecode.Add
	Sub         = bytecode.Sub
	Mul         = bytecode.Mul
	Div         = bytecode.Div
	Mod         = bytecode.Mod
	Pow         = bytecode.Pow
	Unm         = bytecode.Unm
	Not         = bytecode.Not
	Len         = bytecode.Len
	Concat      = bytecode.Concat
)

// Constructors for building functions by hand.
var (
	Ins    = bytecode.Ins
	RK     = bytecode.RK
	Nil    = bytecode.Nil
	Bool   = bytecode.Bool
	Number = bytecode.Number
	String = bytecode.String
)

// Diagnostics and errors.
type (
	ErrorCode  = decompiler.ErrorCode
	Frame      = decompiler.Frame
	Diagnostic = decompiler.Diagnostic
	Error      = decompiler.Error
	TraceInfo  = decompiler.TraceInfo
	TraceHook  = decompiler.TraceHook
)

const (
	CodeNone                    = decompiler.CodeNone
	CodeMalformedControlFlow    = decompiler.CodeMalformedControlFlow
	CodeUnknownOpcode           = decompiler.CodeUnknownOpcode
	CodeConstantIndexOutOfRange = decompiler.CodeConstantIndexOutOfRange
	CodeDepthExceeded           = decompiler.CodeDepthExceeded
	CodeEmptyOrInvalidInput     = decompiler.CodeEmptyOrInvalidInput
	CodeClosureIndexOutOfRange  = decompiler.CodeClosureIndexOutOfRange
	CodeCanceled                = decompiler.CodeCanceled
	CodeUnbalancedBlocks        = decompiler.CodeUnbalancedBlocks
	CodeRenameFailed            = decompiler.CodeRenameFailed
	CodeRegisterOutOfRange      = decompiler.CodeRegisterOutOfRange
)

var (
	ErrMalformedControlFlow    = decompiler.ErrMalformedControlFlow
	ErrUnknownOpcode           = decompiler.ErrUnknownOpcode
	ErrConstantIndexOutOfRange = decompiler.ErrConstantIndexOutOfRange
	ErrDepthExceeded           = decompiler.ErrDepthExceeded
	ErrEmptyOrInvalidInput     = decompiler.ErrEmptyOrInvalidInput
	ErrClosureIndexOutOfRange  = decompiler.ErrClosureIndexOutOfRange
	ErrCanceled                = decompiler.ErrCanceled
	ErrUnbalancedBlocks        = decompiler.ErrUnbalancedBlocks
	ErrRenameFailed            = decompiler.ErrRenameFailed
	ErrRegisterOutOfRange      = decompiler.ErrRegisterOutOfRange
)

// CodeOf extracts the ErrorCode of an error returned by Decompile.
func CodeOf(err error) ErrorCode {
	return decompiler.CodeOf(err)
}

// Reports.
type (
	CallEntry = env.CallEntry
	StringRef = decompiler.StringRef
	Stats     = printer.Stats
)

// Renaming.
type (
	Renamer     = rename.Renamer
	RenamerFunc = rename.RenamerFunc
	MapRenamer  = rename.MapRenamer
	Occurrence  = rename.Occurrence
)

// NewScriptRenamer compiles a JavaScript renamer defining rename(text, idents).
func NewScriptRenamer(name, source string) (Renamer, error) {
	r, err := rename.NewScriptRenamer(name, source)
	if err != nil {
		return nil, err
	}
	return r, nil
}

const tracerName = "github.com/xirelogy/go-moondec"

// Result is the outcome of one decompilation. A failed decompilation still
// produces a Result whose Text is the partial output.
type Result struct {
	Fingerprint string       `json:"fingerprint"`
	Text        string       `json:"text"`
	CallGraph   []CallEntry  `json:"call_graph"`
	StringRefs  []StringRef  `json:"string_refs"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Partial     bool         `json:"partial"`
	Code        ErrorCode    `json:"code,omitempty"`
	Stats       Stats        `json:"-"`

	root *ast.FunctionLiteral
}

// Tree returns an indented dump of the recovered syntax tree.
func (r *Result) Tree() string {
	if r == nil || r.root == nil {
		return ""
	}
	return ast.Tree(r.root)
}

// Decompiler holds decompilation settings. Configure it before use; once
// configured, Decompile may be called from several goroutines at once since
// every call builds its own state.
type Decompiler struct {
	maxDepth      int
	environment   bool
	longThreshold int
	renamer       Renamer
	traceHook     TraceHook
	header        []string
}

// New constructs a Decompiler with default settings.
func New() *Decompiler {
	return &Decompiler{
		maxDepth:      decompiler.DefaultMaxDepth,
		environment:   true,
		longThreshold: decompiler.DefaultLongStringThreshold,
	}
}

// SetMaxDepth caps closure nesting (values below 1 restore the default).
func (d *Decompiler) SetMaxDepth(depth int) {
	if depth < 1 {
		depth = decompiler.DefaultMaxDepth
	}
	d.maxDepth = depth
}

// SetEnvironment toggles the environment simulator.
func (d *Decompiler) SetEnvironment(enable bool) {
	d.environment = enable
}

// SetLongStringThreshold sets the length above which string constants are
// bound to a local and reported.
func (d *Decompiler) SetLongStringThreshold(n int) {
	if n < 1 {
		n = decompiler.DefaultLongStringThreshold
	}
	d.longThreshold = n
}

// SetRenamer installs a renamer run over the printed text (nil disables).
func (d *Decompiler) SetRenamer(r Renamer) {
	d.renamer = r
}

// SetTraceHook attaches a debug hook that observes every visited instruction.
func (d *Decompiler) SetTraceHook(h TraceHook) {
	d.traceHook = h
}

// SetHeader sets comment lines written at the top of every output.
func (d *Decompiler) SetHeader(lines ...string) {
	d.header = append([]string(nil), lines...)
}

// Decompile recovers source text from fn. On a structural failure the
// returned Result carries the partial output and err is an *Error.
func (d *Decompiler) Decompile(ctx context.Context, fn *Function) (*Result, error) {
	start := time.Now()
	functions, instructions := fn.Count()
	fp := bytecode.Fingerprint(fn)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "moondec.Decompile", trace.WithAttributes(
		attribute.Int("moondec.functions", functions),
		attribute.Int("moondec.instructions", instructions),
		attribute.String("moondec.fingerprint", fp),
	))
	defer span.End()
	log.Debug(log.Decompile, "decompile start", "fingerprint", fp, "functions", functions, "instructions", instructions)

	out, err := decompiler.Build(ctx, fn, decompiler.Options{
		MaxDepth:            d.maxDepth,
		Environment:         d.environment,
		LongStringThreshold: d.longThreshold,
		TraceHook:           d.traceHook,
	})
	res := &Result{
		Fingerprint: fp,
		CallGraph:   nonNil(out.CallGraph),
		StringRefs:  nonNil(out.StringRefs),
		Diagnostics: nonNil(out.Diagnostics),
		root:        out.Root,
	}

	var body strings.Builder
	p := printer.New(&body, printer.Options{})
	if perr := p.PrintMain(out.Root); perr != nil && err == nil {
		err = &Error{
			Code:    CodeUnbalancedBlocks,
			Message: perr.Error(),
			Frame:   Frame{Function: out.Root.Name, PC: -1},
			Cause:   fmt.Errorf("%w: %w", ErrUnbalancedBlocks, perr),
		}
	}
	res.Stats = p.Stats()
	text := body.String()

	if d.renamer != nil && ctx.Err() == nil {
		renamed, rerr := rename.Run(ctx, d.renamer, text)
		if rerr != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Code:    CodeRenameFailed,
				Frame:   Frame{Function: out.Root.Name, PC: -1},
				Message: rerr.Error(),
			})
			log.Warn(log.Rename, "renamer failed, keeping original names", "fingerprint", fp, "err", rerr)
		} else {
			text = renamed
		}
	}

	var sb strings.Builder
	if err != nil {
		res.Partial = true
		res.Code = CodeOf(err)
		sb.WriteString(printer.PartialHeader(res.Code, err.Error()))
		sb.WriteByte('\n')
	}
	for _, line := range d.header {
		sb.WriteString("-- " + line + "\n")
	}
	sb.WriteString(text)
	if werr := printer.WriteReports(&sb, res.CallGraph, res.StringRefs); werr != nil && err == nil {
		err = werr
	}
	res.Text = sb.String()

	span.SetAttributes(
		attribute.String("moondec.code", string(res.Code)),
		attribute.Int("moondec.diagnostics", len(res.Diagnostics)),
		attribute.Int("moondec.lines", res.Stats.Lines),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(log.Decompile, "decompile produced partial output", "fingerprint", fp, "code", res.Code, "err", err)
	}
	log.Debug(log.Decompile, "decompile end", "fingerprint", fp, "partial", res.Partial, "elapsed", time.Since(start))
	return res, err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// DecompileFuture represents an in-flight decompilation.
type DecompileFuture struct {
	ch <-chan decompileOutcome
}

type decompileOutcome struct {
	res *Result
	err error
}

// Await waits for completion or context cancellation.
func (f DecompileFuture) Await(ctx context.Context) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-f.ch:
		return out.res, out.err
	}
}

// DecompileAsync runs Decompile on its own goroutine.
func (d *Decompiler) DecompileAsync(ctx context.Context, fn *Function) DecompileFuture {
	ch := make(chan decompileOutcome, 1)
	go func() {
		defer close(ch)
		res, err := d.Decompile(ctx, fn)
		ch <- decompileOutcome{res: res, err: err}
	}()
	return DecompileFuture{ch: ch}
}

// Listing writes an assembly-style listing of fn and its children to w.
func Listing(w io.Writer, fn *Function) error {
	if fn == nil {
		return errors.New("nil function")
	}
	label := fn.Name
	if label == "" {
		label = "main"
	}
	return bytecode.NewDisassembler(w).DisassembleFunction(label, fn)
}

// ReadFunction decodes a JSON-encoded function tree.
func ReadFunction(r io.Reader) (*Function, error) {
	var fn Function
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fn); err != nil {
		return nil, fmt.Errorf("decode function: %w", err)
	}
	return &fn, nil
}

// LoadFunction reads a JSON-encoded function tree from a file.
func LoadFunction(path string) (*Function, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fn, err := ReadFunction(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fn, nil
}
