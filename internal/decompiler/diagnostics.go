package decompiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xirelogy/go-moondec/internal/bytecode"
)

// ErrorCode is the machine-readable name of a failure or recovered anomaly.
type ErrorCode string

const (
	CodeNone                    ErrorCode = ""
	CodeMalformedControlFlow    ErrorCode = "MalformedControlFlow"
	CodeUnknownOpcode           ErrorCode = "UnknownOpcode"
	CodeConstantIndexOutOfRange ErrorCode = "ConstantIndexOutOfRange"
	CodeDepthExceeded           ErrorCode = "DepthExceeded"
	CodeEmptyOrInvalidInput     ErrorCode = "EmptyOrInvalidInput"
	CodeClosureIndexOutOfRange  ErrorCode = "ClosureIndexOutOfRange"
	CodeCanceled                ErrorCode = "Canceled"
	CodeUnbalancedBlocks        ErrorCode = "UnbalancedBlocks"
	CodeRenameFailed            ErrorCode = "RenameFailed"
	CodeRegisterOutOfRange      ErrorCode = "RegisterOutOfRange"
)

// Decompilation errors
var (
	ErrMalformedControlFlow    = errors.New("D1|MalformedControlFlow: compare instruction is not followed by a jump.")
	ErrUnknownOpcode           = errors.New("D2|UnknownOpcode: instruction opcode is outside the known set.")
	ErrConstantIndexOutOfRange = errors.New("D3|ConstantIndexOutOfRange: operand addresses a constant past the end of the pool.")
	ErrDepthExceeded           = errors.New("D4|DepthExceeded: nested closure depth exceeds the configured limit.")
	ErrEmptyOrInvalidInput     = errors.New("D5|EmptyOrInvalidInput: function is nil or has no instructions.")
	ErrClosureIndexOutOfRange  = errors.New("D6|ClosureIndexOutOfRange: closure operand addresses a missing child prototype.")
	ErrCanceled                = errors.New("D7|Canceled: decompilation was canceled by the caller.")
	ErrUnbalancedBlocks        = errors.New("D8|UnbalancedBlocks: recovered blocks do not nest cleanly.")
	ErrRenameFailed            = errors.New("D9|RenameFailed: symbol renamer returned an error.")
	ErrRegisterOutOfRange      = errors.New("D10|RegisterOutOfRange: instruction addresses a register past the frame limit.")
)

var sentinels = map[ErrorCode]error{
	CodeMalformedControlFlow:    ErrMalformedControlFlow,
	CodeUnknownOpcode:           ErrUnknownOpcode,
	CodeConstantIndexOutOfRange: ErrConstantIndexOutOfRange,
	CodeDepthExceeded:           ErrDepthExceeded,
	CodeEmptyOrInvalidInput:     ErrEmptyOrInvalidInput,
	CodeClosureIndexOutOfRange:  ErrClosureIndexOutOfRange,
	CodeCanceled:                ErrCanceled,
	CodeUnbalancedBlocks:        ErrUnbalancedBlocks,
	CodeRenameFailed:            ErrRenameFailed,
	CodeRegisterOutOfRange:      ErrRegisterOutOfRange,
}

// Sentinel returns the sentinel error for code, or nil.
func Sentinel(code ErrorCode) error {
	return sentinels[code]
}

// CodeOf extracts the code from an error built on one of the sentinels.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeNone
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	for code, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, "|"); ok {
		if name, _, ok := strings.Cut(rest, ":"); ok {
			return ErrorCode(strings.TrimSpace(name))
		}
	}
	return CodeNone
}

// TraceInfo describes a single instruction visit for debugging/tracing.
type TraceInfo struct {
	Function string
	PC       int
	Op       bytecode.OpKind
}

// TraceHook observes instruction visits.
type TraceHook func(TraceInfo)

// Frame locates an anomaly: the function label and the instruction index.
type Frame struct {
	Function string `json:"function"`
	PC       int    `json:"pc"`
}

func (f Frame) String() string {
	if f.PC < 0 {
		return f.Function
	}
	return fmt.Sprintf("%s pc %d", f.Function, f.PC)
}

// Diagnostic is an anomaly recovered locally; the output remains usable.
type Diagnostic struct {
	Code    ErrorCode `json:"code"`
	Frame   Frame     `json:"frame"`
	Message string    `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Frame, d.Message)
}

// Error is a structural failure that aborted a function build. Stack lists
// the enclosing functions, innermost first.
type Error struct {
	Code    ErrorCode
	Message string
	Frame   Frame
	Stack   []Frame
	Cause   error
}

func (e *Error) Error() string {
	loc := e.Frame.String()
	if loc != "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	return e.Message
}

// Unwrap exposes the sentinel or original cause.
func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return sentinels[e.Code]
}

func newError(code ErrorCode, frame Frame, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Frame:   frame,
		Cause:   sentinels[code],
	}
}

// wrapError converts a foreign error into an *Error located at frame.
func wrapError(frame Frame, err error) *Error {
	code := CodeOf(err)
	if code == CodeNone {
		code = CodeEmptyOrInvalidInput
	}
	return &Error{Code: code, Message: err.Error(), Frame: frame, Cause: err}
}
