package rename

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/xirelogy/go-moondec/internal/log"
)

// ErrNoRenameFunction reports a script that does not define rename.
var ErrNoRenameFunction = errors.New("rename script does not define a rename(text, idents) function")

// ScriptRenamer runs a user JavaScript function
//
//	function rename(text, idents) { return {reg0: "player"} }
//
// where idents is an array of {name, count, first} objects. Each call gets a
// fresh runtime, so a ScriptRenamer is safe for concurrent use.
type ScriptRenamer struct {
	name    string
	program *goja.Program
}

// NewScriptRenamer compiles source. name is used in error positions.
func NewScriptRenamer(name, source string) (*ScriptRenamer, error) {
	prg, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &ScriptRenamer{name: name, program: prg}, nil
}

func (s *ScriptRenamer) Rename(ctx context.Context, text string, idents []Occurrence) (map[string]string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	res, err := s.call(vm, text, idents)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%s interrupted: %w", s.name, cerr)
		}
		return nil, err
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return map[string]string{}, nil
	}
	out := make(map[string]string)
	if err := vm.ExportTo(res, &out); err != nil {
		return nil, fmt.Errorf("%s: rename result is not a string map: %w", s.name, err)
	}
	log.Trace(log.Rename, "script rename", "script", s.name, "entries", len(out))
	return out, nil
}

func (s *ScriptRenamer) call(vm *goja.Runtime, text string, idents []Occurrence) (goja.Value, error) {
	if _, err := vm.RunProgram(s.program); err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(vm.Get("rename"))
	if !ok {
		return nil, ErrNoRenameFunction
	}
	if idents == nil {
		idents = []Occurrence{}
	}
	return fn(goja.Undefined(), vm.ToValue(text), vm.ToValue(idents))
}
