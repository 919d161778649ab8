package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xirelogy/go-moondec/internal/bytecode"
	"github.com/xirelogy/go-moondec/internal/decompiler"
	"github.com/xirelogy/go-moondec/internal/env"
)

// PartialHeader is the first line of output for a failed decompilation.
func PartialHeader(code decompiler.ErrorCode, message string) string {
	return fmt.Sprintf("-- PARTIAL OUTPUT (%s): %s", code, message)
}

// WriteReports appends the trailing call-graph and string-reference comment
// sections. Empty sections are omitted.
func WriteReports(w io.Writer, calls []env.CallEntry, refs []decompiler.StringRef) error {
	var sb strings.Builder
	if len(calls) > 0 {
		sb.WriteString("\n-- Call graph:\n")
		for _, c := range calls {
			fmt.Fprintf(&sb, "--   [%s] %s(%s)\n", c.Kind, c.Name, strings.Join(c.Args, ", "))
		}
	}
	if len(refs) > 0 {
		sb.WriteString("\n-- String references:\n")
		for _, r := range refs {
			fmt.Fprintf(&sb, "--   [%s] %s (%d bytes)\n", r.Hint, bytecode.QuoteString(r.Value), r.FullLength)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
