package env

import (
	"fmt"
	"strings"

	"github.com/xirelogy/go-moondec/internal/ast"
)

const fallbackName = "var"

// Sanitize turns an arbitrary key into an identifier base.
func Sanitize(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if ast.IsIdentByte(raw[i], false) {
			b.WriteByte(raw[i])
		}
	}
	name := strings.TrimLeft(b.String(), "0123456789")
	if name == "" {
		return fallbackName
	}
	if ast.IsKeyword(name) {
		return name + "_"
	}
	return name
}

// Namer hands out unique identifiers: name, name_2, name_3, ...
// It is scoped to a single decompilation.
type Namer struct {
	used     map[string]bool
	counters map[string]int
}

// NewNamer constructs an empty Namer.
func NewNamer() *Namer {
	return &Namer{
		used:     make(map[string]bool),
		counters: make(map[string]int),
	}
}

// Reserve marks name as taken without counting it as a generated name.
func (n *Namer) Reserve(name string) {
	n.used[name] = true
}

// Name returns a fresh identifier derived from raw.
func (n *Namer) Name(raw string) string {
	base := Sanitize(raw)
	for {
		n.counters[base]++
		candidate := base
		if c := n.counters[base]; c > 1 {
			candidate = fmt.Sprintf("%s_%d", base, c)
		}
		if !n.used[candidate] {
			n.used[candidate] = true
			return candidate
		}
	}
}
