package rename

import (
	"context"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/xirelogy/go-moondec/internal/ast"
	"github.com/xirelogy/go-moondec/internal/log"
)

// Occurrence is one identifier of the output and how often it appears.
type Occurrence struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	First Position `json:"first"`
}

// Renamer maps identifiers of the decompiled text to better names. The
// returned map may be partial; unusable entries are ignored.
type Renamer interface {
	Rename(ctx context.Context, text string, idents []Occurrence) (map[string]string, error)
}

// RenamerFunc adapts a function to the Renamer interface.
type RenamerFunc func(ctx context.Context, text string, idents []Occurrence) (map[string]string, error)

func (f RenamerFunc) Rename(ctx context.Context, text string, idents []Occurrence) (map[string]string, error) {
	return f(ctx, text, idents)
}

// MapRenamer applies a fixed rename map.
type MapRenamer map[string]string

func (m MapRenamer) Rename(context.Context, string, []Occurrence) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// symbols returns the indices of tokens that name a variable: identifiers
// outside strings and comments that are not a field or method name.
func symbols(toks []Token) []int {
	var out []int
	prev := -1
	for i, tok := range toks {
		switch tok.Kind {
		case Space, Comment:
			continue
		case Ident:
			member := prev >= 0 && toks[prev].Kind == Punct && (toks[prev].Text == "." || toks[prev].Text == ":")
			if !member {
				out = append(out, i)
			}
		}
		prev = i
	}
	return out
}

// Identifiers lists the variable identifiers of text in first-seen order.
func Identifiers(text string) []Occurrence {
	toks := Tokens(text)
	index := make(map[string]int)
	var out []Occurrence
	for _, i := range symbols(toks) {
		name := toks[i].Text
		if k, ok := index[name]; ok {
			out[k].Count++
			continue
		}
		index[name] = len(out)
		out = append(out, Occurrence{Name: name, Count: 1, First: toks[i].Pos})
	}
	return out
}

// Apply substitutes whole identifiers of text according to renames. All
// substitutions happen at once, so swaps and chains are safe. String
// literals, comments and field names are left alone, except for the name
// list of an upvalue header comment. Entries that are not
// identifier-to-identifier, or whose new name would capture another
// variable, are dropped.
func Apply(text string, renames map[string]string) string {
	if len(renames) == 0 {
		return text
	}
	toks := Tokens(text)
	syms := symbols(toks)
	present := make(map[string]bool, len(syms))
	for _, i := range syms {
		present[toks[i].Text] = true
	}
	usable := filter(renames, present)
	if len(usable) == 0 {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))
	next := 0
	for i, tok := range toks {
		if next < len(syms) && syms[next] == i {
			next++
			if to, ok := usable[tok.Text]; ok {
				sb.WriteString(to)
				continue
			}
		}
		if tok.Kind == Comment {
			sb.WriteString(renameUpvalueList(tok.Text, usable))
			continue
		}
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

const upvaluePrefix = "-- upvalues: "

// renameUpvalueList rewrites the names of an upvalue header comment.
func renameUpvalueList(comment string, usable map[string]string) string {
	list, ok := strings.CutPrefix(comment, upvaluePrefix)
	if !ok {
		return comment
	}
	names := strings.Split(list, ", ")
	for i, name := range names {
		if to, ok := usable[name]; ok {
			names[i] = to
		}
	}
	return upvaluePrefix + strings.Join(names, ", ")
}

// filter keeps the entries of renames that cannot change the meaning of the
// text. Keys are visited in sorted order so the outcome is deterministic.
func filter(renames map[string]string, present map[string]bool) map[string]string {
	keys := make([]string, 0, len(renames))
	for k := range renames {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make(map[string]string, len(keys))
	taken := make(map[string]bool)
	for _, from := range keys {
		to := renames[from]
		switch {
		case from == to:
			continue
		case !ast.IsIdentifier(from) || !ast.IsIdentifier(to):
			log.Debug(log.Rename, "dropping rename", "from", from, "to", to, "reason", "not an identifier")
			continue
		case !present[from]:
			continue
		case taken[to]:
			log.Debug(log.Rename, "dropping rename", "from", from, "to", to, "reason", "duplicate target")
			continue
		case present[to] && !renamedAway(renames, to):
			log.Debug(log.Rename, "dropping rename", "from", from, "to", to, "reason", "captures existing name")
			continue
		}
		taken[to] = true
		out[from] = to
	}
	return out
}

func renamedAway(renames map[string]string, name string) bool {
	to, ok := renames[name]
	return ok && to != name && ast.IsIdentifier(to)
}

// Run asks r for a rename map and applies it. On error the text is returned
// unchanged together with the error.
func Run(ctx context.Context, r Renamer, text string) (string, error) {
	idents := Identifiers(text)
	renames, err := r.Rename(ctx, text, idents)
	if err != nil {
		log.Debug(log.Rename, "renamer failed", "err", err)
		return text, err
	}
	log.Debug(log.Rename, "renaming", "identifiers", len(idents), "entries", len(renames))
	return Apply(text, renames), nil
}
