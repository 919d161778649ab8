package env

import "github.com/xirelogy/go-moondec/internal/log"

// CallEntry is one recorded boundary-crossing call.
type CallEntry struct {
	Kind string   `json:"kind"`
	Name string   `json:"name"`
	Args []string `json:"args"`
}

func (s *Simulator) record(cat Category, name string, args []Arg) {
	texts := make([]string, len(args))
	for i, a := range args {
		texts[i] = a.Text
	}
	s.calls = append(s.calls, CallEntry{Kind: string(cat), Name: name, Args: texts})
	log.Debug(log.Env, "call graph entry", "kind", cat, "name", name, "args", len(args))
}

// CallGraph returns the recorded entries in call order.
func (s *Simulator) CallGraph() []CallEntry {
	out := make([]CallEntry, len(s.calls))
	copy(out, s.calls)
	return out
}
