package env

import (
	"github.com/xirelogy/go-moondec/internal/bytecode"
	"github.com/xirelogy/go-moondec/internal/log"
)

// Ref is the outcome of a read or call dispatch.
type Ref struct {
	Handle Handle
	// Named results are bound to the object's display name.
	Named bool
	// Text, when set, replaces the builder's own rendering of the expression.
	Text string
}

// Arg is one call argument as seen by the simulator.
type Arg struct {
	Text   string
	Handle Handle
	Str    string // literal value when IsStr
	IsStr  bool
}

// CallSite describes a call for dispatch.
type CallSite struct {
	PC       int
	Callee   Handle
	Name     string // rendered callee, "obj:Method" for method calls
	Method   string
	Receiver Handle
	Args     []Arg
}

// Simulator is the symbolic environment for one decompilation. It never
// executes anything; it only names objects and records boundary calls.
type Simulator struct {
	reg   *Registry
	game  Handle
	calls []CallEntry
}

// New constructs a Simulator with the root namespace objects registered.
func New() *Simulator {
	s := &Simulator{reg: NewRegistry()}
	s.game = s.Global("game")
	s.Global("workspace")
	return s
}

// Registry exposes the object arena.
func (s *Simulator) Registry() *Registry { return s.reg }

// Name returns the display name of h.
func (s *Simulator) Name(h Handle) string { return s.reg.Name(h) }

// Object returns the record for h.
func (s *Simulator) Object(h Handle) (Object, bool) { return s.reg.Get(h) }

// IsGame reports whether h is the top-level namespace.
func (s *Simulator) IsGame(h Handle) bool { return h != None && h == s.game }

// Global resolves a global identifier to its object.
func (s *Simulator) Global(name string) Handle {
	for _, sc := range Shortcuts {
		if sc.Global && sc.Name == name && s.game != None {
			return s.service(sc.Key)
		}
	}
	h := s.reg.Lookup(None, name, Generic)
	o := s.reg.obj(h)
	if !o.Global {
		o.Global = true
		s.reg.Reserve(name)
	}
	return h
}

func (s *Simulator) service(key string) Handle {
	h := s.reg.Lookup(s.game, key, Service)
	if sc, ok := LookupShortcut(key); ok {
		o := s.reg.obj(h)
		o.Base, o.Global = sc.Name, sc.Global
		if sc.Global {
			s.reg.Reserve(sc.Name)
		}
	}
	return h
}

func (s *Simulator) serviceRef(objText, key string) Ref {
	h := s.service(key)
	if o, _ := s.reg.Get(h); o.Global {
		return Ref{Handle: h, Text: s.reg.Name(h)}
	}
	return Ref{Handle: h, Named: true, Text: objText + ":GetService(" + bytecode.QuoteString(key) + ")"}
}

// Index dispatches a read of obj.key. objText is how obj is rendered. A key
// outside the shortcut table names a child object after the sanitized key.
func (s *Simulator) Index(obj Handle, objText, key string) Ref {
	o, ok := s.reg.Get(obj)
	if !ok || o.Kind == NumericProxy {
		return Ref{}
	}
	if obj == s.game {
		if _, known := LookupShortcut(key); known {
			return s.serviceRef(objText, key)
		}
	}
	h := s.reg.Lookup(obj, key, Generic)
	log.Trace(log.Env, "index", "parent", o.Base, "key", key, "handle", h)
	return Ref{Handle: h, Named: true}
}

// Write dispatches obj.key = value. The assignment itself is emitted by the
// caller; the simulator keeps no property state.
func (s *Simulator) Write(obj Handle, key, value string) {
	if o, ok := s.reg.Get(obj); ok {
		log.Trace(log.Env, "write", "object", o.Base, "key", key, "value", value)
	}
}

// Call dispatches a call, recording boundary crossings and naming the result.
func (s *Simulator) Call(c CallSite) Ref {
	if cat, ok := Classify(c.Name); ok {
		s.record(cat, c.Name, c.Args)
	}
	first, hasStr := firstString(c.Args)

	if c.Method != "" {
		rule, base := MethodNaming(c.Method)
		switch rule {
		case NameFromService:
			if hasStr {
				h := s.service(first)
				if o, _ := s.reg.Get(h); o.Global {
					return Ref{Handle: h, Text: s.reg.Name(h)}
				}
				return Ref{Handle: h, Named: true}
			}
		case NameFromArg:
			if hasStr {
				if c.Receiver != None {
					return Ref{Handle: s.reg.Lookup(c.Receiver, first, Generic), Named: true}
				}
				return Ref{Handle: s.reg.New(first, Generic, None), Named: true}
			}
		case NameStrip:
			kind := Generic
			if o, ok := s.reg.Get(c.Receiver); ok && o.Kind == UiLibrary {
				kind = UiLibrary
			}
			return Ref{Handle: s.reg.New(base, kind, c.Receiver), Named: true}
		}
		return Ref{}
	}

	switch {
	case s.IsGame(c.Callee) && hasStr:
		return s.serviceRef(c.Name, first)
	case IsInstanceNew(c.Name) && hasStr:
		return Ref{Handle: s.reg.New(first, Generic, None), Named: true}
	case lastSegment(c.Name) == "loadstring":
		h := s.reg.New("chunk", Generic, None)
		s.reg.obj(h).Loader = true
		return Ref{Handle: h}
	}
	if o, ok := s.reg.Get(c.Callee); ok && o.Loader {
		return Ref{Handle: s.reg.New("Library", UiLibrary, None), Named: true}
	}
	return Ref{}
}

func firstString(args []Arg) (string, bool) {
	if len(args) == 0 || !args[0].IsStr {
		return "", false
	}
	return args[0].Str, true
}
