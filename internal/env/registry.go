package env

import "fmt"

// Handle addresses an Object in a Registry. The zero Handle means "no object".
type Handle int

// None is the zero Handle.
const None Handle = 0

// Kind classifies a simulated object.
type Kind uint8

const (
	Generic Kind = iota
	Service
	UiLibrary
	NumericProxy
)

func (k Kind) String() string {
	switch k {
	case Generic:
		return "generic"
	case Service:
		return "service"
	case UiLibrary:
		return "ui-library"
	case NumericProxy:
		return "numeric"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Object is one simulated environment object.
type Object struct {
	Handle Handle
	Base   string // raw name the display name is derived from
	Kind   Kind
	Parent Handle // lookup-only back-reference
	Key    string
	Global bool // Base is a global identifier and is used verbatim
	Loader bool // calling this object yields a loaded library
	Num    float64
	HasNum bool

	name string
}

type childKey struct {
	parent Handle
	key    string
}

// Registry is an arena of objects addressed by Handle. It is scoped to one
// decompilation and is not safe for concurrent use.
type Registry struct {
	objects  []Object // objects[0] is the unused zero slot
	children map[childKey]Handle
	names    *Namer
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		objects:  make([]Object, 1, 32),
		children: make(map[childKey]Handle),
		names:    NewNamer(),
	}
}

// New allocates a fresh object that is not reachable by key.
func (r *Registry) New(base string, kind Kind, parent Handle) Handle {
	h := Handle(len(r.objects))
	r.objects = append(r.objects, Object{Handle: h, Base: base, Kind: kind, Parent: parent})
	return h
}

// Lookup returns the child of parent under key, creating it with kind when absent.
// Lookups are idempotent.
func (r *Registry) Lookup(parent Handle, key string, kind Kind) Handle {
	ck := childKey{parent, key}
	if h, ok := r.children[ck]; ok {
		return h
	}
	h := r.New(key, kind, parent)
	r.objects[h].Key = key
	r.children[ck] = h
	return h
}

// Get returns the object for h. The boolean is false for None or a stale handle.
func (r *Registry) Get(h Handle) (Object, bool) {
	if h <= None || int(h) >= len(r.objects) {
		return Object{}, false
	}
	return r.objects[h], true
}

func (r *Registry) obj(h Handle) *Object {
	if h <= None || int(h) >= len(r.objects) {
		return nil
	}
	return &r.objects[h]
}

// Name returns the display name of h, assigning one on first use. The same
// handle always yields the same name.
func (r *Registry) Name(h Handle) string {
	o := r.obj(h)
	if o == nil {
		return ""
	}
	if o.name == "" {
		if o.Global {
			o.name = o.Base
		} else {
			o.name = r.names.Name(o.Base)
		}
	}
	return o.name
}

// Reserve keeps generated names from colliding with a global identifier.
func (r *Registry) Reserve(name string) {
	r.names.Reserve(name)
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	return len(r.objects) - 1
}
