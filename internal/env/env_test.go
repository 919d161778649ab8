package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xirelogy/go-moondec/internal/bytecode"
)

func strArg(s string) Arg {
	return Arg{Text: bytecode.QuoteString(s), Str: s, IsStr: true}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Button":     "Button",
		"my button!": "mybutton",
		"123abc":     "abc",
		"42":         "var",
		"":           "var",
		"$%^":        "var",
		"end":        "end_",
		"_private":   "_private",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}

func TestNamerDisambiguates(t *testing.T) {
	n := NewNamer()
	assert.Equal(t, "Button", n.Name("Button"))
	assert.Equal(t, "Button_2", n.Name("Button"))
	assert.Equal(t, "Button_3", n.Name("Button!"))

	n.Reserve("Frame")
	assert.Equal(t, "Frame_2", n.Name("Frame"))

	// a natural name that collides with a generated suffix is skipped over
	n2 := NewNamer()
	assert.Equal(t, "Tab_2", n2.Name("Tab_2"))
	assert.Equal(t, "Tab", n2.Name("Tab"))
	assert.Equal(t, "Tab_3", n2.Name("Tab"))
}

func TestRegistryLookupIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Lookup(None, "script", Generic)
	b := r.Lookup(None, "script", Generic)
	assert.Equal(t, a, b)
	assert.Equal(t, r.Name(a), r.Name(b))

	c := r.Lookup(a, "Parent", Generic)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, r.Len())

	_, ok := r.Get(None)
	assert.False(t, ok)
	_, ok = r.Get(Handle(99))
	assert.False(t, ok)
	assert.Equal(t, "", r.Name(Handle(99)))
}

func TestDistinctButtonsGetSuffixes(t *testing.T) {
	s := New()
	lib := s.Call(CallSite{Callee: s.Call(CallSite{Name: "loadstring", Callee: s.Global("loadstring")}).Handle, Name: "chunk"})
	require.True(t, lib.Named)
	assert.Equal(t, "Library", s.Name(lib.Handle))

	b1 := s.Call(CallSite{Name: "Library:CreateButton", Method: "CreateButton", Receiver: lib.Handle})
	b2 := s.Call(CallSite{Name: "Library:CreateButton", Method: "CreateButton", Receiver: lib.Handle})
	require.True(t, b1.Named)
	require.True(t, b2.Named)
	assert.Equal(t, "Button", s.Name(b1.Handle))
	assert.Equal(t, "Button_2", s.Name(b2.Handle))

	o, ok := s.Object(b1.Handle)
	require.True(t, ok)
	assert.Equal(t, UiLibrary, o.Kind)
	assert.Equal(t, lib.Handle, o.Parent)
}

func TestServiceShortcuts(t *testing.T) {
	s := New()
	game := s.Global("game")
	assert.True(t, s.IsGame(game))

	ref := s.Index(game, "game", "UserInputService")
	require.True(t, ref.Named)
	assert.Equal(t, `game:GetService("UserInputService")`, ref.Text)
	assert.Equal(t, "UIS", s.Name(ref.Handle))

	again := s.Call(CallSite{Name: "game:GetService", Method: "GetService", Receiver: game, Args: []Arg{strArg("UserInputService")}})
	assert.Equal(t, ref.Handle, again.Handle)
	assert.Equal(t, "UIS", s.Name(again.Handle))

	ws := s.Index(game, "game", "Workspace")
	assert.False(t, ws.Named)
	assert.Equal(t, "workspace", ws.Text)
	assert.Equal(t, s.Global("workspace"), ws.Handle)

	direct := s.Call(CallSite{Name: "game", Callee: game, Args: []Arg{strArg("Players")}})
	assert.Equal(t, `game:GetService("Players")`, direct.Text)
	assert.Equal(t, "Players", s.Name(direct.Handle))

	unknown := s.Index(game, "game", "Loaded")
	assert.True(t, unknown.Named)
	assert.Empty(t, unknown.Text)
	assert.Equal(t, "Loaded", s.Name(unknown.Handle))
	assert.Equal(t, unknown.Handle, s.Index(game, "game", "Loaded").Handle)
}

func TestGlobalsReserveTheirNames(t *testing.T) {
	s := New()
	s.Global("print")
	h := s.Call(CallSite{Name: "Instance.new", Args: []Arg{strArg("print")}})
	assert.Equal(t, "print_2", s.Name(h.Handle))
	assert.Equal(t, "print", s.Name(s.Global("print")))
}

func TestChildLookupsNameFromArgument(t *testing.T) {
	s := New()
	players := s.Index(s.Global("game"), "game", "Players")
	lp := s.Index(players.Handle, "Players", "LocalPlayer")
	first := s.Call(CallSite{Name: "LocalPlayer:WaitForChild", Method: "WaitForChild", Receiver: lp.Handle, Args: []Arg{strArg("PlayerGui")}})
	second := s.Call(CallSite{Name: "LocalPlayer:WaitForChild", Method: "WaitForChild", Receiver: lp.Handle, Args: []Arg{strArg("PlayerGui")}})
	assert.True(t, first.Named)
	assert.Equal(t, first.Handle, second.Handle)
	assert.Equal(t, "PlayerGui", s.Name(first.Handle))

	none := s.Call(CallSite{Name: "x:Destroy", Method: "Destroy", Receiver: lp.Handle})
	assert.Equal(t, Ref{}, none)
}

func TestCallGraphMarkers(t *testing.T) {
	s := New()
	s.Call(CallSite{Name: "remote:FireServer", Method: "FireServer", Args: []Arg{strArg("buy"), {Text: "reg2"}}})
	s.Call(CallSite{Name: "print", Args: []Arg{strArg("hi")}})
	s.Call(CallSite{Name: "syn.request", Args: []Arg{{Text: "reg1"}}})
	s.Call(CallSite{Name: "loadstring", Args: []Arg{{Text: "src"}}})
	s.Call(CallSite{Name: "TeleportService:Teleport", Method: "Teleport"})

	graph := s.CallGraph()
	require.Len(t, graph, 4)
	assert.Equal(t, CallEntry{Kind: "remote", Name: "remote:FireServer", Args: []string{`"buy"`, "reg2"}}, graph[0])
	assert.Equal(t, "http", graph[1].Kind)
	assert.Equal(t, "loader", graph[2].Kind)
	assert.Equal(t, "teleport", graph[3].Kind)
	assert.Empty(t, graph[3].Args)
}

func TestMethodNaming(t *testing.T) {
	rule, base := MethodNaming("CreateToggle")
	assert.Equal(t, NameStrip, rule)
	assert.Equal(t, "Toggle", base)

	rule, _ = MethodNaming("Address")
	assert.Equal(t, NameNone, rule)
	rule, _ = MethodNaming("New")
	assert.Equal(t, NameNone, rule)
	rule, _ = MethodNaming("FindFirstChildOfClass")
	assert.Equal(t, NameFromArg, rule)
	rule, _ = MethodNaming("GetService")
	assert.Equal(t, NameFromService, rule)
}

func TestNumericFolding(t *testing.T) {
	s := New()
	seven, two, zero := s.Number(7), s.Number(2), s.Number(0)

	fold := func(op bytecode.OpKind, a, b Handle) float64 {
		t.Helper()
		h := s.Arith(op, a, b)
		require.NotEqual(t, None, h)
		v, ok := s.NumberValue(h)
		require.True(t, ok)
		return v
	}
	assert.Equal(t, 9.0, fold(bytecode.Add, seven, two))
	assert.Equal(t, 5.0, fold(bytecode.Sub, seven, two))
	assert.Equal(t, 14.0, fold(bytecode.Mul, seven, two))
	assert.Equal(t, 3.5, fold(bytecode.Div, seven, two))
	assert.Equal(t, 1.0, fold(bytecode.Mod, seven, two))
	assert.Equal(t, 49.0, fold(bytecode.Pow, seven, two))
	assert.Equal(t, 0.0, fold(bytecode.Div, seven, zero))
	assert.Equal(t, 0.0, fold(bytecode.Mod, seven, zero))
	assert.Equal(t, 1.0, fold(bytecode.Mod, s.Number(-7), two))

	neg, ok := s.NumberValue(s.Negate(seven))
	require.True(t, ok)
	assert.Equal(t, -7.0, neg)

	assert.Equal(t, None, s.Arith(bytecode.Add, seven, s.Global("x")))
	assert.Equal(t, None, s.Arith(bytecode.Concat, seven, two))
	assert.Equal(t, None, s.Negate(None))

	lt, ok := s.Compare(bytecode.CompareLt, two, seven)
	assert.True(t, ok)
	assert.True(t, lt)
	eq, ok := s.Compare(bytecode.CompareEq, two, seven)
	assert.True(t, ok)
	assert.False(t, eq)
	_, ok = s.Compare(bytecode.CompareLe, two, None)
	assert.False(t, ok)
}
