package rename

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `local function main(...)
    local reg0 = game:GetService("Players")
    local reg1 = reg0.LocalPlayer -- reg0 is the service
    print("reg0", reg1, [[reg1]], 1e+5, 0x1e)
    reg1.reg0 = reg0 .. reg1
end
`

func TestLexerRoundTrip(t *testing.T) {
	var sb strings.Builder
	for _, tok := range Tokens(sample) {
		sb.WriteString(tok.Text)
	}
	assert.Equal(t, sample, sb.String())
}

func TestLexerTokens(t *testing.T) {
	var got []Token
	for _, tok := range Tokens(`x = 'a\'b' --[==[ c ]==] y..1.5e-3`) {
		if tok.Kind != Space {
			got = append(got, Token{Kind: tok.Kind, Text: tok.Text})
		}
	}
	assert.Equal(t, []Token{
		{Kind: Ident, Text: "x"},
		{Kind: Punct, Text: "="},
		{Kind: String, Text: `'a\'b'`},
		{Kind: Comment, Text: "--[==[ c ]==]"},
		{Kind: Ident, Text: "y"},
		{Kind: Punct, Text: ".."},
		{Kind: Number, Text: "1.5e-3"},
	}, got)
}

func TestLexerPositions(t *testing.T) {
	toks := Tokens("a\n  bb")
	require.Len(t, toks, 3)
	assert.Equal(t, Position{Offset: 4, Line: 2, Column: 3}, toks[2].Pos)
}

func TestIdentifiers(t *testing.T) {
	idents := Identifiers(sample)
	names := make([]string, len(idents))
	for i, o := range idents {
		names[i] = o.Name
	}
	assert.Equal(t, []string{"main", "reg0", "game", "reg1", "print"}, names)
	assert.Equal(t, 3, idents[1].Count)
	assert.Equal(t, 4, idents[3].Count)
	assert.Equal(t, 2, idents[1].First.Line)
}

func TestApply(t *testing.T) {
	out := Apply(sample, map[string]string{"reg0": "Players", "reg1": "player"})
	assert.Equal(t, `local function main(...)
    local Players = game:GetService("Players")
    local player = Players.LocalPlayer -- reg0 is the service
    print("reg0", player, [[reg1]], 1e+5, 0x1e)
    player.reg0 = Players .. player
end
`, out)
}

func TestApplyRenamesUpvalueHeader(t *testing.T) {
	text := `local function main(...)
    local reg0 = 1
    local function reg1()
        -- upvalues: reg0, upval1
        print(reg0, upval1)
    end
    -- reg0 stays in other comments
end
`
	assert.Equal(t, `local function main(...)
    local count = 1
    local function reg1()
        -- upvalues: count, upval1
        print(count, upval1)
    end
    -- reg0 stays in other comments
end
`, Apply(text, map[string]string{"reg0": "count"}))
}

func TestApplySwap(t *testing.T) {
	assert.Equal(t, "b = a + 1", Apply("a = b + 1", map[string]string{"a": "b", "b": "a"}))
}

func TestApplyDropsUnsafeEntries(t *testing.T) {
	text := "local reg0 = print\nreg1 = reg0"
	cases := map[string]map[string]string{
		"keyword target":  {"reg0": "end"},
		"invalid target":  {"reg0": "two words"},
		"invalid source":  {"reg0()": "x"},
		"captures global": {"reg0": "print"},
		"missing source":  {"reg9": "x"},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, text, Apply(text, m))
		})
	}

	// two names cannot collapse onto one
	assert.Equal(t, "local a = print\nreg1 = a", Apply(text, map[string]string{"reg0": "a", "reg1": "a"}))
}

func TestRunWithMapRenamer(t *testing.T) {
	out, err := Run(context.Background(), MapRenamer{"reg1": "player"}, "reg1 = 1")
	require.NoError(t, err)
	assert.Equal(t, "player = 1", out)
}

func TestRunKeepsTextOnError(t *testing.T) {
	boom := errors.New("boom")
	out, err := Run(context.Background(), RenamerFunc(func(context.Context, string, []Occurrence) (map[string]string, error) {
		return nil, boom
	}), "reg1 = 1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "reg1 = 1", out)
}

func TestScriptRenamer(t *testing.T) {
	r, err := NewScriptRenamer("names.js", `
function rename(text, idents) {
  var out = {};
  for (var i = 0; i < idents.length; i++) {
    if (idents[i].name.indexOf("reg") === 0 && idents[i].count > 1) {
      out[idents[i].name] = "v" + idents[i].name.substring(3);
    }
  }
  return out;
}`)
	require.NoError(t, err)

	out, err := Run(context.Background(), r, "local reg0 = 1\nlocal reg1 = reg0\n")
	require.NoError(t, err)
	assert.Equal(t, "local v0 = 1\nlocal reg1 = v0\n", out)
}

func TestScriptRenamerErrors(t *testing.T) {
	_, err := NewScriptRenamer("bad.js", "function (")
	assert.Error(t, err)

	r, err := NewScriptRenamer("empty.js", "var x = 1;")
	require.NoError(t, err)
	_, err = r.Rename(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoRenameFunction)

	r, err = NewScriptRenamer("throws.js", `function rename() { throw new Error("nope"); }`)
	require.NoError(t, err)
	_, err = r.Rename(context.Background(), "", nil)
	assert.ErrorContains(t, err, "nope")

	r, err = NewScriptRenamer("nil.js", `function rename() { return null; }`)
	require.NoError(t, err)
	m, err := r.Rename(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestScriptRenamerInterrupted(t *testing.T) {
	r, err := NewScriptRenamer("loop.js", `function rename() { for (;;) {} }`)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = r.Rename(ctx, "", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
