package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const servicesText = `local function main(...)
    local reg2 = "Players"
    local Players = game:GetService(reg2)
    print("https://example.com/x")
end

-- String references:
--   [url] "https://example.com/x" (21 bytes)
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDecompileText(t *testing.T) {
	out, err := run(t, "decompile", "testdata/services.json")
	require.NoError(t, err)
	assert.Equal(t, servicesText, out)
}

func TestDecompileNoEnv(t *testing.T) {
	out, err := run(t, "decompile", "--no-env", "testdata/services.json")
	require.NoError(t, err)
	assert.Contains(t, out, "local reg0 = game:GetService(reg2)")
}

func TestDecompileJSON(t *testing.T) {
	out, err := run(t, "decompile", "--json", "testdata/services.json")
	require.NoError(t, err)

	golden, err := os.ReadFile("testdata/services.golden.json")
	require.NoError(t, err)
	opts := jsondiff.DefaultConsoleOptions()
	diff, explain := jsondiff.Compare([]byte(out), golden, &opts)
	assert.Equal(t, jsondiff.SupersetMatch, diff, explain)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded["fingerprint"], 64)
	assert.NotContains(t, decoded, "code")
}

func TestDecompilePartial(t *testing.T) {
	out, err := run(t, "decompile", "testdata/malformed.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "testdata/malformed.json")
	assert.Equal(t, `-- PARTIAL OUTPUT (MalformedControlFlow): main pc 0: CompareEq at pc 0 is followed by Return, not a jump
local function main(...)
    -- [MalformedControlFlow] build aborted: CompareEq at pc 0 is followed by Return, not a jump
end
`, out)
}

func TestDecompilePartialJSON(t *testing.T) {
	out, err := run(t, "decompile", "--json", "testdata/malformed.json")
	require.Error(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, true, decoded["partial"])
	assert.Equal(t, "MalformedControlFlow", decoded["code"])
}

func TestDecompileMany(t *testing.T) {
	out, err := run(t, "decompile", "testdata/malformed.json", "testdata/services.json")
	require.Error(t, err)
	first := strings.Index(out, "-- file: testdata/malformed.json\n")
	second := strings.Index(out, "-- file: testdata/services.json\n")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
	assert.True(t, strings.HasSuffix(out, servicesText))
}

func TestDecompileRenameMap(t *testing.T) {
	out, err := run(t, "decompile", "--rename-map", "testdata/rename.json", "testdata/services.json")
	require.NoError(t, err)
	assert.Contains(t, out, `local serviceName = "Players"`)
	assert.Contains(t, out, "game:GetService(serviceName)")
}

func TestDecompileRenameScript(t *testing.T) {
	out, err := run(t, "decompile", "--rename-script", "testdata/rename.js", "testdata/services.json")
	require.NoError(t, err)
	assert.Contains(t, out, `local service = "Players"`)
}

func TestDecompileRenameFlagsExclusive(t *testing.T) {
	_, err := run(t, "decompile", "--rename-map", "testdata/rename.json", "--rename-script", "testdata/rename.js", "testdata/services.json")
	assert.Error(t, err)
}

func TestDecompileListingAndTree(t *testing.T) {
	out, err := run(t, "decompile", "--listing", "--tree", "--header", "generated", "testdata/services.json")
	require.NoError(t, err)
	listing := strings.Index(out, "SelfIndex")
	source := strings.Index(out, "-- generated\nlocal function main(...)")
	require.GreaterOrEqual(t, listing, 0)
	assert.Greater(t, source, listing)
	assert.Greater(t, strings.LastIndex(out, "main"), source)
}

func TestDecompileErrors(t *testing.T) {
	_, err := run(t, "decompile")
	assert.Error(t, err)

	_, err = run(t, "decompile", "testdata/missing.json")
	assert.Error(t, err)

	_, err = run(t, "decompile", "--log-level", "loud", "testdata/services.json")
	assert.Error(t, err)

	_, err = run(t, "decompile", "--rename-map", "testdata/services.json", "testdata/services.json")
	assert.Error(t, err)
}
