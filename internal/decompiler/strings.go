package decompiler

import (
	"strings"

	"github.com/xirelogy/go-moondec/internal/bytecode"
)

// PreviewLength caps the value shown for a string reference.
const PreviewLength = 60

// Hint categories for string references.
const (
	HintWebhook = "webhook"
	HintURL     = "url"
	HintAsset   = "asset"
	HintLong    = "long"
)

// StringRef is a notable string constant seen during decompilation.
type StringRef struct {
	Value      string `json:"value"`
	Hint       string `json:"hint"`
	FullLength int    `json:"full_length"`
}

// Hint classifies s, reporting false when it is not notable.
func Hint(s string, longThreshold int) (string, bool) {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "discord.com/api/webhooks"), strings.Contains(lower, "discordapp.com/api/webhooks"):
		return HintWebhook, true
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return HintURL, true
	case strings.HasPrefix(lower, "rbxassetid://"), strings.HasPrefix(lower, "rbxasset://"):
		return HintAsset, true
	case len(s) > longThreshold:
		return HintLong, true
	}
	return "", false
}

// Preview truncates s to PreviewLength bytes followed by "...".
func Preview(s string) string {
	if len(s) <= PreviewLength {
		return s
	}
	return s[:PreviewLength] + "..."
}

// stringRefs collects references deduplicated by value in first-seen order.
type stringRefs struct {
	threshold int
	seen      map[string]bool
	refs      []StringRef
}

func newStringRefs(threshold int) *stringRefs {
	return &stringRefs{threshold: threshold, seen: make(map[string]bool)}
}

func (s *stringRefs) offer(c bytecode.Constant) {
	if !c.IsString() || s.seen[c.Str] {
		return
	}
	hint, ok := Hint(c.Str, s.threshold)
	if !ok {
		return
	}
	s.seen[c.Str] = true
	s.refs = append(s.refs, StringRef{Value: Preview(c.Str), Hint: hint, FullLength: len(c.Str)})
}

func (s *stringRefs) list() []StringRef {
	out := make([]StringRef, len(s.refs))
	copy(out, s.refs)
	return out
}
