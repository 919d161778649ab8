package env

import (
	"strings"
	"unicode"
)

// Shortcut maps a well-known service key to a fixed identifier.
type Shortcut struct {
	Key    string
	Name   string
	Global bool // Name is also a predefined global bound to the same service
}

// Shortcuts is the curated service table.
var Shortcuts = []Shortcut{
	{Key: "Players", Name: "Players"},
	{Key: "ReplicatedStorage", Name: "ReplicatedStorage"},
	{Key: "RunService", Name: "RunService"},
	{Key: "UserInputService", Name: "UIS"},
	{Key: "TweenService", Name: "TweenService"},
	{Key: "HttpService", Name: "HttpService"},
	{Key: "Workspace", Name: "workspace", Global: true},
	{Key: "Lighting", Name: "Lighting"},
	{Key: "CoreGui", Name: "CoreGui"},
	{Key: "StarterGui", Name: "StarterGui"},
	{Key: "TeleportService", Name: "TeleportService"},
	{Key: "VirtualInputManager", Name: "VIM"},
	{Key: "Debris", Name: "Debris"},
	{Key: "SoundService", Name: "SoundService"},
	{Key: "MarketplaceService", Name: "MarketplaceService"},
	{Key: "TextChatService", Name: "TextChatService"},
}

var shortcutByKey = func() map[string]Shortcut {
	m := make(map[string]Shortcut, len(Shortcuts))
	for _, s := range Shortcuts {
		m[s.Key] = s
	}
	return m
}()

// LookupShortcut returns the shortcut entry for a service key.
func LookupShortcut(key string) (Shortcut, bool) {
	s, ok := shortcutByKey[key]
	return s, ok
}

// Category classifies a remote/foreign call.
type Category string

const (
	CategoryRemote   Category = "remote"
	CategoryHTTP     Category = "http"
	CategoryLoader   Category = "loader"
	CategoryTeleport Category = "teleport"
)

// Marker maps a callee name to the boundary it crosses.
type Marker struct {
	Pattern  string
	Category Category
}

// Markers is the remote/foreign call table. Patterns match the last segment of
// the callee name exactly.
var Markers = []Marker{
	{"FireServer", CategoryRemote},
	{"InvokeServer", CategoryRemote},
	{"FireClient", CategoryRemote},
	{"FireAllClients", CategoryRemote},
	{"InvokeClient", CategoryRemote},
	{"HttpGet", CategoryHTTP},
	{"HttpGetAsync", CategoryHTTP},
	{"HttpPost", CategoryHTTP},
	{"GetAsync", CategoryHTTP},
	{"PostAsync", CategoryHTTP},
	{"RequestAsync", CategoryHTTP},
	{"request", CategoryHTTP},
	{"http_request", CategoryHTTP},
	{"loadstring", CategoryLoader},
	{"require", CategoryLoader},
	{"Teleport", CategoryTeleport},
	{"TeleportToPlaceInstance", CategoryTeleport},
}

var markerByPattern = func() map[string]Category {
	m := make(map[string]Category, len(Markers))
	for _, mk := range Markers {
		m[mk.Pattern] = mk.Category
	}
	return m
}()

// Classify returns the category of a callee name such as "remote:FireServer"
// or "syn.request".
func Classify(callee string) (Category, bool) {
	c, ok := markerByPattern[lastSegment(callee)]
	return c, ok
}

func lastSegment(name string) string {
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ResultNaming says how a call names the object it returns.
type ResultNaming uint8

const (
	NameNone       ResultNaming = iota
	NameFromArg                 // first string argument
	NameStrip                   // method name minus a constructor prefix
	NameFromService             // shortcut table on the first string argument
)

var childLookups = map[string]bool{
	"WaitForChild":              true,
	"FindFirstChild":            true,
	"FindFirstChildOfClass":     true,
	"FindFirstChildWhichIsA":    true,
	"FindFirstAncestor":         true,
	"FindFirstAncestorOfClass":  true,
	"FindFirstAncestorWhichIsA": true,
}

var constructorPrefixes = []string{"Create", "Add", "New", "Make"}

// MethodNaming returns the naming rule for method and, for NameStrip, the stripped base.
func MethodNaming(method string) (ResultNaming, string) {
	switch {
	case method == "GetService":
		return NameFromService, ""
	case childLookups[method]:
		return NameFromArg, ""
	}
	if base, ok := stripConstructor(method); ok {
		return NameStrip, base
	}
	return NameNone, ""
}

// stripConstructor strips a constructor prefix followed by an upper-case letter.
func stripConstructor(method string) (string, bool) {
	for _, p := range constructorPrefixes {
		rest, ok := strings.CutPrefix(method, p)
		if !ok || rest == "" {
			continue
		}
		if r := rune(rest[0]); unicode.IsUpper(r) {
			return rest, true
		}
	}
	return "", false
}

// IsInstanceNew reports whether callee is the instance constructor.
func IsInstanceNew(callee string) bool {
	return callee == "Instance.new"
}
