package command

import (
	"sort"
	"strings"
)

// aliases maps shorthand (lower case) to canonical command names.
var aliases = map[string]string{
	"o":        "open",
	"g":        "goto",
	"nav":      "goto",
	"navigate": "goto",
	"c":        "click",
	"dbl":      "dblclick",
	"f":        "fill",
	"t":        "type",
	"p":        "press",
	"h":        "hover",
	"sel":      "select",
	"chk":      "check",
	"unchk":    "uncheck",
	"s":        "snapshot",
	"snap":     "snapshot",
	"ss":       "screenshot",
	"e":        "eval",
	"evaluate": "eval",
	"b":        "go-back",
	"back":     "go-back",
	"fwd":      "go-forward",
	"forward":  "go-forward",
	"r":        "reload",
	"tabs":     "tab-list",
	"q":        "close",
}

// commands lists the backend commands known to the client, with the number of
// positional arguments each one requires.
var commands = map[string]int{
	"open":           0,
	"close":          0,
	"goto":           1,
	"go-back":        0,
	"go-forward":     0,
	"reload":         0,
	"click":          1,
	"dblclick":       1,
	"fill":           2,
	"type":           1,
	"press":          1,
	"hover":          1,
	"select":         2,
	"check":          1,
	"uncheck":        1,
	"drag":           2,
	"upload":         1,
	"snapshot":       0,
	"screenshot":     0,
	"pdf":            0,
	"eval":           1,
	"console":        0,
	"network":        0,
	"resize":         2,
	"dialog-accept":  0,
	"dialog-dismiss": 0,
	"tab-list":       0,
	"tab-new":        0,
	"tab-close":      0,
	"tab-select":     1,
	"wait-for":       0,
}

// Resolve maps name through the alias table, case-insensitively. Unknown
// names are returned unchanged.
func Resolve(name string) string {
	if canonical, ok := aliases[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

// Known reports whether name is a backend command the client knows about.
func Known(name string) bool {
	_, ok := commands[name]
	return ok
}

// Names returns the known command names, sorted.
func Names() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
