// Package alias maps surface operation names to canonical ones.
package alias

var aliases = map[string]string{
	"isita":          "classify",
	"find":           "detect",
	"describe":       "caption",
	"getcolors":      "getcolours",
	"say":            "read",
	"grayscale":      "greyscale",
	"setactivemodel": "use",
}

// Resolve returns the canonical name for name. Unmapped names are returned
// unchanged.
func Resolve(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// All returns a copy of the alias table.
func All() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
