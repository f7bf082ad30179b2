// Package ops implements the VisionScript operation dispatch table.
package ops

import "strings"

// Op identifies a canonical operation.
type Op int

const (
	OpInvalid Op = iota

	OpLoad
	OpSave
	OpClassify
	OpDetect
	OpSegment
	OpCutout
	OpCount
	OpCountInRegion
	OpReplace
	OpShow
	OpTrain
	OpRead
	OpLabel
	OpCaption
	OpContains
	OpImport
	OpRotate
	OpGetColours
	OpGetText
	OpGreyscale
	OpSelect
	OpPaste
	OpPasteRandom
	OpResize
	OpBlur
	OpSetBrightness
	OpSearch
	OpSimilarity
	OpReadQR
	OpReset
	OpUse
	OpHelp
	OpExit

	// Control operations are evaluated directly and never dispatched.
	OpMake
	OpRun
	OpIf
	OpIn
	OpNegate
	OpEquality
	OpInput
	OpVar
	OpComment
)

var names = [...]string{
	OpInvalid:       "",
	OpLoad:          "load",
	OpSave:          "save",
	OpClassify:      "classify",
	OpDetect:        "detect",
	OpSegment:       "segment",
	OpCutout:        "cutout",
	OpCount:         "count",
	OpCountInRegion: "countinregion",
	OpReplace:       "replace",
	OpShow:          "show",
	OpTrain:         "train",
	OpRead:          "read",
	OpLabel:         "label",
	OpCaption:       "caption",
	OpContains:      "contains",
	OpImport:        "import",
	OpRotate:        "rotate",
	OpGetColours:    "getcolours",
	OpGetText:       "gettext",
	OpGreyscale:     "greyscale",
	OpSelect:        "select",
	OpPaste:         "paste",
	OpPasteRandom:   "pasterandom",
	OpResize:        "resize",
	OpBlur:          "blur",
	OpSetBrightness: "setbrightness",
	OpSearch:        "search",
	OpSimilarity:    "similarity",
	OpReadQR:        "readqr",
	OpReset:         "reset",
	OpUse:           "use",
	OpHelp:          "help",
	OpExit:          "exit",
	OpMake:          "make",
	OpRun:           "run",
	OpIf:            "if",
	OpIn:            "in",
	OpNegate:        "negate",
	OpEquality:      "equality",
	OpInput:         "input",
	OpVar:           "var",
	OpComment:       "comment",
}

var byName = func() map[string]Op {
	m := make(map[string]Op, len(names))
	for op, name := range names {
		if name != "" {
			m[name] = Op(op)
		}
	}
	return m
}()

// String returns the canonical name.
func (op Op) String() string {
	if op < 0 || int(op) >= len(names) {
		return ""
	}
	return names[op]
}

// IsControl reports whether op is evaluated directly rather than dispatched.
func (op Op) IsControl() bool {
	return op >= OpMake
}

// Parse looks up a canonical name, ignoring case. Aliases are not
// resolved here.
func Parse(name string) (Op, bool) {
	op, ok := byName[strings.ToLower(name)]
	return op, ok
}

// Dispatchable returns every non-control operation in enum order.
func Dispatchable() []Op {
	out := make([]Op, 0, int(OpMake)-1)
	for op := OpLoad; op < OpMake; op++ {
		out = append(out, op)
	}
	return out
}
