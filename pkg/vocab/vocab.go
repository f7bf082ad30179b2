// Package vocab lists the words VisionScript recognises as operations and
// control constructs, in the spelling programs use.
package vocab

import "strings"

// Control words are parsed into dedicated tree nodes rather than
// operation calls.
const (
	If    = "If"
	In    = "In"
	Make  = "Make"
	Run   = "Run"
	Not   = "Not"
	Input = "Input"
	True  = "True"
	False = "False"
)

var words = []string{
	"Load", "Save", "Classify", "IsItA", "Detect", "Find", "Segment",
	"Cutout", "Count", "CountInRegion", "Replace", "Show", "Train", "Read",
	"Say", "Label", "Caption", "Describe", "Contains", "Import", "Rotate",
	"GetColours", "GetColors", "GetText", "Greyscale", "Grayscale", "Select",
	"Paste", "PasteRandom", "Resize", "Blur", "SetBrightness", "Search",
	"Similarity", "ReadQR", "Reset", "Use", "SetActiveModel", "Help", "Exit",
	If, In, Make, Run, Not, Input,
}

var index = func() map[string]string {
	m := make(map[string]string, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = w
	}
	return m
}()

// Words returns the full vocabulary in its original spelling.
func Words() []string {
	out := make([]string, len(words))
	copy(out, words)
	return out
}

// Has reports whether word is in the vocabulary, spelled exactly.
func Has(word string) bool {
	orig, ok := index[strings.ToLower(word)]
	return ok && orig == word
}

// Spelling returns the original spelling of a lower-cased vocabulary word.
func Spelling(lower string) (string, bool) {
	w, ok := index[lower]
	return w, ok
}

// IsControl reports whether word introduces a control construct.
func IsControl(word string) bool {
	switch word {
	case If, In, Make, Run, Not, Input:
		return true
	}
	return false
}
