// Package session holds the mutable state of one VisionScript session.
//
// The image, detections and search-index stacks are persistent vectors.
// The only way to change one is to push onto it; Reset replaces the whole
// state.
package session

import (
	"errors"
	"sort"

	"src.elv.sh/pkg/persistent/vector"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/searchindex"
	"github.com/visionscript/vscript/pkg/value"
)

// LoopContext describes an active directory loop.
type LoopContext struct {
	Dir       string
	Remaining []string
	Active    string
}

// ConditionalContext describes an active conditional.
type ConditionalContext struct {
	Saved value.Value
	Guard value.Value
}

// State is the data visible to a running program.
type State struct {
	Last             value.Value
	Output           value.Value
	LastFunctionType string
	LastFunctionArgs []value.Value
	ActiveModel      string
	// DefaultModel is the model a session starts with. Reset restores
	// ActiveModel to it.
	DefaultModel string

	History   []string
	Functions map[string][]ast.Node
	Variables map[string]value.Value

	Loop        *LoopContext
	Conditional *ConditionalContext

	images      vector.Vector
	detections  vector.Vector
	searchIndex vector.Vector
}

// New returns a freshly initialised state.
func New() *State {
	return &State{
		Functions:   make(map[string][]ast.Node),
		Variables:   make(map[string]value.Value),
		images:      vector.Empty,
		detections:  vector.Empty,
		searchIndex: vector.Empty,
	}
}

// Reset replaces every field with a fresh one and closes the search
// indexes the old state owned. The default model is kept.
func (s *State) Reset() error {
	var errs []error
	for i := 0; i < s.searchIndex.Len(); i++ {
		if idx, ok := s.searchIndex.Index(i); ok {
			if err := idx.(*searchindex.Index).Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	model := s.DefaultModel
	*s = *New()
	s.DefaultModel = model
	s.ActiveModel = model
	return errors.Join(errs...)
}

// PushImage appends img to the image stack.
func (s *State) PushImage(img *value.Image) {
	s.images = s.images.Conj(img)
}

// Image returns the image depth entries below the top of the stack; depth
// 0 is the current image.
func (s *State) Image(depth int) (*value.Image, bool) {
	v, ok := s.images.Index(s.images.Len() - 1 - depth)
	if !ok {
		return nil, false
	}
	return v.(*value.Image), true
}

// CurrentImage returns the top of the image stack.
func (s *State) CurrentImage() (*value.Image, bool) {
	return s.Image(0)
}

// ImageCount returns the depth of the image stack.
func (s *State) ImageCount() int {
	return s.images.Len()
}

// Images returns the image stack, oldest first.
func (s *State) Images() []*value.Image {
	out := make([]*value.Image, 0, s.images.Len())
	for it := s.images.Iterator(); it.HasElem(); it.Next() {
		out = append(out, it.Elem().(*value.Image))
	}
	return out
}

// PushDetections appends d to the detections stack.
func (s *State) PushDetections(d value.Detections) {
	s.detections = s.detections.Conj(d)
}

// CurrentDetections returns the top of the detections stack.
func (s *State) CurrentDetections() (value.Detections, bool) {
	v, ok := s.detections.Index(s.detections.Len() - 1)
	if !ok {
		return value.Detections{}, false
	}
	return v.(value.Detections), true
}

// DetectionsCount returns the depth of the detections stack.
func (s *State) DetectionsCount() int {
	return s.detections.Len()
}

// PushSearchIndex appends idx to the search index stack. The state owns
// idx from then on.
func (s *State) PushSearchIndex(idx *searchindex.Index) {
	s.searchIndex = s.searchIndex.Conj(idx)
}

// CurrentSearchIndex returns the most recently created search index.
func (s *State) CurrentSearchIndex() (*searchindex.Index, bool) {
	v, ok := s.searchIndex.Index(s.searchIndex.Len() - 1)
	if !ok {
		return nil, false
	}
	return v.(*searchindex.Index), true
}

// SearchIndexCount returns the depth of the search index stack.
func (s *State) SearchIndexCount() int {
	return s.searchIndex.Len()
}

// ActiveFile returns the file selected by the innermost directory loop.
func (s *State) ActiveFile() (string, bool) {
	if s.Loop == nil || s.Loop.Active == "" {
		return "", false
	}
	return s.Loop.Active, true
}

// Snapshot is a JSON view of a State.
type Snapshot struct {
	Last             any            `json:"last"`
	Output           any            `json:"output"`
	LastFunctionType string         `json:"lastFunctionType"`
	LastFunctionArgs []any          `json:"lastFunctionArgs"`
	ActiveModel      string         `json:"activeModel"`
	History          []string       `json:"history"`
	Functions        []string       `json:"functions"`
	Variables        map[string]any `json:"variables"`
	ImageStack       []any          `json:"imageStack"`
	DetectionsStack  []any          `json:"detectionsStack"`
	SearchIndexes    int            `json:"searchIndexes"`
}

// Snapshot captures the state for host display and comparison.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Last:             value.ToRaw(s.Last),
		Output:           value.ToRaw(s.Output),
		LastFunctionType: s.LastFunctionType,
		LastFunctionArgs: make([]any, len(s.LastFunctionArgs)),
		ActiveModel:      s.ActiveModel,
		History:          append([]string{}, s.History...),
		Functions:        make([]string, 0, len(s.Functions)),
		Variables:        make(map[string]any, len(s.Variables)),
		ImageStack:       make([]any, 0, s.images.Len()),
		DetectionsStack:  make([]any, 0, s.detections.Len()),
		SearchIndexes:    s.searchIndex.Len(),
	}
	for i, a := range s.LastFunctionArgs {
		snap.LastFunctionArgs[i] = value.ToRaw(a)
	}
	for name := range s.Functions {
		snap.Functions = append(snap.Functions, name)
	}
	sort.Strings(snap.Functions)
	for name, v := range s.Variables {
		snap.Variables[name] = value.ToRaw(v)
	}
	for _, img := range s.Images() {
		snap.ImageStack = append(snap.ImageStack, value.ToRaw(img))
	}
	for it := s.detections.Iterator(); it.HasElem(); it.Next() {
		snap.DetectionsStack = append(snap.DetectionsStack, value.ToRaw(it.Elem().(value.Detections)))
	}
	return snap
}
