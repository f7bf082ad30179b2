// Package testutil provides shared test helpers for vscript tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"golang.org/x/image/colornames"

	"github.com/visionscript/vscript/pkg/value"
)

// ScenariosDir is the relative path from the module root to the scenarios.
const ScenariosDir = "testdata/scenarios"

// Scenario represents a test scenario loaded from a scenario.json file.
type Scenario struct {
	Cmd []string `json:"cmd"`
	// Inputs are bound as if passed with --input.
	Inputs map[string]any `json:"inputs,omitempty"`
	// Images are generated in the working directory before the run.
	Images map[string]ImageSpec `json:"images,omitempty"`
	// Backend configures the fake inference backend.
	Backend *BackendSpec   `json:"backend,omitempty"`
	Meta    *ScenarioMeta  `json:"meta,omitempty"`
	Expect  ExpectedResult `json:"expect"`
}

// ImageSpec describes a solid-colour image.
type ImageSpec struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Color  string `json:"color"`
}

// BackendSpec holds the canned answers of the fake backend.
type BackendSpec struct {
	Detections []DetectionSpec `json:"detections,omitempty"`
	Text       string          `json:"text,omitempty"`
}

// DetectionSpec is one canned detection.
type DetectionSpec struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

// ScenarioMeta holds optional scenario metadata.
type ScenarioMeta struct {
	Tags []string `json:"tags,omitempty"`
}

// ExpectedResult describes the expected outcome of running a scenario.
type ExpectedResult struct {
	ExitCode         int             `json:"exitCode"`
	StdoutText       *string         `json:"stdoutText,omitempty"`
	StdoutContains   string          `json:"stdoutContains,omitempty"`
	StderrContains   string          `json:"stderrContains,omitempty"`
	StderrJSONSubset json.RawMessage `json:"stderrJsonSubset,omitempty"`
	// StateSubset is matched against the session snapshot after the run.
	StateSubset json.RawMessage `json:"stateSubset,omitempty"`
	// Files must exist in the working directory after the run.
	Files []string `json:"files,omitempty"`
}

// LoadScenario loads a scenario from a directory containing scenario.json.
func LoadScenario(dir string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Join(dir, "scenario.json"))
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListScenarios returns all scenario directories under the given root,
// sorted by name.
func ListScenarios(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			scenarioPath := filepath.Join(root, e.Name(), "scenario.json")
			if _, err := os.Stat(scenarioPath); err == nil {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// ReadProgramFile reads the program file referenced by the scenario cmd.
func ReadProgramFile(scenarioDir string, cmd []string) (string, string, error) {
	if len(cmd) < 2 {
		return "", "", fmt.Errorf("scenario cmd needs a program file")
	}
	filename := cmd[1]
	source, err := os.ReadFile(filepath.Join(scenarioDir, filename))
	if err != nil {
		return "", "", err
	}
	return string(source), filename, nil
}

// WriteImages generates the scenario's images under dir.
func WriteImages(dir string, images map[string]ImageSpec) error {
	for name, img := range images {
		col, ok := colornames.Map[img.Color]
		if !ok {
			return fmt.Errorf("image %s: unknown colour %q", name, img.Color)
		}
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := imaging.Save(imaging.New(img.Width, img.Height, col), path); err != nil {
			return err
		}
	}
	return nil
}

// InputValues converts scenario inputs to runtime values.
func (s *Scenario) InputValues() map[string]value.Value {
	out := make(map[string]value.Value, len(s.Inputs))
	for k, v := range s.Inputs {
		out[k] = value.FromAny(v)
	}
	return out
}

// FakeBackend answers every inference call from canned data.
type FakeBackend struct {
	Detections []value.Detection
	Text       string
}

// NewFakeBackend builds a fake backend from a scenario's backend section.
func NewFakeBackend(cfg *BackendSpec) *FakeBackend {
	b := &FakeBackend{}
	if cfg == nil {
		return b
	}
	b.Text = cfg.Text
	for _, d := range cfg.Detections {
		b.Detections = append(b.Detections, value.Detection{
			Class:      d.Class,
			Confidence: d.Confidence,
			Box:        image.Rect(d.Box[0], d.Box[1], d.Box[2], d.Box[3]),
		})
	}
	return b
}

func (b *FakeBackend) Detect(_ context.Context, _ image.Image, _ string, classes []string) ([]value.Detection, error) {
	return value.Detections{Items: b.Detections}.Filter(classes...).Items, nil
}

func (b *FakeBackend) Segment(ctx context.Context, img image.Image, model string, classes []string) ([]value.Detection, error) {
	return b.Detect(ctx, img, model, classes)
}

func (b *FakeBackend) Classify(_ context.Context, _ image.Image, labels []string) (string, error) {
	for _, l := range labels {
		if l == b.Text {
			return l, nil
		}
	}
	return labels[0], nil
}

func (b *FakeBackend) Caption(context.Context, image.Image) (string, error)  { return b.Text, nil }
func (b *FakeBackend) ReadText(context.Context, image.Image) (string, error) { return b.Text, nil }
func (b *FakeBackend) ReadQR(context.Context, image.Image) (string, error)   { return b.Text, nil }

// EmbedImage maps an image to the colour of its top-left pixel.
func (b *FakeBackend) EmbedImage(_ context.Context, img image.Image) ([]float32, error) {
	c := color.NRGBAModel.Convert(img.At(img.Bounds().Min.X, img.Bounds().Min.Y)).(color.NRGBA)
	return []float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}, nil
}

// EmbedText maps a colour name to its RGB levels.
func (b *FakeBackend) EmbedText(_ context.Context, text string) ([]float32, error) {
	c, ok := colornames.Map[text]
	if !ok {
		return []float32{0, 0, 0}, nil
	}
	return []float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}, nil
}

func (b *FakeBackend) Train(context.Context, string, string) error { return nil }
