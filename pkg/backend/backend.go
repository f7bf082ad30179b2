// Package backend defines the inference services VisionScript operations
// delegate to.
package backend

import (
	"context"
	"errors"
	"image"

	"github.com/visionscript/vscript/pkg/value"
)

// Backend runs models on behalf of operation handlers. Every call blocks
// until the model returns.
type Backend interface {
	Detect(ctx context.Context, img image.Image, model string, classes []string) ([]value.Detection, error)
	Segment(ctx context.Context, img image.Image, model string, classes []string) ([]value.Detection, error)
	Classify(ctx context.Context, img image.Image, labels []string) (string, error)
	Caption(ctx context.Context, img image.Image) (string, error)
	ReadText(ctx context.Context, img image.Image) (string, error)
	ReadQR(ctx context.Context, img image.Image) (string, error)
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Train(ctx context.Context, folder, model string) error
}

// ErrUnavailable is returned by Unavailable for every call.
var ErrUnavailable = errors.New("no inference backend configured")

// Unavailable is the backend used when none is configured.
type Unavailable struct{}

func (Unavailable) Detect(context.Context, image.Image, string, []string) ([]value.Detection, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Segment(context.Context, image.Image, string, []string) ([]value.Detection, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Classify(context.Context, image.Image, []string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Caption(context.Context, image.Image) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) ReadText(context.Context, image.Image) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) ReadQR(context.Context, image.Image) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) EmbedImage(context.Context, image.Image) ([]float32, error) {
	return nil, ErrUnavailable
}

func (Unavailable) EmbedText(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Train(context.Context, string, string) error {
	return ErrUnavailable
}
