package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/visionscript/vscript/pkg/value"
)

// HTTP talks to an inference server over JSON. Each task is a POST to
// <endpoint>/<task>; images travel as base64 PNG.
type HTTP struct {
	endpoint string
	client   *retryablehttp.Client
}

// HTTPOption configures an HTTP backend.
type HTTPOption func(*HTTP)

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.client.HTTPClient.Timeout = d
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) HTTPOption {
	return func(h *HTTP) {
		h.client.RetryMax = n
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(min, max time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.client.RetryWaitMin = min
		h.client.RetryWaitMax = max
	}
}

// WithLogger routes retry logging to log.
func WithLogger(log zerolog.Logger) HTTPOption {
	return func(h *HTTP) {
		h.client.Logger = leveledLogger{log}
	}
}

// NewHTTP returns a backend for the server at endpoint.
func NewHTTP(endpoint string, opts ...HTTPOption) *HTTP {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2
	client.HTTPClient.Timeout = 60 * time.Second
	h := &HTTP{endpoint: strings.TrimRight(endpoint, "/"), client: client}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type request struct {
	Image   string   `json:"image,omitempty"`
	Model   string   `json:"model,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Labels  []string `json:"labels,omitempty"`
	Text    string   `json:"text,omitempty"`
	Folder  string   `json:"folder,omitempty"`
}

type detectionJSON struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

type response struct {
	Detections []detectionJSON `json:"detections"`
	Text       string          `json:"text"`
	Embedding  []float32       `json:"embedding"`
	Error      string          `json:"error"`
}

func (h *HTTP) Detect(ctx context.Context, img image.Image, model string, classes []string) ([]value.Detection, error) {
	return h.detections(ctx, "detect", img, model, classes)
}

func (h *HTTP) Segment(ctx context.Context, img image.Image, model string, classes []string) ([]value.Detection, error) {
	return h.detections(ctx, "segment", img, model, classes)
}

func (h *HTTP) Classify(ctx context.Context, img image.Image, labels []string) (string, error) {
	return h.text(ctx, "classify", img, request{Labels: labels})
}

func (h *HTTP) Caption(ctx context.Context, img image.Image) (string, error) {
	return h.text(ctx, "caption", img, request{})
}

func (h *HTTP) ReadText(ctx context.Context, img image.Image) (string, error) {
	return h.text(ctx, "ocr", img, request{})
}

func (h *HTTP) ReadQR(ctx context.Context, img image.Image) (string, error) {
	return h.text(ctx, "qr", img, request{})
}

func (h *HTTP) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	enc, err := encodeImage(img)
	if err != nil {
		return nil, err
	}
	resp, err := h.post(ctx, "embed", request{Image: enc})
	if err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

func (h *HTTP) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := h.post(ctx, "embed", request{Text: text})
	if err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

func (h *HTTP) Train(ctx context.Context, folder, model string) error {
	_, err := h.post(ctx, "train", request{Folder: folder, Model: model})
	return err
}

func (h *HTTP) detections(ctx context.Context, task string, img image.Image, model string, classes []string) ([]value.Detection, error) {
	enc, err := encodeImage(img)
	if err != nil {
		return nil, err
	}
	resp, err := h.post(ctx, task, request{Image: enc, Model: model, Classes: classes})
	if err != nil {
		return nil, err
	}
	out := make([]value.Detection, len(resp.Detections))
	for i, d := range resp.Detections {
		out[i] = value.Detection{
			Class:      d.Class,
			Confidence: d.Confidence,
			Box:        image.Rect(d.Box[0], d.Box[1], d.Box[2], d.Box[3]),
		}
	}
	return out, nil
}

func (h *HTTP) text(ctx context.Context, task string, img image.Image, req request) (string, error) {
	enc, err := encodeImage(img)
	if err != nil {
		return "", err
	}
	req.Image = enc
	resp, err := h.post(ctx, task, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (h *HTTP) post(ctx context.Context, task string, body request) (*response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task, err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/"+task, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task, err)
	}
	var out response
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("%s: bad response: %w", task, err)
		}
	}
	if resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: server returned %d: %s", task, resp.StatusCode, msg)
	}
	return &out, nil
}

func encodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Info().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }
