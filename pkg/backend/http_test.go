package backend

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func TestHTTPDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Image == "" || req.Model != "yolo" || len(req.Classes) != 1 || req.Classes[0] != "cat" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"detections":[{"class":"cat","confidence":0.8,"box":[1,2,3,4]}]}`))
	}))
	defer srv.Close()

	dets, err := NewHTTP(srv.URL+"/").Detect(context.Background(), testImage(), "yolo", []string{"cat"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 || dets[0].Class != "cat" || dets[0].Box != image.Rect(1, 2, 3, 4) {
		t.Errorf("got %+v", dets)
	}
}

func TestHTTPTextTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": strings.TrimPrefix(r.URL.Path, "/")})
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	ctx := context.Background()
	calls := map[string]func() (string, error){
		"classify": func() (string, error) { return h.Classify(ctx, testImage(), []string{"a", "b"}) },
		"caption":  func() (string, error) { return h.Caption(ctx, testImage()) },
		"ocr":      func() (string, error) { return h.ReadText(ctx, testImage()) },
		"qr":       func() (string, error) { return h.ReadQR(ctx, testImage()) },
	}
	for task, call := range calls {
		got, err := call()
		if err != nil || got != task {
			t.Errorf("%s: got %q, %v", task, got, err)
		}
	}
}

func TestHTTPEmbedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[0.5,1]}`))
	}))
	defer srv.Close()

	emb, err := NewHTTP(srv.URL).EmbedText(context.Background(), "a cat")
	if err != nil || len(emb) != 2 || emb[1] != 1 {
		t.Errorf("got %v, %v", emb, err)
	}
}

func TestHTTPClientErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unknown model"}`))
	}))
	defer srv.Close()

	err := NewHTTP(srv.URL, WithRetries(3)).Train(context.Background(), "data", "nope")
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Errorf("got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestHTTPServerErrorRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, WithRetries(2), WithRetryWait(time.Millisecond, time.Millisecond), WithTimeout(5*time.Second))
	got, err := h.Caption(context.Background(), testImage())
	if err != nil || got != "ok" {
		t.Errorf("got %q, %v", got, err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("server hit %d times, want 2", n)
	}
}

func TestUnavailable(t *testing.T) {
	var b Backend = Unavailable{}
	if _, err := b.Detect(context.Background(), testImage(), "", nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v", err)
	}
	if err := b.Train(context.Background(), "", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v", err)
	}
}

var _ Backend = (*HTTP)(nil)
