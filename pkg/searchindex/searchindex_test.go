package searchindex

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func openMemory(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	idx := openMemory(t)
	entries := map[string][]float32{
		"x.png":  {1, 0, 0},
		"y.png":  {0, 1, 0},
		"xy.png": {1, 1, 0},
	}
	for _, p := range []string{"x.png", "y.png", "xy.png"} {
		if err := idx.Add(ctx, p, entries[p]); err != nil {
			t.Fatalf("Add(%s): %v", p, err)
		}
	}
	n, err := idx.Len(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Len = %d, %v", n, err)
	}

	got, err := idx.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches", len(got))
	}
	if got[0].Path != "x.png" || got[1].Path != "xy.png" {
		t.Errorf("got order %s, %s", got[0].Path, got[1].Path)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %v", got)
	}
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := openMemory(t)
	if err := idx.Add(ctx, "a", []float32{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "b", []float32{1, 2, 3}); !errors.Is(err, ErrDimension) {
		t.Errorf("Add: got %v, want ErrDimension", err)
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimension) {
		t.Errorf("Search: got %v, want ErrDimension", err)
	}
}

func TestEmptyEmbeddingRejected(t *testing.T) {
	if err := openMemory(t).Add(context.Background(), "a", nil); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestReopenFileIndex(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "a.png", []float32{0.5, 0.5}); err != nil {
		t.Fatal(err)
	}
	idx.Close()

	idx, err = Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if idx.DSN() != dsn {
		t.Errorf("DSN = %q", idx.DSN())
	}
	if err := idx.Add(ctx, "b.png", []float32{1}); !errors.Is(err, ErrDimension) {
		t.Errorf("dimension should be recovered on reopen, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{[]float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, float32(math.Pi)}
	out := decode(encode(in))
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}
