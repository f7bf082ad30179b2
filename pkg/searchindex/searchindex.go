// Package searchindex stores image embeddings in SQLite and ranks them
// against a query embedding by cosine similarity.
package searchindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite" // SQLite
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const schema = `CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	path      TEXT NOT NULL,
	embedding BLOB NOT NULL
)`

// ErrDimension is returned when embeddings of different lengths are mixed.
var ErrDimension = errors.New("embedding dimension mismatch")

// Index is a handle on one search index.
type Index struct {
	db  *sql.DB
	dsn string
	dim int
}

// Match is a ranked search result.
type Match struct {
	Path  string
	Score float64
}

// Open opens (creating if needed) the index stored at dsn. An empty dsn
// means MemoryDSN.
func Open(ctx context.Context, dsn string) (*Index, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create search index: %w", err)
	}
	idx := &Index{db: db, dsn: dsn}
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT embedding FROM entries LIMIT 1`).Scan(&blob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("read search index: %w", err)
	default:
		idx.dim = len(blob) / 4
	}
	return idx, nil
}

// DSN returns the data source the index was opened with.
func (x *Index) DSN() string {
	return x.dsn
}

// Add stores an embedding for path.
func (x *Index) Add(ctx context.Context, path string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("add %s: empty embedding", path)
	}
	if x.dim != 0 && len(embedding) != x.dim {
		return fmt.Errorf("add %s: %w (%d != %d)", path, ErrDimension, len(embedding), x.dim)
	}
	if _, err := x.db.ExecContext(ctx, `INSERT INTO entries (path, embedding) VALUES (?, ?)`, path, encode(embedding)); err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	x.dim = len(embedding)
	return nil
}

// Len returns the number of stored entries.
func (x *Index) Len(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Search returns up to k entries ranked by descending cosine similarity to
// query. Ties keep insertion order. k <= 0 returns every entry.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if x.dim != 0 && len(query) != x.dim {
		return nil, fmt.Errorf("search: %w (%d != %d)", ErrDimension, len(query), x.dim)
	}
	rows, err := x.db.QueryContext(ctx, `SELECT path, embedding FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var path string
		var blob []byte
		if err := rows.Scan(&path, &blob); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		matches = append(matches, Match{Path: path, Score: Cosine(query, decode(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Close releases the database handle.
func (x *Index) Close() error {
	return x.db.Close()
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decode(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
