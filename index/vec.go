// Package index provides the approximate nearest-neighbor primitive used by
// the retrieval state: an insert/build/search structure over a sqlite-vec
// vec0 virtual table, one table per language.
package index

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Index is a fixed-dimension vector index with a two-phase lifecycle:
// unordered Insert calls while open, one Build call that finalizes it, then
// read-only Search. Inserts after Build fail; a second Build is a no-op.
//
// Index is not safe for concurrent use; the retrieval state serializes
// access behind its request lock.
type Index struct {
	db    *sql.DB
	tx    *sql.Tx
	dim   int
	size  int
	built bool
}

// New opens an empty in-memory index for vectors of the given dimension.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive: got %d", dim)
	}
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	// The pool must not hand the :memory: database to a second connection.
	db.SetMaxOpenConns(1)

	schema := fmt.Sprintf("CREATE VIRTUAL TABLE vectors USING vec0(embedding float[%d], payload TEXT)", dim)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vec0 table (is sqlite-vec registered?): %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open insert phase: %w", err)
	}
	return &Index{db: db, tx: tx, dim: dim}, nil
}

// Insert adds one (vector, payload) pair. Valid only before Build.
func (ix *Index) Insert(vector []float32, payload string) error {
	if ix.built {
		return fmt.Errorf("index is already built, inserts are closed")
	}
	if len(vector) != ix.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), ix.dim)
	}
	if _, err := ix.tx.Exec("INSERT INTO vectors(embedding, payload) VALUES (?, ?)", serialize(vector), payload); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	ix.size++
	return nil
}

// Build finalizes the index for search. Calling Build twice is a no-op.
func (ix *Index) Build() error {
	if ix.built {
		return nil
	}
	if err := ix.tx.Commit(); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	ix.tx = nil
	ix.built = true
	return nil
}

// Search returns the payloads of the up-to-k nearest vectors by Euclidean
// distance, nearest first. The index must be built.
func (ix *Index) Search(vector []float32, k int) ([]string, error) {
	if !ix.built {
		return nil, fmt.Errorf("index is not built yet")
	}
	if len(vector) != ix.dim {
		return nil, fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := ix.db.Query(
		"SELECT payload, vec_distance_l2(embedding, ?) AS distance FROM vectors ORDER BY distance LIMIT ?",
		serialize(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var payloads []string
	for rows.Next() {
		var payload string
		var distance float64
		if err := rows.Scan(&payload, &distance); err != nil {
			return nil, fmt.Errorf("search scan failed: %w", err)
		}
		payloads = append(payloads, payload)
	}
	return payloads, rows.Err()
}

// Len reports the number of inserted vectors.
func (ix *Index) Len() int {
	return ix.size
}

// Close releases the underlying store. An unbuilt index rolls back its
// pending inserts.
func (ix *Index) Close() error {
	if ix.tx != nil {
		ix.tx.Rollback()
		ix.tx = nil
	}
	return ix.db.Close()
}

// serialize encodes the vector as the little-endian float32 blob sqlite-vec
// expects.
func serialize(vector []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil
	}
	return buf.Bytes()
}
