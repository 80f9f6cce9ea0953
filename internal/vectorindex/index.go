// Package vectorindex provides per-library nearest-neighbor search over
// stored chunk vectors. The durable store of record is always the chunk
// table; the chromem backend keeps its own copy, the mysql backend ranks
// the chunk rows directly.
package vectorindex

import (
	"context"
	"math"
	"sort"
)

type Record struct {
	ID       string
	DocID    string
	Filename string
	Page     int
	Text     string
	Vector   []float32
}

type Match struct {
	DocID      string
	Filename   string
	Page       int
	Text       string
	Similarity float32
}

type Index interface {
	// Add indexes records under one library. Backends that rank the chunk
	// table directly may treat this as a no-op.
	Add(ctx context.Context, libraryID string, records []Record) error
	// Nearest returns up to k records ranked by cosine similarity.
	Nearest(ctx context.Context, libraryID string, vector []float32, k int) ([]Match, error)
	DeleteDocument(ctx context.Context, libraryID, docID string) error
	DeleteLibrary(ctx context.Context, libraryID string) error
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// TopKMatches sorts descending by similarity and truncates to k.
func TopKMatches(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
