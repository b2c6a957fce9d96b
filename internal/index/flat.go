// Package index provides brute-force vector similarity ranking over the
// in-memory corpus. Insertion order carries no ranking meaning; scores do.
package index

import (
	"math"
	"sort"
)

// Hit is a ranked search result referencing a corpus position.
type Hit struct {
	Index int
	Score float64
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// is zero-length or zero-norm.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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

// TopK ranks all vectors by cosine similarity to query, descending.
// Ties break by ascending corpus position so rankings are deterministic.
// Returns at most k hits; k <= 0 returns nil.
func TopK(query []float32, vectors [][]float32, k int) []Hit {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}

	hits := make([]Hit, len(vectors))
	for i, v := range vectors {
		hits[i] = Hit{Index: i, Score: Cosine(query, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// Normalize returns a unit-length copy of v; zero vectors are returned as-is.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := 1 / math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
