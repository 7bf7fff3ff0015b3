package vector

import (
	"math"
	"sort"

	"toolbench/internal/corpus"
)

// Cosine returns dot(a,b) / (|a| |b|). Mismatched lengths or a zero-norm
// operand yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Hit is one ranked search result.
type Hit struct {
	Item  corpus.VectorItem
	Score float64
}

// Filter restricts the searched partition.
type Filter struct {
	// Type limits results to one item type; empty searches all types.
	Type corpus.ItemType
	Repo string
}

func (f Filter) matches(item corpus.VectorItem) bool {
	if f.Type != "" && item.Type != f.Type {
		return false
	}
	if f.Repo != "" && item.Repo != f.Repo {
		return false
	}
	return true
}

// Rank scores every item in the filtered partition against query and returns
// the top k in descending order. Equal scores keep index order.
func Rank(store *corpus.Vectors, query []float32, filter Filter, k int) []Hit {
	hits := make([]Hit, 0, store.Len())
	for _, item := range store.Items {
		if !filter.matches(item) {
			continue
		}
		hits = append(hits, Hit{Item: item, Score: Cosine(query, store.Vector(item))})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
