package memory

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions is the HashingEmbedder vector size.
const DefaultDimensions = 512

// HashingEmbedder embeds text offline by feature hashing its word tokens into
// a fixed number of buckets. Texts sharing words score above zero; it has no
// notion of synonyms. Use it for tests and local development.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a HashingEmbedder with the given vector size, or
// DefaultDimensions when dims <= 0.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{dimensions: dims}
}

// Embed returns a unit vector for text. Text without tokens yields the zero
// vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()

		// the top bit picks the sign so collisions tend to cancel
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(e.dimensions))] += sign
	}
	return normalize(vec), nil
}

// Dimensions returns the vector size.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

// cosine returns the cosine similarity of a and b.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
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
