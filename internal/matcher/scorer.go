package matcher

import (
	"math"

	"github.com/TFMV/OrganMatchPro/pkg/tfidf"
)

// dotProduct calculates the dot product of two sparse vectors.
func dotProduct(a, b tfidf.Vector) float64 {
	var result float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			result += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return result
}

// CosineSimilarity returns the cosine of the angle between a and b in [0, 1].
// Either side being the zero vector yields 0 and identical vectors yield 1.
func CosineSimilarity(a, b tfidf.Vector) float64 {
	magA := dotProduct(a, a)
	magB := dotProduct(b, b)
	if magA == 0 || magB == 0 {
		return 0.0
	}
	if a.Equal(b) {
		return 1.0
	}
	sim := dotProduct(a, b) / (math.Sqrt(magA) * math.Sqrt(magB))
	return clamp(sim)
}

func clamp(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
