package vectorstore

import "math"

// Normalize scales vec to unit L2 length in place. Zero vectors are left
// untouched.
func Normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= n
	}
}

// CosineDistance returns 1 - cosine similarity of two unit vectors, which is
// bounded by [0,2]. The dedup layer relies on this bound to convert distance
// back to similarity.
func CosineDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return 1 - dot
}
