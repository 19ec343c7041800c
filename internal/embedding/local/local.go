package local

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder is a deterministic feature-hashing bag-of-words embedder.
// It needs no network and no model files, which makes it the default for
// offline runs and the only embedder the tests depend on. Vectors are
// L2-normalized so cosine distance between them is bounded by [0,2].
type Embedder struct {
	dim int
}

const DefaultDimension = 256

func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Name() string { return "local" }

func (e *Embedder) Embed(text string) ([]float64, error) {
	vec := make([]float64, e.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dim))
		// Signed hashing keeps colliding features from always reinforcing.
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	normalize(vec)
	return vec, nil
}

// tokenize lowercases and splits on non-letter/digit boundaries. Han
// characters carry word-level meaning on their own and have no spaces to
// split on, so each one becomes its own token.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func normalize(vec []float64) {
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
