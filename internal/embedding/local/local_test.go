package local

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(vec []float64) float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func TestEmbed_Deterministic(t *testing.T) {
	e := New(64)
	a, err := e.Embed("bitcoin mining difficulty adjustment")
	require.NoError(t, err)
	b, err := e.Embed("bitcoin mining difficulty adjustment")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbed_UnitLength(t *testing.T) {
	e := New(64)
	vec, err := e.Embed("some nonempty text")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
	assert.InDelta(t, 1.0, norm(vec), 1e-9)
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	e := New(64)
	vec, err := e.Embed("   ")
	require.NoError(t, err)
	assert.Zero(t, norm(vec))
}

func TestEmbed_SimilarTextsAreCloser(t *testing.T) {
	e := New(DefaultDimension)
	base, _ := e.Embed("ethereum layer two scaling rollups")
	near, _ := e.Embed("ethereum rollups for layer two scaling")
	far, _ := e.Embed("grandma's apple pie recipe")

	assert.Greater(t, dot(base, near), dot(base, far))
}

func TestEmbed_HanRunesAreTokens(t *testing.T) {
	e := New(128)
	a, err := e.Embed("比特币")
	require.NoError(t, err)
	b, err := e.Embed("比特 币")
	require.NoError(t, err)
	// Han text tokenizes per character, so spacing does not change the vector.
	assert.Equal(t, a, b)
}

func TestNew_InvalidDimensionFallsBack(t *testing.T) {
	e := New(0)
	vec, err := e.Embed("x")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimension)
}
