package pipeline

import (
	"errors"
	"testing"

	"github.com/siherrmann/graphae/core/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func cosine(a, b []float32) float64 {
	x, y := make([]float64, len(a)), make([]float64, len(b))
	for i := range a {
		x[i], y[i] = float64(a[i]), float64(b[i])
	}
	return floats.Dot(x, y) / (floats.Norm(x, 2) * floats.Norm(y, 2))
}

func TestDefaultEmbedder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err)

	t.Run("Generate embedding for text", func(t *testing.T) {
		embedding, err := embedder("This is a test sentence.")

		require.NoError(t, err)
		assert.Len(t, embedding, 384, "all-MiniLM-L6-v2 produces 384-dimensional embeddings")
	})

	t.Run("Similar texts have similar embeddings", func(t *testing.T) {
		dog, err := embedder("The dog is happy")
		require.NoError(t, err)
		puppy, err := embedder("The puppy is joyful")
		require.NoError(t, err)
		physics, err := embedder("Quantum physics is complex")
		require.NoError(t, err)

		assert.Greater(t, cosine(dog, puppy), cosine(dog, physics), "Semantically similar texts should have higher similarity")
	})

	t.Run("Text codec decodes to the nearest observed text", func(t *testing.T) {
		codec := field.NewText("bio", embedder)
		require.NoError(t, codec.Observe("The dog is happy"))
		require.NoError(t, codec.Observe("Quantum physics is complex"))
		codec.Freeze()

		row, err := codec.Encode("The puppy is joyful")
		require.NoError(t, err)
		decoded, err := codec.Decode(row)
		require.NoError(t, err)
		assert.Equal(t, "The dog is happy", decoded)
	})
}

func TestCachedEmbedder(t *testing.T) {
	calls := 0
	embed := func(text string) ([]float32, error) {
		calls++
		if text == "" {
			return nil, errors.New("empty text")
		}
		return []float32{float32(len(text))}, nil
	}
	cached := CachedEmbedder(embed)

	first, err := cached("hello")
	require.NoError(t, err)
	second, err := cached("hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "Expected the second call to hit the cache")

	_, err = cached("")
	assert.Error(t, err)
	_, err = cached("")
	assert.Error(t, err)
	assert.Equal(t, 3, calls, "Expected errors not to be cached")
}
