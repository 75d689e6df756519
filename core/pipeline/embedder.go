package pipeline

import (
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/graphae/core/field"
	"github.com/siherrmann/graphae/helper"
)

// DefaultEmbedder creates an embedder for text fields using a real sentence
// transformer model. Uses the all-MiniLM-L6-v2 model which produces
// 384-dimensional embeddings.
func DefaultEmbedder() (field.EmbedFunc, error) {
	// Prepare model (download if needed)
	modelName := "sentence-transformers/all-MiniLM-L6-v2"
	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	// Create sentence transformers pipeline configuration
	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return func(text string) ([]float32, error) {
		result, err := sentencePipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return result.Embeddings[0], nil
	}, nil
}

// CachedEmbedder memoises embed per text. Text codecs embed every distinct
// value once on observe and again on every encode.
func CachedEmbedder(embed field.EmbedFunc) field.EmbedFunc {
	var mu sync.Mutex
	cache := map[string][]float32{}
	return func(text string) ([]float32, error) {
		mu.Lock()
		cached, ok := cache[text]
		mu.Unlock()
		if ok {
			return cached, nil
		}

		embedding, err := embed(text)
		if err != nil {
			return nil, err
		}

		mu.Lock()
		cache[text] = embedding
		mu.Unlock()
		return embedding, nil
	}
}
