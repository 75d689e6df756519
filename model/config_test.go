package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultModelConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultModelConfig()

		assert.Equal(t, 1, config.Depth, "Default Depth should be 1")
		assert.Equal(t, []int{32, 16}, config.AutoencoderShapes)
		assert.True(t, config.ReverseRelations)
		assert.Equal(t, SummarizerMean, config.Summarizer)
		assert.Equal(t, ActivationReLU, config.Activation)
		assert.Equal(t, 0, config.ProjectedSize, "Default ProjectedSize should select the largest boundary")
		assert.Equal(t, 8, config.BaseEntityRepresentationSize)
		assert.Equal(t, DeviceCPU, config.Device)
	})

	t.Run("Bottleneck size is the last shape", func(t *testing.T) {
		config := DefaultModelConfig()

		size, ok := config.BottleneckSize()
		assert.True(t, ok)
		assert.Equal(t, 16, size)
	})

	t.Run("Empty shapes have no bottleneck", func(t *testing.T) {
		config := DefaultModelConfig()
		config.AutoencoderShapes = nil

		_, ok := config.BottleneckSize()
		assert.False(t, ok)
	})
}

func TestDefaultQueryConfig(t *testing.T) {
	config := DefaultQueryConfig()

	assert.Equal(t, 5, config.TopK, "Default TopK should be 5")
	assert.Empty(t, config.EntityType, "Default EntityType should be empty (all types)")
	assert.Nil(t, config.Relations, "Default Relations should be nil (all relations)")
	assert.True(t, config.FollowIncoming)
	assert.Equal(t, 2, config.MaxHops)
	assert.InDelta(t, 1.0, config.VectorWeight+config.GraphWeight, 1e-9, "Expected hybrid weights to sum to 1")
}
