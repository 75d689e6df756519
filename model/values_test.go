package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues(t *testing.T) {
	t.Run("Marshal empty values", func(t *testing.T) {
		bytes, err := Values{}.Marshal()

		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), bytes)
	})

	t.Run("Scan JSON bytes", func(t *testing.T) {
		var v Values

		err := v.Scan([]byte(`{"age":42,"name":"ada","tags":{"a":0.5}}`))

		require.NoError(t, err)
		assert.Equal(t, float64(42), v["age"], "JSON numbers become float64")
		assert.Equal(t, "ada", v["name"])
		assert.Equal(t, map[string]interface{}{"a": 0.5}, v["tags"])
	})

	t.Run("Scan nil gives empty values", func(t *testing.T) {
		v := Values{"stale": true}

		require.NoError(t, v.Scan(nil))
		assert.Empty(t, v)
	})

	t.Run("Scan Values directly", func(t *testing.T) {
		var v Values

		require.NoError(t, v.Scan(Values{"k": "v"}))
		assert.Equal(t, "v", v["k"])
	})

	t.Run("Scan wrong type fails", func(t *testing.T) {
		var v Values

		err := v.Scan(42)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "type assertion to []byte failed")
	})

	t.Run("Value round trip", func(t *testing.T) {
		v := Values{"title": "graphs"}

		raw, err := v.Value()
		require.NoError(t, err)

		var back Values
		require.NoError(t, back.Scan(raw))
		assert.Equal(t, v, back)
	})
}
