// Package field implements the codecs turning raw entity field values into
// fixed-width encoded rows and back.
package field

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// Codec converts raw values of one field to and from its encoded row.
//
// Observe may only be called before Freeze. After Freeze the encoded width is
// fixed and Encode/Decode are pure functions of the frozen state.
type Codec interface {
	Name() string
	Kind() model.FieldKind
	Observe(raw any) error
	Encode(raw any) ([]float64, error)
	Decode(row []float64) (any, error)
	Width() int
	Missing() []float64
	IsPresent(row []float64) bool
	Freeze()
	Frozen() bool
}

// ReconstructionDecoder is implemented by codecs whose decoder output is not
// shaped like their encoded row, such as logits over a vocabulary.
type ReconstructionDecoder interface {
	DecodeReconstruction(row []float64) (any, error)
}

// DecodeReconstruction decodes a decoder output row of the codec
func DecodeReconstruction(c Codec, row []float64) (any, error) {
	if d, ok := c.(ReconstructionDecoder); ok {
		return d.DecodeReconstruction(row)
	}
	return c.Decode(row)
}

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// New creates the codec for a declared data field
func New(config model.DataFieldConfig, embed EmbedFunc) (Codec, error) {
	if config.Name == "" {
		return nil, helper.ConfigurationError("data field without name")
	}

	switch config.Type {
	case model.FieldKindNumeric:
		return NewNumeric(config.Name), nil
	case model.FieldKindInteger:
		return NewInteger(config.Name), nil
	case model.FieldKindDate:
		return NewDate(config.Name), nil
	case model.FieldKindCategorical:
		return NewCategorical(config.Name), nil
	case model.FieldKindDistribution:
		return NewDistribution(config.Name), nil
	case model.FieldKindSequential:
		return NewSequential(config.Name), nil
	case model.FieldKindCharacter:
		return NewCharacter(config.Name), nil
	case model.FieldKindText:
		if embed == nil {
			return nil, helper.ConfigurationError("text field '%s' requires an embedder", config.Name)
		}
		return NewText(config.Name, embed), nil
	default:
		return nil, helper.ConfigurationError("field '%s' has unsupported type '%s'", config.Name, config.Type)
	}
}

type base struct {
	name   string
	kind   model.FieldKind
	frozen bool
}

func (b *base) Name() string          { return b.name }
func (b *base) Kind() model.FieldKind { return b.kind }
func (b *base) Freeze()               { b.frozen = true }
func (b *base) Frozen() bool          { return b.frozen }

func (b *base) checkObservable() error {
	if b.frozen {
		return helper.ConfigurationError("field '%s' is frozen and cannot observe new values", b.name)
	}
	return nil
}

func (b *base) String() string {
	return fmt.Sprintf("%s field: %s", b.kind, b.name)
}

func nanRow(width int) []float64 {
	row := make([]float64, width)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}

func rowHasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

// argmax returns the index of the largest element, the first one on ties
func argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
