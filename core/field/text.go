package field

import (
	"fmt"
	"math"

	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
	"gonum.org/v1/gonum/floats"
)

// Text encodes free text with a pretrained sentence embedding. Decoding
// returns the observed text with the closest embedding.
type Text struct {
	base
	embed   EmbedFunc
	dim     int
	texts   []string
	vectors [][]float64
	seen    map[string]int
}

func NewText(name string, embed EmbedFunc) *Text {
	return &Text{
		base:  base{name: name, kind: model.FieldKindText},
		embed: embed,
		seen:  map[string]int{},
	}
}

func (t *Text) vector(raw any) ([]float64, string, error) {
	text, ok := raw.(string)
	if !ok {
		return nil, "", fmt.Errorf("unsupported type %T", raw)
	}
	if i, ok := t.seen[text]; ok {
		return t.vectors[i], text, nil
	}
	embedding, err := t.embed(text)
	if err != nil {
		return nil, text, err
	}
	if t.dim != 0 && len(embedding) != t.dim {
		return nil, text, fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), t.dim)
	}
	v := make([]float64, len(embedding))
	for i, e := range embedding {
		v[i] = float64(e)
	}
	return v, text, nil
}

func (t *Text) Observe(raw any) error {
	if err := t.checkObservable(); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	v, text, err := t.vector(raw)
	if err != nil {
		return helper.EncodingError(t.name, raw, err)
	}
	if _, ok := t.seen[text]; ok {
		return nil
	}
	if t.dim == 0 {
		t.dim = len(v)
	}
	t.seen[text] = len(t.texts)
	t.texts = append(t.texts, text)
	t.vectors = append(t.vectors, v)
	return nil
}

func (t *Text) Encode(raw any) ([]float64, error) {
	if raw == nil {
		return t.Missing(), nil
	}
	v, _, err := t.vector(raw)
	if err != nil {
		return nil, helper.EncodingError(t.name, raw, err)
	}
	return append([]float64(nil), v...), nil
}

// Decode returns the observed text with the highest cosine similarity
func (t *Text) Decode(row []float64) (any, error) {
	if len(row) != t.dim {
		return nil, helper.ShapeError("field '%s' decodes rows of width %d, got %d", t.name, t.dim, len(row))
	}
	if rowHasNaN(row) {
		return nil, nil
	}
	if len(t.texts) == 0 {
		return nil, helper.DecodingError(t.name, "embedding", 0)
	}
	best, bestScore := 0, math.Inf(-1)
	norm := floats.Norm(row, 2)
	for i, v := range t.vectors {
		score := floats.Dot(row, v)
		if denominator := norm * floats.Norm(v, 2); denominator > 0 {
			score /= denominator
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return t.texts[best], nil
}

func (t *Text) Width() int         { return t.dim }
func (t *Text) Missing() []float64 { return nanRow(t.dim) }

func (t *Text) IsPresent(row []float64) bool {
	return len(row) > 0 && len(row) == t.dim && !rowHasNaN(row)
}

func (t *Text) String() string {
	return fmt.Sprintf("%s field: %s[%d texts, %d dimensions]", t.kind, t.name, len(t.texts), t.dim)
}
