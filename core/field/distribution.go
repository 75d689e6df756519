package field

import (
	"fmt"
	"math"
	"sort"

	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// Distribution encodes a weighting over discovered categories as a
// normalised probability row.
type Distribution struct {
	base
	categories []string
	index      map[string]int
}

func NewDistribution(name string) *Distribution {
	return &Distribution{
		base:  base{name: name, kind: model.FieldKindDistribution},
		index: map[string]int{},
	}
}

func toWeights(raw any) (map[string]float64, error) {
	switch v := raw.(type) {
	case map[string]float64:
		return v, nil
	case map[string]any:
		weights := make(map[string]float64, len(v))
		for k, w := range v {
			f, err := toFloat(w)
			if err != nil {
				return nil, fmt.Errorf("category '%s': %w", k, err)
			}
			weights[k] = f
		}
		return weights, nil
	case model.Values:
		return toWeights(map[string]any(v))
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

// Observe appends unseen categories, in sorted order within one value
func (d *Distribution) Observe(raw any) error {
	if err := d.checkObservable(); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	weights, err := toWeights(raw)
	if err != nil {
		return helper.EncodingError(d.name, raw, err)
	}
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := d.index[k]; !ok {
			d.index[k] = len(d.categories)
			d.categories = append(d.categories, k)
		}
	}
	return nil
}

// Encode normalises the weights over the known categories. Unknown categories
// are ignored.
func (d *Distribution) Encode(raw any) ([]float64, error) {
	if raw == nil {
		return d.Missing(), nil
	}
	weights, err := toWeights(raw)
	if err != nil {
		return nil, helper.EncodingError(d.name, raw, err)
	}
	total := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, helper.EncodingError(d.name, raw, fmt.Errorf("weights must be non-negative"))
		}
		total += w
	}
	if total == 0 {
		return nil, helper.EncodingError(d.name, raw, fmt.Errorf("weights sum to zero"))
	}
	row := make([]float64, len(d.categories))
	for i, c := range d.categories {
		row[i] = weights[c] / total
	}
	return row, nil
}

// Decode treats an all non-negative row as probabilities and an all
// non-positive row as log-probabilities. Mixed signs cannot be interpreted.
func (d *Distribution) Decode(row []float64) (any, error) {
	if len(row) != len(d.categories) {
		return nil, helper.ShapeError("field '%s' decodes rows of width %d, got %d", d.name, len(d.categories), len(row))
	}
	if len(row) == 0 || rowHasNaN(row) {
		return nil, nil
	}

	nonNegative, nonPositive := true, true
	for _, v := range row {
		nonNegative = nonNegative && v >= 0
		nonPositive = nonPositive && v <= 0
	}

	out := map[string]float64{}
	switch {
	case nonNegative:
		total := 0.0
		for _, p := range row {
			total += p
		}
		for i, p := range row {
			if p > 0 {
				out[d.categories[i]] = p / total
			}
		}
	case nonPositive:
		total := 0.0
		for _, lp := range row {
			total += math.Exp(lp)
		}
		for i, lp := range row {
			out[d.categories[i]] = math.Exp(lp) / total
		}
	default:
		return nil, fmt.Errorf("%w: field '%s' got probabilities that were not all of the same sign", helper.ErrDecoding, d.name)
	}
	return out, nil
}

func (d *Distribution) Width() int         { return len(d.categories) }
func (d *Distribution) Missing() []float64 { return nanRow(len(d.categories)) }

func (d *Distribution) IsPresent(row []float64) bool {
	return len(row) > 0 && len(row) == len(d.categories) && !rowHasNaN(row)
}

// Categories returns the discovered categories in encoding order
func (d *Distribution) Categories() []string {
	return append([]string(nil), d.categories...)
}

func (d *Distribution) String() string {
	return fmt.Sprintf("%s field: %s[%d categories]", d.kind, d.name, len(d.categories))
}
