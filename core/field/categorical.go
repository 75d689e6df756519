package field

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// Categorical maps observed values to vocabulary indices. Index 0 is reserved
// for the missing value.
type Categorical struct {
	base
	lookup map[string]int
	values []any
}

func NewCategorical(name string) *Categorical {
	return &Categorical{
		base:   base{name: name, kind: model.FieldKindCategorical},
		lookup: map[string]int{},
		values: []any{nil},
	}
}

// categoryKey keeps values of different kinds apart while numbers compare by
// value, so 1 and 1.0 share a category but 1 and "1" do not.
func categoryKey(raw any) string {
	switch v := raw.(type) {
	case string:
		return "s:" + v
	case bool:
		return "b:" + strconv.FormatBool(v)
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		f, err := toFloat(v)
		if err == nil {
			return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return fmt.Sprintf("%T:%v", raw, raw)
}

func (c *Categorical) Observe(raw any) error {
	if err := c.checkObservable(); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	key := categoryKey(raw)
	if _, ok := c.lookup[key]; !ok {
		c.lookup[key] = len(c.values)
		c.values = append(c.values, raw)
	}
	return nil
}

// Encode returns the vocabulary index. Values never observed encode as missing.
func (c *Categorical) Encode(raw any) ([]float64, error) {
	if raw == nil {
		return c.Missing(), nil
	}
	i, ok := c.lookup[categoryKey(raw)]
	if !ok {
		return c.Missing(), nil
	}
	return []float64{float64(i)}, nil
}

// Decode accepts either an index row of width 1 or a score row over the
// vocabulary. A vocabulary of only the missing value has width 1 both ways, use
// DecodeReconstruction for decoder output.
func (c *Categorical) Decode(row []float64) (any, error) {
	var i int
	switch {
	case len(row) == 1:
		if math.IsNaN(row[0]) {
			return nil, nil
		}
		if row[0] != math.Trunc(row[0]) {
			return nil, helper.DecodingError(c.name, row[0], len(c.values))
		}
		i = int(row[0])
	case len(row) == len(c.values):
		i = argmax(row)
	default:
		return nil, helper.ShapeError("field '%s' decodes rows of width 1 or %d, got %d", c.name, len(c.values), len(row))
	}

	if i < 0 || i >= len(c.values) {
		return nil, helper.DecodingError(c.name, i, len(c.values))
	}
	return c.values[i], nil
}

// DecodeReconstruction decodes a score row over the vocabulary by argmax
func (c *Categorical) DecodeReconstruction(row []float64) (any, error) {
	if len(row) != len(c.values) {
		return nil, helper.ShapeError("field '%s' decodes score rows of width %d, got %d", c.name, len(c.values), len(row))
	}
	return c.values[argmax(row)], nil
}

func (c *Categorical) Width() int                   { return 1 }
func (c *Categorical) Missing() []float64           { return nanRow(1) }
func (c *Categorical) IsPresent(row []float64) bool { return len(row) == 1 && !math.IsNaN(row[0]) }

// Size is the vocabulary size including the missing index
func (c *Categorical) Size() int { return len(c.values) }

func (c *Categorical) String() string {
	return fmt.Sprintf("%s field: %s[%d]", c.kind, c.name, len(c.values))
}
