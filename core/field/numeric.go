package field

import (
	"fmt"
	"math"
	"time"

	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// DateLayout is the raw date format: day, abbreviated month, year
const DateLayout = "2-Jan-2006"

// Numeric encodes a real number as a single column and tracks its observed range
type Numeric struct {
	base
	min      float64
	max      float64
	observed bool
	parse    func(raw any) (float64, error)
	format   func(v float64) any
}

func NewNumeric(name string) *Numeric {
	return &Numeric{
		base:   base{name: name, kind: model.FieldKindNumeric},
		parse:  toFloat,
		format: func(v float64) any { return v },
	}
}

// NewInteger is a numeric field decoding to rounded int64 values
func NewInteger(name string) *Numeric {
	n := NewNumeric(name)
	n.kind = model.FieldKindInteger
	n.format = func(v float64) any { return int64(math.Round(v)) }
	return n
}

// NewDate is a numeric field over unix seconds, parsed from and formatted to DateLayout
func NewDate(name string) *Numeric {
	n := NewNumeric(name)
	n.kind = model.FieldKindDate
	n.parse = parseDate
	n.format = func(v float64) any {
		return time.Unix(int64(math.Round(v)), 0).UTC().Format(DateLayout)
	}
	return n
}

func parseDate(raw any) (float64, error) {
	switch v := raw.(type) {
	case time.Time:
		return float64(v.Unix()), nil
	case string:
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return 0, err
		}
		return float64(t.Unix()), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

func (n *Numeric) Observe(raw any) error {
	if err := n.checkObservable(); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	v, err := n.parse(raw)
	if err != nil {
		return helper.EncodingError(n.name, raw, err)
	}
	if !n.observed {
		n.min, n.max, n.observed = v, v, true
		return nil
	}
	n.min = math.Min(n.min, v)
	n.max = math.Max(n.max, v)
	return nil
}

func (n *Numeric) Encode(raw any) ([]float64, error) {
	if raw == nil {
		return n.Missing(), nil
	}
	v, err := n.parse(raw)
	if err != nil {
		return nil, helper.EncodingError(n.name, raw, err)
	}
	return []float64{v}, nil
}

// Decode returns nil for the missing sentinel
func (n *Numeric) Decode(row []float64) (any, error) {
	if len(row) != 1 {
		return nil, helper.ShapeError("field '%s' decodes rows of width 1, got %d", n.name, len(row))
	}
	if math.IsNaN(row[0]) {
		return nil, nil
	}
	return n.format(row[0]), nil
}

func (n *Numeric) Width() int                   { return 1 }
func (n *Numeric) Missing() []float64           { return nanRow(1) }
func (n *Numeric) IsPresent(row []float64) bool { return len(row) == 1 && !math.IsNaN(row[0]) }

// Range returns the observed minimum and maximum, zeros if nothing was observed
func (n *Numeric) Range() (float64, float64) {
	return n.min, n.max
}

// Scale maps v into the observed range's unit interval
func (n *Numeric) Scale(v float64) float64 {
	if n.max == n.min {
		return v - n.min
	}
	return (v - n.min) / (n.max - n.min)
}

// Unscale is the inverse of Scale
func (n *Numeric) Unscale(v float64) float64 {
	if n.max == n.min {
		return v + n.min
	}
	return v*(n.max-n.min) + n.min
}

func (n *Numeric) String() string {
	return fmt.Sprintf("%s field: %s[%v, %v]", n.kind, n.name, n.min, n.max)
}
