package field

import (
	"fmt"
	"math"
	"strings"

	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// Sequential encodes a sequence of elements as token indices padded with 0
// to the longest observed length.
type Sequential struct {
	base
	lookup    map[string]int
	elements  []string
	maxLength int
	runesOnly bool
}

func NewSequential(name string) *Sequential {
	return &Sequential{
		base:     base{name: name, kind: model.FieldKindSequential},
		lookup:   map[string]int{},
		elements: []string{""},
	}
}

// NewCharacter is a sequential field over the characters of a string
func NewCharacter(name string) *Sequential {
	s := NewSequential(name)
	s.kind = model.FieldKindCharacter
	s.runesOnly = true
	return s
}

func (s *Sequential) split(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		out := make([]string, 0, len(v))
		for _, r := range v {
			out = append(out, string(r))
		}
		return out, nil
	case []string:
		if s.runesOnly {
			return nil, fmt.Errorf("expected a string")
		}
		return v, nil
	case []any:
		if s.runesOnly {
			return nil, fmt.Errorf("expected a string")
		}
		out := make([]string, len(v))
		for i, e := range v {
			out[i] = fmt.Sprint(e)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

func (s *Sequential) Observe(raw any) error {
	if err := s.checkObservable(); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	elements, err := s.split(raw)
	if err != nil {
		return helper.EncodingError(s.name, raw, err)
	}
	for _, e := range elements {
		if _, ok := s.lookup[e]; !ok {
			s.lookup[e] = len(s.elements)
			s.elements = append(s.elements, e)
		}
	}
	s.maxLength = max(s.maxLength, len(elements))
	return nil
}

// Encode returns MaxLength token indices. Longer sequences are truncated.
func (s *Sequential) Encode(raw any) ([]float64, error) {
	if raw == nil {
		return s.Missing(), nil
	}
	elements, err := s.split(raw)
	if err != nil {
		return nil, helper.EncodingError(s.name, raw, err)
	}
	row := make([]float64, s.maxLength)
	for i, e := range elements {
		if i >= s.maxLength {
			break
		}
		idx, ok := s.lookup[e]
		if !ok {
			return nil, helper.EncodingError(s.name, raw, fmt.Errorf("unknown element '%s'", e))
		}
		row[i] = float64(idx)
	}
	return row, nil
}

// Decode accepts token indices (width MaxLength) or per-position scores
// (width MaxLength*VocabularySize). Padding is skipped.
func (s *Sequential) Decode(row []float64) (any, error) {
	vocabulary := len(s.elements)
	tokens := make([]int, 0, s.maxLength)
	switch {
	case len(row) == s.maxLength:
		for _, v := range row {
			if math.IsNaN(v) || v != math.Trunc(v) {
				return nil, helper.DecodingError(s.name, v, vocabulary)
			}
			tokens = append(tokens, int(v))
		}
	case len(row) == s.maxLength*vocabulary:
		tokens = s.scoreTokens(row)
	default:
		return nil, helper.ShapeError("field '%s' decodes rows of width %d or %d, got %d", s.name, s.maxLength, s.maxLength*vocabulary, len(row))
	}
	return s.join(tokens)
}

// DecodeReconstruction decodes per position scores (width
// MaxLength*VocabularySize) only.
func (s *Sequential) DecodeReconstruction(row []float64) (any, error) {
	if len(row) != s.maxLength*len(s.elements) {
		return nil, helper.ShapeError("field '%s' decodes score rows of width %d, got %d", s.name, s.maxLength*len(s.elements), len(row))
	}
	return s.join(s.scoreTokens(row))
}

func (s *Sequential) scoreTokens(row []float64) []int {
	vocabulary := len(s.elements)
	tokens := make([]int, 0, s.maxLength)
	for p := 0; p < s.maxLength; p++ {
		tokens = append(tokens, argmax(row[p*vocabulary:(p+1)*vocabulary]))
	}
	return tokens
}

func (s *Sequential) join(tokens []int) (any, error) {
	vocabulary := len(s.elements)
	var sb strings.Builder
	for _, t := range tokens {
		if t == 0 {
			continue
		}
		if t < 0 || t >= vocabulary {
			return nil, helper.DecodingError(s.name, t, vocabulary)
		}
		sb.WriteString(s.elements[t])
	}
	return sb.String(), nil
}

func (s *Sequential) Width() int         { return s.maxLength }
func (s *Sequential) Missing() []float64 { return make([]float64, s.maxLength) }

// IsPresent treats a zero leading token as absent
func (s *Sequential) IsPresent(row []float64) bool {
	return len(row) > 0 && row[0] != 0
}

// VocabularySize includes the padding index
func (s *Sequential) VocabularySize() int { return len(s.elements) }

func (s *Sequential) MaxLength() int { return s.maxLength }

func (s *Sequential) String() string {
	return fmt.Sprintf("%s field: %s[%d values, %d max length]", s.kind, s.name, len(s.elements), s.maxLength)
}
