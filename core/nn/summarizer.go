package nn

import (
	"math"

	"github.com/siherrmann/graphae/core/tensor"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// Summarizer reduces a variable number of neighbour bottlenecks to one row of
// the bottleneck width: pooling followed by a linear layer and activation.
type Summarizer struct {
	kind   model.SummarizerKind
	width  int
	linear *Linear
	act    Activation
}

func NewSummarizer(initializer *Initializer, kind model.SummarizerKind, width int, act Activation) (*Summarizer, error) {
	switch kind {
	case model.SummarizerMean, model.SummarizerSum, model.SummarizerMax:
	case "":
		kind = model.SummarizerMean
	default:
		return nil, helper.ConfigurationError("unsupported summarizer '%s'", kind)
	}
	return &Summarizer{kind: kind, width: width, linear: NewLinear(initializer, width, width), act: act}, nil
}

// Summarize pools values over each segment of row indices. Row i of the result
// summarises segments[i]; empty segments yield an all-zero row.
func (s *Summarizer) Summarize(values *tensor.Matrix, segments [][]int) *tensor.Matrix {
	out := tensor.New(len(segments), s.width)
	live := make([]int, 0, len(segments))
	for i, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		live = append(live, i)
		s.pool(out.Row(i), values, segment)
	}
	if len(live) == 0 {
		return out
	}
	transformed := activate(s.linear.Forward(out.Gather(live)), s.act)
	out.Scatter(live, transformed)
	return out
}

func (s *Summarizer) pool(dst []float64, values *tensor.Matrix, segment []int) {
	if s.kind == model.SummarizerMax {
		for j := range dst {
			dst[j] = math.Inf(-1)
		}
	}
	for _, idx := range segment {
		row := values.Row(idx)
		for j, v := range row {
			if s.kind == model.SummarizerMax {
				dst[j] = math.Max(dst[j], v)
			} else {
				dst[j] += v
			}
		}
	}
	if s.kind == model.SummarizerMean {
		n := float64(len(segment))
		for j := range dst {
			dst[j] /= n
		}
	}
}

func (s *Summarizer) ParameterCount() int {
	return s.linear.ParameterCount()
}

// Projector maps an entity type's final autoencoder output to the shared
// projected width.
type Projector struct {
	hidden *Linear
	output *Linear
	act    Activation
}

func NewProjector(initializer *Initializer, in, out int, act Activation) *Projector {
	return &Projector{hidden: NewLinear(initializer, in, out), output: NewLinear(initializer, out, out), act: act}
}

func (p *Projector) InputSize() int { return p.hidden.In }

func (p *Projector) Forward(x *tensor.Matrix) *tensor.Matrix {
	return p.output.Forward(activate(p.hidden.Forward(x), p.act))
}

func (p *Projector) ParameterCount() int {
	return p.hidden.ParameterCount() + p.output.ParameterCount()
}
