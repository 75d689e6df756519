// Package nn contains the forward-only neural building blocks of the graph
// autoencoder. Weights are initialised deterministically from a seed.
package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/siherrmann/graphae/core/tensor"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
	"gonum.org/v1/gonum/floats"
)

// Activation is an element-wise nonlinearity
type Activation func(float64) float64

// NewActivation returns the activation for kind
func NewActivation(kind model.ActivationKind) (Activation, error) {
	switch kind {
	case model.ActivationReLU:
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case model.ActivationTanh:
		return math.Tanh, nil
	case model.ActivationSigmoid:
		return func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }, nil
	case model.ActivationIdentity, "":
		return func(x float64) float64 { return x }, nil
	default:
		return nil, helper.ConfigurationError("unsupported activation '%s'", kind)
	}
}

// Initializer draws xavier-uniform weights from a seeded generator, so two
// models built from the same seed and schema are identical.
type Initializer struct {
	rng *rand.Rand
}

const initBias = 0.01

func NewInitializer(seed uint64) *Initializer {
	return &Initializer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (in *Initializer) xavier(fanIn, fanOut, n int) []float64 {
	w := make([]float64, n)
	if fanIn+fanOut == 0 {
		return w
	}
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (in.rng.Float64()*2 - 1) * limit
	}
	return w
}

// Linear is a fully connected layer y = Wx + b. Zero input width is allowed
// and yields the bias.
type Linear struct {
	In     int
	Out    int
	Weight []float64 // Out x In, row-major
	Bias   []float64
}

func NewLinear(initializer *Initializer, in, out int) *Linear {
	bias := make([]float64, out)
	for i := range bias {
		bias[i] = initBias
	}
	return &Linear{In: in, Out: out, Weight: initializer.xavier(in, out, in*out), Bias: bias}
}

// Forward maps a rows x In matrix to rows x Out
func (l *Linear) Forward(x *tensor.Matrix) *tensor.Matrix {
	if x.Cols() != l.In {
		panic(fmt.Sprintf("nn: linear layer expects %d columns, got %d", l.In, x.Cols()))
	}
	out := tensor.New(x.Rows(), l.Out)
	for i := 0; i < x.Rows(); i++ {
		row := x.Row(i)
		dst := out.Row(i)
		for o := 0; o < l.Out; o++ {
			dst[o] = floats.Dot(row, l.Weight[o*l.In:(o+1)*l.In]) + l.Bias[o]
		}
	}
	return out
}

func (l *Linear) String() string {
	return fmt.Sprintf("Linear(%d -> %d)", l.In, l.Out)
}

func (l *Linear) ParameterCount() int {
	return len(l.Weight) + len(l.Bias)
}

// activate applies act in place and returns m
func activate(m *tensor.Matrix, act Activation) *tensor.Matrix {
	m.Apply(act)
	return m
}
