package nn

import (
	"github.com/siherrmann/graphae/core/tensor"
)

// Autoencoder compresses rows of the boundary width through the hidden shapes
// down to the bottleneck and reconstructs them. Without hidden shapes it is
// the identity and has no bottleneck.
type Autoencoder struct {
	boundary int
	shapes   []int
	encoder  []*Linear
	decoder  []*Linear
	act      Activation
}

func NewAutoencoder(initializer *Initializer, boundary int, shapes []int, act Activation) *Autoencoder {
	a := &Autoencoder{boundary: boundary, shapes: append([]int(nil), shapes...), act: act}
	sizes := append([]int{boundary}, shapes...)
	for i := 0; i+1 < len(sizes); i++ {
		a.encoder = append(a.encoder, NewLinear(initializer, sizes[i], sizes[i+1]))
	}
	for i := len(sizes) - 1; i > 0; i-- {
		a.decoder = append(a.decoder, NewLinear(initializer, sizes[i], sizes[i-1]))
	}
	return a
}

// InputSize is the boundary width
func (a *Autoencoder) InputSize() int { return a.boundary }

// OutputSize is the width of the reconstruction, equal to the boundary width
func (a *Autoencoder) OutputSize() int { return a.boundary }

// BottleneckSize returns the last hidden width, false without hidden shapes
func (a *Autoencoder) BottleneckSize() (int, bool) {
	if len(a.shapes) == 0 {
		return 0, false
	}
	return a.shapes[len(a.shapes)-1], true
}

// Forward returns the reconstruction, the bottleneck (nil without hidden
// shapes) and the mean squared reconstruction error.
func (a *Autoencoder) Forward(x *tensor.Matrix) (*tensor.Matrix, *tensor.Matrix, float64) {
	if len(a.encoder) == 0 {
		return x.Clone(), nil, 0
	}
	h := x
	for _, l := range a.encoder {
		h = activate(l.Forward(h), a.act)
	}
	bottleneck := h
	for i, l := range a.decoder {
		h = l.Forward(h)
		if i < len(a.decoder)-1 {
			activate(h, a.act)
		}
	}
	return h, bottleneck, MeanSquaredError(h, x)
}

func (a *Autoencoder) ParameterCount() int {
	n := 0
	for _, l := range a.encoder {
		n += l.ParameterCount()
	}
	for _, l := range a.decoder {
		n += l.ParameterCount()
	}
	return n
}

// MeanSquaredError over all elements, 0 for empty matrices
func MeanSquaredError(a, b *tensor.Matrix) float64 {
	data, target := a.RawData(), b.RawData()
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for i, v := range data {
		d := v - target[i]
		sum += d * d
	}
	return sum / float64(len(data))
}
