package nn

import (
	"math"

	"github.com/siherrmann/graphae/core/field"
	"github.com/siherrmann/graphae/core/tensor"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
	"gonum.org/v1/gonum/floats"
)

const (
	numericEncodingSize = 4
	embeddingSize       = 8
)

// FieldEncoder maps encoded rows of present values (count x codec width) to
// count x OutputSize.
type FieldEncoder interface {
	OutputSize() int
	Encode(values *tensor.Matrix) (*tensor.Matrix, error)
	ParameterCount() int
}

// FieldDecoder reconstructs a field for every row of the projected tensor
type FieldDecoder interface {
	OutputSize() int
	Decode(projected *tensor.Matrix) *tensor.Matrix
	ParameterCount() int
}

// FieldLoss scores reconstructions against encoded targets, one loss per row
// in rows.
type FieldLoss func(reconstruction, target *tensor.Matrix, rows []int) []float64

type (
	EncoderFactory func(initializer *Initializer, codec field.Codec, act Activation) (FieldEncoder, error)
	DecoderFactory func(initializer *Initializer, codec field.Codec, projectedSize int, act Activation) (FieldDecoder, error)
	LossFactory    func(codec field.Codec) (FieldLoss, error)
)

// FieldModels returns the encoder, decoder and loss factories of a field kind
func FieldModels(kind model.FieldKind) (EncoderFactory, DecoderFactory, LossFactory, error) {
	switch kind {
	case model.FieldKindNumeric, model.FieldKindInteger, model.FieldKindDate:
		return newNumericEncoder, newNumericDecoder, newNumericLoss, nil
	case model.FieldKindCategorical:
		return newCategoricalEncoder, newCategoricalDecoder, newCategoricalLoss, nil
	case model.FieldKindDistribution:
		return newDistributionEncoder, newDistributionDecoder, newDistributionLoss, nil
	case model.FieldKindSequential, model.FieldKindCharacter:
		return newSequentialEncoder, newSequentialDecoder, newSequentialLoss, nil
	case model.FieldKindText:
		return newTextEncoder, newTextDecoder, newTextLoss, nil
	default:
		return nil, nil, nil, helper.ConfigurationError("no field model registered for type '%s'", kind)
	}
}

func codecAs[T field.Codec](codec field.Codec) (T, error) {
	c, ok := codec.(T)
	if !ok {
		var zero T
		return zero, helper.ConfigurationError("field '%s' of type '%s' has codec %T", codec.Name(), codec.Kind(), codec)
	}
	return c, nil
}

// numeric, integer and date

type numericEncoder struct {
	codec  *field.Numeric
	linear *Linear
	act    Activation
}

func newNumericEncoder(initializer *Initializer, codec field.Codec, act Activation) (FieldEncoder, error) {
	c, err := codecAs[*field.Numeric](codec)
	if err != nil {
		return nil, err
	}
	return &numericEncoder{codec: c, linear: NewLinear(initializer, 1, numericEncodingSize), act: act}, nil
}

func (e *numericEncoder) OutputSize() int { return numericEncodingSize }

func (e *numericEncoder) Encode(values *tensor.Matrix) (*tensor.Matrix, error) {
	scaled := values.Clone()
	scaled.Apply(e.codec.Scale)
	return activate(e.linear.Forward(scaled), e.act), nil
}

func (e *numericEncoder) ParameterCount() int { return e.linear.ParameterCount() }

type numericDecoder struct {
	codec  *field.Numeric
	linear *Linear
}

func newNumericDecoder(initializer *Initializer, codec field.Codec, projectedSize int, _ Activation) (FieldDecoder, error) {
	c, err := codecAs[*field.Numeric](codec)
	if err != nil {
		return nil, err
	}
	return &numericDecoder{codec: c, linear: NewLinear(initializer, projectedSize, 1)}, nil
}

func (d *numericDecoder) OutputSize() int { return 1 }

func (d *numericDecoder) Decode(projected *tensor.Matrix) *tensor.Matrix {
	out := d.linear.Forward(projected)
	out.Apply(d.codec.Unscale)
	return out
}

func (d *numericDecoder) ParameterCount() int { return d.linear.ParameterCount() }

func newNumericLoss(codec field.Codec) (FieldLoss, error) {
	c, err := codecAs[*field.Numeric](codec)
	if err != nil {
		return nil, err
	}
	return func(reconstruction, target *tensor.Matrix, rows []int) []float64 {
		losses := make([]float64, len(rows))
		for i, r := range rows {
			d := c.Scale(reconstruction.At(r, 0)) - c.Scale(target.At(r, 0))
			losses[i] = d * d
		}
		return losses
	}, nil
}

// categorical

type categoricalEncoder struct {
	codec *field.Categorical
	table *tensor.Matrix
}

func newCategoricalEncoder(initializer *Initializer, codec field.Codec, _ Activation) (FieldEncoder, error) {
	c, err := codecAs[*field.Categorical](codec)
	if err != nil {
		return nil, err
	}
	return &categoricalEncoder{codec: c, table: embeddingTable(initializer, c.Size())}, nil
}

func embeddingTable(initializer *Initializer, size int) *tensor.Matrix {
	table := tensor.New(size, embeddingSize)
	copy(table.RawData(), initializer.xavier(size, embeddingSize, size*embeddingSize))
	return table
}

func lookupIndex(name string, v float64, size int) (int, error) {
	if math.IsNaN(v) || v != math.Trunc(v) || v < 0 || int(v) >= size {
		return 0, helper.DecodingError(name, v, size)
	}
	return int(v), nil
}

func (e *categoricalEncoder) OutputSize() int { return embeddingSize }

func (e *categoricalEncoder) Encode(values *tensor.Matrix) (*tensor.Matrix, error) {
	out := tensor.New(values.Rows(), embeddingSize)
	for i := 0; i < values.Rows(); i++ {
		idx, err := lookupIndex(e.codec.Name(), values.At(i, 0), e.table.Rows())
		if err != nil {
			return nil, err
		}
		copy(out.Row(i), e.table.Row(idx))
	}
	return out, nil
}

func (e *categoricalEncoder) ParameterCount() int { return len(e.table.RawData()) }

type logitDecoder struct {
	linear *Linear
}

func (d *logitDecoder) OutputSize() int { return d.linear.Out }

func (d *logitDecoder) Decode(projected *tensor.Matrix) *tensor.Matrix {
	return d.linear.Forward(projected)
}

func (d *logitDecoder) ParameterCount() int { return d.linear.ParameterCount() }

func newCategoricalDecoder(initializer *Initializer, codec field.Codec, projectedSize int, _ Activation) (FieldDecoder, error) {
	c, err := codecAs[*field.Categorical](codec)
	if err != nil {
		return nil, err
	}
	return &logitDecoder{linear: NewLinear(initializer, projectedSize, c.Size())}, nil
}

// crossEntropy is -log softmax(logits)[target]
func crossEntropy(logits []float64, target int) float64 {
	return floats.LogSumExp(logits) - logits[target]
}

func newCategoricalLoss(codec field.Codec) (FieldLoss, error) {
	c, err := codecAs[*field.Categorical](codec)
	if err != nil {
		return nil, err
	}
	return func(reconstruction, target *tensor.Matrix, rows []int) []float64 {
		losses := make([]float64, len(rows))
		for i, r := range rows {
			idx, err := lookupIndex(c.Name(), target.At(r, 0), reconstruction.Cols())
			if err != nil {
				losses[i] = math.NaN()
				continue
			}
			losses[i] = crossEntropy(reconstruction.Row(r), idx)
		}
		return losses
	}, nil
}

// distribution

type denseEncoder struct {
	linear *Linear
	act    Activation
}

func (e *denseEncoder) OutputSize() int { return e.linear.Out }

func (e *denseEncoder) Encode(values *tensor.Matrix) (*tensor.Matrix, error) {
	if values.Cols() != e.linear.In {
		return nil, helper.ShapeError("encoder expects %d columns, got %d", e.linear.In, values.Cols())
	}
	return activate(e.linear.Forward(values), e.act), nil
}

func (e *denseEncoder) ParameterCount() int { return e.linear.ParameterCount() }

func newDistributionEncoder(initializer *Initializer, codec field.Codec, act Activation) (FieldEncoder, error) {
	c, err := codecAs[*field.Distribution](codec)
	if err != nil {
		return nil, err
	}
	return &denseEncoder{linear: NewLinear(initializer, c.Width(), embeddingSize), act: act}, nil
}

type distributionDecoder struct {
	linear *Linear
}

func newDistributionDecoder(initializer *Initializer, codec field.Codec, projectedSize int, _ Activation) (FieldDecoder, error) {
	c, err := codecAs[*field.Distribution](codec)
	if err != nil {
		return nil, err
	}
	return &distributionDecoder{linear: NewLinear(initializer, projectedSize, c.Width())}, nil
}

func (d *distributionDecoder) OutputSize() int { return d.linear.Out }

// Decode returns log-probabilities
func (d *distributionDecoder) Decode(projected *tensor.Matrix) *tensor.Matrix {
	out := d.linear.Forward(projected)
	if out.Cols() == 0 {
		return out
	}
	for i := 0; i < out.Rows(); i++ {
		row := out.Row(i)
		floats.AddConst(-floats.LogSumExp(row), row)
	}
	return out
}

func (d *distributionDecoder) ParameterCount() int { return d.linear.ParameterCount() }

func newDistributionLoss(codec field.Codec) (FieldLoss, error) {
	if _, err := codecAs[*field.Distribution](codec); err != nil {
		return nil, err
	}
	return func(reconstruction, target *tensor.Matrix, rows []int) []float64 {
		losses := make([]float64, len(rows))
		for i, r := range rows {
			losses[i] = -floats.Dot(target.Row(r), reconstruction.Row(r))
		}
		return losses
	}, nil
}

// sequential and character

type sequentialEncoder struct {
	codec  *field.Sequential
	table  *tensor.Matrix
	linear *Linear
	act    Activation
}

func newSequentialEncoder(initializer *Initializer, codec field.Codec, act Activation) (FieldEncoder, error) {
	c, err := codecAs[*field.Sequential](codec)
	if err != nil {
		return nil, err
	}
	return &sequentialEncoder{
		codec:  c,
		table:  embeddingTable(initializer, c.VocabularySize()),
		linear: NewLinear(initializer, embeddingSize, embeddingSize),
		act:    act,
	}, nil
}

func (e *sequentialEncoder) OutputSize() int { return embeddingSize }

// Encode mean-pools the token embeddings over non-padding positions
func (e *sequentialEncoder) Encode(values *tensor.Matrix) (*tensor.Matrix, error) {
	pooled := tensor.New(values.Rows(), embeddingSize)
	for i := 0; i < values.Rows(); i++ {
		dst := pooled.Row(i)
		count := 0
		for _, v := range values.Row(i) {
			idx, err := lookupIndex(e.codec.Name(), v, e.table.Rows())
			if err != nil {
				return nil, err
			}
			if idx == 0 {
				continue
			}
			floats.Add(dst, e.table.Row(idx))
			count++
		}
		if count > 0 {
			floats.Scale(1/float64(count), dst)
		}
	}
	return activate(e.linear.Forward(pooled), e.act), nil
}

func (e *sequentialEncoder) ParameterCount() int {
	return len(e.table.RawData()) + e.linear.ParameterCount()
}

func newSequentialDecoder(initializer *Initializer, codec field.Codec, projectedSize int, _ Activation) (FieldDecoder, error) {
	c, err := codecAs[*field.Sequential](codec)
	if err != nil {
		return nil, err
	}
	return &logitDecoder{linear: NewLinear(initializer, projectedSize, c.MaxLength()*c.VocabularySize())}, nil
}

// newSequentialLoss averages the per-position cross entropy over the
// non-padding positions of the target.
func newSequentialLoss(codec field.Codec) (FieldLoss, error) {
	c, err := codecAs[*field.Sequential](codec)
	if err != nil {
		return nil, err
	}
	vocabulary := c.VocabularySize()
	return func(reconstruction, target *tensor.Matrix, rows []int) []float64 {
		losses := make([]float64, len(rows))
		for i, r := range rows {
			logits := reconstruction.Row(r)
			count := 0
			for p, v := range target.Row(r) {
				idx, err := lookupIndex(c.Name(), v, vocabulary)
				if err != nil {
					losses[i] = math.NaN()
					break
				}
				if idx == 0 {
					continue
				}
				losses[i] += crossEntropy(logits[p*vocabulary:(p+1)*vocabulary], idx)
				count++
			}
			if count > 0 {
				losses[i] /= float64(count)
			}
		}
		return losses
	}, nil
}

// text

func newTextEncoder(initializer *Initializer, codec field.Codec, act Activation) (FieldEncoder, error) {
	c, err := codecAs[*field.Text](codec)
	if err != nil {
		return nil, err
	}
	return &denseEncoder{linear: NewLinear(initializer, c.Width(), embeddingSize), act: act}, nil
}

func newTextDecoder(initializer *Initializer, codec field.Codec, projectedSize int, _ Activation) (FieldDecoder, error) {
	c, err := codecAs[*field.Text](codec)
	if err != nil {
		return nil, err
	}
	return &logitDecoder{linear: NewLinear(initializer, projectedSize, c.Width())}, nil
}

func newTextLoss(codec field.Codec) (FieldLoss, error) {
	if _, err := codecAs[*field.Text](codec); err != nil {
		return nil, err
	}
	return func(reconstruction, target *tensor.Matrix, rows []int) []float64 {
		losses := make([]float64, len(rows))
		width := float64(target.Cols())
		for i, r := range rows {
			if width == 0 {
				continue
			}
			losses[i] = floats.Distance(reconstruction.Row(r), target.Row(r), 2)
			losses[i] = losses[i] * losses[i] / width
		}
		return losses
	}, nil
}

// Mean of the finite losses, NaN if there are none
func Mean(losses []float64) float64 {
	sum, n := 0.0, 0
	for _, l := range losses {
		if math.IsNaN(l) {
			continue
		}
		sum += l
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
