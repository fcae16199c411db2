package domain

import (
	"fmt"
	"io"
	"strings"
)

const (
	AxisStackSize = iota
	AxisHiddenSize
)

// Configuration is one point of the hyperparameter grid, ordered by axis.
type Configuration []int

func (c Configuration) Equal(other Configuration) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

func (c Configuration) String() string {
	var parts = make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (c Configuration) StackSize() int  { return c[AxisStackSize] }
func (c Configuration) HiddenSize() int { return c[AxisHiddenSize] }

// Tensor is a dense [samples, steps, features] array in row-major order.
type Tensor struct {
	Data  []float64
	Shape [3]int
}

func NewTensor(samples, steps, features int) Tensor {
	return Tensor{
		Data:  make([]float64, samples*steps*features),
		Shape: [3]int{samples, steps, features},
	}
}

func (t *Tensor) index(i, j, k int) int {
	return (i*t.Shape[1]+j)*t.Shape[2] + k
}

func (t *Tensor) At(i, j, k int) float64 {
	return t.Data[t.index(i, j, k)]
}

func (t *Tensor) Set(i, j, k int, v float64) {
	t.Data[t.index(i, j, k)] = v
}

// Sample returns the [steps, features] slice of sample i, sharing memory with t.
func (t *Tensor) Sample(i int) []float64 {
	var size = t.Shape[1] * t.Shape[2]
	return t.Data[i*size : (i+1)*size]
}

func (t *Tensor) Samples() int { return t.Shape[0] }

// Batch groups aligned encoder input, decoder input, target and identifiers.
type Batch struct {
	Encoder     Tensor
	Decoder     Tensor
	Target      Tensor
	Identifiers []string
}

func (b *Batch) Size() int { return b.Target.Samples() }

// Frame is a tabular view of forecasts: one row per sample, one column per horizon value.
type Frame struct {
	Identifiers []string
	Values      [][]float64
}

func (f *Frame) Rows() int { return len(f.Values) }

type IModel interface {
	Forward(encoder, decoder Tensor) Tensor
	// Backward accumulates parameter gradients for the last Forward call.
	Backward(outputGrad Tensor)
	SetTraining(training bool)
	SaveState(w io.Writer) error
	LoadState(r io.Reader) error
}

type IOptimizer interface {
	ZeroGrad()
	Step()
}

type ILoss interface {
	Loss(predicted, target Tensor) float64
	Gradient(predicted, target Tensor) Tensor
}

type IModelFactory interface {
	NewModel(config Configuration) (IModel, IOptimizer, error)
}

type IFormatter interface {
	// FormatPredictions maps normalized model outputs back to the original scale.
	FormatPredictions(frame Frame) (Frame, error)
}
