package network

import (
	"math/rand"

	"github.com/ChizhovVadim/rnnsearch/internal/ml"
)

// cell is one recurrent layer: h[t] = f(Wx*x[t] + Wh*h[t-1] + b).
type cell struct {
	activationFn ml.IActivationFn
	wx           ml.Matrix
	wh           ml.Matrix
	b            ml.Matrix
	gwx          ml.Gradients
	gwh          ml.Gradients
	gb           ml.Gradients
}

func newCell(inputSize, hiddenSize int, activationFn ml.IActivationFn) *cell {
	return &cell{
		activationFn: activationFn,
		wx:           ml.NewMatrix(hiddenSize, inputSize),
		wh:           ml.NewMatrix(hiddenSize, hiddenSize),
		b:            ml.NewMatrix(hiddenSize, 1),
		gwx:          ml.NewGradients(hiddenSize, inputSize),
		gwh:          ml.NewGradients(hiddenSize, hiddenSize),
		gb:           ml.NewGradients(hiddenSize, 1),
	}
}

func (c *cell) hiddenSize() int { return c.wh.Rows }

func (c *cell) initWeights(rnd *rand.Rand, max float64) {
	ml.InitUniform(rnd, c.wx.Data, max)
	ml.InitUniform(rnd, c.wh.Data, max)
	ml.InitUniform(rnd, c.b.Data, max)
}

func (c *cell) step(input, prev []float64) []float64 {
	var output = make([]float64, c.hiddenSize())
	for i := range output {
		var x = c.b.Data[i]
		for j, v := range input {
			x += c.wx.Get(i, j) * v
		}
		for k, v := range prev {
			x += c.wh.Get(i, k) * v
		}
		output[i] = c.activationFn.Sigma(x)
	}
	return output
}

// unroll runs the layer over all steps starting from h0.
func (c *cell) unroll(inputs [][]float64, h0 []float64) [][]float64 {
	var states = make([][]float64, len(inputs))
	var prev = h0
	for t, input := range inputs {
		states[t] = c.step(input, prev)
		prev = states[t]
	}
	return states
}

// backward runs back propagation through time for one layer.
// dAbove[t] is the loss gradient w.r.t. states[t] coming from the layer above (may be nil),
// dCarry is the gradient flowing into the last state from outside the sequence (may be nil).
// It returns gradients w.r.t. the inputs (when needInputGrad) and w.r.t. h0.
func (c *cell) backward(
	inputs [][]float64,
	states [][]float64,
	h0 []float64,
	dAbove [][]float64,
	dCarry []float64,
	needInputGrad bool,
) ([][]float64, []float64) {
	var hiddenSize = c.hiddenSize()
	var dInputs [][]float64
	if needInputGrad {
		dInputs = make([][]float64, len(inputs))
	}
	var dNext = make([]float64, hiddenSize)
	copy(dNext, dCarry)
	var da = make([]float64, hiddenSize)

	for t := len(states) - 1; t >= 0; t-- {
		var h = states[t]
		var prev = h0
		if t > 0 {
			prev = states[t-1]
		}
		for i := range da {
			var dh = dNext[i]
			if dAbove != nil && dAbove[t] != nil {
				dh += dAbove[t][i]
			}
			da[i] = dh * c.activationFn.PrimeFromOutput(h[i])
		}

		var input = inputs[t]
		var dPrev = make([]float64, hiddenSize)
		var dInput []float64
		if needInputGrad {
			dInput = make([]float64, len(input))
		}
		for i, x := range da {
			if x == 0 {
				continue
			}
			c.gb.Add(i, 0, x)
			for j, v := range input {
				c.gwx.Add(i, j, x*v)
				if needInputGrad {
					dInput[j] += c.wx.Get(i, j) * x
				}
			}
			for k, v := range prev {
				c.gwh.Add(i, k, x*v)
				dPrev[k] += c.wh.Get(i, k) * x
			}
		}
		if needInputGrad {
			dInputs[t] = dInput
		}
		dNext = dPrev
	}
	return dInputs, dNext
}
