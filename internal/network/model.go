package network

import (
	"math"
	"math/rand"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
	"github.com/ChizhovVadim/rnnsearch/internal/ml"
)

// Model is a stacked encoder/decoder recurrent network with a linear head per decoder step.
// The decoder layer i starts from the last hidden state of encoder layer i.
type Model struct {
	topology Topology
	encoder  []*cell
	decoder  []*cell
	wo       ml.Matrix
	bo       ml.Matrix
	gwo      ml.Gradients
	gbo      ml.Gradients
	dropout  float64
	training bool
	rnd      *rand.Rand
	cache    []sampleCache
}

type sampleCache struct {
	encInputs [][]float64
	decInputs [][]float64
	encStates [][][]float64
	decStates [][][]float64
	// head input per decoder step after dropout, and the dropout scale per unit
	head [][]float64
	mask [][]float64
}

func NewModel(topology Topology, activationFn ml.IActivationFn, dropout float64, rnd *rand.Rand) *Model {
	var hidden = int(topology.Hidden)
	var outputs = int(topology.Outputs)
	var m = &Model{
		topology: topology,
		wo:       ml.NewMatrix(outputs, hidden),
		bo:       ml.NewMatrix(outputs, 1),
		gwo:      ml.NewGradients(outputs, hidden),
		gbo:      ml.NewGradients(outputs, 1),
		dropout:  dropout,
		rnd:      rnd,
	}
	for layer := 0; layer < int(topology.Layers); layer++ {
		var encInputs, decInputs = hidden, hidden
		if layer == 0 {
			encInputs = int(topology.EncoderInputs)
			decInputs = int(topology.DecoderInputs)
		}
		m.encoder = append(m.encoder, newCell(encInputs, hidden, activationFn))
		m.decoder = append(m.decoder, newCell(decInputs, hidden, activationFn))
	}
	return m
}

func (m *Model) Topology() Topology { return m.topology }

func (m *Model) InitWeights(rnd *rand.Rand) *Model {
	var max = 1 / math.Sqrt(float64(m.topology.Hidden))
	for i := range m.encoder {
		m.encoder[i].initWeights(rnd, max)
		m.decoder[i].initWeights(rnd, max)
	}
	ml.InitUniform(rnd, m.wo.Data, max)
	ml.InitUniform(rnd, m.bo.Data, max)
	return m
}

func (m *Model) SetTraining(training bool) {
	m.training = training
}

func (m *Model) Forward(encoder, decoder domain.Tensor) domain.Tensor {
	var samples = encoder.Samples()
	var decSteps = decoder.Shape[1]
	var outputs = int(m.topology.Outputs)
	var result = domain.NewTensor(samples, decSteps, outputs)
	m.cache = make([]sampleCache, samples)
	for s := 0; s < samples; s++ {
		var c = &m.cache[s]
		c.encInputs = splitSteps(encoder, s)
		c.decInputs = splitSteps(decoder, s)
		m.forwardSample(c)
		for t, z := range c.head {
			for o := 0; o < outputs; o++ {
				var y = m.bo.Data[o]
				for i, v := range z {
					y += m.wo.Get(o, i) * v
				}
				result.Set(s, t, o, y)
			}
		}
	}
	return result
}

func (m *Model) forwardSample(c *sampleCache) {
	var hidden = int(m.topology.Hidden)
	var layers = len(m.encoder)
	c.encStates = make([][][]float64, layers)
	c.decStates = make([][][]float64, layers)

	var input = c.encInputs
	for layer, cell := range m.encoder {
		c.encStates[layer] = cell.unroll(input, make([]float64, hidden))
		input = c.encStates[layer]
	}

	input = c.decInputs
	for layer, cell := range m.decoder {
		c.decStates[layer] = cell.unroll(input, m.encoderFinal(c, layer))
		input = c.decStates[layer]
	}

	c.head = make([][]float64, len(input))
	c.mask = nil
	if m.training && m.dropout > 0 {
		c.mask = make([][]float64, len(input))
	}
	for t, h := range input {
		if c.mask == nil {
			c.head[t] = h
			continue
		}
		var z = make([]float64, hidden)
		var mask = make([]float64, hidden)
		for i := range h {
			if m.rnd.Float64() >= m.dropout {
				mask[i] = 1 / (1 - m.dropout)
			}
			z[i] = h[i] * mask[i]
		}
		c.head[t] = z
		c.mask[t] = mask
	}
}

func (m *Model) encoderFinal(c *sampleCache, layer int) []float64 {
	var states = c.encStates[layer]
	if len(states) == 0 {
		return make([]float64, m.topology.Hidden)
	}
	return states[len(states)-1]
}

func (m *Model) Backward(outputGrad domain.Tensor) {
	var outputs = int(m.topology.Outputs)
	var hidden = int(m.topology.Hidden)
	for s := range m.cache {
		var c = &m.cache[s]

		// linear head
		var dTop = make([][]float64, len(c.head))
		for t, z := range c.head {
			var dz = make([]float64, hidden)
			for o := 0; o < outputs; o++ {
				var dy = outputGrad.At(s, t, o)
				if dy == 0 {
					continue
				}
				m.gbo.Add(o, 0, dy)
				for i, v := range z {
					m.gwo.Add(o, i, dy*v)
					dz[i] += m.wo.Get(o, i) * dy
				}
			}
			if c.mask != nil {
				for i := range dz {
					dz[i] *= c.mask[t][i]
				}
			}
			dTop[t] = dz
		}

		var layers = len(m.decoder)
		var dInit = make([][]float64, layers)
		var dAbove = dTop
		for layer := layers - 1; layer >= 0; layer-- {
			var inputs = c.decInputs
			if layer > 0 {
				inputs = c.decStates[layer-1]
			}
			dAbove, dInit[layer] = m.decoder[layer].backward(
				inputs, c.decStates[layer], m.encoderFinal(c, layer), dAbove, nil, layer > 0)
		}

		if len(c.encInputs) == 0 {
			continue
		}
		dAbove = nil
		for layer := layers - 1; layer >= 0; layer-- {
			var inputs = c.encInputs
			if layer > 0 {
				inputs = c.encStates[layer-1]
			}
			dAbove, _ = m.encoder[layer].backward(
				inputs, c.encStates[layer], make([]float64, hidden), dAbove, dInit[layer], layer > 0)
		}
	}
}

func (m *Model) parameters() []parameter {
	var result []parameter
	for _, cells := range [][]*cell{m.encoder, m.decoder} {
		for _, c := range cells {
			result = append(result,
				parameter{&c.wx, &c.gwx},
				parameter{&c.wh, &c.gwh},
				parameter{&c.b, &c.gb})
		}
	}
	return append(result, parameter{&m.wo, &m.gwo}, parameter{&m.bo, &m.gbo})
}

func splitSteps(t domain.Tensor, sample int) [][]float64 {
	var data = t.Sample(sample)
	var steps = t.Shape[1]
	var features = t.Shape[2]
	var result = make([][]float64, steps)
	for i := range result {
		result[i] = data[i*features : (i+1)*features]
	}
	return result
}
