package network

import "github.com/ChizhovVadim/rnnsearch/internal/ml"

// Adam applies the accumulated gradients of one model.
type Adam struct {
	params     []parameter
	adamParams ml.AdamParams
}

func NewAdam(m *Model, adamParams ml.AdamParams) *Adam {
	return &Adam{
		params:     m.parameters(),
		adamParams: adamParams,
	}
}

func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.gradients.Reset()
	}
}

func (a *Adam) Step() {
	for _, p := range a.params {
		p.gradients.Apply(p.weights, &a.adamParams)
	}
}
