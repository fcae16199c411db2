package network

import (
	"fmt"
	"math/rand"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
	"github.com/ChizhovVadim/rnnsearch/internal/ml"
)

// Factory builds a fresh model and optimizer for each configuration.
// Rnd is shared by every model built, so initialization depends on the build order.
type Factory struct {
	EncoderInputs int
	DecoderInputs int
	Outputs       int
	Activation    string
	Dropout       float64
	Adam          ml.AdamParams
	Rnd           *rand.Rand
}

func (f *Factory) NewModel(config domain.Configuration) (domain.IModel, domain.IOptimizer, error) {
	var m, err = f.Build(config)
	if err != nil {
		return nil, nil, err
	}
	return m, NewAdam(m, f.Adam), nil
}

func (f *Factory) Build(config domain.Configuration) (*Model, error) {
	if len(config) <= domain.AxisHiddenSize {
		return nil, fmt.Errorf("configuration %v: expected stack size and hidden size", config)
	}
	if config.StackSize() < 1 || config.HiddenSize() < 1 {
		return nil, fmt.Errorf("configuration %v: stack size and hidden size must be positive", config)
	}
	activationFn, err := ml.ActivationByName(f.Activation)
	if err != nil {
		return nil, err
	}
	var topology = Topology{
		EncoderInputs: uint32(f.EncoderInputs),
		DecoderInputs: uint32(f.DecoderInputs),
		Outputs:       uint32(f.Outputs),
		Hidden:        uint32(config.HiddenSize()),
		Layers:        uint32(config.StackSize()),
	}
	return NewModel(topology, activationFn, f.Dropout, f.Rnd).InitWeights(f.Rnd), nil
}
