package network

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
	"github.com/ChizhovVadim/rnnsearch/internal/ml"
)

func randomTensor(rnd *rand.Rand, a, b, c int) domain.Tensor {
	var t = domain.NewTensor(a, b, c)
	for i := range t.Data {
		t.Data[i] = rnd.Float64()*2 - 1
	}
	return t
}

func testFactory(rnd *rand.Rand) *Factory {
	return &Factory{
		EncoderInputs: 3,
		DecoderInputs: 2,
		Outputs:       1,
		Adam:          ml.DefaultAdamParams(),
		Rnd:           rnd,
	}
}

func TestGradientCheck(t *testing.T) {
	var rnd = rand.New(rand.NewSource(1))
	var m, err = testFactory(rnd).Build(domain.Configuration{2, 4})
	if err != nil {
		t.Fatal(err)
	}
	var enc = randomTensor(rnd, 2, 4, 3)
	var dec = randomTensor(rnd, 2, 3, 2)
	var target = randomTensor(rnd, 2, 3, 1)
	var loss = ml.NewMSELoss()

	var out = m.Forward(enc, dec)
	m.Backward(loss.Gradient(out, target))

	const eps = 1e-6
	for pi, p := range m.parameters() {
		for i := range p.weights.Data {
			var orig = p.weights.Data[i]
			p.weights.Data[i] = orig + eps
			var plus = loss.Loss(m.Forward(enc, dec), target)
			p.weights.Data[i] = orig - eps
			var minus = loss.Loss(m.Forward(enc, dec), target)
			p.weights.Data[i] = orig

			var numeric = (plus - minus) / (2 * eps)
			var analytic = p.gradients.Data[i].Value
			if math.Abs(numeric-analytic) > 1e-6+1e-4*math.Abs(numeric) {
				t.Fatalf("parameter %v index %v: numeric %v analytic %v", pi, i, numeric, analytic)
			}
		}
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	var rnd = rand.New(rand.NewSource(7))
	var factory = testFactory(rnd)
	factory.Adam.LearningRate = 0.01
	var model, opt, err = factory.NewModel(domain.Configuration{1, 8})
	if err != nil {
		t.Fatal(err)
	}
	var enc = randomTensor(rnd, 8, 5, 3)
	var dec = randomTensor(rnd, 8, 2, 2)
	var target = randomTensor(rnd, 8, 2, 1)
	var loss = ml.NewMSELoss()

	model.SetTraining(true)
	var first = loss.Loss(model.Forward(enc, dec), target)
	var last float64
	for i := 0; i < 200; i++ {
		var out = model.Forward(enc, dec)
		last = loss.Loss(out, target)
		opt.ZeroGrad()
		model.Backward(loss.Gradient(out, target))
		opt.Step()
	}
	if !(last < first/2) {
		t.Error("loss did not decrease", first, last)
	}
}

func TestStateRoundTrip(t *testing.T) {
	var rnd = rand.New(rand.NewSource(3))
	var factory = testFactory(rnd)
	var a, err = factory.Build(domain.Configuration{2, 5})
	if err != nil {
		t.Fatal(err)
	}
	b, err := factory.Build(domain.Configuration{2, 5})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := a.SaveState(&buf); err != nil {
		t.Fatal(err)
	}
	if err := b.LoadState(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}

	var enc = randomTensor(rnd, 3, 4, 3)
	var dec = randomTensor(rnd, 3, 2, 2)
	var outA = a.Forward(enc, dec)
	var outB = b.Forward(enc, dec)
	for i := range outA.Data {
		if outA.Data[i] != outB.Data[i] {
			t.Fatal("outputs differ after state load", i, outA.Data[i], outB.Data[i])
		}
	}
}

func TestLoadStateTopologyMismatch(t *testing.T) {
	var rnd = rand.New(rand.NewSource(3))
	var factory = testFactory(rnd)
	var a, _ = factory.Build(domain.Configuration{1, 5})
	var b, _ = factory.Build(domain.Configuration{1, 6})

	var buf bytes.Buffer
	if err := a.SaveState(&buf); err != nil {
		t.Fatal(err)
	}
	var err = b.LoadState(&buf)
	if !errors.Is(err, ErrBadFormat) {
		t.Error("expected ErrBadFormat", err)
	}
}

func TestDropoutOnlyInTraining(t *testing.T) {
	var rnd = rand.New(rand.NewSource(11))
	var factory = testFactory(rnd)
	factory.Dropout = 0.5
	var m, err = factory.Build(domain.Configuration{1, 16})
	if err != nil {
		t.Fatal(err)
	}
	var enc = randomTensor(rnd, 2, 3, 3)
	var dec = randomTensor(rnd, 2, 2, 2)

	m.SetTraining(false)
	var first = m.Forward(enc, dec)
	var second = m.Forward(enc, dec)
	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatal("evaluation mode must be deterministic")
		}
	}

	m.SetTraining(true)
	var noisy = m.Forward(enc, dec)
	var same = true
	for i := range first.Data {
		if noisy.Data[i] != first.Data[i] {
			same = false
		}
	}
	if same {
		t.Error("training mode should apply dropout")
	}
}
