package ml

import (
	"math"
	"testing"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

func TestMeanLoss(t *testing.T) {
	var predicted = domain.Tensor{Data: []float64{1, 2, 3, 4}, Shape: [3]int{2, 2, 1}}
	var target = domain.Tensor{Data: []float64{1, 1, 1, 1}, Shape: [3]int{2, 2, 1}}
	var loss = NewMSELoss()
	if got := loss.Loss(predicted, target); got != 3.5 {
		t.Error("unexpected loss", got)
	}
	var grad = loss.Gradient(predicted, target)
	var expected = []float64{0, 0.5, 1, 1.5}
	for i := range expected {
		if grad.Data[i] != expected[i] {
			t.Fatal("unexpected gradient", grad.Data)
		}
	}
	if grad.Shape != predicted.Shape {
		t.Error("unexpected shape", grad.Shape)
	}
}

func TestAdamMovesAgainstGradient(t *testing.T) {
	var params = DefaultAdamParams()
	var m = NewMatrix(1, 2)
	var g = NewGradients(1, 2)
	g.Add(0, 0, 1)
	g.Add(0, 1, -1)
	g.Apply(&m, &params)
	if m.Get(0, 0) >= 0 || m.Get(0, 1) <= 0 {
		t.Error("unexpected update", m.Data)
	}
	if g.Data[0].Value != 0 || g.Data[1].Value != 0 {
		t.Error("gradients not cleared")
	}
}

func TestErrors(t *testing.T) {
	var predicted = []float64{2, 0}
	var target = []float64{1, 2}
	if MeanSquaredError(predicted, target) != 2.5 {
		t.Error("mse", MeanSquaredError(predicted, target))
	}
	if MeanAbsoluteError(predicted, target) != 1.5 {
		t.Error("mae", MeanAbsoluteError(predicted, target))
	}
	if MeanAbs([]float64{-1, 3}) != 2 || !math.IsNaN(MeanAbs(nil)) {
		t.Error("mean abs")
	}
}

func TestActivationByName(t *testing.T) {
	for _, name := range []string{"", "tanh", "relu"} {
		if _, err := ActivationByName(name); err != nil {
			t.Error(name, err)
		}
	}
	if _, err := ActivationByName("gelu"); err == nil {
		t.Error("expected error for unknown activation")
	}
}
