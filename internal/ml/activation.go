package ml

import (
	"fmt"
	"math"
)

type IActivationFn interface {
	Sigma(x float64) float64
	// PrimeFromOutput returns the derivative expressed through y = Sigma(x).
	PrimeFromOutput(y float64) float64
}

type TanhActivation struct{}

func (*TanhActivation) Sigma(x float64) float64 { return math.Tanh(x) }

func (*TanhActivation) PrimeFromOutput(y float64) float64 { return 1 - y*y }

type ReLuActivation struct{}

func (*ReLuActivation) Sigma(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func (*ReLuActivation) PrimeFromOutput(y float64) float64 {
	if y > 0 {
		return 1
	}
	return 0
}

func ActivationByName(name string) (IActivationFn, error) {
	switch name {
	case "", "tanh":
		return &TanhActivation{}, nil
	case "relu":
		return &ReLuActivation{}, nil
	}
	return nil, fmt.Errorf("unknown activation %q", name)
}
