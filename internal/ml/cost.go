package ml

import "github.com/ChizhovVadim/rnnsearch/internal/domain"

type IModelCost interface {
	Cost(predicted, target float64) float64
	CostPrime(predicted, target float64) float64
}

type MSECost struct{}

func (*MSECost) Cost(predicted, target float64) float64 {
	var x = predicted - target
	return x * x
}

func (*MSECost) CostPrime(predicted, target float64) float64 {
	return 2 * (predicted - target)
}

type AbsCost struct{}

func (*AbsCost) Cost(predicted, target float64) float64 {
	var x = predicted - target
	if x < 0 {
		return -x
	}
	return x
}

func (*AbsCost) CostPrime(predicted, target float64) float64 {
	var x = predicted - target
	if x < 0 {
		return -1
	}
	return 1
}

// MeanLoss averages an element-wise cost over every tensor element.
type MeanLoss struct {
	Cost IModelCost
}

func NewMSELoss() *MeanLoss { return &MeanLoss{Cost: &MSECost{}} }

func (l *MeanLoss) Loss(predicted, target domain.Tensor) float64 {
	if len(predicted.Data) == 0 {
		return 0
	}
	var sum float64
	for i := range predicted.Data {
		sum += l.Cost.Cost(predicted.Data[i], target.Data[i])
	}
	return sum / float64(len(predicted.Data))
}

func (l *MeanLoss) Gradient(predicted, target domain.Tensor) domain.Tensor {
	var grad = domain.Tensor{
		Data:  make([]float64, len(predicted.Data)),
		Shape: predicted.Shape,
	}
	var n = float64(len(predicted.Data))
	for i := range predicted.Data {
		grad.Data[i] = l.Cost.CostPrime(predicted.Data[i], target.Data[i]) / n
	}
	return grad
}
