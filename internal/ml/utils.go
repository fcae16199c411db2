package ml

import (
	"math"
	"math/rand"
)

func InitUniform(rnd *rand.Rand, data []float64, max float64) {
	for i := range data {
		data[i] = (rnd.Float64() - 0.5) * 2 * max
	}
}

func MeanSquaredError(predicted, target []float64) float64 {
	var cost MSECost
	return meanCost(&cost, predicted, target)
}

func MeanAbsoluteError(predicted, target []float64) float64 {
	var cost AbsCost
	return meanCost(&cost, predicted, target)
}

// MeanAbs is the mean absolute value of data, NaN for empty input.
func MeanAbs(data []float64) float64 {
	var sum float64
	for _, x := range data {
		sum += math.Abs(x)
	}
	return sum / float64(len(data))
}

func meanCost(cost IModelCost, predicted, target []float64) float64 {
	var sum float64
	for i := range predicted {
		sum += cost.Cost(predicted[i], target[i])
	}
	return sum / float64(len(predicted))
}
