package trainer

import "math"

const DefaultPatience = 10

// EarlyStopping tracks the best validation loss of one configuration.
type EarlyStopping struct {
	Patience  int
	BestLoss  float64
	BestEpoch int
}

func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		BestLoss:  math.Inf(1),
		BestEpoch: 0,
	}
}

// Observe records the validation loss of epoch. The stop check runs after the improvement
// check, so an improving epoch never stops the training.
func (es *EarlyStopping) Observe(epoch int, loss float64) (improved, stop bool) {
	if loss < es.BestLoss {
		es.BestLoss = loss
		es.BestEpoch = epoch
		improved = true
	}
	stop = epoch-es.BestEpoch > es.Patience
	return improved, stop
}
