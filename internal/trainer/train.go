package trainer

import (
	"context"
	"log"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

// EpochLoss holds plain sums of per-batch losses, so values scale with the batch count.
type EpochLoss struct {
	Train      float64
	Validation float64
}

// RunEpoch makes one training pass with a parameter update per batch, then one validation pass.
// ctx is checked after every batch; on cancellation the partial sums and ctx.Err() are returned.
func RunEpoch(
	ctx context.Context,
	epoch int,
	model domain.IModel,
	training []domain.Batch,
	validation []domain.Batch,
	loss domain.ILoss,
	optimizer domain.IOptimizer,
) (EpochLoss, error) {
	var result EpochLoss

	model.SetTraining(true)
	for i := range training {
		var batch = &training[i]
		var output = model.Forward(batch.Encoder, batch.Decoder)
		result.Train += loss.Loss(output, batch.Target)
		optimizer.ZeroGrad()
		model.Backward(loss.Gradient(output, batch.Target))
		optimizer.Step()
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	log.Printf("Train epoch: %v, loss: %.4f\n", epoch, result.Train)

	model.SetTraining(false)
	for i := range validation {
		var batch = &validation[i]
		var output = model.Forward(batch.Encoder, batch.Decoder)
		result.Validation += loss.Loss(output, batch.Target)
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	log.Printf("Validation loss: %.4f\n", result.Validation)

	return result, nil
}
