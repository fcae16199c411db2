package evaluate

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/ChizhovVadim/rnnsearch/internal/checkpoint"
	"github.com/ChizhovVadim/rnnsearch/internal/domain"
	"github.com/ChizhovVadim/rnnsearch/internal/ml"
)

type Metrics struct {
	RMSE float64
	MAE  float64
}

// Buffer is a zero-initialized [batches, rows, cols] array of original-scale values.
type Buffer struct {
	Data    []float64
	Batches int
	Rows    int
	Cols    int
}

func NewBuffer(batches, rows, cols int) Buffer {
	return Buffer{
		Data:    make([]float64, batches*rows*cols),
		Batches: batches,
		Rows:    rows,
		Cols:    cols,
	}
}

func (b *Buffer) Row(batch, row int) []float64 {
	var offset = (batch*b.Rows + row) * b.Cols
	return b.Data[offset : offset+b.Cols]
}

type ICheckpointLoader interface {
	LoadBest() (checkpoint.Best, error)
}

type Evaluator struct {
	Factory     domain.IModelFactory
	Checkpoints ICheckpointLoader
	Formatter   domain.IFormatter
}

// Evaluate restores the best checkpoint into a fresh model of config and scores it on test.
func (e *Evaluator) Evaluate(config domain.Configuration, test []domain.Batch) (Metrics, error) {
	model, _, err := e.Factory.NewModel(config)
	if err != nil {
		return Metrics{}, err
	}
	defer release(model)
	best, err := e.Checkpoints.LoadBest()
	if err != nil {
		return Metrics{}, err
	}
	if err := model.LoadState(bytes.NewReader(best.ModelState)); err != nil {
		return Metrics{}, fmt.Errorf("load best checkpoint: %w", err)
	}
	model.SetTraining(false)

	predictions, targets, err := Collect(model, test, e.Formatter)
	if err != nil {
		return Metrics{}, err
	}
	var metrics = Score(predictions, targets)
	log.Printf("test error for best config %.4f\n", metrics.RMSE)
	return metrics, nil
}

// Collect runs inference on every batch and stores original-scale predictions and targets.
// Rows past the formatted row count of a batch stay zero.
func Collect(model domain.IModel, test []domain.Batch, formatter domain.IFormatter) (Buffer, Buffer, error) {
	var maxRows, cols int
	for i := range test {
		maxRows = max(maxRows, test[i].Size())
		var shape = test[i].Target.Shape
		cols = max(cols, shape[1]*shape[2])
	}
	var predictions = NewBuffer(len(test), maxRows, cols)
	var targets = NewBuffer(len(test), maxRows, cols)

	for j := range test {
		var batch = &test[j]
		var output = model.Forward(batch.Encoder, batch.Decoder)
		forecast, err := formatter.FormatPredictions(toFrame(output, batch.Identifiers))
		if err != nil {
			return Buffer{}, Buffer{}, err
		}
		if forecast.Rows() == 0 {
			continue
		}
		if err := fill(&predictions, j, forecast); err != nil {
			return Buffer{}, Buffer{}, err
		}
		actual, err := formatter.FormatPredictions(toFrame(batch.Target, batch.Identifiers))
		if err != nil {
			return Buffer{}, Buffer{}, err
		}
		if err := fill(&targets, j, actual); err != nil {
			return Buffer{}, Buffer{}, err
		}
	}
	return predictions, targets, nil
}

// Score normalizes both errors by the mean absolute target over the whole buffer, padding
// included. A zero normalizer gives a non-finite result.
func Score(predictions, targets Buffer) Metrics {
	var normaliser = ml.MeanAbs(targets.Data)
	return Metrics{
		RMSE: math.Sqrt(ml.MeanSquaredError(predictions.Data, targets.Data)) / normaliser,
		MAE:  ml.MeanAbsoluteError(predictions.Data, targets.Data) / normaliser,
	}
}

func fill(buffer *Buffer, batch int, frame domain.Frame) error {
	if frame.Rows() > buffer.Rows {
		return fmt.Errorf("batch %v: %v rows exceed buffer capacity %v", batch, frame.Rows(), buffer.Rows)
	}
	for i, values := range frame.Values {
		if len(values) != buffer.Cols {
			return fmt.Errorf("batch %v: expected %v columns, got %v", batch, buffer.Cols, len(values))
		}
		copy(buffer.Row(batch, i), values)
	}
	return nil
}

func release(model domain.IModel) {
	if closer, ok := model.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Println("release model", err)
		}
	}
}

func toFrame(t domain.Tensor, identifiers []string) domain.Frame {
	var frame = domain.Frame{
		Identifiers: identifiers,
		Values:      make([][]float64, t.Samples()),
	}
	for i := range frame.Values {
		frame.Values[i] = append([]float64(nil), t.Sample(i)...)
	}
	return frame
}
