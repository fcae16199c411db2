package trainer

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

type fakeModel struct {
	training  bool
	forwards  []bool
	backwards int
	onForward func()
}

func (m *fakeModel) Forward(encoder, decoder domain.Tensor) domain.Tensor {
	m.forwards = append(m.forwards, m.training)
	if m.onForward != nil {
		m.onForward()
	}
	return domain.NewTensor(1, 1, 1)
}

func (m *fakeModel) Backward(outputGrad domain.Tensor) { m.backwards++ }
func (m *fakeModel) SetTraining(training bool)         { m.training = training }
func (m *fakeModel) SaveState(w io.Writer) error       { return nil }
func (m *fakeModel) LoadState(r io.Reader) error       { return nil }

type fakeOptimizer struct {
	zeroGrads int
	steps     int
}

func (o *fakeOptimizer) ZeroGrad() { o.zeroGrads++ }
func (o *fakeOptimizer) Step()     { o.steps++ }

// targetLoss reports the first target value of the batch as its loss.
type targetLoss struct{}

func (targetLoss) Loss(predicted, target domain.Tensor) float64 { return target.Data[0] }
func (targetLoss) Gradient(predicted, target domain.Tensor) domain.Tensor {
	return domain.NewTensor(1, 1, 1)
}

func batchesWithLoss(losses ...float64) []domain.Batch {
	var result []domain.Batch
	for _, l := range losses {
		var target = domain.NewTensor(1, 1, 1)
		target.Data[0] = l
		result = append(result, domain.Batch{Target: target})
	}
	return result
}

func TestRunEpochSumsAndUpdates(t *testing.T) {
	var model = &fakeModel{}
	var opt = &fakeOptimizer{}
	var train = batchesWithLoss(1, 2, 3)
	var valid = batchesWithLoss(0.5, 0.25)

	var res, err = RunEpoch(context.Background(), 0, model, train, valid, targetLoss{}, opt)
	if err != nil {
		t.Fatal(err)
	}
	if res.Train != 6 {
		t.Error("train loss is a plain sum over batches", res.Train)
	}
	if res.Validation != 0.75 {
		t.Error("validation loss is a plain sum over batches", res.Validation)
	}
	if opt.steps != 3 || opt.zeroGrads != 3 || model.backwards != 3 {
		t.Error("expected one update per training batch", opt.steps, opt.zeroGrads, model.backwards)
	}
	var expectedModes = []bool{true, true, true, false, false}
	if len(model.forwards) != len(expectedModes) {
		t.Fatal("every batch must be processed", len(model.forwards))
	}
	for i := range expectedModes {
		if model.forwards[i] != expectedModes[i] {
			t.Error("wrong mode at forward", i)
		}
	}
}

func TestRunEpochCancelled(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	var model = &fakeModel{onForward: cancel}
	var opt = &fakeOptimizer{}

	var res, err = RunEpoch(ctx, 0, model, batchesWithLoss(1, 2, 3), batchesWithLoss(1), targetLoss{}, opt)
	if !errors.Is(err, context.Canceled) {
		t.Fatal("expected context.Canceled", err)
	}
	if opt.steps != 1 {
		t.Error("the batch in flight completes before cancellation is observed", opt.steps)
	}
	if res.Train != 1 {
		t.Error("unexpected partial sum", res.Train)
	}
}

func TestEarlyStoppingImprovingNeverStops(t *testing.T) {
	var es = NewEarlyStopping(DefaultPatience)
	for epoch := 0; epoch < 1000; epoch++ {
		var improved, stop = es.Observe(epoch, 100-float64(epoch)*0.01)
		if !improved || stop {
			t.Fatal("strictly improving sequence must not stop", epoch)
		}
	}
}

func TestEarlyStoppingFlatStopsAt11(t *testing.T) {
	var es = NewEarlyStopping(DefaultPatience)
	for epoch := 0; epoch < 100; epoch++ {
		var improved, stop = es.Observe(epoch, 1.0)
		if improved != (epoch == 0) {
			t.Error("only the first epoch improves", epoch)
		}
		if stop {
			if epoch != 11 {
				t.Error("expected stop at epoch 11", epoch)
			}
			return
		}
	}
	t.Error("flat sequence did not stop")
}

func TestEarlyStoppingPatienceWindow(t *testing.T) {
	var es = NewEarlyStopping(DefaultPatience)
	var losses = []float64{5, 4, 4, 4, 3}
	for epoch, l := range losses {
		es.Observe(epoch, l)
	}
	if es.BestEpoch != 4 || es.BestLoss != 3 {
		t.Errorf("unexpected state %+v", es)
	}
	for epoch := 5; epoch <= 14; epoch++ {
		if _, stop := es.Observe(epoch, 3); stop {
			t.Fatal("stopped inside patience window", epoch)
		}
	}
	if _, stop := es.Observe(15, 3); !stop {
		t.Error("expected stop when epoch - best > patience")
	}
}

func TestEarlyStoppingNaNNeverImproves(t *testing.T) {
	var es = NewEarlyStopping(DefaultPatience)
	var improved, _ = es.Observe(0, math.NaN())
	if improved {
		t.Error("NaN must not improve")
	}
}
