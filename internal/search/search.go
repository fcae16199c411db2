package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
	"github.com/ChizhovVadim/rnnsearch/internal/trainer"
)

var ErrNoBestConfig = errors.New("search: no configuration produced a finite validation loss")

// State is the best result across all configurations tried so far.
type State struct {
	BestValLoss     float64
	BestConfig      domain.Configuration
	BestConfigIndex int
}

type Trial struct {
	Index        int
	Config       domain.Configuration
	BestValLoss  float64
	BestEpoch    int
	Epochs       int
	StoppedEarly bool
	History      []trainer.EpochLoss
}

type Result struct {
	State       State
	Trials      []Trial
	Interrupted bool
}

type ICheckpointer interface {
	SaveBest(modelState []byte) error
	SaveResume(modelState []byte, epoch, configNum int, bestConfig domain.Configuration) error
}

type Search struct {
	Configs      []domain.Configuration
	MaxEpochs    int
	Patience     int
	Factory      domain.IModelFactory
	Loss         domain.ILoss
	Checkpointer ICheckpointer
	Training     []domain.Batch
	Validation   []domain.Batch
	// OnTrial is called after every finished or interrupted configuration, optional.
	OnTrial func(Trial) error
}

// Run trains every configuration in order and keeps the best one.
// An interrupted search writes the resume checkpoint and returns Result.Interrupted with nil error.
func (s *Search) Run(ctx context.Context) (Result, error) {
	log.Println("number of config:", len(s.Configs))
	var result = Result{
		State: State{
			BestValLoss:     math.Inf(1),
			BestConfigIndex: -1,
		},
	}
	for i, config := range s.Configs {
		log.Printf("config %v: %v\n", i+1, config)
		var trial, interrupted, err = s.runConfig(ctx, i, config, &result.State)
		if err != nil {
			return result, err
		}
		result.Trials = append(result.Trials, trial)
		if !interrupted {
			log.Printf("val loss: %.4f\n", trial.BestValLoss)
			log.Printf("best config so far: %v\n", result.State.BestConfig)
		}
		if s.OnTrial != nil {
			if err := s.OnTrial(trial); err != nil {
				return result, err
			}
		}
		if interrupted {
			result.Interrupted = true
			return result, nil
		}
	}
	if result.State.BestConfig == nil {
		return result, ErrNoBestConfig
	}
	return result, nil
}

func (s *Search) runConfig(
	ctx context.Context,
	index int,
	config domain.Configuration,
	state *State,
) (Trial, bool, error) {
	var trial = Trial{
		Index:  index,
		Config: config,
	}
	model, optimizer, err := s.Factory.NewModel(config)
	if err != nil {
		return trial, false, fmt.Errorf("config %v: %w", config, err)
	}
	defer release(model)

	var earlyStopping = trainer.NewEarlyStopping(s.Patience)
	for epoch := 0; epoch < s.MaxEpochs; epoch++ {
		if ctx.Err() != nil {
			return trial, true, s.interrupt(model, epoch, index, state.BestConfig)
		}
		loss, err := trainer.RunEpoch(ctx, epoch, model, s.Training, s.Validation, s.Loss, optimizer)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return trial, true, s.interrupt(model, epoch, index, state.BestConfig)
			}
			return trial, false, err
		}
		trial.History = append(trial.History, loss)
		trial.Epochs = epoch + 1

		var improved, stop = earlyStopping.Observe(epoch, loss.Validation)
		trial.BestValLoss = earlyStopping.BestLoss
		trial.BestEpoch = earlyStopping.BestEpoch
		if improved && earlyStopping.BestLoss < state.BestValLoss {
			state.BestValLoss = earlyStopping.BestLoss
			state.BestConfig = config
			state.BestConfigIndex = index
			modelState, err := snapshot(model)
			if err != nil {
				return trial, false, err
			}
			if err := s.Checkpointer.SaveBest(modelState); err != nil {
				return trial, false, fmt.Errorf("save best checkpoint: %w", err)
			}
		}
		if stop {
			trial.StoppedEarly = true
			break
		}
	}
	if trial.Epochs == 0 {
		trial.BestValLoss = math.Inf(1)
	}
	return trial, false, nil
}

// interrupt persists enough state to continue the search later.
// Before any configuration has become best, the first configuration is recorded as best.
func (s *Search) interrupt(model domain.IModel, epoch, configNum int, bestConfig domain.Configuration) error {
	if bestConfig == nil {
		bestConfig = s.Configs[0]
	}
	log.Println("search interrupted", "config", configNum+1, "epoch", epoch)
	modelState, err := snapshot(model)
	if err != nil {
		return err
	}
	if err := s.Checkpointer.SaveResume(modelState, epoch, configNum, bestConfig); err != nil {
		return fmt.Errorf("save resume checkpoint: %w", err)
	}
	return nil
}

func snapshot(model domain.IModel) ([]byte, error) {
	var buf bytes.Buffer
	if err := model.SaveState(&buf); err != nil {
		return nil, fmt.Errorf("snapshot model: %w", err)
	}
	return buf.Bytes(), nil
}

func release(model domain.IModel) {
	if closer, ok := model.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Println("release model", err)
		}
	}
}
