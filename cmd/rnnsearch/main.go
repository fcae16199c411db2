package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/ChizhovVadim/rnnsearch/internal/checkpoint"
	"github.com/ChizhovVadim/rnnsearch/internal/config"
	"github.com/ChizhovVadim/rnnsearch/internal/configspace"
	"github.com/ChizhovVadim/rnnsearch/internal/dataset"
	"github.com/ChizhovVadim/rnnsearch/internal/evaluate"
	"github.com/ChizhovVadim/rnnsearch/internal/ledger"
	"github.com/ChizhovVadim/rnnsearch/internal/ml"
	"github.com/ChizhovVadim/rnnsearch/internal/network"
	"github.com/ChizhovVadim/rnnsearch/internal/report"
	"github.com/ChizhovVadim/rnnsearch/internal/results"
	"github.com/ChizhovVadim/rnnsearch/internal/search"
	"github.com/ChizhovVadim/rnnsearch/internal/utils"
)

type Config struct {
	name           string
	expName        string
	device         string
	seed           int
	totalTimeSteps int
	configPath     string
	dataPath       string
	outPath        string
}

var cliArgs Config

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flag.StringVar(&cliArgs.name, "name", "lstm", "Run name")
	flag.StringVar(&cliArgs.expName, "exp_name", "electricity", "Experiment name")
	flag.StringVar(&cliArgs.device, "device", "cuda:0", "Compute device")
	flag.IntVar(&cliArgs.seed, "seed", 21, "Random seed")
	flag.IntVar(&cliArgs.totalTimeSteps, "total_time_steps", 264, "Encoder and decoder steps")
	flag.StringVar(&cliArgs.configPath, "config", "", "Path to experiment YAML")
	flag.StringVar(&cliArgs.dataPath, "data", "", "Path to dataset CSV")
	flag.StringVar(&cliArgs.outPath, "out", ".", "Output directory")
	flag.Parse()

	log.Printf("%+v", cliArgs)

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err = run(ctx)
	if err != nil {
		log.Fatal(err)
	}
}

func loadExperiment() (*config.Experiment, error) {
	var exp *config.Experiment
	if cliArgs.configPath == "" {
		exp = config.Default(cliArgs.expName)
	} else {
		var err error
		exp, err = config.Load(utils.MapPath(cliArgs.configPath), cliArgs.expName)
		if err != nil {
			return nil, err
		}
	}
	exp.TotalTimeSteps = cliArgs.totalTimeSteps
	if cliArgs.dataPath != "" {
		exp.DataPath = cliArgs.dataPath
	}
	exp.DataPath = utils.MapPath(exp.DataPath)
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("experiment %v: %w", exp.Name, err)
	}
	return exp, nil
}

func run(ctx context.Context) error {
	exp, err := loadExperiment()
	if err != nil {
		return err
	}
	log.Printf("%+v", *exp)
	log.Println("device", "requested", cliArgs.device, "using", "cpu")

	var rnd = rand.New(rand.NewSource(int64(cliArgs.seed)))
	var outDir = utils.MapPath(cliArgs.outPath)

	table, err := dataset.LoadCSV(exp.DataPath, exp.Columns)
	if err != nil {
		return err
	}
	train, valid, test := dataset.Split(table,
		float64(exp.ValidBoundary), float64(exp.TestBoundary), exp.NumEncoderSteps)
	var formatter = dataset.NewFormatter(train, exp.TrainSamples, exp.ValidSamples)
	if train, err = formatter.Transform(train); err != nil {
		return err
	}
	if valid, err = formatter.Transform(valid); err != nil {
		return err
	}
	if test, err = formatter.Transform(test); err != nil {
		return err
	}

	var layout = dataset.Layout{
		TotalSteps:   exp.TotalTimeSteps,
		EncoderSteps: exp.NumEncoderSteps,
		Known:        len(exp.Columns.Known),
		Observed:     len(exp.Columns.Observed),
	}
	var trainMax, validMax = formatter.NumSamples()
	var provider = &dataset.Provider{
		Layout:       layout,
		BatchSize:    exp.BatchSize(),
		TrainSamples: trainMax,
		ValidSamples: validMax,
	}
	splits, err := provider.Prepare(ctx, train, valid, test, rnd)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("interrupted before search")
			return nil
		}
		return err
	}

	var runID = uuid.New().String()
	var modelsDir = filepath.Join(outDir, fmt.Sprintf("models_%v_%v", exp.Name, exp.SeqLen()))
	checkpointer, err := checkpoint.New(modelsDir, cliArgs.name, cliArgs.seed, runID)
	if err != nil {
		return err
	}

	configs, err := configspace.Generate(exp.HyperParameters(), rnd)
	if err != nil {
		return err
	}

	var adam = ml.DefaultAdamParams()
	adam.LearningRate = exp.LearningRate
	var factory = &network.Factory{
		EncoderInputs: layout.EncoderInputs(),
		DecoderInputs: layout.DecoderInputs(),
		Outputs:       1,
		Activation:    exp.Activation,
		Dropout:       exp.DropoutRate,
		Adam:          adam,
		Rnd:           rnd,
	}

	var runLedger *ledger.Ledger
	if exp.LedgerPath != "" {
		runLedger, err = ledger.Open(filepath.Join(outDir, exp.LedgerPath))
		if err != nil {
			return err
		}
		defer runLedger.Close()
		_, err = runLedger.BeginRun(ledger.RunInfo{
			RunID:      runID,
			Name:       cliArgs.name,
			Experiment: exp.Name,
			Seed:       cliArgs.seed,
			SeqLen:     exp.SeqLen(),
		})
		if err != nil {
			return err
		}
	}

	var s = &search.Search{
		Configs:      configs,
		MaxEpochs:    exp.NumEpochs,
		Patience:     exp.Patience,
		Factory:      factory,
		Loss:         ml.NewMSELoss(),
		Checkpointer: checkpointer,
		Training:     splits.Train,
		Validation:   splits.Validation,
	}
	if runLedger != nil {
		s.OnTrial = func(trial search.Trial) error {
			return runLedger.RecordTrial(runID, trial)
		}
	}

	var finish = func(status string, best search.State, metrics evaluate.Metrics) error {
		if runLedger == nil {
			return nil
		}
		return runLedger.FinishRun(runID, status, best.BestConfig, metrics)
	}

	result, err := s.Run(ctx)
	if exp.Report && len(result.Trials) != 0 {
		var plotPath = filepath.Join(modelsDir, fmt.Sprintf("%v_%v_loss.png", cliArgs.name, cliArgs.seed))
		if err := report.LossCurves(plotPath, result.Trials); err != nil {
			log.Println("loss curves", err)
		}
	}
	if err != nil {
		return errors.Join(err, finish(ledger.StatusFailed, result.State, evaluate.Metrics{}))
	}
	if result.Interrupted {
		log.Println("search interrupted", "resume checkpoint", checkpointer.ResumePath())
		return finish(ledger.StatusInterrupted, result.State, evaluate.Metrics{})
	}

	var evaluator = &evaluate.Evaluator{
		Factory:     factory,
		Checkpoints: checkpointer,
		Formatter:   formatter,
	}
	metrics, err := evaluator.Evaluate(result.State.BestConfig, splits.Test)
	if err != nil {
		return errors.Join(err, finish(ledger.StatusFailed, result.State, evaluate.Metrics{}))
	}
	log.Println("best config", result.State.BestConfig,
		"rmse", metrics.RMSE,
		"mae", metrics.MAE)

	var store = results.NewStore(outDir, exp.Name, exp.SeqLen())
	_, err = store.Save(results.RunResult{
		Key:        results.RunKey(cliArgs.name, cliArgs.seed),
		RMSE:       metrics.RMSE,
		MAE:        metrics.MAE,
		HiddenSize: result.State.BestConfig.HiddenSize(),
	})
	if err != nil {
		return errors.Join(err, finish(ledger.StatusFailed, result.State, metrics))
	}
	return finish(ledger.StatusCompleted, result.State, metrics)
}
