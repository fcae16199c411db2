// Package config holds experiment parameters of a hyperparameter search.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Columns names the CSV columns used by the dataset formatter.
type Columns struct {
	ID       string   `yaml:"id"`
	Time     string   `yaml:"time"`
	// Split is the column compared with the split boundaries, Time when empty.
	Split    string   `yaml:"split"`
	Target   string   `yaml:"target"`
	Known    []string `yaml:"known_inputs"`
	Observed []string `yaml:"observed_inputs"`
}

// Experiment is the configuration of one experiment (dataset + search grid).
type Experiment struct {
	Name     string  `yaml:"name"`
	DataPath string  `yaml:"data_path"`
	Columns  Columns `yaml:"columns"`

	ValidBoundary int `yaml:"valid_boundary"`
	TestBoundary  int `yaml:"test_boundary"`

	TotalTimeSteps  int `yaml:"total_time_steps"`
	NumEncoderSteps int `yaml:"num_encoder_steps"`
	TrainSamples    int `yaml:"train_samples"`
	ValidSamples    int `yaml:"valid_samples"`

	NumEpochs     int     `yaml:"num_epochs"`
	Patience      int     `yaml:"patience"`
	MinibatchSize []int   `yaml:"minibatch_size"`
	HiddenSizes   []int   `yaml:"hidden_layer_size"`
	StackSizes    []int   `yaml:"stack_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	DropoutRate   float64 `yaml:"dropout_rate"`
	Activation    string  `yaml:"activation"`

	// LedgerPath is a SQLite file recording every run and trial, empty disables it.
	LedgerPath string `yaml:"ledger_path"`
	// Report enables the loss curve plot next to the checkpoints.
	Report bool `yaml:"report"`
}

// Default returns the parameters of a known experiment, or generic ones.
func Default(name string) *Experiment {
	var cfg = &Experiment{
		Name:     name,
		DataPath: name + ".csv",
		Columns: Columns{
			ID:     "id",
			Time:   "time",
			Target: "target",
		},
		TotalTimeSteps:  192,
		NumEncoderSteps: 168,
		TrainSamples:    450000,
		ValidSamples:    50000,
		NumEpochs:       50,
		Patience:        10,
		MinibatchSize:   []int{256},
		HiddenSizes:     []int{16, 32, 64},
		StackSizes:      []int{1, 2},
		LearningRate:    0.001,
		Activation:      "tanh",
		LedgerPath:      "search_ledger.db",
		Report:          true,
	}
	switch name {
	case "electricity":
		cfg.Columns = Columns{
			ID:       "id",
			Time:     "hours_from_start",
			Split:    "days_from_start",
			Target:   "power_usage",
			Known:    []string{"hour", "day_of_week", "hours_from_start"},
			Observed: nil,
		}
		cfg.ValidBoundary = 1315
		cfg.TestBoundary = 1339
	case "traffic":
		cfg.Columns = Columns{
			ID:     "id",
			Time:   "hours_from_start",
			Split:  "sensor_day",
			Target: "values",
			Known:  []string{"time_on_day", "day_of_week", "hours_from_start"},
		}
		cfg.ValidBoundary = 151
		cfg.TestBoundary = 166
		cfg.TrainSamples = 50000
		cfg.ValidSamples = 5000
	}
	return cfg
}

// Load overlays a YAML file on the defaults of the experiment.
func Load(path, name string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg = Default(name)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SeqLen is the decoder horizon.
func (e *Experiment) SeqLen() int {
	return e.TotalTimeSteps - e.NumEncoderSteps
}

func (e *Experiment) BatchSize() int {
	return e.MinibatchSize[0]
}

// HyperParameters returns the search axes ordered as stack size, hidden size.
func (e *Experiment) HyperParameters() [][]int {
	return [][]int{e.StackSizes, e.HiddenSizes}
}

func (e *Experiment) Validate() error {
	var errs []error
	if e.Columns.ID == "" || e.Columns.Time == "" || e.Columns.Target == "" {
		errs = append(errs, errors.New("columns id, time and target are required"))
	}
	if e.NumEncoderSteps < 1 || e.TotalTimeSteps <= e.NumEncoderSteps {
		errs = append(errs, fmt.Errorf("total_time_steps %v must exceed num_encoder_steps %v",
			e.TotalTimeSteps, e.NumEncoderSteps))
	}
	if e.TestBoundary < e.ValidBoundary {
		errs = append(errs, errors.New("test_boundary must not precede valid_boundary"))
	}
	if e.NumEpochs < 1 {
		errs = append(errs, errors.New("num_epochs must be positive"))
	}
	if e.Patience < 0 {
		errs = append(errs, errors.New("patience must not be negative"))
	}
	if len(e.MinibatchSize) == 0 || e.MinibatchSize[0] < 1 {
		errs = append(errs, errors.New("minibatch_size must be positive"))
	}
	if len(e.HiddenSizes) == 0 || len(e.StackSizes) == 0 {
		errs = append(errs, errors.New("hidden_layer_size and stack_size need candidates"))
	}
	for _, v := range append(append([]int(nil), e.HiddenSizes...), e.StackSizes...) {
		if v < 1 {
			errs = append(errs, fmt.Errorf("hyperparameter candidate %v must be positive", v))
		}
	}
	if e.DropoutRate < 0 || e.DropoutRate >= 1 {
		errs = append(errs, fmt.Errorf("dropout_rate %v out of range [0, 1)", e.DropoutRate))
	}
	if e.TrainSamples < 1 || e.ValidSamples < 1 {
		errs = append(errs, errors.New("sample limits must be positive"))
	}
	return errors.Join(errs...)
}
