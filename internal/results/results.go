package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/ChizhovVadim/rnnsearch/internal/utils"
)

// RunResult is the outcome of one search run, keyed by "<name>_<seed>".
type RunResult struct {
	Key        string
	RMSE       float64
	MAE        float64
	HiddenSize int
}

func RunKey(name string, seed int) string {
	return fmt.Sprintf("%v_%v", name, seed)
}

// Summary is the content of both result files after a merge.
type Summary struct {
	Errors  map[string][]float64
	Configs map[string][]float64
}

// Store appends run results to cumulative JSON files. It supports a single writer only.
type Store struct {
	ErrorsPath  string
	ConfigsPath string
}

func NewStore(dir, experiment string, seqLen int) *Store {
	return &Store{
		ErrorsPath:  filepath.Join(dir, fmt.Sprintf("errors_%v_%v.json", experiment, seqLen)),
		ConfigsPath: filepath.Join(dir, fmt.Sprintf("configs_%v_%v.json", experiment, seqLen)),
	}
}

func (s *Store) Save(r RunResult) (Summary, error) {
	var errs, err = Merge(s.ErrorsPath, r.Key, round5(r.RMSE), round5(r.MAE))
	if err != nil {
		return Summary{}, err
	}
	configs, err := Merge(s.ConfigsPath, r.Key, float64(r.HiddenSize))
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Errors:  errs,
		Configs: configs,
	}, nil
}

// Merge appends values under key in the JSON object stored at path, creating the file if absent.
func Merge(path, key string, values ...float64) (map[string][]float64, error) {
	var store = make(map[string][]float64)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &store); err != nil {
			return nil, fmt.Errorf("parse result file %v: %w", path, err)
		}
		if store == nil {
			store = make(map[string][]float64)
		}
	}
	store[key] = append(store[key], values...)

	data, err = json.Marshal(store)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return nil, err
	}
	return store, nil
}

func round5(x float64) float64 {
	return math.Round(x*1e5) / 1e5
}
