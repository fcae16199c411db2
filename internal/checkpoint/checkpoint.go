package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
	"github.com/ChizhovVadim/rnnsearch/internal/utils"
)

var ErrNotFound = errors.New("checkpoint: not found")

type Best struct {
	RunID      string    `json:"run_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModelState []byte    `json:"model_state_dict"`
}

type Resume struct {
	RunID      string               `json:"run_id,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	Epoch      int                  `json:"epoch"`
	ModelState []byte               `json:"model_state_dict"`
	ConfigNum  int                  `json:"config_num"`
	BestConfig domain.Configuration `json:"best_config"`
}

// Checkpointer persists model states of one run into a models folder.
type Checkpointer struct {
	dir     string
	runName string
	seed    int
	runID   string
}

func New(dir, runName string, seed int, runID string) (*Checkpointer, error) {
	var err = os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return nil, err
	}
	return &Checkpointer{
		dir:     dir,
		runName: runName,
		seed:    seed,
		runID:   runID,
	}, nil
}

func (c *Checkpointer) Dir() string { return c.dir }

func (c *Checkpointer) BestPath() string {
	return filepath.Join(c.dir, fmt.Sprintf("%v_%v", c.runName, c.seed))
}

func (c *Checkpointer) ResumePath() string {
	return filepath.Join(c.dir, fmt.Sprintf("%v_continue", c.runName))
}

// SaveBest overwrites the best-so-far checkpoint of the run.
func (c *Checkpointer) SaveBest(modelState []byte) error {
	return writeJSON(c.BestPath(), &Best{
		RunID:      c.runID,
		CreatedAt:  time.Now().UTC(),
		ModelState: modelState,
	})
}

// SaveResume writes the checkpoint used to continue an interrupted search.
func (c *Checkpointer) SaveResume(modelState []byte, epoch, configNum int, bestConfig domain.Configuration) error {
	return writeJSON(c.ResumePath(), &Resume{
		RunID:      c.runID,
		CreatedAt:  time.Now().UTC(),
		Epoch:      epoch,
		ModelState: modelState,
		ConfigNum:  configNum,
		BestConfig: bestConfig,
	})
}

func (c *Checkpointer) LoadBest() (Best, error) {
	var best Best
	var err = readJSON(c.BestPath(), &best)
	return best, err
}

func (c *Checkpointer) LoadResume() (Resume, error) {
	var resume Resume
	var err = readJSON(c.ResumePath(), &resume)
	return resume, err
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrNotFound, path)
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse checkpoint %v: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, data)
}
