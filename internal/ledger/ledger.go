// Package ledger records search runs, trials and epoch losses in SQLite.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
	"github.com/ChizhovVadim/rnnsearch/internal/evaluate"
	"github.com/ChizhovVadim/rnnsearch/internal/search"
	"github.com/ChizhovVadim/rnnsearch/internal/trainer"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	experiment   TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	seq_len      INTEGER NOT NULL,
	status       TEXT NOT NULL,
	best_config  TEXT,
	rmse         REAL,
	mae          REAL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS trials (
	run_id        TEXT NOT NULL,
	trial_index   INTEGER NOT NULL,
	config        TEXT NOT NULL,
	best_val_loss REAL,
	best_epoch    INTEGER NOT NULL,
	epochs        INTEGER NOT NULL,
	stopped_early INTEGER NOT NULL,
	PRIMARY KEY (run_id, trial_index),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS epochs (
	run_id      TEXT NOT NULL,
	trial_index INTEGER NOT NULL,
	epoch       INTEGER NOT NULL,
	train_loss  REAL,
	valid_loss  REAL,
	PRIMARY KEY (run_id, trial_index, epoch),
	FOREIGN KEY (run_id, trial_index) REFERENCES trials(run_id, trial_index)
);
`

const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

type RunInfo struct {
	// RunID is generated when empty.
	RunID      string
	Name       string
	Experiment string
	Seed       int
	SeqLen     int
}

type Run struct {
	RunInfo
	Status     string
	BestConfig domain.Configuration
	Metrics    evaluate.Metrics
	StartedAt  time.Time
	FinishedAt time.Time
}

type Ledger struct {
	db *sql.DB
}

// Open opens a SQLite database and runs migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) BeginRun(info RunInfo) (string, error) {
	if info.RunID == "" {
		info.RunID = uuid.New().String()
	}
	_, err := l.db.Exec(
		`INSERT INTO runs (run_id, name, experiment, seed, seq_len, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.RunID, info.Name, info.Experiment, info.Seed, info.SeqLen, StatusRunning,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return info.RunID, nil
}

// RecordTrial stores a finished or interrupted configuration together with its epoch history.
func (l *Ledger) RecordTrial(runID string, trial search.Trial) error {
	configJSON, err := json.Marshal(trial.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO trials (run_id, trial_index, config, best_val_loss, best_epoch, epochs, stopped_early)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, trial_index) DO UPDATE SET
		   config = excluded.config, best_val_loss = excluded.best_val_loss,
		   best_epoch = excluded.best_epoch, epochs = excluded.epochs,
		   stopped_early = excluded.stopped_early`,
		runID, trial.Index, string(configJSON), nullFloat(trial.BestValLoss),
		trial.BestEpoch, trial.Epochs, trial.StoppedEarly,
	)
	if err != nil {
		return fmt.Errorf("insert trial: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM epochs WHERE run_id = ? AND trial_index = ?`, runID, trial.Index); err != nil {
		return fmt.Errorf("clear epochs: %w", err)
	}
	for epoch, loss := range trial.History {
		_, err = tx.Exec(
			`INSERT INTO epochs (run_id, trial_index, epoch, train_loss, valid_loss) VALUES (?, ?, ?, ?, ?)`,
			runID, trial.Index, epoch, nullFloat(loss.Train), nullFloat(loss.Validation),
		)
		if err != nil {
			return fmt.Errorf("insert epoch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FinishRun closes a run. Metrics are kept only for completed runs, other runs store NULL.
func (l *Ledger) FinishRun(runID, status string, best domain.Configuration, metrics evaluate.Metrics) error {
	if status != StatusCompleted {
		metrics = evaluate.Metrics{RMSE: math.NaN(), MAE: math.NaN()}
	}
	var bestPtr interface{}
	if best != nil {
		data, err := json.Marshal(best)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		bestPtr = string(data)
	}
	res, err := l.db.Exec(
		`UPDATE runs SET status = ?, best_config = ?, rmse = ?, mae = ?, finished_at = ? WHERE run_id = ?`,
		status, bestPtr, nullFloat(metrics.RMSE), nullFloat(metrics.MAE),
		time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (l *Ledger) GetRun(runID string) (Run, error) {
	var run Run
	var bestJSON sql.NullString
	var rmse, mae sql.NullFloat64
	var startedStr string
	var finishedStr sql.NullString

	err := l.db.QueryRow(
		`SELECT run_id, name, experiment, seed, seq_len, status, best_config, rmse, mae, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.Name, &run.Experiment, &run.Seed, &run.SeqLen, &run.Status,
		&bestJSON, &rmse, &mae, &startedStr, &finishedStr)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	if bestJSON.Valid {
		if err := json.Unmarshal([]byte(bestJSON.String), &run.BestConfig); err != nil {
			return Run{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	run.Metrics = evaluate.Metrics{RMSE: floatOrNaN(rmse), MAE: floatOrNaN(mae)}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finishedStr.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
	}
	return run, nil
}

// Trials returns the recorded trials of a run ordered by index.
func (l *Ledger) Trials(runID string) ([]search.Trial, error) {
	rows, err := l.db.Query(
		`SELECT trial_index, config, best_val_loss, best_epoch, epochs, stopped_early
		 FROM trials WHERE run_id = ? ORDER BY trial_index`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var trials []search.Trial
	for rows.Next() {
		var trial search.Trial
		var configJSON string
		var bestValLoss sql.NullFloat64
		if err := rows.Scan(&trial.Index, &configJSON, &bestValLoss, &trial.BestEpoch,
			&trial.Epochs, &trial.StoppedEarly); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		if err := json.Unmarshal([]byte(configJSON), &trial.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
		trial.BestValLoss = floatOrNaN(bestValLoss)
		trials = append(trials, trial)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range trials {
		if trials[i].History, err = l.history(runID, trials[i].Index); err != nil {
			return nil, err
		}
	}
	return trials, nil
}

func (l *Ledger) history(runID string, trialIndex int) ([]trainer.EpochLoss, error) {
	rows, err := l.db.Query(
		`SELECT train_loss, valid_loss FROM epochs WHERE run_id = ? AND trial_index = ? ORDER BY epoch`,
		runID, trialIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	defer rows.Close()

	var history []trainer.EpochLoss
	for rows.Next() {
		var train, valid sql.NullFloat64
		if err := rows.Scan(&train, &valid); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		history = append(history, trainer.EpochLoss{Train: floatOrNaN(train), Validation: floatOrNaN(valid)})
	}
	return history, rows.Err()
}

// SQLite has no NaN, it is stored as NULL.
func nullFloat(x float64) interface{} {
	if math.IsNaN(x) {
		return nil
	}
	return x
}

func floatOrNaN(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.NaN()
	}
	return x.Float64
}
