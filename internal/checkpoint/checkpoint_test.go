package checkpoint

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

func TestSaveBestOverwrites(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "models_electricity_24")
	var c, err = New(dir, "lstm", 21, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(c.BestPath()) != "lstm_21" {
		t.Error("unexpected best path", c.BestPath())
	}

	if err := c.SaveBest([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveBest([]byte{4, 5}); err != nil {
		t.Fatal(err)
	}
	best, err := c.LoadBest()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(best.ModelState, []byte{4, 5}) {
		t.Error("expected latest state", best.ModelState)
	}
	if best.RunID != "run-1" {
		t.Error("unexpected run id", best.RunID)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Error("temporary files left behind", len(entries))
	}
}

func TestSaveResume(t *testing.T) {
	var c, err = New(t.TempDir(), "lstm", 21, "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(c.ResumePath()) != "lstm_continue" {
		t.Error("unexpected resume path", c.ResumePath())
	}
	if err := c.SaveResume([]byte{9}, 7, 3, domain.Configuration{2, 64}); err != nil {
		t.Fatal(err)
	}
	resume, err := c.LoadResume()
	if err != nil {
		t.Fatal(err)
	}
	if resume.Epoch != 7 || resume.ConfigNum != 3 || !resume.BestConfig.Equal(domain.Configuration{2, 64}) {
		t.Errorf("unexpected resume %+v", resume)
	}
	if !bytes.Equal(resume.ModelState, []byte{9}) {
		t.Error("unexpected state", resume.ModelState)
	}
}

func TestLoadBestMissing(t *testing.T) {
	var c, err = New(t.TempDir(), "lstm", 1, "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.LoadBest()
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected ErrNotFound", err)
	}
}
