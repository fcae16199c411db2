package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func readStore(t *testing.T, path string) map[string][]float64 {
	t.Helper()
	var data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var store map[string][]float64
	if err := json.Unmarshal(data, &store); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestMergeAppends(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "errors_electricity_24.json")

	if _, err := Merge(path, "a_1", 0.1, 0.2); err != nil {
		t.Fatal(err)
	}
	var store, err = Merge(path, "b_2", 0.3, 0.4)
	if err != nil {
		t.Fatal(err)
	}
	var expected = map[string][]float64{
		"a_1": {0.1, 0.2},
		"b_2": {0.3, 0.4},
	}
	if !reflect.DeepEqual(store, expected) || !reflect.DeepEqual(readStore(t, path), expected) {
		t.Error("unexpected store", store)
	}

	store, err = Merge(path, "a_1", 0.15, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	expected["a_1"] = []float64{0.1, 0.2, 0.15, 0.25}
	if !reflect.DeepEqual(readStore(t, path), expected) {
		t.Error("unexpected store", store)
	}
}

func TestMergeMalformed(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "errors.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Merge(path, "a_1", 1); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestStoreSave(t *testing.T) {
	var dir = t.TempDir()
	var s = NewStore(dir, "electricity", 24)
	if filepath.Base(s.ErrorsPath) != "errors_electricity_24.json" ||
		filepath.Base(s.ConfigsPath) != "configs_electricity_24.json" {
		t.Error("unexpected paths", s.ErrorsPath, s.ConfigsPath)
	}

	var key = RunKey("lstm", 21)
	if _, err := s.Save(RunResult{Key: key, RMSE: 0.1234567, MAE: 0.0765432, HiddenSize: 64}); err != nil {
		t.Fatal(err)
	}
	summary, err := s.Save(RunResult{Key: key, RMSE: 0.2, MAE: 0.1, HiddenSize: 32})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(summary.Errors[key], []float64{0.12346, 0.07654, 0.2, 0.1}) {
		t.Error("unexpected errors", summary.Errors)
	}
	if !reflect.DeepEqual(summary.Configs[key], []float64{64, 32}) {
		t.Error("unexpected configs", summary.Configs)
	}
	if !reflect.DeepEqual(readStore(t, s.ConfigsPath), summary.Configs) {
		t.Error("file and summary differ")
	}
}
