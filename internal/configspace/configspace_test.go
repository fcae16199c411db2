package configspace

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

func TestGenerateIsPermutation(t *testing.T) {
	var axes = [][]int{{1, 2, 3}, {16, 32, 64, 128}}
	var configs, err = Generate(axes, rand.New(rand.NewSource(21)))
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 12 {
		t.Fatal("expected 12 configs", len(configs))
	}
	var seen = make(map[string]bool)
	for _, c := range configs {
		if seen[c.String()] {
			t.Error("duplicate config", c)
		}
		seen[c.String()] = true
	}
	for _, a := range axes[0] {
		for _, b := range axes[1] {
			var key = fmt.Sprintf("[%d %d]", a, b)
			if !seen[key] {
				t.Error("missing config", key)
			}
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	var axes = [][]int{{1, 2}, {8, 16, 32}, {5}}
	var first, _ = Generate(axes, rand.New(rand.NewSource(5)))
	for i := 0; i < 3; i++ {
		var next, _ = Generate(axes, rand.New(rand.NewSource(5)))
		if len(next) != len(first) {
			t.Fatal("length differs")
		}
		for j := range next {
			if !next[j].Equal(first[j]) {
				t.Fatal("order differs at", j, next[j], first[j])
			}
		}
	}
}

func TestSingletonAxis(t *testing.T) {
	var configs, err = Generate([][]int{{4}, {10, 20}}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 2 {
		t.Fatal("expected 2 configs", configs)
	}
	for _, c := range configs {
		if len(c) != 2 || c[0] != 4 {
			t.Error("unexpected config", c)
		}
	}
}

func TestDuplicateCandidatesCollapsed(t *testing.T) {
	var configs, err = Product([][]int{{1, 1, 2}, {3}})
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 2 {
		t.Error("expected 2 configs", configs)
	}
}

func TestEmptyAxis(t *testing.T) {
	var _, err = Generate([][]int{{1}, {}}, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrEmptyAxis) {
		t.Error("expected ErrEmptyAxis", err)
	}
}
