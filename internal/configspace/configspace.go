package configspace

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

var ErrEmptyAxis = errors.New("configspace: empty axis")

// Generate returns every combination of the axes candidates exactly once, in an order
// fixed by rnd.
func Generate(axes [][]int, rnd *rand.Rand) ([]domain.Configuration, error) {
	var configs, err = Product(axes)
	if err != nil {
		return nil, err
	}
	rnd.Shuffle(len(configs), func(i, j int) {
		configs[i], configs[j] = configs[j], configs[i]
	})
	return configs, nil
}

// Product is the Cartesian product in lexicographic order. Repeated candidates are collapsed.
func Product(axes [][]int) ([]domain.Configuration, error) {
	if len(axes) == 0 {
		return nil, ErrEmptyAxis
	}
	var uniqueAxes = make([][]int, len(axes))
	for i, axis := range axes {
		if len(axis) == 0 {
			return nil, ErrEmptyAxis
		}
		uniqueAxes[i] = unique(axis)
	}

	var result = []domain.Configuration{{}}
	for _, axis := range uniqueAxes {
		var next = make([]domain.Configuration, 0, len(result)*len(axis))
		for _, prefix := range result {
			for _, v := range axis {
				var config = make(domain.Configuration, len(prefix)+1)
				copy(config, prefix)
				config[len(prefix)] = v
				next = append(next, config)
			}
		}
		result = next
	}
	return result, nil
}

func unique(values []int) []int {
	var result = append([]int(nil), values...)
	sort.Ints(result)
	var n = 0
	for i, v := range result {
		if i == 0 || v != result[n-1] {
			result[n] = v
			n++
		}
	}
	return result[:n]
}
