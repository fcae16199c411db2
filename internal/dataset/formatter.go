package dataset

import (
	"fmt"
	"math"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

type scaler struct {
	mean float64
	std  float64
}

func fitScaler(values []float64) scaler {
	if len(values) == 0 {
		return scaler{std: 1}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	var mean = sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	var std = math.Sqrt(sq / float64(len(values)))
	if std == 0 {
		std = 1
	}
	return scaler{mean: mean, std: std}
}

func (s scaler) transform(x float64) float64 { return (x - s.mean) / s.std }
func (s scaler) inverse(x float64) float64   { return x*s.std + s.mean }

type seriesScalers struct {
	target   scaler
	known    []scaler
	observed []scaler
}

// Formatter z-scores every series with statistics of its identifier in the training split.
type Formatter struct {
	scalers      map[string]*seriesScalers
	trainSamples int
	validSamples int
}

func NewFormatter(train *Table, trainSamples, validSamples int) *Formatter {
	var f = &Formatter{
		scalers:      make(map[string]*seriesScalers, len(train.Series)),
		trainSamples: trainSamples,
		validSamples: validSamples,
	}
	for _, s := range train.Series {
		var sc = &seriesScalers{target: fitScaler(s.Target)}
		sc.known = fitColumns(s.Known)
		sc.observed = fitColumns(s.Observed)
		f.scalers[s.ID] = sc
	}
	return f
}

func fitColumns(rows [][]float64) []scaler {
	if len(rows) == 0 {
		return nil
	}
	var result = make([]scaler, len(rows[0]))
	var column = make([]float64, len(rows))
	for j := range result {
		for i, row := range rows {
			column[i] = row[j]
		}
		result[j] = fitScaler(column)
	}
	return result
}

// NumSamples returns the maximum number of training and validation windows.
func (f *Formatter) NumSamples() (train, valid int) {
	return f.trainSamples, f.validSamples
}

// Transform returns a normalized copy of table.
func (f *Formatter) Transform(table *Table) (*Table, error) {
	var result = &Table{Series: make([]*Series, 0, len(table.Series))}
	for _, s := range table.Series {
		var sc, ok = f.scalers[s.ID]
		if !ok {
			return nil, fmt.Errorf("identifier %q has no training data", s.ID)
		}
		var n = s.Len()
		var t = &Series{
			ID:       s.ID,
			Time:     s.Time,
			Split:    s.Split,
			Target:   make([]float64, n),
			Known:    make([][]float64, n),
			Observed: make([][]float64, n),
		}
		for i := 0; i < n; i++ {
			t.Target[i] = sc.target.transform(s.Target[i])
			t.Known[i] = transformRow(sc.known, s.Known[i])
			t.Observed[i] = transformRow(sc.observed, s.Observed[i])
		}
		result.Series = append(result.Series, t)
	}
	return result, nil
}

func transformRow(scalers []scaler, row []float64) []float64 {
	var result = make([]float64, len(row))
	for j, v := range row {
		result[j] = scalers[j].transform(v)
	}
	return result
}

func (f *Formatter) FormatPredictions(frame domain.Frame) (domain.Frame, error) {
	if len(frame.Identifiers) != frame.Rows() {
		return domain.Frame{}, fmt.Errorf("frame has %v identifiers for %v rows",
			len(frame.Identifiers), frame.Rows())
	}
	var result = domain.Frame{
		Identifiers: frame.Identifiers,
		Values:      make([][]float64, frame.Rows()),
	}
	for i, values := range frame.Values {
		var sc, ok = f.scalers[frame.Identifiers[i]]
		if !ok {
			return domain.Frame{}, fmt.Errorf("unknown identifier %q", frame.Identifiers[i])
		}
		var row = make([]float64, len(values))
		for j, v := range values {
			row[j] = sc.target.inverse(v)
		}
		result.Values[i] = row
	}
	return result, nil
}
