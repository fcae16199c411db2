package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/ChizhovVadim/rnnsearch/internal/config"
)

// Series holds the rows of one identifier ordered by time.
type Series struct {
	ID       string
	Time     []float64
	Split    []float64
	Target   []float64
	Known    [][]float64
	Observed [][]float64
}

func (s *Series) Len() int { return len(s.Time) }

func (s *Series) slice(from, to int) *Series {
	return &Series{
		ID:       s.ID,
		Time:     s.Time[from:to],
		Split:    s.Split[from:to],
		Target:   s.Target[from:to],
		Known:    s.Known[from:to],
		Observed: s.Observed[from:to],
	}
}

// Table is a panel of time series, one per identifier, in first-seen order.
type Table struct {
	Series []*Series
}

func (t *Table) Rows() int {
	var n int
	for _, s := range t.Series {
		n += s.Len()
	}
	return n
}

func LoadCSV(path string, columns config.Columns) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	table, err := ReadCSV(f, columns)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	log.Println("loadCSV",
		"path", path,
		"series", len(table.Series),
		"rows", table.Rows())
	return table, nil
}

func ReadCSV(r io.Reader, columns config.Columns) (*Table, error) {
	var reader = csv.NewReader(r)
	reader.ReuseRecord = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var index = make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	var lookup = func(name string) (int, error) {
		var i, ok = index[name]
		if !ok {
			return 0, fmt.Errorf("column %q not found", name)
		}
		return i, nil
	}

	var splitColumn = columns.Split
	if splitColumn == "" {
		splitColumn = columns.Time
	}
	idCol, err := lookup(columns.ID)
	if err != nil {
		return nil, err
	}
	var numeric = []string{columns.Time, splitColumn, columns.Target}
	numeric = append(numeric, columns.Known...)
	numeric = append(numeric, columns.Observed...)
	var numericCols = make([]int, len(numeric))
	for i, name := range numeric {
		if numericCols[i], err = lookup(name); err != nil {
			return nil, err
		}
	}

	var table = &Table{}
	var byID = make(map[string]*Series)
	var values = make([]float64, len(numeric))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, col := range numericCols {
			values[i], err = strconv.ParseFloat(record[col], 64)
			if err != nil {
				return nil, fmt.Errorf("line %v column %q: %w", line, numeric[i], err)
			}
		}
		var id = record[idCol]
		var s, found = byID[id]
		if !found {
			s = &Series{ID: id}
			byID[id] = s
			table.Series = append(table.Series, s)
		}
		var known = len(columns.Known)
		s.Time = append(s.Time, values[0])
		s.Split = append(s.Split, values[1])
		s.Target = append(s.Target, values[2])
		s.Known = append(s.Known, append([]float64(nil), values[3:3+known]...))
		s.Observed = append(s.Observed, append([]float64(nil), values[3+known:]...))
	}

	for _, s := range table.Series {
		sort.Stable(byTime{s})
	}
	return table, nil
}

type byTime struct{ s *Series }

func (b byTime) Len() int           { return b.s.Len() }
func (b byTime) Less(i, j int) bool { return b.s.Time[i] < b.s.Time[j] }
func (b byTime) Swap(i, j int) {
	var s = b.s
	s.Time[i], s.Time[j] = s.Time[j], s.Time[i]
	s.Split[i], s.Split[j] = s.Split[j], s.Split[i]
	s.Target[i], s.Target[j] = s.Target[j], s.Target[i]
	s.Known[i], s.Known[j] = s.Known[j], s.Known[i]
	s.Observed[i], s.Observed[j] = s.Observed[j], s.Observed[i]
}

// Split partitions every series by the split column. Validation and test parts keep
// lookback rows before their boundary so that their first windows have a full history.
func Split(table *Table, validBoundary, testBoundary float64, lookback int) (train, valid, test *Table) {
	train, valid, test = &Table{}, &Table{}, &Table{}
	for _, s := range table.Series {
		var validStart = sort.Search(s.Len(), func(i int) bool { return s.Split[i] >= validBoundary })
		var testStart = sort.Search(s.Len(), func(i int) bool { return s.Split[i] >= testBoundary })
		if validStart > 0 {
			train.Series = append(train.Series, s.slice(0, validStart))
		}
		if from := max(0, validStart-lookback); testStart > from {
			valid.Series = append(valid.Series, s.slice(from, testStart))
		}
		if from := max(0, testStart-lookback); s.Len() > from {
			test.Series = append(test.Series, s.slice(from, s.Len()))
		}
	}
	return train, valid, test
}
