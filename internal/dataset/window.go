package dataset

import (
	"context"
	"math/rand"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

// Window is a slice of totalSteps consecutive rows of one series.
type Window struct {
	series *Series
	start  int
}

func (w Window) ID() string { return w.series.ID }

// Windows enumerates every window of totalSteps rows and keeps at most maxSamples of them,
// picked at random without replacement. maxSamples <= 0 keeps all.
func Windows(table *Table, maxSamples, totalSteps int, rnd *rand.Rand) []Window {
	var result []Window
	for _, s := range table.Series {
		for start := 0; start+totalSteps <= s.Len(); start++ {
			result = append(result, Window{series: s, start: start})
		}
	}
	if maxSamples <= 0 || len(result) <= maxSamples {
		return result
	}
	for i := 0; i < maxSamples; i++ {
		var j = i + rnd.Intn(len(result)-i)
		result[i], result[j] = result[j], result[i]
	}
	return result[:maxSamples]
}

// Layout describes how a window is cut into encoder and decoder parts.
type Layout struct {
	TotalSteps   int
	EncoderSteps int
	Known        int
	Observed     int
}

func (l Layout) DecoderSteps() int { return l.TotalSteps - l.EncoderSteps }

// EncoderInputs counts target, observed and known features.
func (l Layout) EncoderInputs() int { return 1 + l.Observed + l.Known }

func (l Layout) DecoderInputs() int { return l.Known }

// Batches cuts windows into aligned batches. The last batch may be short.
func Batches(ctx context.Context, windows []Window, batchSize int, layout Layout) ([]domain.Batch, error) {
	var result = make([]domain.Batch, 0, (len(windows)+batchSize-1)/batchSize)
	for from := 0; from < len(windows); from += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var to = min(from+batchSize, len(windows))
		result = append(result, layout.batch(windows[from:to]))
	}
	return result, nil
}

func (l Layout) batch(windows []Window) domain.Batch {
	var n = len(windows)
	var decSteps = l.DecoderSteps()
	var b = domain.Batch{
		Encoder:     domain.NewTensor(n, l.EncoderSteps, l.EncoderInputs()),
		Decoder:     domain.NewTensor(n, decSteps, l.DecoderInputs()),
		Target:      domain.NewTensor(n, decSteps, 1),
		Identifiers: make([]string, n),
	}
	for i, w := range windows {
		var s = w.series
		b.Identifiers[i] = s.ID
		for t := 0; t < l.EncoderSteps; t++ {
			var row = w.start + t
			var k = 0
			b.Encoder.Set(i, t, k, s.Target[row])
			k++
			for _, v := range s.Observed[row] {
				b.Encoder.Set(i, t, k, v)
				k++
			}
			for _, v := range s.Known[row] {
				b.Encoder.Set(i, t, k, v)
				k++
			}
		}
		for t := 0; t < decSteps; t++ {
			var row = w.start + l.EncoderSteps + t
			for k, v := range s.Known[row] {
				b.Decoder.Set(i, t, k, v)
			}
			b.Target.Set(i, t, 0, s.Target[row])
		}
	}
	return b
}
