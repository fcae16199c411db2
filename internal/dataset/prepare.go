package dataset

import (
	"context"
	"log"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/ChizhovVadim/rnnsearch/internal/domain"
)

type Splits struct {
	Train      []domain.Batch
	Validation []domain.Batch
	Test       []domain.Batch
}

type Provider struct {
	Layout       Layout
	BatchSize    int
	TrainSamples int
	// ValidSamples limits both validation and test windows.
	ValidSamples int
}

// Prepare samples and batches the three normalized splits concurrently.
// Each split draws from its own generator seeded from rnd, so the result does not depend on scheduling.
func (p *Provider) Prepare(ctx context.Context, train, valid, test *Table, rnd *rand.Rand) (*Splits, error) {
	log.Println("prepare dataset started")
	defer log.Println("prepare dataset finished")

	var seeds = [3]int64{rnd.Int63(), rnd.Int63(), rnd.Int63()}
	var result = &Splits{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result.Train, err = p.split(ctx, train, p.TrainSamples, seeds[0])
		return err
	})
	g.Go(func() error {
		var err error
		result.Validation, err = p.split(ctx, valid, p.ValidSamples, seeds[1])
		return err
	})
	g.Go(func() error {
		var err error
		result.Test, err = p.split(ctx, test, p.ValidSamples, seeds[2])
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Println("dataset",
		"train", len(result.Train),
		"validation", len(result.Validation),
		"test", len(result.Test))
	return result, nil
}

func (p *Provider) split(ctx context.Context, table *Table, maxSamples int, seed int64) ([]domain.Batch, error) {
	var windows = Windows(table, maxSamples, p.Layout.TotalSteps, rand.New(rand.NewSource(seed)))
	return Batches(ctx, windows, p.BatchSize, p.Layout)
}
