// Package batch classifies many columns concurrently.
package batch

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/dataset"
)

// Outcome is the classification of one column. Exactly one of Result and Err is set.
type Outcome struct {
	Column string
	Result *classify.Result
	Err    error
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Succeeded int64
	Failed    int64
}

// ClassifyColumns classifies every column with opts, at most concurrency at a time.
// Outcomes are returned in input order. A column that fails is reported in its Outcome
// and does not stop the others; only context cancellation aborts the batch.
func ClassifyColumns(ctx context.Context, cols []dataset.Column, opts classify.Options, concurrency int) ([]Outcome, Summary, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	outcomes := make([]Outcome, len(cols))
	if len(cols) == 0 {
		return outcomes, Summary{}, nil
	}

	zap.L().Info("classifying batch",
		zap.Int("columns", len(cols)),
		zap.Int("concurrency", concurrency),
		zap.String("scheme", string(opts.Scheme)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, col := range cols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log := zap.L().With(zap.String("column", col.Name))

			outcomes[i].Column = col.Name
			res, err := classify.Classify(col.Values, opts)
			if err != nil {
				failed.Add(1)
				outcomes[i].Err = eris.Wrapf(err, "batch: column %s", col.Name)
				log.Warn("classification failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			outcomes[i].Result = res
			log.Debug("classification complete",
				zap.Int("k_effective", res.KEffective),
				zap.Int("dropped", res.Dropped),
				zap.Bool("degenerate", res.Degenerate),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Summary{}, eris.Wrap(err, "batch: classify columns")
	}

	sum := Summary{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("failed", sum.Failed),
	)
	return outcomes, sum, nil
}
