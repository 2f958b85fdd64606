package share

import (
	"context"
	"fmt"

	"github.com/opd-ai/panosphere/asset"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Batch is the result of staging several assets together. Items keeps the
// request order; items that failed are listed in Failures instead.
type Batch struct {
	Items    []*StagedAsset
	Failures []*ItemError
}

// StageBatch stages handles in the background and calls onReady exactly
// once, after every item has been staged or has failed. A failed item is
// left out of the batch without affecting the others. If ctx is cancelled
// the batch is abandoned: copies under way finish, everything is deleted,
// and onReady receives the error.
func (s *Stager) StageBatch(ctx context.Context, handles []asset.Handle, onReady func(*Batch, error)) {
	if !s.begin() {
		go onReady(nil, ErrStagerClosed)
		return
	}
	go func() {
		defer s.wg.Done()
		batch, err := s.StageBatchSync(ctx, handles)
		onReady(batch, err)
	}()
}

// StageBatchSync is the synchronous form of StageBatch.
func (s *Stager) StageBatchSync(ctx context.Context, handles []asset.Handle) (*Batch, error) {
	results := make([]*StagedAsset, len(handles))
	errs := make([]error, len(handles))

	// A plain group: one failed item must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, handle := range handles {
		i, handle := i, handle
		g.Go(func() error {
			results[i], errs[i] = s.StageSync(ctx, handle)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for _, staged := range results {
			if staged != nil {
				s.discard(staged, ReasonAbandoned)
			}
		}
		logrus.WithFields(logrus.Fields{
			"function": "Stager.StageBatchSync",
			"items":    len(handles),
		}).Warn("Batch share abandoned")
		return nil, fmt.Errorf("%w: batch abandoned: %w", ErrStagingFailed, err)
	}

	batch := &Batch{}
	for i, handle := range handles {
		if errs[i] != nil {
			batch.Failures = append(batch.Failures, &ItemError{Handle: handle, Err: errs[i]})
			continue
		}
		batch.Items = append(batch.Items, results[i])
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stager.StageBatchSync",
		"staged":   len(batch.Items),
		"failed":   len(batch.Failures),
	}).Info("Batch staged")
	return batch, nil
}
