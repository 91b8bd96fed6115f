package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// metadata returns the references of path. Markdown is extracted from the
// current content; containers come from the adapter's side cache, waiting
// for the cache to catch up when it predates the document.
func (s *Service) metadata(ctx context.Context, p string) (Metadata, error) {
	if s.canvas.Handles(p) {
		if !s.canvas.Enabled() {
			return Metadata{Path: p}, nil
		}
		return s.canvasMetadata(ctx, p)
	}
	doc, err := s.store.Read(ctx, p)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Path:       p,
		References: s.extractor.Extract(doc.Content),
		MTime:      doc.Info.MTime,
	}, nil
}

func (s *Service) canvasMetadata(ctx context.Context, p string) (Metadata, error) {
	if s.canvas.State(p) == CanvasUnindexed {
		if err := s.canvas.Index(ctx, p); err != nil {
			return Metadata{}, err
		}
	}
	op := func() (Metadata, error) {
		info, err := s.store.Stat(p)
		if err != nil {
			return Metadata{}, backoff.Permanent(err)
		}
		meta, ok := s.canvas.Metadata(p)
		if !ok {
			return Metadata{}, backoff.Permanent(fmt.Errorf("%w: %s", ErrMissingDocument, p))
		}
		if meta.MTime.Before(info.MTime) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrStaleMetadata, p)
		}
		return meta, nil
	}
	return retryStale(ctx, op, s.cfg.StaleRetryDelay, s.cfg.StaleDeadline, func(err error, d time.Duration) {
		s.log.Debug("waiting for fresh canvas metadata", "path", p, "retry_in", d)
	})
}

// retryStale runs op until it succeeds, fails permanently, or deadline
// elapses, sleeping delay between attempts.
func retryStale[T any](ctx context.Context, op backoff.Operation[T], delay, deadline time.Duration, notify backoff.Notify) (T, error) {
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxElapsedTime(deadline),
		backoff.WithNotify(notify),
	)
}
