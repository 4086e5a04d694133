package services

import (
	"context"
	"errors"
	"time"

	"github.com/pockett/agreementflow/internal/contentstore"
	"github.com/pockett/agreementflow/internal/logger"
	"github.com/pockett/agreementflow/internal/models"
	"github.com/pockett/agreementflow/internal/store"
)

// Sweeper reclaims orphaned unsigned agreements: artifacts from earlier
// generation epochs that are no longer referenced by their loan's tracking
// record. Signed agreements and signature images are never swept.
type Sweeper struct {
	tracking store.TrackingStore
	content  contentstore.Store
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

func NewSweeper(tracking store.TrackingStore, content contentstore.Store, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		tracking: tracking,
		content:  content,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// WithClock overrides the sweeper clock. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	logger.CtxInfo(ctx, "Sweeper started.", "interval", s.interval.String(), "maxAge", s.maxAge.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "Sweeper stopped.")
			return
		case <-ticker.C:
			if removed, err := s.SweepOnce(ctx); err != nil {
				logger.CtxError(ctx, "Sweep failed.", err)
			} else if removed > 0 {
				logger.CtxInfo(ctx, "Sweep completed.", "removed", removed)
			}
		}
	}
}

// SweepOnce scans the unsigned artifact root and removes stale orphans.
// Returns the number of objects removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	objects, err := s.content.List(ctx, contentstore.UnsignedRoot)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}

		loanID := contentstore.LoanIDFromArtifactPath(obj.Path)
		if loanID == "" {
			logger.CtxWarn(ctx, "Skipping unrecognized artifact name.", "path", obj.Path)
			continue
		}

		doc, err := s.tracking.Get(ctx, loanID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			// Record gone; the artifact is free to reclaim.
		case err != nil:
			logger.CtxWarn(ctx, "Tracking lookup failed during sweep, keeping artifact.", "path", obj.Path, "error", err)
			continue
		case doc.UnsignedPath == obj.Path:
			// Still the current epoch.
			continue
		}

		if err := s.content.Remove(ctx, obj.Path); err != nil {
			logger.CtxWarn(ctx, "Failed to remove orphaned artifact.", "path", obj.Path, "error", err)
			continue
		}
		logger.CtxDebug(ctx, "Removed orphaned artifact.", "path", obj.Path, "loanId", loanID)
		removed++
	}
	return removed, nil
}
