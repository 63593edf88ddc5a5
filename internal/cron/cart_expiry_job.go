package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/metrics"
	"go.uber.org/multierr"
)

// CartSweeper deletes carts whose horizon is at or before cutoff.
type CartSweeper interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type CartExpiryJobParams struct {
	Logger   *logger.Logger
	Sweepers []CartSweeper
	Metrics  *metrics.CartMetrics
}

// NewCartExpiryJob builds the job that garbage-collects idle carts.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	sweepers := make([]CartSweeper, 0, len(params.Sweepers))
	for _, sw := range params.Sweepers {
		if sw != nil {
			sweepers = append(sweepers, sw)
		}
	}
	if len(sweepers) == 0 {
		return nil, fmt.Errorf("at least one cart sweeper required")
	}
	return &cartExpiryJob{
		logg:     params.Logger,
		sweepers: sweepers,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg     *logger.Logger
	sweepers []CartSweeper
	metrics  *metrics.CartMetrics
	now      func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var (
		deleted int64
		errs    error
	)
	for _, sw := range j.sweepers {
		rows, err := sw.DeleteExpiredBefore(ctx, cutoff)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted += rows
	}
	j.metrics.AddReaped(deleted)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	if errs != nil {
		return fmt.Errorf("cart expiry: %w", errs)
	}
	j.logg.Info(logCtx, "cart expiry complete")
	return nil
}
