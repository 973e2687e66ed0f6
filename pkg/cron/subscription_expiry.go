package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"listings_backend/pkg/store"
)

const expirySchedule = "@hourly"

type Sweeper interface {
	ExpireLapsed(ctx context.Context, now time.Time) (store.SweepResult, error)
}

type SweepObserver interface {
	ObserveSweep(expired, demoted int64)
}

// InitSubscriptionExpiryCron runs the expiry sweep once at startup and then
// hourly. The caller stops the returned scheduler on shutdown.
func InitSubscriptionExpiryCron(sweeper Sweeper, observer SweepObserver, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(expirySchedule, func() {
		RunExpirySweep(context.Background(), sweeper, observer, log, time.Now())
	})
	if err != nil {
		return nil, err
	}

	RunExpirySweep(context.Background(), sweeper, observer, log, time.Now())
	c.Start()
	return c, nil
}

func RunExpirySweep(ctx context.Context, sweeper Sweeper, observer SweepObserver, log *zap.Logger, now time.Time) {
	res, err := sweeper.ExpireLapsed(ctx, now)
	if err != nil {
		log.Error("subscription expiry sweep failed", zap.Error(err))
		return
	}

	if observer != nil {
		observer.ObserveSweep(res.ExpiredSubscriptions, res.DemotedListings)
	}
	if res.ExpiredSubscriptions > 0 || res.DemotedListings > 0 {
		log.Info("subscription expiry sweep",
			zap.Int64("expired_subscriptions", res.ExpiredSubscriptions),
			zap.Int64("demoted_listings", res.DemotedListings))
	}
}
