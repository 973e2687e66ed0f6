package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"listings_backend/pkg/store"
)

type sweeperStub struct {
	result store.SweepResult
	err    error
	at     time.Time
}

func (s *sweeperStub) ExpireLapsed(_ context.Context, now time.Time) (store.SweepResult, error) {
	s.at = now
	return s.result, s.err
}

type sweepCounter struct{ expired, demoted int64 }

func (c *sweepCounter) ObserveSweep(expired, demoted int64) {
	c.expired += expired
	c.demoted += demoted
}

func TestRunExpirySweepReportsCounts(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &sweeperStub{result: store.SweepResult{ExpiredSubscriptions: 2, DemotedListings: 1}}
	counter := &sweepCounter{}

	RunExpirySweep(context.Background(), sweeper, counter, zap.NewNop(), now)

	assert.Equal(t, now, sweeper.at)
	assert.Equal(t, int64(2), counter.expired)
	assert.Equal(t, int64(1), counter.demoted)
}

func TestRunExpirySweepFailureSkipsObserver(t *testing.T) {
	sweeper := &sweeperStub{err: errors.New("db down"), result: store.SweepResult{ExpiredSubscriptions: 5}}
	counter := &sweepCounter{}

	RunExpirySweep(context.Background(), sweeper, counter, zap.NewNop(), time.Now())

	assert.Zero(t, counter.expired)
}

func TestInitSubscriptionExpiryCron(t *testing.T) {
	sweeper := &sweeperStub{}
	c, err := InitSubscriptionExpiryCron(sweeper, nil, zap.NewNop())
	assert.NoError(t, err)
	defer c.Stop()

	assert.False(t, sweeper.at.IsZero(), "sweep runs once at startup")
	assert.Len(t, c.Entries(), 1)
}
