package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rafflehub/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type blockingPayer struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	err     error
}

func (p *blockingPayer) PayAll(ctx context.Context) (*service.PayoutResult, error) {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	if p.err != nil {
		return nil, p.err
	}
	return &service.PayoutResult{Paid: 1}, nil
}

func TestJobSkipsOverlappingRuns(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	payer := &blockingPayer{release: make(chan struct{}), started: make(chan struct{}, 1)}
	job := NewPayoutJob(payer, time.Minute, zap.New(core))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Job().Run()
	}()
	<-payer.started

	// returns at once while the first run is blocked
	job.Job().Run()
	assert.EqualValues(t, 1, payer.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("skip").Len())

	close(payer.release)
	wg.Wait()

	payer.started = nil
	job.Job().Run()
	assert.EqualValues(t, 2, payer.calls.Load())
	assert.Equal(t, 2, logs.FilterMessage("payout run finished").Len())
}

func TestRunReportsPayoutError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	boom := errors.New("db gone")
	job := NewPayoutJob(&blockingPayer{err: boom}, time.Minute, zap.New(core))

	assert.ErrorIs(t, job.Run(context.Background()), boom)
	assert.Equal(t, 1, logs.FilterMessage("payout run failed").Len())

	// the scheduled entry swallows it and stays usable
	job.Job().Run()
	assert.Equal(t, 2, logs.FilterMessage("payout run failed").Len())
}

func TestCronLoggerForwardsErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewCronLogger(zap.New(core))

	l.Info("wake", "now", "03:00")
	l.Error(errors.New("panic"), "recovered", "entry", 1)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "03:00", entries[0].ContextMap()["now"])
	assert.Equal(t, "panic", entries[1].ContextMap()["error"])
}

func TestScheduleRejectsBadExpression(t *testing.T) {
	job := NewPayoutJob(&blockingPayer{}, 0, nil)
	c := cron.New()

	_, err := job.Schedule(c, "not a cron expression")
	assert.Error(t, err)

	id, err := job.Schedule(c, "0 3 * * *")
	require.NoError(t, err)
	assert.NotZero(t, id)
}
