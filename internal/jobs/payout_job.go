// Package jobs runs the periodic commission payout.
package jobs

import (
	"context"
	"time"

	"rafflehub/internal/logging"
	"rafflehub/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Payer is the part of the payout service the scheduler drives.
type Payer interface {
	PayAll(ctx context.Context) (*service.PayoutResult, error)
}

// PayoutJob runs PayAll on a cron schedule. A tick that fires while the
// previous run is still paying out is skipped.
type PayoutJob struct {
	payer   Payer
	timeout time.Duration
	logger  *zap.Logger
	job     cron.Job
}

func NewPayoutJob(payer Payer, timeout time.Duration, logger *zap.Logger) *PayoutJob {
	if timeout <= 0 {
		timeout = time.Hour
	}
	j := &PayoutJob{payer: payer, timeout: timeout, logger: logging.OrNop(logger).Named("payout_job")}
	j.job = cron.NewChain(cron.SkipIfStillRunning(NewCronLogger(j.logger))).
		Then(cron.FuncJob(func() { _ = j.Run(context.Background()) }))
	return j
}

// Job is the overlap-guarded entry registered with the scheduler.
func (j *PayoutJob) Job() cron.Job { return j.job }

// Schedule registers the job on c using a standard five-field cron expression.
func (j *PayoutJob) Schedule(c *cron.Cron, expr string) (cron.EntryID, error) {
	return c.AddJob(expr, j.job)
}

// Run executes one payout batch.
func (j *PayoutJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	res, err := j.payer.PayAll(ctx)
	if err != nil {
		j.logger.Error("payout run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return err
	}
	j.logger.Info("payout run finished",
		zap.Int("paid", res.Paid),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", time.Since(start)))
	return nil
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

// NewCronLogger routes the scheduler's own messages through zap.
func NewCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{sugar: logging.OrNop(logger).Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, zap.Error(err))...)
}
