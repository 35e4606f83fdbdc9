package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronScheduler runs Jobs on standard 5-field cron expressions, for work
// that wants wall-clock alignment ("top of every hour") rather than a fixed
// interval since process start. Scheduler (scheduler.go) remains the right
// tool for plain "every N minutes" jobs; this is additive, not a
// replacement — cmd/agentmail-mcp/main.go picks whichever fits each job.
type CronScheduler struct {
	logger *slog.Logger
	cron   *cron.Cron
}

// NewCronScheduler creates a cron-backed scheduler logging through logger.
func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	return &CronScheduler{
		logger: logger,
		cron:   cron.New(cron.WithLogger(slogCronLogger{logger})),
	}
}

// AddJob schedules job to run on the given standard cron spec
// ("minute hour dom month dow"). Returns an error for a malformed spec.
func (c *CronScheduler) AddJob(spec string, job Job) error {
	_, err := c.cron.AddFunc(spec, func() {
		ctx := context.Background()
		c.logger.Debug("running cron job", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			c.logger.Error("cron job failed", "job", job.Name(), "error", err)
		}
	})
	return err
}

// Start begins running scheduled jobs in their own goroutine.
func (c *CronScheduler) Start() {
	c.cron.Start()
}

// Stop halts the scheduler and waits for any running job to finish.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

// slogCronLogger adapts *slog.Logger to cron.Logger.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"error", err}, keysAndValues...)
	l.logger.Error(msg, args...)
}
