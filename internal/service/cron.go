package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSpec is how often expired in-memory records are dropped
const DefaultPruneSpec = "@every 1m"

// PruneFunc removes expired records and returns how many it dropped
type PruneFunc func(now time.Time) int

// CronRunner runs periodic housekeeping jobs
type CronRunner struct {
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// NewCronRunner creates a new cron runner
func NewCronRunner(logger *slog.Logger) *CronRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronRunner{
		cron:   cron.New(),
		logger: logger.With("component", "cron"),
		now:    time.Now,
	}
}

// AddPrune schedules fn under name
func (r *CronRunner) AddPrune(name, spec string, fn PruneFunc) error {
	if spec == "" {
		spec = DefaultPruneSpec
	}
	if _, err := r.cron.AddFunc(spec, func() { r.runPrune(name, fn) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	r.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Start starts the runner
func (r *CronRunner) Start() {
	r.cron.Start()
}

// Stop stops the runner and waits for a running job
func (r *CronRunner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *CronRunner) runPrune(name string, fn PruneFunc) {
	if n := fn(r.now()); n > 0 {
		r.logger.Debug("pruned", "job", name, "removed", n)
	}
}
