// Periodic housekeeping: audit retention, expired filters and restrictions, idle flood state.
//
// None of this is needed for correctness (expired filters and restrictions are already ignored at read time); it keeps storage bounded.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iris-chat/warden/automod"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "*/15 * * * *"

// sender flood and duplicate state idle for longer than this is dropped
var idleStateTTL = time.Hour

var runCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_maintenance_runs",
	Help: "Number of maintenance runs, by result",
}, []string{"result"})

var removedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_maintenance_removed",
	Help: "Number of items removed by maintenance, by kind",
}, []string{"kind"})

type Report struct {
	AuditPurged        int64
	FiltersPurged      int
	RestrictionsSwept  int
	FloodWindowsSwept  int
	DuplicateKeysSwept int
}

type Sweeper struct {
	Engine *automod.Engine
	Logger *slog.Logger
}

// Checks a standard five-field cron expression.
func ValidateSchedule(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", expr, err)
	}
	return nil
}

func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	eng := s.Engine
	now := eng.Clock.Now()

	chats, err := eng.Audit.Chats(ctx)
	if err != nil {
		return rep, fmt.Errorf("listing audit chats: %w", err)
	}
	for _, chatID := range chats {
		pol, err := eng.Policies.Get(ctx, chatID)
		if err != nil {
			return rep, fmt.Errorf("loading policy: %w", err)
		}
		cutoff := now.Add(-time.Duration(pol.RetentionDays) * 24 * time.Hour)
		n, err := eng.Audit.PurgeBefore(ctx, chatID, cutoff)
		if err != nil {
			return rep, fmt.Errorf("purging audit log: %w", err)
		}
		rep.AuditPurged += n
	}

	rep.FiltersPurged, err = eng.Filters.PurgeExpired(ctx, now)
	if err != nil {
		return rep, fmt.Errorf("purging filters: %w", err)
	}
	rep.RestrictionsSwept, err = eng.Restrictions.SweepExpired(ctx)
	if err != nil {
		return rep, fmt.Errorf("sweeping restrictions: %w", err)
	}
	rep.FloodWindowsSwept = eng.Flood.Sweep(now.Add(-idleStateTTL))
	rep.DuplicateKeysSwept = eng.Duplicates.Sweep(now.Add(-idleStateTTL))

	removedCount.WithLabelValues("audit").Add(float64(rep.AuditPurged))
	removedCount.WithLabelValues("filters").Add(float64(rep.FiltersPurged))
	removedCount.WithLabelValues("restrictions").Add(float64(rep.RestrictionsSwept))
	removedCount.WithLabelValues("flood").Add(float64(rep.FloodWindowsSwept + rep.DuplicateKeysSwept))
	return rep, nil
}

// Registers RunOnce on the given cron schedule and starts the scheduler. Callers own shutdown.
func (s *Sweeper) Start(ctx context.Context, schedule string) (gocron.Scheduler, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			start := time.Now()
			rep, err := s.RunOnce(ctx)
			if err != nil {
				runCount.WithLabelValues("error").Inc()
				s.Logger.Error("maintenance run failed", "err", err)
				return
			}
			runCount.WithLabelValues("ok").Inc()
			s.Logger.Info("maintenance run complete", "duration", time.Since(start), "report", rep)
		}),
		gocron.WithName("warden-maintenance"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	sched.Start()
	return sched, nil
}
