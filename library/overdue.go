package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultOverdueSchedule runs the overdue check every morning.
const DefaultOverdueSchedule = "0 9 * * *"

const (
	logMsgOverdueStarted = "overdue watcher started"
	logMsgOverdueStopped = "overdue watcher stopped"
	logMsgOverdueChecked = "overdue check finished"
	logMsgOverdueFailed  = "overdue check failed"
	logAttrSchedule      = "schedule"
	logAttrNextRun       = "next_run"
	logAttrCount         = "count"
)

// OverdueReporter receives the result of each overdue check.
type OverdueReporter func(ctx context.Context, loans []*Loan) error

// OverdueWatcher periodically lists open loans older than a threshold and
// hands them to a reporter.
type OverdueWatcher struct {
	lm       *LibraryManager
	days     int
	schedule string
	report   OverdueReporter

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cronParser().Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

func cronParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// NewOverdueWatcher creates a watcher reporting loans open for more than days.
func NewOverdueWatcher(lm *LibraryManager, schedule string, days int, report OverdueReporter) (*OverdueWatcher, error) {
	if schedule == "" {
		schedule = DefaultOverdueSchedule
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("overdue reporter must not be nil")
	}
	return &OverdueWatcher{
		lm:       lm,
		days:     days,
		schedule: schedule,
		report:   report,
		cron:     cron.New(cron.WithParser(cronParser())),
	}, nil
}

// Start schedules the check and returns immediately. The watcher stops when
// ctx is cancelled or Stop is called.
func (w *OverdueWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return nil
	}

	var runCtx context.Context
	runCtx, w.cancelFunc = context.WithCancel(ctx)

	entryID, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.RunNow(runCtx); err != nil {
			w.lm.logger.Error(logMsgOverdueFailed, logAttrError, err.Error())
		}
	})
	if err != nil {
		w.cancelFunc()
		return fmt.Errorf("schedule overdue check: %w", err)
	}
	w.entryID = entryID

	w.cron.Start()
	w.isRunning = true
	w.lm.logger.Info(logMsgOverdueStarted, logAttrSchedule, w.schedule, logAttrNextRun, w.cron.Entry(entryID).Next)

	go func() {
		<-runCtx.Done()
		w.Stop()
	}()
	return nil
}

// Stop waits for a running check to finish and stops the scheduler.
func (w *OverdueWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}

	<-w.cron.Stop().Done()
	w.cron.Remove(w.entryID)
	w.cancelFunc()

	w.isRunning = false
	w.cancelFunc = nil
	w.lm.logger.Info(logMsgOverdueStopped)
}

// IsRunning returns whether the scheduler is active.
func (w *OverdueWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// NextRun returns when the next check will occur, or nil when stopped.
func (w *OverdueWatcher) NextRun() *time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.isRunning {
		return nil
	}
	t := w.cron.Entry(w.entryID).Next
	return &t
}

// RunNow performs one check synchronously and returns the loans reported.
func (w *OverdueWatcher) RunNow(ctx context.Context) ([]*Loan, error) {
	loans, err := w.lm.GetOverdueLoans(ctx, w.days)
	if err != nil {
		return nil, err
	}
	if err := w.report(ctx, loans); err != nil {
		return nil, fmt.Errorf("report overdue loans: %w", err)
	}
	w.lm.logger.Info(logMsgOverdueChecked, logAttrCount, len(loans))
	return loans, nil
}
