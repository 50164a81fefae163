package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 9 * * *"))
	assert.NoError(t, ValidateSchedule("*/5 * * * *"))
	assert.Error(t, ValidateSchedule("every morning"))
	assert.Error(t, ValidateSchedule("0 0 9 * * *"), "seconds field not accepted")
}

func TestOverdueWatcherRunNow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	mgr := newManagerWithClock(t, clock)
	uid := addTestUser(t, mgr.Database(), "Alice", "alice@example.com", RoleAdmin)
	bookID, _ := mgr.AddBook(ctx, "Late", "A", "Classics")
	_, err := mgr.BorrowBook(ctx, bookID, uid)
	require.NoError(t, err)
	clock.Advance(20 * 24 * time.Hour)

	var reported []*Loan
	w, err := NewOverdueWatcher(mgr, "", 14, func(_ context.Context, loans []*Loan) error {
		reported = loans
		return nil
	})
	require.NoError(t, err)

	loans, err := w.RunNow(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, loans, reported)
	assert.Equal(t, "Late", reported[0].BookTitle)
}

func TestOverdueWatcherReporterError(t *testing.T) {
	mgr := newManager(t)
	boom := errors.New("boom")
	w, err := NewOverdueWatcher(mgr, "0 9 * * *", 14, func(context.Context, []*Loan) error { return boom })
	require.NoError(t, err)

	_, err = w.RunNow(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestOverdueWatcherLifecycle(t *testing.T) {
	mgr := newManager(t)
	w, err := NewOverdueWatcher(mgr, "0 9 * * *", 14, func(context.Context, []*Loan) error { return nil })
	require.NoError(t, err)

	assert.Nil(t, w.NextRun())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())
	require.NoError(t, w.Start(ctx), "second start is a no-op")

	next := w.NextRun()
	require.NotNil(t, next)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())

	cancel()
	assert.Eventually(t, func() bool { return !w.IsRunning() }, time.Second, 10*time.Millisecond)

	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestNewOverdueWatcherValidation(t *testing.T) {
	mgr := newManager(t)
	_, err := NewOverdueWatcher(mgr, "bad", 14, func(context.Context, []*Loan) error { return nil })
	assert.Error(t, err)
	_, err = NewOverdueWatcher(mgr, "", 14, nil)
	assert.Error(t, err)
}
