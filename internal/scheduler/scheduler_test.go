package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zalgo-Dev/WeaRisk/internal/collector"
	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
	"github.com/Zalgo-Dev/WeaRisk/internal/observability"
	"github.com/Zalgo-Dev/WeaRisk/internal/scheduler"
	"github.com/Zalgo-Dev/WeaRisk/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	calls atomic.Int32
}

func (m *mockRunner) CollectAll(context.Context, []domain.Region) (collector.Summary, error) {
	m.calls.Add(1)
	return collector.Summary{RecordsPersisted: 24}, nil
}

type mockStore struct {
	resets   atomic.Int32
	resetErr error
	count    atomic.Int32
	countErr error
}

func (m *mockStore) Reset(context.Context) error {
	m.resets.Add(1)
	return m.resetErr
}

func (m *mockStore) Count(context.Context) (int, error) {
	return int(m.count.Load()), m.countErr
}

// populatedStore is a mockStore that already holds rows, for tests where only
// the file's age should decide staleness.
func populatedStore() *mockStore {
	st := &mockStore{}
	st.count.Store(96)
	return st
}

var testRegions = []domain.Region{{Code: "75", Name: "Paris"}}

func newScheduler(st scheduler.RiskStore, r scheduler.CollectionRunner, dbPath string, clock clockwork.Clock, opts scheduler.Options) *scheduler.Scheduler {
	return scheduler.New(st, r, testRegions, dbPath, clock, slog.Default(), observability.NewMetricsForTesting(), opts)
}

func TestRun_FreshStoreSkipsRefresh(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o644))

	runner := &mockRunner{}
	st := populatedStore()
	s := newScheduler(st, runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Zero(t, runner.calls.Load())
	assert.Zero(t, st.resets.Load())
}

func TestRun_AbsentStoreRefreshesAtStartup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db") // never created

	runner := &mockRunner{}
	st := &mockStore{}
	s := newScheduler(st, runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int32(1), st.resets.Load())
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRun_OldStoreRefreshes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o644))
	old := time.Now().Add(-13 * time.Hour)
	require.NoError(t, os.Chtimes(dbPath, old, old))

	runner := &mockRunner{}
	s := newScheduler(&mockStore{}, runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRun_JustUnderThresholdIsFresh(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o644))
	recent := time.Now().Add(-11 * time.Hour)
	require.NoError(t, os.Chtimes(dbPath, recent, recent))

	runner := &mockRunner{}
	s := newScheduler(populatedStore(), runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Zero(t, runner.calls.Load())
}

func TestRun_FreshButEmptyStoreRefreshes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o644))

	runner := &mockRunner{}
	st := &mockStore{} // zero rows
	s := newScheduler(st, runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int32(1), st.resets.Load())
	assert.Equal(t, int32(1), runner.calls.Load())
}

// Opening the store creates the database file before the scheduler ever runs,
// so on a first boot the file looks brand new. The startup check must still
// trigger a collection pass; otherwise an empty store would be served until
// the staleness threshold elapses.
func TestRun_FirstBootCollectsAfterStoreOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db")
	st, err := store.Open(dbPath, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := &mockRunner{}
	s := newScheduler(st, runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRun_CountFailureForcesRefresh(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o644))

	runner := &mockRunner{}
	st := &mockStore{countErr: errors.New("disk gone")}
	s := newScheduler(st, runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRun_ResetFailureSkipsCollection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db")

	runner := &mockRunner{}
	st := &mockStore{resetErr: errors.New("locked")}
	s := newScheduler(st, runner, dbPath, clockwork.NewRealClock(),
		scheduler.Options{StalenessThreshold: 12 * time.Hour})

	require.NoError(t, s.Run(context.Background()))
	assert.Zero(t, runner.calls.Load())
}

func TestRun_RealtimeLoopsUntilCancelled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "risks.db") // absent: always stale
	fc := clockwork.NewFakeClock()

	runner := &mockRunner{}
	st := &mockStore{}
	s := newScheduler(st, runner, dbPath, fc, scheduler.Options{
		Realtime:           true,
		CheckInterval:      30 * time.Minute,
		StalenessThreshold: 12 * time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// Startup check runs before the first sleep.
	fc.BlockUntil(1)
	assert.Equal(t, int32(1), runner.calls.Load())

	fc.Advance(30 * time.Minute)
	fc.BlockUntil(1)
	assert.Equal(t, int32(2), runner.calls.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop did not stop on cancellation")
	}
}
