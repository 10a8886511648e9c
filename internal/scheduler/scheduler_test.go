package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OFFIS-RIT/netswatch/pkg/leaselock"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/logger/memory"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (*reconcile.Report, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &reconcile.Report{RunID: "run-1"}, nil
}

type fakeLocker struct {
	busy bool
	keys []string
}

func (f *fakeLocker) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	f.keys = append(f.keys, key)
	if f.busy {
		return leaselock.ErrBusy
	}
	return fn(ctx)
}

type fakeArchive struct {
	mu      sync.Mutex
	stored  []string
	failing bool
}

func (f *fakeArchive) Store(_ context.Context, r *reconcile.Report) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", errors.New("bucket missing")
	}
	f.stored = append(f.stored, r.RunID)
	return r.RunID + ".json", nil
}

func TestNewSyncer_RequiresRunner(t *testing.T) {
	_, err := NewSyncer(NewSyncerParams{})
	assert.Error(t, err)
}

func TestRunOnce_WithLeaseAndArchive(t *testing.T) {
	runner := &fakeRunner{}
	locker := &fakeLocker{}
	archive := &fakeArchive{}
	s, err := NewSyncer(NewSyncerParams{Runner: runner, Locker: locker, Archive: archive})
	require.NoError(t, err)

	report, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{LeaseKey}, locker.keys)
	assert.Equal(t, []string{"run-1"}, archive.stored)
}

func TestRunOnce_BusyLeaseSkips(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewSyncer(NewSyncerParams{Runner: runner, Locker: &fakeLocker{busy: true}})
	require.NoError(t, err)

	report, err := s.RunOnce(context.Background())

	assert.ErrorIs(t, err, ErrSkipped)
	assert.Nil(t, report)
	assert.Zero(t, runner.calls.Load())
}

func TestRunOnce_FailedPassIsNotArchived(t *testing.T) {
	archive := &fakeArchive{}
	s, err := NewSyncer(NewSyncerParams{Runner: &fakeRunner{err: errors.New("etcd down")}, Archive: archive})
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())

	assert.EqualError(t, err, "etcd down")
	assert.Empty(t, archive.stored)
}

func TestRunOnce_ArchiveFailureIsOnlyLogged(t *testing.T) {
	rec := memory.NewRecorder()
	s, err := NewSyncer(NewSyncerParams{Runner: &fakeRunner{}, Archive: &fakeArchive{failing: true}, Logger: logger.New(rec)})
	require.NoError(t, err)

	report, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.Equal(t, 1, rec.Count("warn"), rec.String())
}

func TestRunOnce_OnePassAtATime(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s, err := NewSyncer(NewSyncerParams{Runner: runner})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSkipped)

	close(runner.block)
	assert.NoError(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestLoop_RunsImmediatelyAndStops(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewSyncer(NewSyncerParams{Runner: runner})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Loop(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
