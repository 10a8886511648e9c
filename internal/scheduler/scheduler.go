package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/netswatch/pkg/leaselock"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"
)

// LeaseKey names the lease every replica competes for before reconciling.
const LeaseKey = "netswatch-reconcile"

// ErrSkipped is returned by RunOnce when another replica holds the lease.
var ErrSkipped = errors.New("reconcile pass skipped, lease held elsewhere")

type Runner interface {
	Run(ctx context.Context) (*reconcile.Report, error)
}

type Archiver interface {
	Store(ctx context.Context, report *reconcile.Report) (string, error)
}

// Syncer runs reconcile passes, one at a time per process and, with a
// Locker, one at a time across replicas.
type Syncer struct {
	runner  Runner
	locker  leaselock.Locker
	archive Archiver
	log     *logger.Logger

	running chan struct{}
}

type NewSyncerParams struct {
	Runner Runner
	// Locker is optional; without it passes are only serialised in-process.
	Locker leaselock.Locker
	// Archive is optional.
	Archive Archiver
	Logger  *logger.Logger
}

func NewSyncer(params NewSyncerParams) (*Syncer, error) {
	if params.Runner == nil {
		return nil, errors.New("syncer needs a reconcile runner")
	}
	return &Syncer{
		runner:  params.Runner,
		locker:  params.Locker,
		archive: params.Archive,
		log:     params.Logger,
		running: make(chan struct{}, 1),
	}, nil
}

// RunOnce performs a single pass. It returns ErrSkipped when a pass is
// already running in this process or the lease is held by another replica.
func (s *Syncer) RunOnce(ctx context.Context) (*reconcile.Report, error) {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	default:
		s.log.Debug("[Sync] Pass already running, skipping")
		return nil, ErrSkipped
	}

	var report *reconcile.Report
	run := func(ctx context.Context) error {
		var err error
		report, err = s.runner.Run(ctx)
		return err
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithLease(ctx, LeaseKey, run)
		if errors.Is(err, leaselock.ErrBusy) {
			s.log.Debug("[Sync] Lease held by another replica, skipping")
			return nil, ErrSkipped
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		return report, err
	}

	if s.archive != nil && report != nil {
		if _, aerr := s.archive.Store(ctx, report); aerr != nil {
			s.log.Warn("[Sync] Report not archived", "run", report.RunID, "err", aerr)
		}
	}
	return report, nil
}

// Loop runs a pass right away and then every interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (s *Syncer) Loop(ctx context.Context, interval time.Duration) error {
	s.log.Info("[Sync] Background reconcile enabled", "interval", interval)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSkipped) {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("[Sync] Reconcile pass failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
