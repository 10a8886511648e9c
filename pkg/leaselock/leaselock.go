// Package leaselock serialises reconcile passes across replicas with a row
// lease in Postgres. A lease expires unless its holder keeps renewing it, so a
// crashed replica never blocks the others for longer than one TTL.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/OFFIS-RIT/netswatch/internal/util"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

// Locker runs fn while holding the lease named key. It returns ErrBusy
// without calling fn when another holder has the lease.
type Locker interface {
	WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db         dbConn
	ttl        time.Duration
	renewEvery time.Duration
	owner      string
	log        *logger.Logger
}

// NewClientParams contains configuration for creating a lease Client.
type NewClientParams struct {
	// DB is usually a *pgxpool.Pool.
	DB dbConn
	// TTL defaults to one minute.
	TTL time.Duration
	// RenewEvery defaults to TTL/3.
	RenewEvery time.Duration
	// Owner prefixes lease tokens, defaults to the hostname.
	Owner  string
	Logger *logger.Logger
}

func NewClient(params NewClientParams) (*Client, error) {
	if params.DB == nil {
		return nil, errors.New("lease lock needs a database connection")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	renew := params.RenewEvery
	if renew <= 0 || renew >= ttl {
		renew = max(ttl/3, time.Second)
	}
	owner := params.Owner
	if owner == "" {
		owner, _ = os.Hostname()
	}
	return &Client{
		db:         params.DB,
		ttl:        ttl,
		renewEvery: renew,
		owner:      owner,
		log:        params.Logger,
	}, nil
}

type Lease struct {
	Key   string
	Token string

	// Context is canceled once the lease is released or lost.
	Context context.Context

	client *Client
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

func (c *Client) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			c.log.Warn("[Lease] Failed to release lease", "key", key, "err", err)
		}
	}()

	err = fn(lease.Context)
	if cause := context.Cause(lease.Context); errors.Is(cause, ErrLost) {
		if err == nil {
			return fmt.Errorf("%w while running %s", ErrLost, key)
		}
		return fmt.Errorf("%w while running %s: %w", ErrLost, key, err)
	}
	return err
}

// Acquire takes the lease once, without waiting.
func (c *Client) Acquire(ctx context.Context, key string) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}

	tok, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := c.owner + "/" + tok

	var returnedKey string
	err = c.db.QueryRow(ctx, tryAcquireSQL, key, token, c.ttl.Milliseconds()).Scan(&returnedKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	c.log.Debug("[Lease] Acquired", "key", key, "token", token)

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}
	go l.renewLoop()

	return l, nil
}

func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) renewLoop() {
	t := time.NewTicker(l.client.renewEvery)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renew(); err != nil {
				l.client.log.Error("[Lease] Lost lease", "key", l.Key, "err", err)
				l.cancel(ErrLost)
				return
			}
		}
	}
}

func (l *Lease) renew() error {
	ttlMs := l.client.ttl.Milliseconds()
	return util.RetryErrWithContext(l.Context, 3, util.LinearBackoff(200*time.Millisecond, time.Second), func(ctx context.Context) error {
		renewCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		var returnedKey string
		err := l.client.db.QueryRow(renewCtx, renewSQL, l.Key, l.Token, ttlMs).Scan(&returnedKey)
		if errors.Is(err, pgx.ErrNoRows) {
			return util.Permanent(ErrLost)
		}
		return err
	})
}

const tryAcquireSQL = `
INSERT INTO sync_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE sync_locks.expires_at < now()
RETURNING lock_key;
`

const renewSQL = `
UPDATE sync_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM sync_locks
WHERE lock_key = $1 AND locked_by = $2;
`
