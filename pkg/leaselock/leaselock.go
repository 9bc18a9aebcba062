// Package leaselock provides a Postgres-backed single-holder lease. The
// trace worker takes one so exactly one process appends run records at a
// time, keeping the append-only log free of interleaved duplicates when
// several workers are deployed.
package leaselock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrBusy is returned when another holder owns the lease.
var ErrBusy = errors.New("lease busy")

// Lease is an acquired lease. Ctx is cancelled if a renewal fails, which
// means the holder must stop writing.
type Lease struct {
	Key   string
	Token string
	Ctx   context.Context

	pool   *pgxpool.Pool
	ttl    time.Duration
	cancel context.CancelCauseFunc
	stop   chan struct{}
}

// Acquire takes the lease with the given key, or returns ErrBusy if a live
// holder exists. The lease renews itself at half the TTL until released.
func Acquire(ctx context.Context, pool *pgxpool.Pool, key string, ttl time.Duration) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease key is empty")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	token, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	var returned string
	err = pool.QueryRow(ctx, tryAcquireSQL, key, token, ttl.Milliseconds()).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, err
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:    key,
		Token:  token,
		Ctx:    leaseCtx,
		pool:   pool,
		ttl:    ttl,
		cancel: cancel,
		stop:   make(chan struct{}),
	}
	go l.renewLoop()
	return l, nil
}

// Release drops the lease and stops the renew loop.
func (l *Lease) Release(ctx context.Context) error {
	select {
	case <-l.stop:
	default:
		close(l.stop)
		l.cancel(context.Canceled)
	}
	_, err := l.pool.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) renewLoop() {
	interval := l.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-l.Ctx.Done():
			return
		case <-t.C:
			renewCtx, cancel := context.WithTimeout(l.Ctx, 10*time.Second)
			var returned string
			err := l.pool.QueryRow(renewCtx, renewSQL, l.Key, l.Token, l.ttl.Milliseconds()).Scan(&returned)
			cancel()
			if err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

const tryAcquireSQL = `
INSERT INTO worker_lease (lease_key, held_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lease_key) DO UPDATE
SET held_by    = EXCLUDED.held_by,
    expires_at = EXCLUDED.expires_at
WHERE worker_lease.expires_at < now()
   OR worker_lease.held_by = EXCLUDED.held_by
RETURNING lease_key;
`

const renewSQL = `
UPDATE worker_lease
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lease_key = $1 AND held_by = $2
RETURNING lease_key;
`

const releaseSQL = `
DELETE FROM worker_lease
WHERE lease_key = $1 AND held_by = $2;
`
