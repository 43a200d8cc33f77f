// Package caselock serialises recomputation per case with a Redis lock.
package caselock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bankruptcy-workers/internal/common/errors"
)

const keyPrefix = "caselock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
}

type Locker struct {
	client   redis.Cmdable
	opts     Options
	newToken func() string
}

// Lock is a held case lock.
type Lock struct {
	locker *Locker
	key    string
	token  string
	CaseID string
}

func New(client redis.Cmdable, opts Options) *Locker {
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}
	return &Locker{client: client, opts: opts, newToken: uuid.NewString}
}

// Acquire blocks until the lock for caseID is held, the wait timeout passes
// or ctx is done.
func (l *Locker) Acquire(ctx context.Context, caseID string) (*Lock, error) {
	key := keyPrefix + caseID
	token := l.newToken()

	deadline := time.NewTimer(l.opts.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return nil, errors.NewCaseLockFailedError(caseID, err)
		}
		if ok {
			return &Lock{locker: l, key: key, token: token, CaseID: caseID}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.NewCaseLockTimeoutError(caseID)
		case <-deadline.C:
			return nil, errors.NewCaseLockTimeoutError(caseID)
		case <-ticker.C:
		}
	}
}

// Release gives the lock up. Releasing a lock that already expired and was
// taken by someone else is a no-op.
func (k *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, k.locker.client, []string{k.key}, k.token).Err(); err != nil && err != redis.Nil {
		return errors.NewCaseLockFailedError(k.CaseID, err)
	}
	return nil
}
