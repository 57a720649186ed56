package providers

import (
	"context"
	"time"
)

// JobLock is a mutual-exclusion lease shared by every replica of the service
type JobLock interface {
	// Acquire takes the lock named name for at most ttl. It returns false, without
	// error, when another holder owns it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
