// Package locking serialises read-modify-write cycles on one session record.
package locking

import "context"

// Locker grants exclusive access to key until the returned unlock is called.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
