// Package lock keeps two upgrade runs from touching the same database at once.
package lock

import (
	"context"
	"strings"
)

// Locker acquires an exclusive lock for a key. The returned release function
// must be called once the run is over.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	Close() error
}

// Noop grants every lock immediately
type Noop struct{}

// Acquire returns at once
func (Noop) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// Close does nothing
func (Noop) Close() error {
	return nil
}

// Key builds the lock key of a target database
func Key(engine, databaseName string) string {
	return strings.ToLower(engine) + "/" + databaseName
}
