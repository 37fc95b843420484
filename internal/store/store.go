// Package store provides the typed key-value persistence used by the app
// shell.
package store

import "context"

// Settings is the persistence collaborator. The orchestrator core only needs
// one flag: whether the Identity Service should be initialized on launch.
type Settings interface {
	// AutoInitialize reads the auto-initialize-on-launch flag. Defaults to
	// false when never written.
	AutoInitialize(ctx context.Context) (bool, error)

	// SetAutoInitialize writes the auto-initialize-on-launch flag.
	SetAutoInitialize(ctx context.Context, v bool) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
