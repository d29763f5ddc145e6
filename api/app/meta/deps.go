package meta

import (
	"context"

	"github.com/sepetli/kimlik/registration"
)

// DatabasePinger reports whether the relational store answers
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// PendingSource exposes the pending registration store health and its
// current counters
type PendingSource interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*registration.Stats, error)
}
