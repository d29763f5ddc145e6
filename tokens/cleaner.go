package tokens

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HousekeepingStore covers the sweeps that run alongside the
// blacklist cleanup
type HousekeepingStore interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	DeleteExpiredResetTokens(ctx context.Context) (int64, error)
}

// Cleaner periodically sweeps expired blacklist entries, sessions and
// reset tokens, it runs until its context is cancelled
type Cleaner struct {
	blacklist *Blacklist
	store     HousekeepingStore
	interval  time.Duration
	log       *zap.Logger
}

func NewCleaner(
	log *zap.Logger,
	blacklist *Blacklist,
	store HousekeepingStore,
	interval time.Duration,
) *Cleaner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Cleaner{
		blacklist: blacklist,
		store:     store,
		interval:  interval,
		log:       log,
	}
}

// Run blocks until ctx is done, callers start it on its own goroutine
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("Stopping cleanup sweeps")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) {
	removed, err := c.blacklist.CleanupExpired(ctx)
	if err != nil {
		c.log.Warn("Blacklist sweep failed", zap.Error(err))
	} else if removed > 0 {
		c.log.Info("Swept expired blacklist entries", zap.Int64("removed", removed))
	}
	sessions, err := c.store.DeleteExpiredSessions(ctx)
	if err != nil {
		c.log.Warn("Session sweep failed", zap.Error(err))
	} else if sessions > 0 {
		c.log.Info("Swept expired sessions", zap.Int64("removed", sessions))
	}
	resets, err := c.store.DeleteExpiredResetTokens(ctx)
	if err != nil {
		c.log.Warn("Reset token sweep failed", zap.Error(err))
	} else if resets > 0 {
		c.log.Info("Swept expired reset tokens", zap.Int64("removed", resets))
	}
}
