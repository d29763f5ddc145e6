package tokens

import (
	"context"
	"time"

	"github.com/sepetli/kimlik/events"
	"github.com/sepetli/kimlik/events/event"
	"go.uber.org/zap"
)

// BlacklistStore is the persistence needed by the blacklist service
type BlacklistStore interface {
	InsertBlacklistedToken(
		ctx context.Context,
		jti string,
		userID *int64,
		tokenType string,
		expiresAt time.Time,
		reason string,
	) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
	DeleteExpiredBlacklistedTokens(ctx context.Context) (int64, error)
}

// Blacklist revokes issued tokens by jti until their natural expiry
type Blacklist struct {
	store      BlacklistStore
	verifier   *TokenVerifier
	log        *zap.Logger
	dispatcher *events.Dispatcher
}

func NewBlacklist(
	log *zap.Logger,
	store BlacklistStore,
	verifier *TokenVerifier,
	dispatcher *events.Dispatcher,
) *Blacklist {
	return &Blacklist{
		store:      store,
		verifier:   verifier,
		log:        log,
		dispatcher: dispatcher,
	}
}

// Add puts the raw token on the blacklist. The signature has to check
// out but an already expired token is accepted and simply dropped,
// revoking it would be pointless. Re-adding a known jti is a no-op
func (b *Blacklist) Add(ctx context.Context, raw string, reason string) (*Claims, error) {
	claims, err := b.verifier.DecodeExpired(raw)
	if err != nil {
		return nil, err
	}
	if !claims.ExpiresAt().After(time.Now().UTC()) {
		return claims, nil
	}
	userID := claims.UserID()
	err = b.store.InsertBlacklistedToken(
		ctx,
		claims.ID(),
		&userID,
		string(claims.Type()),
		claims.ExpiresAt(),
		reason,
	)
	if err != nil {
		b.log.Error("could not blacklist token", zap.Error(err))
		return nil, err
	}
	return claims, nil
}

// IsBlacklisted satisfies BlacklistChecker
func (b *Blacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return b.store.IsTokenBlacklisted(ctx, jti)
}

// CleanupExpired removes rows whose tokens have run out on their own
func (b *Blacklist) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := b.store.DeleteExpiredBlacklistedTokens(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		b.dispatcher.Dispatch(ctx, &event.BlacklistSwept{Removed: removed})
	}
	return removed, nil
}
