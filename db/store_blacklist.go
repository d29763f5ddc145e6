package db

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// InsertBlacklistedToken adds a jti to the blacklist, adding the same
// jti twice is a no-op. Concurrent inserts race on the token_jti
// unique constraint, the loser is treated as already done
func (d *DataStore) InsertBlacklistedToken(
	ctx context.Context,
	jti string,
	userID *int64,
	tokenType string,
	expiresAt time.Time,
	reason string,
) error {
	m := map[string]interface{}{
		"token_jti":      jti,
		"user_id":        userID,
		"token_type":     tokenType,
		"reason":         reason,
		"blacklisted_at": time.Now().UTC(),
		"expires_at":     expiresAt,
	}
	insert := sq.Insert("blacklisted_tokens").SetMap(m)
	_, err := d.insertStatement(ctx, insert, nil)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		d.log.Error("could not insert blacklisted token", zap.Error(err))
		return err
	}
	return nil
}

// IsTokenBlacklisted treats logically expired rows as absent, those
// tokens fail expiry validation on their own
func (d *DataStore) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	return d.exists(
		ctx,
		"blacklisted_tokens",
		sq.And{sq.Eq{"token_jti": jti}, sq.Gt{"expires_at": time.Now().UTC()}},
	)
}

// DeleteExpiredBlacklistedTokens sweeps rows whose expiry has passed
func (d *DataStore) DeleteExpiredBlacklistedTokens(ctx context.Context) (int64, error) {
	del := sq.Delete("blacklisted_tokens").Where(sq.LtOrEq{"expires_at": time.Now().UTC()})
	res, err := d.deleteStatement(ctx, del, nil)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
