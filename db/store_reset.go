package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/sepetli/kimlik/db/tables"
	"go.uber.org/zap"
)

// ResetTokenData is a password reset token row
type ResetTokenData struct {
	ID        int64
	UserID    int64
	Token     string
	IsUsed    bool
	ExpiresAt time.Time
}

// InsertResetToken stores a fresh password reset token, prior unused
// tokens of the user are invalidated so only the newest one works
func (d *DataStore) InsertResetToken(
	ctx context.Context,
	userID int64,
	token string,
	expiresAt time.Time,
) (int64, error) {
	invalidate := sq.
		Update("password_reset_tokens").
		Set("is_used", true).
		Set("used_at", time.Now().UTC()).
		Where(sq.And{sq.Eq{"user_id": userID}, sq.Eq{"is_used": false}})
	_, err := d.updateStatement(ctx, invalidate, nil)
	if err != nil {
		return 0, err
	}
	m := map[string]interface{}{
		"user_id":    userID,
		"token":      token,
		"is_used":    false,
		"expires_at": expiresAt,
		"created_at": time.Now().UTC(),
	}
	insert := sq.Insert("password_reset_tokens").SetMap(m)
	insert = insert.Suffix("RETURNING id")
	var id int64
	err = d.returningInsertStatement(ctx, &id, insert, nil)
	if err != nil {
		d.log.Error("could not insert reset token", zap.Error(err))
		return 0, err
	}
	return id, nil
}

// UsableResetToken returns the token row if it is unused and unexpired
func (d *DataStore) UsableResetToken(ctx context.Context, token string) (*ResetTokenData, error) {
	var entity tables.PasswordResetTokenTable
	q := sq.Select("*").
		From("password_reset_tokens").
		Where(sq.And{
			sq.Eq{"token": token},
			sq.Eq{"is_used": false},
			sq.Gt{"expires_at": time.Now().UTC()},
		})
	err := d.getStatement(ctx, &entity, q, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		d.log.Error("unable to query database", zap.Error(err))
		return nil, err
	}
	return &ResetTokenData{
		ID:        entity.ID,
		UserID:    entity.UserID,
		Token:     entity.Token,
		IsUsed:    entity.IsUsed,
		ExpiresAt: entity.ExpiresAt,
	}, nil
}

// ConsumeResetToken marks the token used, returns ErrNotFound when it
// was already consumed by a concurrent request
func (d *DataStore) ConsumeResetToken(ctx context.Context, id int64) error {
	q := sq.
		Update("password_reset_tokens").
		Set("is_used", true).
		Set("used_at", time.Now().UTC()).
		Where(sq.And{sq.Eq{"id": id}, sq.Eq{"is_used": false}})
	res, err := d.updateStatement(ctx, q, nil)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredResetTokens sweeps used and expired reset tokens
func (d *DataStore) DeleteExpiredResetTokens(ctx context.Context) (int64, error) {
	del := sq.Delete("password_reset_tokens").
		Where(sq.Or{
			sq.LtOrEq{"expires_at": time.Now().UTC()},
			sq.Eq{"is_used": true},
		})
	res, err := d.deleteStatement(ctx, del, nil)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
