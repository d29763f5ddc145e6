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

// SessionData is the session row handed out to the service layer
type SessionData struct {
	ID           int64
	UserID       int64
	SessionToken string
	RefreshToken string
	IPAddress    *string
	UserAgent    *string
	IsActive     bool
	ExpiresAt    time.Time
	CreatedAt    time.Time
	LastActivity *time.Time
}

// NewSession carries everything needed to persist a login session
type NewSession struct {
	UserID       int64
	SessionToken string
	RefreshToken string
	IPAddress    *string
	UserAgent    *string
	ExpiresAt    time.Time
}

func mapSession(entity *tables.UserSessionTable) *SessionData {
	return &SessionData{
		ID:           entity.ID,
		UserID:       entity.UserID,
		SessionToken: entity.SessionToken,
		RefreshToken: entity.RefreshToken,
		IPAddress:    entity.IPAddress,
		UserAgent:    entity.UserAgent,
		IsActive:     entity.IsActive,
		ExpiresAt:    entity.ExpiresAt,
		CreatedAt:    entity.CreatedAt,
		LastActivity: entity.LastActivity,
	}
}

func (d *DataStore) InsertSession(ctx context.Context, session NewSession) (int64, error) {
	now := time.Now().UTC()
	m := map[string]interface{}{
		"user_id":       session.UserID,
		"session_token": session.SessionToken,
		"refresh_token": session.RefreshToken,
		"ip_address":    session.IPAddress,
		"user_agent":    session.UserAgent,
		"is_active":     true,
		"expires_at":    session.ExpiresAt,
		"created_at":    now,
		"last_activity": now,
	}
	insert := sq.Insert("user_sessions").SetMap(m)
	insert = insert.Suffix("RETURNING id")
	var id int64
	err := d.returningInsertStatement(ctx, &id, insert, nil)
	if err != nil {
		d.log.Error("could not insert session", zap.Error(err))
		return 0, err
	}
	return id, nil
}

// ActiveSessionByRefreshToken only returns sessions that are still
// active and whose expiry lies in the future
func (d *DataStore) ActiveSessionByRefreshToken(ctx context.Context, refreshToken string) (*SessionData, error) {
	var entity tables.UserSessionTable
	q := sq.Select("*").
		From("user_sessions").
		Where(sq.And{
			sq.Eq{"refresh_token": refreshToken},
			sq.Eq{"is_active": true},
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
	return mapSession(&entity), nil
}

// TouchSession updates last_activity and swaps in the currently
// issued access token, the refresh token stays as it is
func (d *DataStore) TouchSession(ctx context.Context, id int64, sessionToken string) error {
	q := sq.
		Update("user_sessions").
		Set("session_token", sessionToken).
		Set("last_activity", time.Now().UTC()).
		Where(sq.Eq{"id": id})
	_, err := d.updateStatement(ctx, q, nil)
	return err
}

// DeactivateSession flips the session inactive and returns its id,
// a zero id means no matching active session existed (which is fine,
// logout is idempotent)
func (d *DataStore) DeactivateSession(ctx context.Context, refreshToken string, userID int64) (int64, error) {
	var id int64
	q := sq.Select("id").
		From("user_sessions").
		Where(sq.And{
			sq.Eq{"refresh_token": refreshToken},
			sq.Eq{"user_id": userID},
			sq.Eq{"is_active": true},
		})
	err := d.getStatement(ctx, &id, q, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	upd := sq.
		Update("user_sessions").
		Set("is_active", false).
		Where(sq.Eq{"id": id})
	if _, err := d.updateStatement(ctx, upd, nil); err != nil {
		return 0, err
	}
	return id, nil
}

// DeactivateSessionsForUser revokes every active session of a user,
// used when a password reset goes through
func (d *DataStore) DeactivateSessionsForUser(ctx context.Context, userID int64) (int64, error) {
	q := sq.
		Update("user_sessions").
		Set("is_active", false).
		Where(sq.And{sq.Eq{"user_id": userID}, sq.Eq{"is_active": true}})
	res, err := d.updateStatement(ctx, q, nil)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredSessions removes rows whose expiry has passed
func (d *DataStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	del := sq.Delete("user_sessions").Where(sq.LtOrEq{"expires_at": time.Now().UTC()})
	res, err := d.deleteStatement(ctx, del, nil)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
