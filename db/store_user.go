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

// UserData is the user entry handed out to the service layer
type UserData struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	Phone        *string
	Address      *string
	IsActive     bool
	IsVerified   bool
	IsAdmin      bool
	PasswordHash []byte
	LastLogin    *time.Time
	LastLoginIP  *string
	CreatedAt    time.Time
}

// NewUser carries everything needed to persist a verified account
type NewUser struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       *string
	Address     *string
	IsAdmin     bool
	IsVerified  bool
	IsActive    bool
	CreatedByIP *string
}

func mapUser(entity *tables.UserTable) *UserData {
	return &UserData{
		ID:           entity.ID,
		Email:        entity.Email,
		FirstName:    entity.FirstName,
		LastName:     entity.LastName,
		Phone:        entity.Phone,
		Address:      entity.Address,
		IsActive:     entity.IsActive,
		IsVerified:   entity.IsVerified,
		IsAdmin:      entity.IsAdmin,
		PasswordHash: []byte(entity.Password),
		LastLogin:    entity.LastLogin,
		LastLoginIP:  entity.LastLoginIP,
		CreatedAt:    entity.CreatedAt,
	}
}

func (d *DataStore) Users(ctx context.Context, page int, pageSize int) ([]*tables.UserTable, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	var c int
	count := sq.Select("COUNT(*)").From("users")
	err := count.RunWith(d.db).Scan(&c)
	if err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * pageSize
	if c < offset {
		return []*tables.UserTable{}, c, nil
	}

	var entities []*tables.UserTable
	q := sq.
		Select(
			"id",
			"email",
			"first_name",
			"last_name",
			"phone",
			"address",
			"is_active",
			"is_verified",
			"is_admin",
			"last_login",
			"last_login_ip",
			"created_by_ip",
			"password_changed_at",
			"created_at",
			"updated_at",
		).
		From("users").
		OrderBy("id DESC").
		Offset(uint64(offset)).
		Limit(uint64(pageSize))
	err = d.selectStatement(ctx, &entities, q, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return entities, c, nil
}

// UserByEmail loads the user for the given (email, kind) pair,
// email is matched as stored, callers lowercase beforehand
func (d *DataStore) UserByEmail(ctx context.Context, email string, isAdmin bool) (*UserData, error) {
	var userEntity tables.UserTable
	userQuery := sq.Select("*").
		From("users").
		Where(sq.And{sq.Eq{"email": email}, sq.Eq{"is_admin": isAdmin}})
	err := d.getStatement(ctx, &userEntity, userQuery, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		d.log.Error("unable to query database", zap.Error(err))
		return nil, err
	}
	return mapUser(&userEntity), nil
}

func (d *DataStore) UserByID(ctx context.Context, id int64) (*UserData, error) {
	var userEntity tables.UserTable
	userQuery := sq.Select("*").From("users").Where(sq.Eq{"id": id})
	err := d.getStatement(ctx, &userEntity, userQuery, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		d.log.Error("unable to query database", zap.Error(err))
		return nil, err
	}
	return mapUser(&userEntity), nil
}

// IsRegistered checks whether the (email, kind) pair is already taken
func (d *DataStore) IsRegistered(ctx context.Context, email string, isAdmin bool) (bool, error) {
	return d.exists(ctx, "users", sq.And{sq.Eq{"email": email}, sq.Eq{"is_admin": isAdmin}})
}

// UnverifiedUserExists reports whether an unverified account for the
// address exists regardless of kind, used by the resend endpoint
func (d *DataStore) UnverifiedUserExists(ctx context.Context, email string) (bool, error) {
	return d.exists(ctx, "users", sq.And{sq.Eq{"email": email}, sq.Eq{"is_verified": false}})
}

func (d *DataStore) InsertUser(ctx context.Context, user NewUser) (int64, error) {
	exists, err := d.IsRegistered(ctx, user.Email, user.IsAdmin)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrAlreadyExists
	}
	now := time.Now().UTC()
	m := map[string]interface{}{
		"email":               user.Email,
		"password":            user.Password,
		"first_name":          user.FirstName,
		"last_name":           user.LastName,
		"phone":               user.Phone,
		"address":             user.Address,
		"is_active":           user.IsActive,
		"is_verified":         user.IsVerified,
		"is_admin":            user.IsAdmin,
		"created_by_ip":       user.CreatedByIP,
		"password_changed_at": now,
		"created_at":          now,
	}
	insert := sq.Insert("users").SetMap(m)
	insert = insert.Suffix("RETURNING id")
	var id int64
	err = d.returningInsertStatement(ctx, &id, insert, nil)
	if err != nil {
		d.log.Error("could not insert user", zap.Error(err))
		return 0, err
	}
	return id, nil
}

// SetLastLogin stamps a successful login onto the user row
func (d *DataStore) SetLastLogin(ctx context.Context, id int64, ip *string) error {
	ts := time.Now().UTC()
	q := sq.
		Update("users").
		Set("last_login", ts).
		Set("last_login_ip", ip).
		Set("updated_at", ts).
		Where(sq.Eq{"id": id})
	_, err := d.updateStatement(ctx, q, nil)
	return err
}

func (d *DataStore) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	ts := time.Now().UTC()
	q := sq.
		Update("users").
		Set("password", passwordHash).
		Set("password_changed_at", ts).
		Set("updated_at", ts).
		Where(sq.Eq{"id": id})
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

// SetActiveState enables or disables an account
func (d *DataStore) SetActiveState(ctx context.Context, id int64, active bool) (bool, error) {
	q := sq.
		Update("users").
		Set("is_active", active).
		Set("updated_at", time.Now().UTC()).
		Where(sq.And{sq.Eq{"id": id}, sq.Eq{"is_active": !active}})
	res, err := d.updateStatement(ctx, q, nil)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
