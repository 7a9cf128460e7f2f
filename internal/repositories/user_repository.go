package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"school-chat-service/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already exists")
)

const userColumns = `id, username, password_hash, email, role, approved, banned, ban_reason,
    banned_at, banned_by, reset_token, created_at, last_login, is_online, profile_picture`

// UserRepository defines account persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, username string, email *string, passwordHash string, role models.Role) (models.User, error)
	CreateAdmin(ctx context.Context, username, email, passwordHash string) (models.User, error)
	GetUserByID(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByResetToken(ctx context.Context, token string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListOnlineUsers(ctx context.Context, excludeUsername string) ([]models.User, error)
	RecordLogin(ctx context.Context, id int) error
	SetOnline(ctx context.Context, id int, online bool) error
	ApproveUser(ctx context.Context, id int) error
	DeleteUser(ctx context.Context, id int) error
	BanUser(ctx context.Context, id int, reason string, bannedBy int) error
	UnbanUser(ctx context.Context, id int) error
	SetResetToken(ctx context.Context, username, token string) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdatePasswordByResetToken(ctx context.Context, token, passwordHash string) error
}

// UserRepo is a sqlx-backed repository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts an unapproved account.
func (r *UserRepo) CreateUser(ctx context.Context, username string, email *string, passwordHash string, role models.Role) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`INSERT INTO users (username, email, password_hash, role) VALUES ($1, $2, $3, $4)
         RETURNING `+userColumns,
		username, email, passwordHash, role)
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUser
	}
	return user, err
}

// CreateAdmin inserts a pre-approved admin account with its settings row.
func (r *UserRepo) CreateAdmin(ctx context.Context, username, email, passwordHash string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`INSERT INTO users (username, email, password_hash, role, approved) VALUES ($1, $2, $3, 'admin', TRUE)
         RETURNING `+userColumns,
		username, email, passwordHash)
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUser
	}
	return user, err
}

func (r *UserRepo) GetUserByID(ctx context.Context, id int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepo) GetUserByResetToken(ctx context.Context, token string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE reset_token=$1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns every account, newest-created first.
func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	return users, err
}

// ListOnlineUsers returns online accounts other than the caller.
func (r *UserRepo) ListOnlineUsers(ctx context.Context, excludeUsername string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE is_online = TRUE AND username <> $1`, excludeUsername)
	return users, err
}

// RecordLogin stamps last_login and marks the account online.
func (r *UserRepo) RecordLogin(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = NOW(), is_online = TRUE WHERE id=$1`, id)
	return err
}

func (r *UserRepo) SetOnline(ctx context.Context, id int, online bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = $2 WHERE id=$1`, id, online)
	return err
}

// ApproveUser is an idempotent state setter. Approving an already-approved
// user matches the row and succeeds.
func (r *UserRepo) ApproveUser(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET approved = TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *UserRepo) DeleteUser(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// BanUser sets the ban fields and forces the account offline in one
// statement.
func (r *UserRepo) BanUser(ctx context.Context, id int, reason string, bannedBy int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET banned = TRUE, ban_reason = $2, banned_at = NOW(), banned_by = $3, is_online = FALSE
         WHERE id=$1`,
		id, reason, bannedBy)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UnbanUser clears every ban field.
func (r *UserRepo) UnbanUser(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET banned = FALSE, ban_reason = NULL, banned_at = NULL, banned_by = NULL WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *UserRepo) SetResetToken(ctx context.Context, username, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET reset_token = $2 WHERE username=$1`, username, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, reset_token = NULL WHERE id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *UserRepo) UpdatePasswordByResetToken(ctx context.Context, token, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, reset_token = NULL WHERE reset_token=$1`, token, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
