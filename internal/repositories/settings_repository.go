package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"school-chat-service/internal/models"
)

var ErrSettingsNotFound = errors.New("user settings not found")

// SettingsRepository defines per-user settings persistence.
type SettingsRepository interface {
	EnsureSettings(ctx context.Context, userID int) error
	GetSettings(ctx context.Context, userID int) (models.UserSettings, error)
	SaveSettings(ctx context.Context, settings models.UserSettings) error
	DeleteSettings(ctx context.Context, userID int) error
}

// SettingsRepo is a sqlx-backed repository.
type SettingsRepo struct {
	db *sqlx.DB
}

// NewSettingsRepo constructs SettingsRepo.
func NewSettingsRepo(db *sqlx.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// EnsureSettings lazily creates the default settings row.
func (r *SettingsRepo) EnsureSettings(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

func (r *SettingsRepo) GetSettings(ctx context.Context, userID int) (models.UserSettings, error) {
	var settings models.UserSettings
	err := r.db.GetContext(ctx, &settings,
		`SELECT user_id, theme, notifications, sound_effects, font_size, auto_login
         FROM user_settings WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserSettings{}, ErrSettingsNotFound
	}
	return settings, err
}

func (r *SettingsRepo) SaveSettings(ctx context.Context, settings models.UserSettings) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_settings SET theme = $2, notifications = $3, sound_effects = $4, font_size = $5, auto_login = $6
         WHERE user_id=$1`,
		settings.UserID, settings.Theme, settings.Notifications, settings.SoundEffects, settings.FontSize, settings.AutoLogin)
	return err
}

func (r *SettingsRepo) DeleteSettings(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_settings WHERE user_id=$1`, userID)
	return err
}
