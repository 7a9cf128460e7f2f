package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"school-chat-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

const roomColumns = `id, name, description, allowed_roles, is_active, created_by, created_at`

// RoomRepository defines room registry lookups. Rooms are seeded at
// startup; there is no end-user creation path.
type RoomRepository interface {
	ListActiveRooms(ctx context.Context) ([]models.Room, error)
	GetRoomByName(ctx context.Context, name string) (models.Room, error)
}

// RoomRepo is a sqlx-backed repository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// ListActiveRooms returns active rooms in seed order.
func (r *RoomRepo) ListActiveRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms,
		`SELECT `+roomColumns+` FROM rooms WHERE is_active = TRUE ORDER BY id`)
	return rooms, err
}

// GetRoomByName fetches one active room.
func (r *RoomRepo) GetRoomByName(ctx context.Context, name string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT `+roomColumns+` FROM rooms WHERE name=$1 AND is_active = TRUE`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}
