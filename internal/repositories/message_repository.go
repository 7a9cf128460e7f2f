package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"school-chat-service/internal/models"
)

const messageColumns = `id, room, username, content, kind, file_path, created_at, is_edited, edited_at, reply_to`

// MessageRepository defines message persistence and retrieval.
type MessageRepository interface {
	CreateMessage(ctx context.Context, room, username, content string, kind models.MessageKind, filePath *string) (models.Message, error)
	ListRoomMessages(ctx context.Context, room string, limit, offset int) ([]models.Message, error)
	SearchRoomMessages(ctx context.Context, room, query string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message with a server-assigned id and timestamp.
func (r *MessageRepo) CreateMessage(ctx context.Context, room, username, content string, kind models.MessageKind, filePath *string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`INSERT INTO messages (room, username, content, kind, file_path) VALUES ($1, $2, $3, $4, $5)
         RETURNING `+messageColumns,
		room, username, content, kind, filePath)
	return msg, err
}

// ListRoomMessages returns the newest messages in the room bounded by
// limit/offset, newest-first. Callers reverse for chronological delivery.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, room string, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE room=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		room, limit, offset)
	return msgs, err
}

// SearchRoomMessages returns messages containing the substring, newest-first.
func (r *MessageRepo) SearchRoomMessages(ctx context.Context, room, query string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE room=$1 AND content LIKE '%' || $2 || '%' ORDER BY created_at DESC`,
		room, query)
	return msgs, err
}
