package models

import "time"

// Message is a chat message. Content holds the text, or the stored file
// path for non-text kinds. JSON field names match the polling API.
type Message struct {
	ID        int         `db:"id" json:"id"`
	Room      string      `db:"room" json:"room"`
	Username  string      `db:"username" json:"username"`
	Content   string      `db:"content" json:"message"`
	Kind      MessageKind `db:"kind" json:"message_type"`
	FilePath  *string     `db:"file_path" json:"file_path"`
	CreatedAt time.Time   `db:"created_at" json:"timestamp"`
	IsEdited  bool        `db:"is_edited" json:"is_edited"`
	EditedAt  *time.Time  `db:"edited_at" json:"edited_at,omitempty"`
	ReplyTo   *int        `db:"reply_to" json:"reply_to,omitempty"`
}
