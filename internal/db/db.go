package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database and applies migrations and seed data.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

// runMigrations applies the schema. Columns added after the initial release
// use additive ADD COLUMN IF NOT EXISTS checks so existing databases pick
// them up without a migration framework.
func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            email TEXT UNIQUE,
            role TEXT NOT NULL CHECK (role IN ('student', 'teacher', 'parent', 'admin')),
            reset_token TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            last_login TIMESTAMPTZ,
            is_online BOOLEAN DEFAULT FALSE,
            profile_picture TEXT NOT NULL DEFAULT 'default.png'
        );`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS approved BOOLEAN DEFAULT FALSE;`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS banned BOOLEAN DEFAULT FALSE;`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS ban_reason TEXT;`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS banned_at TIMESTAMPTZ;`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS banned_by INT REFERENCES users(id);`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            room TEXT NOT NULL,
            username TEXT NOT NULL,
            content TEXT NOT NULL,
            kind TEXT NOT NULL DEFAULT 'text',
            file_path TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            is_edited BOOLEAN DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            reply_to INT REFERENCES messages(id)
        );`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id SERIAL PRIMARY KEY,
            name TEXT UNIQUE NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            allowed_roles TEXT NOT NULL,
            is_active BOOLEAN DEFAULT TRUE,
            created_by TEXT NOT NULL DEFAULT 'system',
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS user_settings (
            user_id INT PRIMARY KEY REFERENCES users(id),
            theme TEXT NOT NULL DEFAULT 'dark',
            notifications BOOLEAN NOT NULL DEFAULT TRUE,
            sound_effects BOOLEAN NOT NULL DEFAULT TRUE,
            font_size INT NOT NULL DEFAULT 14,
            auto_login BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}

	if err := seedRooms(database); err != nil {
		return err
	}

	log.Println("database migrations applied")
	return nil
}

// seedRooms inserts the default role-gated rooms once.
func seedRooms(database *sqlx.DB) error {
	rooms := []struct {
		name, description, allowedRoles string
	}{
		{"general", "General discussion room", `["student", "teacher", "parent", "admin"]`},
		{"teachers_students", "Teacher-Student discussions", `["teacher", "student"]`},
		{"parents_teachers", "Parent-Teacher discussions", `["parent", "teacher"]`},
		{"admin", "Administrative discussions", `["admin"]`},
	}

	for _, room := range rooms {
		_, err := database.Exec(
			`INSERT INTO rooms (name, description, allowed_roles, created_by) VALUES ($1, $2, $3, 'system')
             ON CONFLICT (name) DO NOTHING`,
			room.name, room.description, room.allowedRoles,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
