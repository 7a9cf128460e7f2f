package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"school-chat-service/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, username string, email *string, passwordHash string, role models.Role) (models.User, error) {
	args := m.Called(ctx, username, email, passwordHash, role)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) CreateAdmin(ctx context.Context, username, email, passwordHash string) (models.User, error) {
	args := m.Called(ctx, username, email, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByID(ctx context.Context, id int) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByResetToken(ctx context.Context, token string) (models.User, error) {
	args := m.Called(ctx, token)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) ListOnlineUsers(ctx context.Context, excludeUsername string) ([]models.User, error) {
	args := m.Called(ctx, excludeUsername)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) RecordLogin(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, id int, online bool) error {
	args := m.Called(ctx, id, online)
	return args.Error(0)
}

func (m *UserRepositoryMock) ApproveUser(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) DeleteUser(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) BanUser(ctx context.Context, id int, reason string, bannedBy int) error {
	args := m.Called(ctx, id, reason, bannedBy)
	return args.Error(0)
}

func (m *UserRepositoryMock) UnbanUser(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetResetToken(ctx context.Context, username, token string) error {
	args := m.Called(ctx, username, token)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdatePasswordByResetToken(ctx context.Context, token, passwordHash string) error {
	args := m.Called(ctx, token, passwordHash)
	return args.Error(0)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) ListActiveRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoomByName(ctx context.Context, name string) (models.Room, error) {
	args := m.Called(ctx, name)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, room, username, content string, kind models.MessageKind, filePath *string) (models.Message, error) {
	args := m.Called(ctx, room, username, content, kind, filePath)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, room string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, room, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) SearchRoomMessages(ctx context.Context, room, query string) ([]models.Message, error) {
	args := m.Called(ctx, room, query)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type SettingsRepositoryMock struct {
	mock.Mock
}

func (m *SettingsRepositoryMock) EnsureSettings(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *SettingsRepositoryMock) GetSettings(ctx context.Context, userID int) (models.UserSettings, error) {
	args := m.Called(ctx, userID)
	var settings models.UserSettings
	if val := args.Get(0); val != nil {
		settings = val.(models.UserSettings)
	}
	return settings, args.Error(1)
}

func (m *SettingsRepositoryMock) SaveSettings(ctx context.Context, settings models.UserSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *SettingsRepositoryMock) DeleteSettings(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
