package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"school-chat-service/internal/auth"
	"school-chat-service/internal/mocks"
	"school-chat-service/internal/models"
	"school-chat-service/internal/repositories"
	"school-chat-service/internal/uploads"
)

const allRoles = `["student", "teacher", "parent", "admin"]`

func setupChatRouter(t *testing.T, handler *ChatHandler, sess auth.Session) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("session", sess)
		c.Next()
	})
	r.GET("/chat", handler.ChatPage)
	r.GET("/get_online_users", handler.OnlineUsers)
	r.POST("/send_message", handler.SendMessage)
	r.GET("/get_messages/:room", handler.GetMessages)
	r.GET("/search_messages", handler.SearchMessages)
	r.GET("/user_settings", handler.GetSettings)
	r.POST("/user_settings", handler.SaveSettings)
	return r
}

func studentSession() auth.Session {
	return auth.Session{UserID: 1, Username: "alice", Role: models.RoleStudent}
}

type filePart struct {
	name    string
	content string
}

func multipartForm(t *testing.T, fields map[string]string, file *filePart) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func postMessage(t *testing.T, router *gin.Engine, fields map[string]string, file *filePart) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartForm(t, fields, file)
	req := httptest.NewRequest(http.MethodPost, "/send_message", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageRoundTrip(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(roomRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	stored := models.Message{ID: 7, Room: "general", Username: "alice", Content: "hi", Kind: models.KindText, CreatedAt: time.Now()}
	roomRepo.On("GetRoomByName", mock.Anything, "general").
		Return(models.Room{Name: "general", AllowedRoles: allRoles}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, "general", "alice", "hi", models.KindText, (*string)(nil)).
		Return(stored, nil).Once()
	messageRepo.On("ListRoomMessages", mock.Anything, "general", 850, 0).
		Return([]models.Message{stored}, nil).Once()

	rec := postMessage(t, router, map[string]string{"room": "general", "message_type": "text", "message": "hi"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/get_messages/general", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var msgs []map[string]any
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice", msgs[0]["username"])
	assert.Equal(t, "hi", msgs[0]["message"])
	assert.Equal(t, "text", msgs[0]["message_type"])
	assert.Nil(t, msgs[0]["file_path"])

	roomRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestSendMessageAccessDenied(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(roomRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	roomRepo.On("GetRoomByName", mock.Anything, "admin").
		Return(models.Room{Name: "admin", AllowedRoles: `["admin"]`}, nil).Once()

	rec := postMessage(t, router, map[string]string{"room": "admin", "message_type": "text", "message": "hi"}, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied")
	// No record may be persisted on a denied send.
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	roomRepo.AssertExpectations(t)
}

func TestSendMessageRoomNotFound(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewChatHandler(roomRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	roomRepo.On("GetRoomByName", mock.Anything, "nowhere").
		Return(models.Room{}, repositories.ErrRoomNotFound).Once()

	rec := postMessage(t, router, map[string]string{"room": "nowhere", "message": "hi"}, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestSendMessageMissingRoom(t *testing.T) {
	handler := NewChatHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	rec := postMessage(t, router, map[string]string{"message": "hi"}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Room parameter is required")
}

func TestSendMessageEmptyText(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewChatHandler(roomRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	roomRepo.On("GetRoomByName", mock.Anything, "general").
		Return(models.Room{Name: "general", AllowedRoles: allRoles}, nil).Once()

	rec := postMessage(t, router, map[string]string{"room": "general", "message_type": "text", "message": "   "}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot be empty")
	roomRepo.AssertExpectations(t)
}

func TestSendMessageInvalidKind(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewChatHandler(roomRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	roomRepo.On("GetRoomByName", mock.Anything, "general").
		Return(models.Room{Name: "general", AllowedRoles: allRoles}, nil).Once()

	rec := postMessage(t, router, map[string]string{"room": "general", "message_type": "sticker", "message": "hi"}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	roomRepo.AssertExpectations(t)
}

// A traversal-named shell script must be rejected by extension, and
// nothing may reach storage.
func TestSendMessageRejectsDisallowedExtension(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(roomRepo, messageRepo, nil, nil, uploads.NewStore(t.TempDir()))
	router := setupChatRouter(t, handler, studentSession())

	roomRepo.On("GetRoomByName", mock.Anything, "general").
		Return(models.Room{Name: "general", AllowedRoles: allRoles}, nil).Once()

	rec := postMessage(t, router,
		map[string]string{"room": "general", "message_type": "text", "message": "see attachment"},
		&filePart{name: "../../evil.sh", content: "#!/bin/sh"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid file extension")
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	roomRepo.AssertExpectations(t)
}

func TestSendMessageStoresImageAttachment(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(roomRepo, messageRepo, nil, nil, uploads.NewStore(t.TempDir()))
	router := setupChatRouter(t, handler, studentSession())

	roomRepo.On("GetRoomByName", mock.Anything, "general").
		Return(models.Room{Name: "general", AllowedRoles: allRoles}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, "general", "alice",
		mock.MatchedBy(func(content string) bool { return content != "" }),
		models.KindImage,
		mock.MatchedBy(func(path *string) bool { return path != nil && *path != "" }),
	).Return(models.Message{ID: 9, Room: "general", Username: "alice", Kind: models.KindImage}, nil).Once()

	rec := postMessage(t, router,
		map[string]string{"room": "general", "message_type": "image"},
		&filePart{name: "cat.png", content: "png bytes"})

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

// Storage returns newest-first; delivery must be oldest-first with the
// most recent message last.
func TestGetMessagesChronologicalOrder(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(new(mocks.RoomRepositoryMock), messageRepo, nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	newestFirst := []models.Message{
		{ID: 3, Room: "general", Username: "carol", Content: "third", Kind: models.KindText, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 2, Room: "general", Username: "bob", Content: "second", Kind: models.KindText, CreatedAt: base.Add(time.Minute)},
		{ID: 1, Room: "general", Username: "alice", Content: "first", Kind: models.KindText, CreatedAt: base},
	}
	messageRepo.On("ListRoomMessages", mock.Anything, "general", 850, 0).
		Return(newestFirst, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/get_messages/general", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
	assert.True(t, msgs[2].CreatedAt.After(msgs[0].CreatedAt), "page must end with the most recent message")
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesCustomPaging(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(new(mocks.RoomRepositoryMock), messageRepo, nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	messageRepo.On("ListRoomMessages", mock.Anything, "general", 10, 20).
		Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/get_messages/general?limit=10&offset=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	messageRepo.AssertExpectations(t)
}

func TestSearchMessagesNewestFirst(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(new(mocks.RoomRepositoryMock), messageRepo, nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	results := []models.Message{
		{ID: 5, Room: "general", Username: "bob", Content: "hi again", Kind: models.KindText},
		{ID: 2, Room: "general", Username: "alice", Content: "hi", Kind: models.KindText},
	}
	messageRepo.On("SearchRoomMessages", mock.Anything, "general", "hi").
		Return(results, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/search_messages?q=hi&room=general", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, 5, msgs[0].ID)
	assert.Equal(t, 2, msgs[1].ID)
	messageRepo.AssertExpectations(t)
}

func TestSearchMessagesRequiresQuery(t *testing.T) {
	handler := NewChatHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	req := httptest.NewRequest(http.MethodGet, "/search_messages?room=general", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Query parameter required")
}

func TestChatPageFiltersRoomsByRole(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	settingsRepo := new(mocks.SettingsRepositoryMock)
	handler := NewChatHandler(roomRepo, new(mocks.MessageRepositoryMock), nil, settingsRepo, nil)
	router := setupChatRouter(t, handler, studentSession())

	roomRepo.On("ListActiveRooms", mock.Anything).Return([]models.Room{
		{Name: "general", Description: "General discussion room", AllowedRoles: allRoles},
		{Name: "teachers_students", Description: "Teacher-Student discussions", AllowedRoles: `["teacher", "student"]`},
		{Name: "admin", Description: "Administrative discussions", AllowedRoles: `["admin"]`},
	}, nil).Once()
	settingsRepo.On("EnsureSettings", mock.Anything, 1).Return(nil).Once()
	settingsRepo.On("GetSettings", mock.Anything, 1).Return(models.DefaultSettings(1), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Username string `json:"username"`
		Rooms    []struct {
			Name string `json:"name"`
		} `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Username)
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, "general", resp.Rooms[0].Name)
	assert.Equal(t, "teachers_students", resp.Rooms[1].Name)

	roomRepo.AssertExpectations(t)
	settingsRepo.AssertExpectations(t)
}

func TestOnlineUsersExcludesCaller(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), userRepo, nil, nil)
	router := setupChatRouter(t, handler, studentSession())

	userRepo.On("ListOnlineUsers", mock.Anything, "alice").
		Return([]models.User{{Username: "bob", Role: models.RoleTeacher}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/get_online_users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var online []map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&online))
	require.Len(t, online, 1)
	assert.Equal(t, "bob", online[0]["username"])
	assert.Equal(t, "teacher", online[0]["role"])
	userRepo.AssertExpectations(t)
}

func TestSaveSettings(t *testing.T) {
	settingsRepo := new(mocks.SettingsRepositoryMock)
	handler := NewChatHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), nil, settingsRepo, nil)
	router := setupChatRouter(t, handler, studentSession())

	settingsRepo.On("SaveSettings", mock.Anything, models.UserSettings{
		UserID: 1, Theme: "light", Notifications: true, SoundEffects: false, FontSize: 16, AutoLogin: false,
	}).Return(nil).Once()

	form := "theme=light&notifications=on&font_size=16"
	req := httptest.NewRequest(http.MethodPost, "/user_settings", bytes.NewBufferString(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	settingsRepo.AssertExpectations(t)
}
