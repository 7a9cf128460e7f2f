package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"school-chat-service/internal/middleware"
	"school-chat-service/internal/models"
	"school-chat-service/internal/observability"
	"school-chat-service/internal/repositories"
	"school-chat-service/internal/uploads"
)

const defaultMessageLimit = 850

// ChatHandler manages room listing, messaging and user settings.
type ChatHandler struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	settings repositories.SettingsRepository
	uploads  *uploads.Store
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, users repositories.UserRepository, settings repositories.SettingsRepository, uploadStore *uploads.Store) *ChatHandler {
	return &ChatHandler{
		rooms:    rooms,
		messages: messages,
		users:    users,
		settings: settings,
		uploads:  uploadStore,
	}
}

// ChatPage returns the rooms visible to the caller's role plus their
// settings — the data the chat client boots from.
func (h *ChatHandler) ChatPage(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)

	allRooms, err := h.rooms.ListActiveRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	type roomResponse struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	visible := make([]roomResponse, 0, len(allRooms))
	for _, room := range allRooms {
		if room.Permits(sess.Role) {
			visible = append(visible, roomResponse{Name: room.Name, Description: room.Description})
		}
	}

	if err := h.settings.EnsureSettings(c.Request.Context(), sess.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	settings, err := h.settings.GetSettings(c.Request.Context(), sess.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username": sess.Username,
		"role":     sess.Role,
		"rooms":    visible,
		"settings": settings,
	})
}

// OnlineUsers returns every online account except the caller.
func (h *ChatHandler) OnlineUsers(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)

	users, err := h.users.ListOnlineUsers(c.Request.Context(), sess.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load online users"})
		return
	}

	type onlineUser struct {
		Username string      `json:"username"`
		Role     models.Role `json:"role"`
	}
	resp := make([]onlineUser, 0, len(users))
	for _, u := range users {
		resp = append(resp, onlineUser{Username: u.Username, Role: u.Role})
	}
	c.JSON(http.StatusOK, resp)
}

// SendMessage validates and stores a text or media message. Validation
// order: room exists, role permitted, text present for text kind,
// attachment extension allowed, some content present.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, uploads.MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(uploads.MaxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			observability.IncUpload("oversized")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Upload too large. Maximum size is 16 MiB."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}

	room := c.PostForm("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room parameter is required"})
		return
	}

	roomRec, err := h.rooms.GetRoomByName(c.Request.Context(), room)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	if !roomRec.Permits(sess.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to this room"})
		return
	}

	kind, err := models.ParseMessageKind(c.DefaultPostForm("message_type", "text"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content := c.PostForm("message")
	if kind == models.KindText && strings.TrimSpace(content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text message cannot be empty"})
		return
	}

	var filePath *string
	if header, err := c.FormFile("file"); err == nil {
		if header.Filename == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No valid file provided"})
			return
		}

		safeName := uploads.SanitizeFilename(header.Filename)
		ext := uploads.Extension(safeName, header.Header.Get("Content-Type"))
		if !uploads.ExtensionAllowed(ext) {
			observability.IncUpload("rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file extension. Allowed: " + uploads.AllowedList()})
			return
		}

		stored, err := h.uploads.Save(header, sess.UserID)
		if err != nil {
			observability.IncUpload("error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}
		observability.IncUpload("stored")
		filePath = &stored
		if kind != models.KindText {
			content = stored
		}
	}

	if content == "" && filePath == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message or file required"})
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), room, sess.Username, content, kind, filePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageSent(room, string(kind))
	c.JSON(http.StatusOK, msg)
}

// GetMessages returns a page of room messages. Stored newest-first for
// cheap paging, delivered oldest-first so the page always ends with the
// most recent message in the window.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	room := c.Param("room")

	limit := defaultMessageLimit
	if parsed, err := strconv.Atoi(c.Query("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	offset := 0
	if parsed, err := strconv.Atoi(c.Query("offset")); err == nil && parsed > 0 {
		offset = parsed
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), room, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	// Reverse newest-first storage order into chronological delivery order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// SearchMessages returns room messages containing the query substring,
// newest-first.
func (h *ChatHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter required"})
		return
	}
	room := c.Query("room")

	msgs, err := h.messages.SearchRoomMessages(c.Request.Context(), room, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search messages"})
		return
	}

	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// GetSettings returns the caller's settings, creating defaults if absent.
func (h *ChatHandler) GetSettings(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)

	if err := h.settings.EnsureSettings(c.Request.Context(), sess.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	settings, err := h.settings.GetSettings(c.Request.Context(), sess.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// SaveSettings persists the caller's settings from form fields.
func (h *ChatHandler) SaveSettings(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)

	fontSize := 14
	if parsed, err := strconv.Atoi(c.PostForm("font_size")); err == nil && parsed > 0 {
		fontSize = parsed
	}
	theme := c.PostForm("theme")
	if theme == "" {
		theme = "dark"
	}

	settings := models.UserSettings{
		UserID:        sess.UserID,
		Theme:         theme,
		Notifications: c.PostForm("notifications") != "",
		SoundEffects:  c.PostForm("sound_effects") != "",
		FontSize:      fontSize,
		AutoLogin:     c.PostForm("auto_login") != "",
	}

	if err := h.settings.SaveSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Settings saved successfully!"})
}
