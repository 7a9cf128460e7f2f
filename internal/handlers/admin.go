package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"school-chat-service/internal/middleware"
	"school-chat-service/internal/repositories"
	"school-chat-service/internal/telemetry"
)

// AdminHandler manages the user moderation console. Every route behind it
// requires the admin role.
type AdminHandler struct {
	users    repositories.UserRepository
	settings repositories.SettingsRepository
	audit    *telemetry.AuditEmitter
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(users repositories.UserRepository, settings repositories.SettingsRepository, audit *telemetry.AuditEmitter) *AdminHandler {
	return &AdminHandler{users: users, settings: settings, audit: audit}
}

// ListUsers returns every account with approval and ban metadata,
// newest-created first.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ApproveUser grants an account login rights. Idempotent: approving an
// approved user succeeds without change.
func (h *AdminHandler) ApproveUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.users.ApproveUser(c.Request.Context(), id); err != nil {
		h.writeUserError(c, err, "could not approve user")
		return
	}

	sess, _ := middleware.SessionFrom(c)
	h.audit.Emit(c.Request.Context(), "user.approved", "account approved", requestIDFromContext(c), sess.Username, &id)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "User approved successfully!"})
}

// RejectUser hard-deletes a pending account and its settings.
func (h *AdminHandler) RejectUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	// Settings reference the user row, so they go first.
	if err := h.settings.DeleteSettings(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove user settings"})
		return
	}
	if err := h.users.DeleteUser(c.Request.Context(), id); err != nil {
		h.writeUserError(c, err, "could not reject user")
		return
	}

	sess, _ := middleware.SessionFrom(c)
	h.audit.Emit(c.Request.Context(), "user.rejected", "account rejected and removed", requestIDFromContext(c), sess.Username, &id)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "User rejected and removed from system!"})
}

// BanUserForm returns the target account for the ban confirmation form.
func (h *AdminHandler) BanUserForm(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		h.writeUserError(c, err, "could not load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": user.ID, "username": user.Username}})
}

// BanUser suspends an account with a reason and forces it offline.
// Idempotent: banning a banned user overwrites the ban fields.
func (h *AdminHandler) BanUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	reason := c.PostForm("ban_reason")
	if reason == "" {
		reason = "No reason provided"
	}

	sess, _ := middleware.SessionFrom(c)
	if err := h.users.BanUser(c.Request.Context(), id, reason, sess.UserID); err != nil {
		h.writeUserError(c, err, "could not ban user")
		return
	}

	h.audit.Emit(c.Request.Context(), "user.banned", "account banned: "+reason, requestIDFromContext(c), sess.Username, &id)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "User has been banned successfully!"})
}

// UnbanUser lifts a suspension, clearing every ban field. Idempotent.
func (h *AdminHandler) UnbanUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.users.UnbanUser(c.Request.Context(), id); err != nil {
		h.writeUserError(c, err, "could not unban user")
		return
	}

	sess, _ := middleware.SessionFrom(c)
	h.audit.Emit(c.Request.Context(), "user.unbanned", "account unbanned", requestIDFromContext(c), sess.Username, &id)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "User has been unbanned successfully!"})
}

func (h *AdminHandler) writeUserError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
