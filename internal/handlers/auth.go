package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"school-chat-service/internal/auth"
	"school-chat-service/internal/config"
	"school-chat-service/internal/models"
	"school-chat-service/internal/observability"
	"school-chat-service/internal/repositories"
	"school-chat-service/internal/telemetry"
)

// AuthHandler manages registration, login and password recovery.
type AuthHandler struct {
	users    repositories.UserRepository
	settings repositories.SettingsRepository
	sessions *auth.Manager
	admins   *config.AdminStore
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, settings repositories.SettingsRepository, sessions *auth.Manager, admins *config.AdminStore, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{
		users:    users,
		settings: settings,
		sessions: sessions,
		admins:   admins,
		audit:    audit,
	}
}

// LoginPage is the login entry point gated requests redirect to.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "login", "next": c.Query("next")})
}

// RegisterPage returns the registration form data, including the role
// choices the form offers.
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "register", "roles": models.Roles})
}

// Login authenticates a user and establishes the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	rememberMe := c.PostForm("remember_me") != ""

	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), username)
	if err != nil || !auth.VerifyPassword(user.PasswordHash, password) {
		observability.IncAuthFailure("bad_credentials")
		h.audit.Emit(c.Request.Context(), "user.login_failed", "invalid credentials for "+username, requestIDFromContext(c), observability.IPFromRequest(c.Request), nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !user.Approved {
		observability.IncAuthFailure("unapproved")
		c.JSON(http.StatusForbidden, gin.H{"error": "Account pending admin approval. Please wait."})
		return
	}

	if user.Banned {
		reason := "No reason provided"
		if user.BanReason != nil && *user.BanReason != "" {
			reason = *user.BanReason
		}
		observability.IncAuthFailure("banned")
		c.JSON(http.StatusForbidden, gin.H{"error": "Account banned. Reason: " + reason})
		return
	}

	token, err := h.sessions.Issue(auth.Session{UserID: user.ID, Username: user.Username, Role: user.Role})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not establish session"})
		return
	}
	http.SetCookie(c.Writer, h.sessions.Cookie(token, rememberMe))

	if err := h.users.RecordLogin(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record login"})
		return
	}
	if err := h.settings.EnsureSettings(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not initialize settings"})
		return
	}

	h.audit.Emit(c.Request.Context(), "user.login", user.Username+" logged in", requestIDFromContext(c), user.Username, &user.ID)

	next := c.Query("next")
	if next == "" || !strings.HasPrefix(next, "/") {
		next = "/chat"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"next":     next,
		"username": user.Username,
		"role":     user.Role,
	})
}

// Register creates an unapproved account.
func (h *AuthHandler) Register(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")
	confirm := c.PostForm("confirm_password")

	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	if password != confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords do not match."})
		return
	}
	role, err := models.ParseRole(c.PostForm("role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role selected."})
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process password"})
		return
	}

	var emailPtr *string
	if email != "" {
		emailPtr = &email
	}

	user, err := h.users.CreateUser(c.Request.Context(), username, emailPtr, hash, role)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email already exists."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
		return
	}

	h.audit.Emit(c.Request.Context(), "user.registered", user.Username+" registered as "+string(role), requestIDFromContext(c), user.Username, &user.ID)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "message": "Registration successful! Awaiting admin approval."})
}

// ForgotPassword generates a reset token. Email delivery is simulated:
// the token comes back in the response body.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	username := c.PostForm("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Username not found"})
		return
	}

	token := uuid.NewString()
	if err := h.users.SetResetToken(c.Request.Context(), username, token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store reset token"})
		return
	}

	h.audit.Emit(c.Request.Context(), "user.reset_requested", "reset token issued for "+username, requestIDFromContext(c), username, &user.ID)
	c.JSON(http.StatusOK, gin.H{
		"reset_token": token,
		"message":     "Reset token generated. Use it to update your password.",
	})
}

// UpdatePassword changes a password, either for the session holder or by
// redeeming a reset token.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	newPassword := c.PostForm("new_password")
	confirm := c.PostForm("confirm_password")

	if newPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new password is required"})
		return
	}
	if newPassword != confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords do not match"})
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process password"})
		return
	}

	// A valid session means the holder is changing their own password;
	// otherwise a reset token is required.
	if cookie, err := c.Cookie(auth.SessionCookie); err == nil {
		if sess, err := h.sessions.Verify(cookie); err == nil {
			if err := h.users.UpdatePassword(c.Request.Context(), sess.UserID, hash); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update password"})
				return
			}
			h.audit.Emit(c.Request.Context(), "user.password_changed", sess.Username+" changed password", requestIDFromContext(c), sess.Username, &sess.UserID)
			c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
			return
		}
	}

	token := c.PostForm("reset_token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reset token is required"})
		return
	}
	if err := h.users.UpdatePasswordByResetToken(c.Request.Context(), token, hash); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully. Please login."})
}

// AdminLogin authenticates against the external admin credential store,
// provisioning the admin account on first login.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	rememberMe := c.PostForm("remember_me") != ""

	cred, ok := h.admins.Lookup(username)
	if !ok || cred.Password != password {
		observability.IncAuthFailure("bad_admin_credentials")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin credentials"})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), username)
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		hash, hashErr := auth.HashPassword(password)
		if hashErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process password"})
			return
		}
		user, err = h.users.CreateAdmin(c.Request.Context(), username, cred.Email, hash)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Admin account creation failed."})
			return
		}
		if err := h.settings.EnsureSettings(c.Request.Context(), user.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not initialize settings"})
			return
		}
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load admin account"})
		return
	default:
		if user.Role != models.RoleAdmin || !user.Approved || user.Banned {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin account is disabled. Please contact system administrator."})
			return
		}
	}

	token, err := h.sessions.Issue(auth.Session{UserID: user.ID, Username: user.Username, Role: models.RoleAdmin})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not establish session"})
		return
	}
	http.SetCookie(c.Writer, h.sessions.Cookie(token, rememberMe))

	if err := h.users.RecordLogin(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record login"})
		return
	}

	h.audit.Emit(c.Request.Context(), "admin.login", username+" logged in as admin", requestIDFromContext(c), username, &user.ID)
	c.JSON(http.StatusOK, gin.H{"status": "success", "next": "/admin/users"})
}

// Logout marks the account offline and drops the session cookie. Safe to
// call without a session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if cookie, err := c.Cookie(auth.SessionCookie); err == nil {
		if sess, err := h.sessions.Verify(cookie); err == nil {
			if err := h.users.SetOnline(c.Request.Context(), sess.UserID, false); err == nil {
				h.audit.Emit(c.Request.Context(), "user.logout", sess.Username+" logged out", requestIDFromContext(c), sess.Username, &sess.UserID)
			}
		}
	}

	http.SetCookie(c.Writer, auth.ExpiredCookie())
	c.Redirect(http.StatusFound, "/login")
}
