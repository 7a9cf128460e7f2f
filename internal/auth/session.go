package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"

	"school-chat-service/internal/models"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "session"

// Session is the authenticated identity carried on each request.
type Session struct {
	UserID   int
	Username string
	Role     models.Role
}

// Manager signs and verifies session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager builds a session manager with the given signing secret and TTL.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for the session.
func (m *Manager) Issue(s Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  s.UserID,
		"username": s.Username,
		"role":     string(s.Role),
		"exp":      time.Now().Add(m.ttl).Unix(),
	})
	return token.SignedString(m.secret)
}

// Verify parses a token and reconstructs the session it carries.
func (m *Manager) Verify(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("parse session token: %w", err)
	}
	if !token.Valid {
		return Session{}, fmt.Errorf("invalid session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, fmt.Errorf("unexpected claims type")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return Session{}, fmt.Errorf("missing user_id claim")
	}
	username, ok := claims["username"].(string)
	if !ok {
		return Session{}, fmt.Errorf("missing username claim")
	}
	roleClaim, ok := claims["role"].(string)
	if !ok {
		return Session{}, fmt.Errorf("missing role claim")
	}
	role, err := models.ParseRole(roleClaim)
	if err != nil {
		return Session{}, err
	}

	return Session{UserID: int(userID), Username: username, Role: role}, nil
}

// Cookie wraps a token in the session cookie. A persistent cookie survives
// browser restarts for the session TTL; otherwise it is a browser-session
// cookie.
func (m *Manager) Cookie(token string, persistent bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if persistent {
		cookie.Expires = time.Now().Add(m.ttl)
	}
	return cookie
}

// ExpiredCookie instructs the browser to drop the session cookie.
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
