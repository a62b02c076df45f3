package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/pkg/logger"
)

// ErrAdminNotFound is returned by AdminStore implementations for unknown
// usernames.
var ErrAdminNotFound = errors.New("admin not found")

// ErrInvalidCredentials is returned by Login for any bad username/password
// combination. Unknown username and wrong password are deliberately
// indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminStore looks up admin accounts for login.
type AdminStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.Admin, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// Session represents an authenticated admin session.
type Session struct {
	AdminID   string    `json:"admin_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager handles admin password authentication and in-memory sessions.
// Sessions do not survive a restart; admins just log in again.
type Manager struct {
	store      AdminStore
	sessions   map[string]*Session
	sessionMu  sync.RWMutex
	cookieName string
	sessionTTL time.Duration
}

// NewManager creates an authentication manager. ttl values below one minute
// fall back to 30 minutes.
func NewManager(store AdminStore, cookieName string, ttl time.Duration) *Manager {
	if cookieName == "" {
		cookieName = "admin_session"
	}
	if ttl < time.Minute {
		ttl = 30 * time.Minute
	}
	return &Manager{
		store:      store,
		sessions:   make(map[string]*Session),
		cookieName: cookieName,
		sessionTTL: ttl,
	}
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Login verifies the credentials and creates a session, returning its ID.
// Inactive accounts cannot log in.
func (m *Manager) Login(ctx context.Context, username, password string) (string, *Session, error) {
	admin, err := m.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			// Burn a comparison anyway so unknown usernames take as long
			// as wrong passwords.
			bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !admin.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	session := &Session{
		AdminID:   admin.ID,
		Username:  admin.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.sessionTTL),
	}

	m.sessionMu.Lock()
	m.sessions[sessionID] = session
	m.sessionMu.Unlock()

	if err := m.store.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		logger.Warn("failed to stamp last login", "username", admin.Username, "err", err.Error())
	}

	log.Printf("[auth] admin logged in: %s", admin.Username)
	return sessionID, session, nil
}

// Logout destroys the session named by the request cookie, if any.
func (m *Manager) Logout(r *http.Request) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return
	}
	m.sessionMu.Lock()
	delete(m.sessions, cookie.Value)
	m.sessionMu.Unlock()
}

// GetSession returns the session for the request, or nil. Expired sessions
// are removed on access.
func (m *Manager) GetSession(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil
	}

	m.sessionMu.RLock()
	session, exists := m.sessions[cookie.Value]
	m.sessionMu.RUnlock()

	if !exists {
		return nil
	}

	if time.Now().After(session.ExpiresAt) {
		m.sessionMu.Lock()
		delete(m.sessions, cookie.Value)
		m.sessionMu.Unlock()
		return nil
	}

	return session
}

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string { return m.cookieName }

// SessionTTL returns the configured session lifetime.
func (m *Manager) SessionTTL() time.Duration { return m.sessionTTL }

// SetSessionCookie writes the session cookie to the response.
func (m *Manager) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(m.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (m *Manager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   m.cookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// RequireAuth is middleware that rejects unauthenticated requests with a
// 401 JSON body.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.GetSession(r) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CleanupExpiredSessions sweeps expired sessions until ctx is cancelled.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sessionMu.Lock()
				now := time.Now()
				for id, session := range m.sessions {
					if now.After(session.ExpiresAt) {
						delete(m.sessions, id)
					}
				}
				m.sessionMu.Unlock()
			}
		}
	}()
}
