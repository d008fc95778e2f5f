package sessions

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const sessionName = "koas_sid"

// DefaultTTL is how long a session stays valid after its last save.
const DefaultTTL = 24 * time.Hour

// Identity is the authenticated admin bound to a session.
type Identity struct {
	UserID   uint   `json:"id"`
	Username string `json:"username"`
}

// Manager owns server-side session records. sessions are file-backed so they
// survive process restarts; expiry is enforced by the store itself via the
// timestamp baked into the signed cookie.
type Manager struct {
	store *sessions.FilesystemStore
}

// NewManager creates a file-backed session manager writing to dir. the
// secret is stretched into separate signing and encryption keys.
func NewManager(dir, secret string, secureCookie bool, ttl time.Duration) *Manager {
	h := sha256.Sum256([]byte("auth:" + secret))
	e := sha256.Sum256([]byte("enc:" + secret))

	store := sessions.NewFilesystemStore(dir, h[:], e[:])
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secureCookie,
	}
	// MaxAge also configures the codecs, which reject cookies older than the
	// TTL regardless of what the client claims
	store.MaxAge(int(ttl / time.Second))

	return &Manager{store: store}
}

// Establish records an authenticated identity and sets the session cookie.
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, userID uint, username string) error {
	// a stale or tampered cookie must not block a fresh login, so decode
	// errors are ignored and the returned blank session is used
	s, _ := m.store.Get(r, sessionName)
	s.Values["user_id"] = userID
	s.Values["username"] = username
	return s.Save(r, w)
}

// Current resolves the request's session cookie to an identity. a missing,
// expired, or malformed session reads as unauthenticated.
func (m *Manager) Current(r *http.Request) (Identity, bool) {
	s, err := m.store.Get(r, sessionName)
	if err != nil || s.IsNew {
		return Identity{}, false
	}
	userID, ok := s.Values["user_id"].(uint)
	if !ok {
		return Identity{}, false
	}
	username, ok := s.Values["username"].(string)
	if !ok || username == "" {
		return Identity{}, false
	}
	return Identity{UserID: userID, Username: username}, true
}

// Clear destroys the session record and expires the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	s, _ := m.store.Get(r, sessionName)
	for k := range s.Values {
		delete(s.Values, k)
	}
	s.Options.MaxAge = -1
	return s.Save(r, w)
}
