package twitter

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sklad-bot/sklad/internal/store"
)

// Session wraps an authenticated provider connection for one user. It is
// process-lifetime only and recreated from stored credentials on restart.
type Session struct {
	Client Client

	mu            sync.Mutex
	authenticated bool
}

// Authenticated reports whether the session holds a live login.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Manager owns one session per user, memoized for the process lifetime.
// Construct one per process and inject it into handlers.
type Manager struct {
	store     *store.Store
	newClient func() Client

	mu       sync.Mutex
	sessions map[uint]*Session
}

// NewManager builds a Manager over the default scraper binding.
func NewManager(st *store.Store) *Manager {
	return &Manager{
		store:     st,
		newClient: newScraperClient,
		sessions:  make(map[uint]*Session),
	}
}

// NewManagerWithClient builds a Manager with a custom client constructor.
func NewManagerWithClient(st *store.Store, newClient func() Client) *Manager {
	return &Manager{
		store:     st,
		newClient: newClient,
		sessions:  make(map[uint]*Session),
	}
}

// Session returns the cached session for a user, constructing a fresh
// unauthenticated one on first use.
func (m *Manager) Session(userID uint) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[userID]; ok {
		return session
	}
	session := &Session{Client: m.newClient()}
	m.sessions[userID] = session
	return session
}

// EnsureLoggedIn returns an authenticated session for the user, performing
// the login when needed. Cookie-based login is preferred; a credential login
// persists the resulting cookies back onto the user row.
func (m *Manager) EnsureLoggedIn(user *store.User) (*Session, error) {
	session := m.Session(user.ID)

	// The whole login sequence runs under the session lock: the auto-login
	// sweep and a command handler may arrive here for the same user, and the
	// scraper client tolerates only one login at a time.
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.authenticated {
		return session, nil
	}

	if !user.HasCookies() && !user.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	if user.HasCookies() {
		cookies, err := decodeCookies(user.Cookies)
		if err != nil {
			logrus.WithError(err).Warnf("Stored cookies for %s are unreadable", user.Username)
		} else {
			session.Client.SetCookies(cookies)
			if session.Client.IsLoggedIn() {
				logrus.Debugf("Cookie login successful for %s", user.Username)
				session.authenticated = true
				return session, nil
			}
			logrus.Warnf("Stored cookies for %s are stale", user.Username)
		}
	}

	if !user.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	if err := session.Client.Login(user.TwitterUsername, user.TwitterEmail, user.TwitterPassword); err != nil {
		return nil, err
	}
	session.authenticated = true
	logrus.Debugf("Credential login successful for %s", user.Username)

	blob, err := encodeCookies(session.Client.Cookies())
	if err != nil {
		logrus.WithError(err).Errorf("Failed to serialize cookies for %s", user.Username)
		return session, nil
	}
	if err := m.store.SaveCookies(user, blob); err != nil {
		logrus.WithError(err).Errorf("Failed to save cookies for %s", user.Username)
	}
	return session, nil
}

// AutoLogin eagerly establishes sessions for every user with stored cookies
// so later commands do not pay login latency. Failures are logged, never
// fatal.
func (m *Manager) AutoLogin() {
	users, err := m.store.Users()
	if err != nil {
		logrus.WithError(err).Error("Auto-login sweep could not list users")
		return
	}
	for i := range users {
		user := &users[i]
		if !user.HasCookies() {
			continue
		}
		if _, err := m.EnsureLoggedIn(user); err != nil {
			logrus.WithError(err).Warnf("Auto-login failed for %s", user.Username)
			continue
		}
		logrus.Infof("Auto-login successful for %s", user.Username)
	}
}
