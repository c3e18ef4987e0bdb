package auth

import (
	"context"
	"sync"

	"github.com/eshaffer321/apiclient-go/internal/types"
)

// SessionStore holds the single credential state of a client and mirrors it
// into TokenStorage. Storage I/O happens outside mu, so Read never waits on it.
type SessionStore struct {
	session types.Session
	storage TokenStorage
	logger  types.Logger
	mu      sync.RWMutex

	// persistMu orders storage writes the same way as session swaps
	persistMu sync.Mutex
}

// NewSessionStore creates an unauthenticated store. A nil storage keeps
// tokens in memory only.
func NewSessionStore(storage TokenStorage, logger types.Logger) *SessionStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &SessionStore{
		storage: storage,
		logger:  logger,
	}
}

// Read returns the current snapshot
func (s *SessionStore) Read() types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Set replaces the session and persists both tokens. Persistence failures are
// logged; the in-memory session is authoritative.
func (s *SessionStore) Set(ctx context.Context, session types.Session) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.persist(ctx, types.StorageKeyAccessToken, session.AccessToken)
	s.persist(ctx, types.StorageKeyRefreshToken, session.RefreshToken)
}

// Clear resets to unauthenticated and removes persisted tokens. It reports
// whether any credential was held before the call.
func (s *SessionStore) Clear(ctx context.Context) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	had := !s.session.IsZero()
	s.session = types.Session{}
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, types.StorageKeyAccessToken, types.StorageKeyRefreshToken); err != nil && s.logger != nil {
		s.logger.Warn("Failed to remove persisted tokens", "error", err)
	}
	return had
}

// Load restores tokens from storage
func (s *SessionStore) Load(ctx context.Context) error {
	access, _, err := s.storage.Get(ctx, types.StorageKeyAccessToken)
	if err != nil {
		return err
	}
	refresh, _, err := s.storage.Get(ctx, types.StorageKeyRefreshToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.session = types.Session{AccessToken: access, RefreshToken: refresh}
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("Session loaded", "authenticated", access != "")
	}
	return nil
}

func (s *SessionStore) persist(ctx context.Context, key, value string) {
	var err error
	if value == "" {
		err = s.storage.Delete(ctx, key)
	} else {
		err = s.storage.Set(ctx, key, value)
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("Failed to persist token", "key", key, "error", err)
	}
}
