package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// ExpiredFunc is called once when a session is lost
type ExpiredFunc func(ctx context.Context, cause error)

// TokenManagerOptions configures a TokenManager
type TokenManagerOptions struct {
	Refresher Refresher
	Logger    types.Logger

	// Timeout bounds one refresh call; it is detached from any waiter's context
	Timeout time.Duration

	OnExpired ExpiredFunc
}

// TokenManager owns the refresh protocol. At most one refresh call is in
// flight per manager; concurrent callers share its result.
type TokenManager struct {
	session   *SessionStore
	refresher Refresher
	logger    types.Logger
	timeout   time.Duration
	onExpired ExpiredFunc
	group     singleflight.Group
}

type refreshResult struct {
	session   types.Session
	refreshed bool
}

// NewTokenManager creates a token manager over session
func NewTokenManager(session *SessionStore, opts TokenManagerOptions) *TokenManager {
	if opts.Timeout <= 0 {
		opts.Timeout = types.DefaultTimeout
	}
	return &TokenManager{
		session:   session,
		refresher: opts.Refresher,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
		onExpired: opts.OnExpired,
	}
}

// AccessToken returns the current access token or ErrAuthRequired
func (m *TokenManager) AccessToken() (string, error) {
	s := m.session.Read()
	if !s.IsAuthenticated() {
		return "", types.ErrAuthRequired
	}
	return s.AccessToken, nil
}

// Refresh obtains credentials newer than staleToken, the access token the
// caller's rejected request carried. If another refresh already replaced
// staleToken, the current session is returned without a new refresh call.
// Cancelling ctx abandons the wait only; the shared refresh keeps running.
func (m *TokenManager) Refresh(ctx context.Context, staleToken string) (types.Session, error) {
	// A flight started by a caller holding an older token may return
	// staleToken unchanged; join or start one more flight in that case.
	for i := 0; i < 2; i++ {
		res, err := m.await(ctx, staleToken)
		if err != nil {
			return types.Session{}, err
		}
		if res.refreshed || res.session.AccessToken != staleToken {
			return res.session, nil
		}
	}
	return types.Session{}, types.ErrRefreshFailed
}

// Expire clears the session and notifies subscribers when credentials were held.
// Removing persisted tokens is detached from ctx so a caller at its deadline
// cannot leave them behind for the next Load.
func (m *TokenManager) Expire(ctx context.Context, cause error) {
	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	if m.session.Clear(clearCtx) {
		if m.logger != nil {
			m.logger.Warn("Session expired", "error", cause)
		}
		if m.onExpired != nil {
			m.onExpired(ctx, cause)
		}
	}
}

func (m *TokenManager) await(ctx context.Context, staleToken string) (refreshResult, error) {
	ch := m.group.DoChan(refreshKey, func() (interface{}, error) {
		return m.refresh(ctx, staleToken)
	})

	select {
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return refreshResult{}, res.Err
		}
		return res.Val.(refreshResult), nil
	}
}

// refresh runs inside the single flight
func (m *TokenManager) refresh(ctx context.Context, staleToken string) (refreshResult, error) {
	current := m.session.Read()
	if current.IsAuthenticated() && current.AccessToken != staleToken {
		return refreshResult{session: current}, nil
	}

	flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	var (
		session types.Session
		err     error
	)
	switch {
	case m.refresher == nil:
		err = types.ErrNoRefreshToken
	case current.RefreshToken == "":
		err = types.ErrNoRefreshToken
	default:
		session, err = m.refresher.Refresh(flightCtx, current.RefreshToken)
	}

	if err != nil {
		if m.logger != nil {
			m.logger.Error("Token refresh failed", "error", err)
		}
		wrapped := fmt.Errorf("%w: %w", types.ErrRefreshFailed, err)
		m.Expire(flightCtx, wrapped)
		return refreshResult{}, wrapped
	}

	m.session.Set(flightCtx, session)
	return refreshResult{session: session, refreshed: true}, nil
}
