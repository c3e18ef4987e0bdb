package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeRefresher counts calls and blocks until released
type fakeRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	session types.Session
	err     error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (types.Session, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return types.Session{}, ctx.Err()
		}
	}
	return f.session, f.err
}

func newTestManager(refresher Refresher, onExpired ExpiredFunc) (*TokenManager, *SessionStore) {
	store := NewSessionStore(NewMemoryStorage(), nil)
	store.Set(context.Background(), types.Session{AccessToken: "old", RefreshToken: "r-old"})
	return NewTokenManager(store, TokenManagerOptions{
		Refresher: refresher,
		Timeout:   5 * time.Second,
		OnExpired: onExpired,
	}), store
}

func TestTokenManager_AccessToken(t *testing.T) {
	m, store := newTestManager(nil, nil)

	token, err := m.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "old", token)

	store.Clear(context.Background())

	_, err = m.AccessToken()
	assert.ErrorIs(t, err, types.ErrAuthRequired)
}

func TestTokenManager_RefreshSuccess(t *testing.T) {
	refresher := &fakeRefresher{session: types.Session{AccessToken: "new", RefreshToken: "r-new"}}
	m, store := newTestManager(refresher, nil)

	s, err := m.Refresh(context.Background(), "old")

	require.NoError(t, err)
	assert.Equal(t, "new", s.AccessToken)
	assert.Equal(t, "new", store.Read().AccessToken)
	assert.Equal(t, "r-new", store.Read().RefreshToken)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestTokenManager_ConcurrentRefreshIsSingleFlight(t *testing.T) {
	refresher := &fakeRefresher{
		release: make(chan struct{}),
		session: types.Session{AccessToken: "new", RefreshToken: "r-new"},
	}
	m, _ := newTestManager(refresher, nil)

	const n = 10
	var wg sync.WaitGroup
	results := make([]types.Session, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Refresh(context.Background(), "old")
		}(i)
	}

	// Let every goroutine join the flight before completing it
	time.Sleep(50 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new", results[i].AccessToken)
	}
}

func TestTokenManager_LateCallerReusesRefreshedToken(t *testing.T) {
	refresher := &fakeRefresher{session: types.Session{AccessToken: "new", RefreshToken: "r-new"}}
	m, _ := newTestManager(refresher, nil)

	_, err := m.Refresh(context.Background(), "old")
	require.NoError(t, err)

	// A request that carried the old token fails after the refresh finished
	s, err := m.Refresh(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "new", s.AccessToken)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestTokenManager_RefreshFailureClearsAndNotifiesOnce(t *testing.T) {
	refresher := &fakeRefresher{
		release: make(chan struct{}),
		err:     errors.New("invalid refresh token"),
	}
	var notified atomic.Int32
	m, store := newTestManager(refresher, func(ctx context.Context, cause error) {
		notified.Add(1)
	})

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Refresh(context.Background(), "old")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, types.ErrRefreshFailed)
	}
	assert.False(t, store.Read().IsAuthenticated())
	assert.Equal(t, int32(1), notified.Load())
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestTokenManager_NoRefreshToken(t *testing.T) {
	refresher := &fakeRefresher{}
	m, store := newTestManager(refresher, nil)
	store.Set(context.Background(), types.Session{AccessToken: "old"})

	_, err := m.Refresh(context.Background(), "old")

	assert.ErrorIs(t, err, types.ErrRefreshFailed)
	assert.ErrorIs(t, err, types.ErrNoRefreshToken)
	assert.Equal(t, int32(0), refresher.calls.Load())
}

func TestTokenManager_WaiterCancelDoesNotCancelRefresh(t *testing.T) {
	refresher := &fakeRefresher{
		release: make(chan struct{}),
		session: types.Session{AccessToken: "new", RefreshToken: "r-new"},
	}
	m, store := newTestManager(refresher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancelledErr := make(chan error, 1)
	go func() {
		_, err := m.Refresh(ctx, "old")
		cancelledErr <- err
	}()

	otherResult := make(chan types.Session, 1)
	go func() {
		s, _ := m.Refresh(context.Background(), "old")
		otherResult <- s
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-cancelledErr, context.Canceled)

	close(refresher.release)
	assert.Equal(t, "new", (<-otherResult).AccessToken)
	assert.Equal(t, "new", store.Read().AccessToken)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestTokenManager_Expire(t *testing.T) {
	var notified atomic.Int32
	m, store := newTestManager(nil, func(ctx context.Context, cause error) {
		notified.Add(1)
	})

	m.Expire(context.Background(), errors.New("401 after refresh"))
	m.Expire(context.Background(), errors.New("401 after refresh"))

	assert.False(t, store.Read().IsAuthenticated())
	assert.Equal(t, int32(1), notified.Load())
}

func TestTokenManager_ExpireRemovesTokensAfterCallerCancelled(t *testing.T) {
	storage := new(MockStorage)
	storage.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	storage.On("Delete", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(nil).Once()

	store := NewSessionStore(storage, nil)
	store.Set(context.Background(), types.Session{AccessToken: "old", RefreshToken: "r-old"})
	m := NewTokenManager(store, TokenManagerOptions{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Expire(ctx, errors.New("401 after refresh"))

	assert.False(t, store.Read().IsAuthenticated())
	storage.AssertExpectations(t)
}
