package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a mock implementation of TokenStorage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStorage) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockStorage) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func TestSessionStore_SetPersistsTokens(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewSessionStore(storage, nil)
	ctx := context.Background()

	assert.False(t, store.Read().IsAuthenticated())

	store.Set(ctx, types.Session{AccessToken: "a-1", RefreshToken: "r-1"})

	s := store.Read()
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "a-1", s.AccessToken)

	v, ok, _ := storage.Get(ctx, types.StorageKeyAccessToken)
	assert.True(t, ok)
	assert.Equal(t, "a-1", v)
	v, ok, _ = storage.Get(ctx, types.StorageKeyRefreshToken)
	assert.True(t, ok)
	assert.Equal(t, "r-1", v)
}

func TestSessionStore_ClearRemovesTokens(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewSessionStore(storage, nil)
	ctx := context.Background()

	store.Set(ctx, types.Session{AccessToken: "a-1", RefreshToken: "r-1"})

	assert.True(t, store.Clear(ctx), "first clear reports held credentials")
	assert.False(t, store.Clear(ctx), "second clear has nothing to drop")

	assert.False(t, store.Read().IsAuthenticated())
	_, ok, _ := storage.Get(ctx, types.StorageKeyAccessToken)
	assert.False(t, ok)
	_, ok, _ = storage.Get(ctx, types.StorageKeyRefreshToken)
	assert.False(t, ok)
}

func TestSessionStore_SetEmptyTokenDeletesKey(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewSessionStore(storage, nil)
	ctx := context.Background()

	store.Set(ctx, types.Session{AccessToken: "a-1", RefreshToken: "r-1"})
	store.Set(ctx, types.Session{RefreshToken: "r-1"})

	_, ok, _ := storage.Get(ctx, types.StorageKeyAccessToken)
	assert.False(t, ok)
	assert.False(t, store.Read().IsAuthenticated())
}

func TestSessionStore_Load(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, types.StorageKeyAccessToken, "a-7"))
	require.NoError(t, storage.Set(ctx, types.StorageKeyRefreshToken, "r-7"))

	store := NewSessionStore(storage, nil)
	require.NoError(t, store.Load(ctx))

	assert.Equal(t, types.Session{AccessToken: "a-7", RefreshToken: "r-7"}, store.Read())
}

func TestSessionStore_PersistFailureIsNotFatal(t *testing.T) {
	storage := new(MockStorage)
	storage.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	storage.On("Delete", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	store := NewSessionStore(storage, nil)
	ctx := context.Background()

	store.Set(ctx, types.Session{AccessToken: "a-1", RefreshToken: "r-1"})
	assert.Equal(t, "a-1", store.Read().AccessToken)

	assert.True(t, store.Clear(ctx))
	assert.False(t, store.Read().IsAuthenticated())

	storage.AssertExpectations(t)
}

func TestSessionStore_LoadError(t *testing.T) {
	storage := new(MockStorage)
	storage.On("Get", mock.Anything, types.StorageKeyAccessToken).Return("", false, errors.New("unreachable"))

	store := NewSessionStore(storage, nil)

	assert.Error(t, store.Load(context.Background()))
}

func TestSessionStore_ReadDoesNotWaitForStorage(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})

	storage := new(MockStorage)
	storage.On("Set", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		entered <- struct{}{}
		<-release
	}).Return(nil)

	store := NewSessionStore(storage, nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		store.Set(ctx, types.Session{AccessToken: "a-1", RefreshToken: "r-1"})
		close(done)
	}()
	<-entered

	read := make(chan types.Session, 1)
	go func() { read <- store.Read() }()

	select {
	case s := <-read:
		assert.Equal(t, "a-1", s.AccessToken)
	case <-time.After(time.Second):
		t.Fatal("Read blocked behind a storage write")
	}

	close(release)
	<-done
	storage.AssertExpectations(t)
}

func TestSessionStore_StorageFollowsSessionOrder(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewSessionStore(storage, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				store.Set(ctx, types.Session{AccessToken: fmt.Sprintf("a-%d", i), RefreshToken: fmt.Sprintf("r-%d", i)})
			} else {
				store.Clear(ctx)
			}
		}(i)
	}
	wg.Wait()

	// Whatever won last in memory is what storage holds
	final := store.Read()
	access, _, _ := storage.Get(ctx, types.StorageKeyAccessToken)
	refresh, _, _ := storage.Get(ctx, types.StorageKeyRefreshToken)
	assert.Equal(t, final, types.Session{AccessToken: access, RefreshToken: refresh})
}
