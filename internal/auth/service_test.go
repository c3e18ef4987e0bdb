package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Refresh(t *testing.T) {
	tests := []struct {
		name            string
		response        string
		expectedAccess  string
		expectedRefresh string
	}{
		{
			name:            "flat payload with rotation",
			response:        `{"accessToken": "a-2", "refreshToken": "r-2"}`,
			expectedAccess:  "a-2",
			expectedRefresh: "r-2",
		},
		{
			name:            "flat payload keeps old refresh token",
			response:        `{"accessToken": "a-2"}`,
			expectedAccess:  "a-2",
			expectedRefresh: "r-1",
		},
		{
			name:            "enveloped payload",
			response:        `{"data": {"accessToken": "a-3"}, "success": true, "message": "ok", "statusCode": 200}`,
			expectedAccess:  "a-3",
			expectedRefresh: "r-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, types.RefreshEndpoint, r.URL.Path)
				_ = json.NewDecoder(r.Body).Decode(&got)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			svc := NewService(server.URL, server.Client(), nil)

			s, err := svc.Refresh(context.Background(), "r-1")

			require.NoError(t, err)
			assert.Equal(t, "r-1", got["refreshToken"])
			assert.Equal(t, tt.expectedAccess, s.AccessToken)
			assert.Equal(t, tt.expectedRefresh, s.RefreshToken)
		})
	}
}

func TestService_RefreshRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc := NewService(server.URL, server.Client(), nil)

	_, err := svc.Refresh(context.Background(), "r-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRefreshFailed)
}

func TestService_RefreshMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	svc := NewService(server.URL, server.Client(), nil)

	_, err := svc.Refresh(context.Background(), "r-1")
	assert.Error(t, err)

	_, err = svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrNoRefreshToken)
}

func TestService_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data": {"accessToken": "a-1", "refreshToken": "r-1"}}`))
	}))
	defer server.Close()

	svc := NewService(server.URL+"/", server.Client(), nil)

	s, err := svc.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, types.Session{AccessToken: "a-1", RefreshToken: "r-1"}, s)

	_, err = svc.Login(context.Background(), "user@example.com", "wrong")
	assert.ErrorIs(t, err, types.ErrLoginFailed)
}
