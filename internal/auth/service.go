package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/pkg/errors"
)

// Refresher exchanges a refresh token for new credentials
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (types.Session, error)
}

// Service performs the credential calls against the auth endpoints. These
// calls bypass the request pipeline so a failing refresh never recurses.
type Service struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     types.Logger
}

// NewService creates a new auth service
func NewService(baseURL string, httpClient *http.Client, logger types.Logger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: types.DefaultTimeout}
	}

	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"User-Agent":   types.UserAgent,
	}

	return &Service{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		headers:    headers,
		logger:     logger,
	}
}

// Refresh exchanges the refresh token. When the server does not rotate the
// refresh token, the old one is kept.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (types.Session, error) {
	if refreshToken == "" {
		return types.Session{}, types.ErrNoRefreshToken
	}

	if s.logger != nil {
		s.logger.Debug("Refresh request")
	}

	tokens, status, err := s.post(ctx, types.RefreshEndpoint, map[string]interface{}{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return types.Session{}, errors.Wrap(err, "refresh request failed")
	}

	if status != http.StatusOK {
		return types.Session{}, &types.Error{
			Kind:       types.KindUnauthorized,
			Message:    fmt.Sprintf("refresh failed with status %d", status),
			StatusCode: status,
			Err:        types.ErrRefreshFailed,
		}
	}

	session := tokens.session()
	if session.AccessToken == "" {
		return types.Session{}, errors.New("no access token in refresh response")
	}
	if session.RefreshToken == "" {
		session.RefreshToken = refreshToken
	}

	if s.logger != nil {
		s.logger.Info("Token refreshed")
	}

	return session, nil
}

// Login performs authentication with email and password
func (s *Service) Login(ctx context.Context, email, password string) (types.Session, error) {
	if s.logger != nil {
		s.logger.Debug("Login request", "email", email)
	}

	tokens, status, err := s.post(ctx, types.LoginEndpoint, map[string]interface{}{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return types.Session{}, errors.Wrap(err, "login request failed")
	}

	// Check status
	if status != http.StatusOK {
		if status == http.StatusUnauthorized {
			return types.Session{}, types.ErrLoginFailed
		}
		return types.Session{}, &types.Error{
			Kind:       types.KindUnknown,
			Message:    fmt.Sprintf("login failed with status %d", status),
			StatusCode: status,
			Err:        types.ErrLoginFailed,
		}
	}

	session := tokens.session()
	if session.AccessToken == "" {
		return types.Session{}, errors.New("no token in login response")
	}

	if s.logger != nil {
		s.logger.Info("Login successful", "email", email)
	}

	return session, nil
}

// post sends a JSON body and decodes a token response
func (s *Service) post(ctx context.Context, endpoint string, reqBody map[string]interface{}) (*tokenResponse, int, error) {
	// Marshal request
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to marshal request")
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create request")
	}

	// Set headers
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	// Execute request
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	// Read response
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to read response")
	}

	if s.logger != nil {
		s.logger.Debug("Auth response", "endpoint", endpoint, "status", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	// Parse response
	var tokens tokenResponse
	if err := json.Unmarshal(respBody, &tokens); err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to parse response")
	}

	return &tokens, resp.StatusCode, nil
}

// tokenResponse accepts both the flat and the enveloped token payloads
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Data         *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
}

func (t *tokenResponse) session() types.Session {
	if t.AccessToken == "" && t.Data != nil {
		return types.Session{AccessToken: t.Data.AccessToken, RefreshToken: t.Data.RefreshToken}
	}
	return types.Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}
