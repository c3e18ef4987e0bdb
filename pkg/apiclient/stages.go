package apiclient

import (
	"context"
	"strings"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/auth"
	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/google/uuid"
)

// requestTimeLayout is RFC 3339 in UTC with millisecond precision
const requestTimeLayout = "2006-01-02T15:04:05.000Z07:00"

const bearerPrefix = "Bearer "

// RequestStage transforms a request before each attempt. Stages never block
// and never fail.
type RequestStage func(ctx context.Context, req *Request)

// prepare runs the stages in order
func prepare(ctx context.Context, stages []RequestStage, req *Request) {
	for _, stage := range stages {
		stage(ctx, req)
	}
}

// defaultStages is the request pipeline: id, time, version, then credentials
func (c *Client) defaultStages() []RequestStage {
	return []RequestStage{
		stampRequestID,
		stampRequestTime(func() time.Time { return c.now() }),
		stampClientVersion(c.clientVersion),
		injectAuthorization(c.tokens),
	}
}

func stampRequestID(_ context.Context, req *Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	setHeader(req, types.HeaderRequestID, req.ID)
}

func stampRequestTime(now func() time.Time) RequestStage {
	return func(_ context.Context, req *Request) {
		setHeader(req, types.HeaderRequestTime, now().UTC().Format(requestTimeLayout))
	}
}

func stampClientVersion(version string) RequestStage {
	return func(_ context.Context, req *Request) {
		setHeader(req, types.HeaderClientVersion, version)
	}
}

// injectAuthorization sets the bearer token, or removes the header when the
// session is unauthenticated
func injectAuthorization(tokens *auth.TokenManager) RequestStage {
	return func(_ context.Context, req *Request) {
		token, err := tokens.AccessToken()
		if err != nil {
			deleteHeader(req, types.HeaderAuthorization)
			return
		}
		setHeader(req, types.HeaderAuthorization, bearerPrefix+token)
	}
}

// bearerToken returns the access token the request was sent with
func bearerToken(req *Request) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, types.HeaderAuthorization) {
			return strings.TrimPrefix(v, bearerPrefix)
		}
	}
	return ""
}

// setHeader replaces any differently-cased copy of key
func setHeader(req *Request, key, value string) {
	deleteHeader(req, key)
	req.SetHeader(key, value)
}

func deleteHeader(req *Request, key string) {
	for k := range req.Headers {
		if strings.EqualFold(k, key) {
			delete(req.Headers, k)
		}
	}
}
