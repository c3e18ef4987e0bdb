package apiclient

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// APIResponse is the envelope the API wraps payloads in
type APIResponse[T any] struct {
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
}

// Paginated is a page of items
type Paginated[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// HasNext reports whether a later page exists
func (p *Paginated[T]) HasNext() bool {
	return p.PageNumber < p.TotalPages
}

// DecodeJSON unmarshals the response body into v
func DecodeJSON(resp *Response, v interface{}) error {
	if resp == nil {
		return errors.New("nil response")
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// DecodeEnvelope unmarshals the full envelope
func DecodeEnvelope[T any](resp *Response) (*APIResponse[T], error) {
	var env APIResponse[T]
	if err := DecodeJSON(resp, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodeData returns the envelope's data field
func DecodeData[T any](resp *Response) (T, error) {
	env, err := DecodeEnvelope[T](resp)
	if err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}
