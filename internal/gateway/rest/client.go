// Package rest talks to the hosted storefront backend over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/pkg/logger"
)

type Options struct {
	BaseURL string
	// APIKey is sent as the apikey header when set.
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the hosted-backend gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	creds      gateway.CredentialSource
}

func New(opts Options, creds gateway.CredentialSource) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		creds:      creds,
	}
}

// Gateway exposes the client through the gateway interfaces.
func (c *Client) Gateway() *gateway.Gateway {
	return &gateway.Gateway{
		Auth:    &authAPI{c: c},
		Catalog: &catalogAPI{c: c},
		Cart:    &cartAPI{c: c},
		Orders:  &orderAPI{c: c},
	}
}

// do performs one call. A url.Values body is sent form-encoded, anything
// else as JSON. out may be nil. It returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, apperrors.NewInternalError("", fmt.Errorf("failed to marshal request body: %w", err))
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, apperrors.NewInternalError("", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	token := gateway.TokenFor(ctx, c.creds)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Backend request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, apperrors.NewTransientError("", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransientError("", fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := mapStatus(resp.StatusCode, respBody, token != "")
		logger.Debug("Backend returned an error", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"code":   apiErr.Code,
		})
		return nil, apiErr
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, apperrors.InternalExternalAPI,
				"the server sent an unexpected response", fmt.Errorf("failed to unmarshal %s %s: %w", method, path, err))
		}
	}
	return respBody, nil
}

// errorBody covers the error shapes the backend produces: a string detail,
// a list of field errors, or a message/error pair.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type fieldError struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

func parseErrorBody(body []byte) (string, map[string]string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", nil
	}

	if len(eb.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(eb.Detail, &detail); err == nil {
			return detail, nil
		}
		var list []fieldError
		if err := json.Unmarshal(eb.Detail, &list); err == nil {
			fields := make(map[string]string, len(list))
			msgs := make([]string, 0, len(list))
			for _, fe := range list {
				msgs = append(msgs, fe.Msg)
				if len(fe.Loc) > 0 {
					fields[fmt.Sprint(fe.Loc[len(fe.Loc)-1])] = fe.Msg
				}
			}
			return strings.Join(msgs, ", "), fields
		}
	}
	if eb.Message != "" {
		return eb.Message, nil
	}
	return eb.Error, nil
}

func mapStatus(status int, body []byte, tokenSent bool) *apperrors.Error {
	message, fields := parseErrorBody(body)
	cause := fmt.Errorf("backend status %d: %s", status, message)

	switch {
	case status == http.StatusUnauthorized:
		if tokenSent {
			return apperrors.NewExpiredSessionError(cause)
		}
		if strings.Contains(strings.ToLower(message), "confirm") {
			return apperrors.NewAuthError(apperrors.AuthEmailNotConfirmed, "confirm your email address before signing in")
		}
		e := apperrors.NewAuthError(apperrors.AuthInvalidCredentials, "incorrect email or password")
		e.Err = cause
		return e
	case status == http.StatusForbidden:
		e := apperrors.NewForbiddenError(apperrors.AuthzForbidden, orDefault(message, "you do not have access to this resource"))
		e.Err = cause
		return e
	case status == http.StatusNotFound:
		e := apperrors.NewNotFoundError(apperrors.ResourceNotFound, orDefault(message, "the requested record was not found"))
		e.Err = cause
		return e
	case status == http.StatusConflict:
		e := apperrors.NewConflictError(apperrors.ResourceConflict, orDefault(message, "this record already exists"))
		e.Err = cause
		return e
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e := apperrors.NewValidationError(apperrors.ValidationInvalidInput, orDefault(message, "some fields are invalid"), fields)
		e.Err = cause
		return e
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.NewTransientError("", cause)
	default:
		return apperrors.Wrap(apperrors.KindInternal, apperrors.InternalExternalAPI, "the server sent an unexpected response", cause)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// isAlreadyExists reports a backend refusal phrased as a duplicate.
func isAlreadyExists(err error) bool {
	var e *apperrors.Error
	if !errors.As(err, &e) || e.Kind != apperrors.KindValidation {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already") || strings.Contains(msg, "exists")
}
