// Package api implements the authenticated JSON client for the taskbot REST
// API: header attachment (session id, bearer token), structured error
// decoding, and a transparent refresh-and-retry cycle on 401 responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/taskbotapp/taskbot-go/authmodel"
	"github.com/taskbotapp/taskbot-go/credentials"
)

const (
	headerSessionID     = "X-Session-ID"
	headerRequestID     = "X-Request-ID"
	headerAuthorization = "Authorization"

	refreshEndpoint = "/auth/jwt/refresh/new"

	defaultTimeout = 30 * time.Second
)

// Request describes one call against the API. Endpoint is appended to the
// client's base URL and must start with "/". Headers are applied after the
// client's own headers, so caller-supplied values win.
type Request struct {
	Endpoint     string
	Method       string
	Body         []byte
	Headers      map[string]string
	RequiresAuth bool
}

// Client issues JSON requests against a fixed base endpoint. It attaches the
// stored session id and bearer token, and resolves a 401 on authenticated
// calls with exactly one refresh-and-retry cycle. Concurrent 401s share a
// single in-flight refresh call.
type Client struct {
	baseURL string
	http    *http.Client
	store   credentials.Store
	log     zerolog.Logger
	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying transport (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout on the default transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client for baseURL backed by store.
func New(baseURL string, store credentials.Store, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		store:   store,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do performs req and decodes a 2xx body into out. A nil out discards the
// body. On authenticated calls a 401 triggers one token refresh followed by
// one retry; a second 401 is surfaced as a terminal error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	status, body, err := c.send(ctx, req)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && req.RequiresAuth {
		if _, refreshErr := c.RefreshTokens(ctx); refreshErr != nil {
			c.log.Warn().Err(refreshErr).Str("endpoint", req.Endpoint).
				Msg("token refresh failed, surfacing original 401")
			return c.classify(status, body)
		}
		status, body, err = c.send(ctx, req)
		if err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return c.classify(status, body)
	}
	return decodeBody(body, out)
}

// PostForm performs a form-encoded POST and decodes a 2xx body into out. It
// attaches no session or bearer headers and never triggers the 401 retry
// cycle; the refresh sub-protocol is built on it.
func (c *Client) PostForm(ctx context.Context, endpoint string, params url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return decodeBody(body, out)
}

// RefreshTokens exchanges the stored refresh token for a new token pair and
// persists it. The new refresh token is stored only when the response carries
// one; rotation is optional. Concurrent callers coalesce onto a single
// network call and observe its one outcome.
func (c *Client) RefreshTokens(ctx context.Context) (authmodel.TokenPair, error) {
	v, err, _ := c.refresh.Do("refresh", func() (any, error) {
		refreshToken, ok := c.store.Get(credentials.KeyRefreshToken)
		if !ok || refreshToken == "" {
			return authmodel.TokenPair{}, ErrNoRefreshToken
		}

		var pair authmodel.TokenPair
		params := url.Values{"token": {refreshToken}}
		if err := c.PostForm(ctx, refreshEndpoint, params, &pair); err != nil {
			return authmodel.TokenPair{}, err
		}

		c.store.Set(credentials.KeyAccessToken, pair.AccessToken)
		if pair.RefreshToken != "" {
			c.store.Set(credentials.KeyRefreshToken, pair.RefreshToken)
		}
		c.log.Debug().Bool("rotated", pair.RefreshToken != "").Msg("access token refreshed")
		return pair, nil
	})
	if err != nil {
		return authmodel.TokenPair{}, err
	}
	return v.(authmodel.TokenPair), nil
}

// send performs one HTTP round trip and returns the status and body.
func (c *Client) send(ctx context.Context, req Request) (int, []byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Endpoint, bodyReader)
	if err != nil {
		return 0, nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, uuid.NewString())
	if sessionID, ok := c.store.Get(credentials.KeySessionID); ok && sessionID != "" {
		httpReq.Header.Set(headerSessionID, sessionID)
	}
	if req.RequiresAuth {
		if accessToken, ok := c.store.Get(credentials.KeyAccessToken); ok && accessToken != "" {
			httpReq.Header.Set(headerAuthorization, "Bearer "+accessToken)
		}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}
	c.log.Debug().Str("method", method).Str("endpoint", req.Endpoint).
		Int("status", resp.StatusCode).Msg("request complete")
	return resp.StatusCode, body, nil
}

// classify turns a non-2xx response into an APIError when the body carries a
// structured {detail, message} payload, and an HTTPError otherwise.
func (c *Client) classify(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Detail != "" || apiErr.Message != "") {
		apiErr.StatusCode = status
		return &apiErr
	}
	return &HTTPError{StatusCode: status}
}

func decodeBody(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
