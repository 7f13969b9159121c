// Package api implements the portal's authenticated request pipeline: a
// bearer-credential HTTP executor with transparent single-flight token
// refresh, a declarative resource endpoint registry, and a tag-based
// response cache with mutation-driven invalidation.
package api

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

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/harman-health/portalctl/internal/session"
)

// Request describes one logical API call. Path is relative to the API
// root. AllowAnonymous skips bearer injection and the 401 refresh path;
// the refresh call itself runs anonymously so a refresh endpoint that
// 401s can never trigger a second refresh.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Body           any
	Header         http.Header
	AllowAnonymous bool
}

// Response is a successful (2xx) API response.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Client executes authenticated requests against the portal API. It is
// the only writer of token state besides the login/logout flows: a 401
// triggers at most one refresh, shared across concurrent callers via a
// single-flight group, followed by at most one retry of the original
// request.
type Client struct {
	base    string
	http    *http.Client
	store   *session.Store
	logger  zerolog.Logger
	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the given API root (e.g.
// "http://localhost:8000/api/") backed by the given credential store.
func New(base string, store *session.Store, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/") + "/",
		http:   &http.Client{Timeout: 30 * time.Second},
		store:  store,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the credential store backing this client.
func (c *Client) Store() *session.Store {
	return c.store
}

var errNoRefreshToken = errors.New("no refresh token available")

// Do executes the request. Failures of any kind are returned as *Error;
// a non-nil Response always has a 2xx status.
//
// When a non-anonymous request comes back 401 the client performs one
// refresh (single-flight across concurrent callers), merges the rotated
// tokens into the store, and retries the original request exactly once.
// If the refresh cannot succeed the store is cleared and the original
// 401 is surfaced as an AuthExpired failure.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if !req.AllowAnonymous {
		c.refreshIfExpired(ctx)
	}

	token := ""
	if !req.AllowAnonymous {
		token = c.store.Current().AccessToken
	}

	resp, status, body, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}

	if status == http.StatusUnauthorized && !req.AllowAnonymous {
		if rerr := c.refreshTokens(ctx, token); rerr != nil {
			c.logger.Debug().Err(rerr).Msg("token refresh failed, clearing session")
			c.store.Clear()
			return nil, authExpiredError(body)
		}
		// Retry exactly once with the rotated token. A second 401 is
		// reported as-is; it never triggers another refresh.
		resp, status, body, err = c.send(ctx, req, c.store.Current().AccessToken)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}

	return nil, httpError(status, body)
}

// send performs a single HTTP exchange. It returns a non-nil *Response
// for 2xx, or the raw status and body otherwise. Transport failures come
// back as *Error with the network sentinel.
func (c *Client) send(ctx context.Context, req Request, token string) (*Response, int, []byte, error) {
	u := c.base + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var payload io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, 0, nil, networkError(fmt.Errorf("encode request body: %w", err))
		}
		payload = bytes.NewReader(raw)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, u, payload)
	if err != nil {
		return nil, 0, nil, networkError(err)
	}

	// Caller headers may override Accept, but the bearer token is applied
	// last so a stray caller header can never strip it.
	hreq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.Header {
		hreq.Header[http.CanonicalHeaderKey(k)] = vs
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, 0, nil, networkError(err)
	}
	defer hresp.Body.Close()

	body, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, 0, nil, networkError(err)
	}

	if hresp.StatusCode >= 200 && hresp.StatusCode < 300 {
		return &Response{Status: hresp.StatusCode, Body: body}, hresp.StatusCode, body, nil
	}
	return nil, hresp.StatusCode, body, nil
}

// refreshTokens performs the single-flight token refresh. seen is the
// token the failed request actually carried: concurrent callers share
// one in-flight refresh, and a caller whose 401 raced with an
// already-completed rotation finds the store holding a fresher token
// and skips the HTTP call entirely. The refresh runs detached from the
// caller's context so an abandoned request cannot poison the shared
// result.
func (c *Client) refreshTokens(ctx context.Context, seen string) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		cur := c.store.Current()
		if cur.AccessToken != "" && cur.AccessToken != seen {
			return nil, nil
		}
		if cur.RefreshToken == "" {
			return nil, errNoRefreshToken
		}

		resp, status, body, err := c.send(context.WithoutCancel(ctx), Request{
			Method:         http.MethodPost,
			Path:           "auth/refresh/",
			Body:           map[string]string{"refresh": cur.RefreshToken},
			AllowAnonymous: true,
		}, "")
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, httpError(status, body)
		}

		var rotated struct {
			Access  string `json:"access"`
			Refresh string `json:"refresh"`
		}
		if err := resp.Decode(&rotated); err != nil {
			return nil, fmt.Errorf("decode refresh response: %w", err)
		}
		if rotated.Access == "" {
			return nil, errors.New("refresh response missing access token")
		}

		// Merge, preserving the stored refresh token when the response
		// rotates the access token only, and the known user profile.
		c.store.SetCredentials(session.Patch{Access: rotated.Access, Refresh: rotated.Refresh})
		c.logger.Debug().Msg("access token refreshed")
		return nil, nil
	})
	return err
}

// refreshIfExpired refreshes proactively when the stored access token is
// a decodable JWT already past its expiry. Opaque tokens are left to the
// normal 401 path.
func (c *Client) refreshIfExpired(ctx context.Context) {
	cur := c.store.Current()
	if cur.AccessToken == "" || cur.RefreshToken == "" {
		return
	}
	if !tokenExpired(cur.AccessToken) {
		return
	}
	if err := c.refreshTokens(ctx, cur.AccessToken); err != nil {
		c.logger.Debug().Err(err).Msg("proactive refresh failed")
	}
}

func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
