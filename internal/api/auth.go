package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/harman-health/portalctl/internal/session"
)

// Login authenticates with email and password, stores the returned
// tokens and user profile, and returns the signed-in user's profile.
// When the login response omits the user, the profile is fetched from
// auth/me/; if that also fails the raw login payload is returned.
func (c *Client) Login(ctx context.Context, email, password string) (map[string]any, error) {
	resp, err := c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           "auth/login/",
		Body:           map[string]string{"email": email, "password": password},
		AllowAnonymous: true,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Access  string         `json:"access"`
		Refresh string         `json:"refresh"`
		User    map[string]any `json:"user"`
	}
	if err := resp.Decode(&payload); err != nil {
		return nil, networkError(err)
	}

	patch := session.Patch{Access: payload.Access, Refresh: payload.Refresh}
	if payload.User != nil {
		patch.User = userFromPayload(payload.User)
		patch.UserSet = true
	}
	c.store.SetCredentials(patch)

	if payload.User != nil {
		return payload.User, nil
	}

	profile, err := c.Me(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("post-login profile fetch failed")
		var out map[string]any
		_ = resp.Decode(&out)
		return out, nil
	}
	return profile, nil
}

// Me fetches the current user profile and stores it on the session.
func (c *Client) Me(ctx context.Context) (map[string]any, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "auth/me/"})
	if err != nil {
		return nil, err
	}

	var profile map[string]any
	if err := resp.Decode(&profile); err != nil {
		return nil, networkError(err)
	}

	c.store.SetCredentials(session.Patch{User: userFromPayload(profile), UserSet: true})
	return profile, nil
}

// Register creates a new portal user and returns the created payload.
func (c *Client) Register(ctx context.Context, body map[string]any) (map[string]any, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "auth/register/",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var created map[string]any
	if err := resp.Decode(&created); err != nil {
		return nil, networkError(err)
	}
	return created, nil
}

// Refresh forces a token rotation using the stored refresh token,
// sharing the same single-flight path as 401 recovery.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refreshTokens(ctx, c.store.Current().AccessToken)
}

// Logout clears the credential store. It is purely local; the portal API
// has no logout endpoint.
func (c *Client) Logout() {
	c.store.Clear()
}

// userFromPayload extracts the typed profile fields the gate needs from
// an otherwise opaque user payload.
func userFromPayload(m map[string]any) *session.User {
	if m == nil {
		return nil
	}
	u := &session.User{}
	if s, ok := m["id"].(string); ok {
		u.ID = s
	} else if n, ok := m["id"].(json.Number); ok {
		u.ID = n.String()
	} else if f, ok := m["id"].(float64); ok {
		u.ID = formatID(f)
	}
	if s, ok := m["email"].(string); ok {
		u.Email = s
	}
	if s, ok := m["name"].(string); ok {
		u.Name = s
	}
	if roles, ok := m["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				u.Roles = append(u.Roles, s)
			}
		}
	}
	if perms, ok := m["permissions"].(map[string]any); ok {
		u.Permissions = make(map[string][]string, len(perms))
		for entity, actions := range perms {
			list, ok := actions.([]any)
			if !ok {
				continue
			}
			acts := make([]string, 0, len(list))
			for _, a := range list {
				if s, ok := a.(string); ok {
					acts = append(acts, s)
				}
			}
			u.Permissions[entity] = acts
		}
	}
	return u
}
