// Package session owns the portal's client-side Session: the current user
// profile plus the access and refresh tokens, persisted as a single JSON
// document across invocations.
package session

// User is the authenticated user profile as returned by the auth endpoints.
// Roles and Permissions drive the client-side authorization gate.
type User struct {
	ID          string              `json:"id,omitempty"`
	Email       string              `json:"email,omitempty"`
	Name        string              `json:"name,omitempty"`
	Roles       []string            `json:"roles,omitempty"`
	Permissions map[string][]string `json:"permissions,omitempty"`
}

// Session holds the credential state for one portal user.
type Session struct {
	User         *User  `json:"user,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Authenticated reports whether the session carries an access token. A
// stale User without a token is still unauthenticated.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Patch is a partial session update. User is applied only when UserSet is
// true, so a caller can distinguish "clear the user" from "not provided".
// Access and Refresh are applied only when non-empty; a patch carrying a
// new access token but no refresh token leaves the stored refresh token
// untouched (some refresh responses rotate the access token only).
type Patch struct {
	User    *User
	UserSet bool
	Access  string
	Refresh string
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Roles != nil {
		cp.Roles = append([]string(nil), u.Roles...)
	}
	if u.Permissions != nil {
		cp.Permissions = make(map[string][]string, len(u.Permissions))
		for k, v := range u.Permissions {
			cp.Permissions[k] = append([]string(nil), v...)
		}
	}
	return &cp
}
