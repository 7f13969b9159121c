package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/harman-health/portalctl/internal/api"
	"github.com/harman-health/portalctl/internal/session"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	srv := New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, ts *httptest.Server) *api.Client {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), zerolog.Nop())
	return api.New(ts.URL+"/api/", store)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	client := newTestClient(t, ts)

	user, err := client.Login(context.Background(), "admin@harman.health", "admin")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user["email"] != "admin@harman.health" {
		t.Errorf("login user email = %v", user["email"])
	}

	me, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me["email"] != "admin@harman.health" {
		t.Errorf("me email = %v", me["email"])
	}

	cur := client.Store().Current()
	if cur.AccessToken == "" || cur.RefreshToken == "" {
		t.Error("expected both tokens stored after login")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/auth/login/", map[string]string{
		"email":    "admin@harman.health",
		"password": "wrong",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRefreshRotatesAccessOnly(t *testing.T) {
	ts := newTestServer(t)
	client := newTestClient(t, ts)

	if _, err := client.Login(context.Background(), "staff@harman.health", "staff"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	before := client.Store().Current()

	resp := postJSON(t, ts.URL+"/api/auth/refresh/", map[string]string{
		"refresh": before.RefreshToken,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["access"] == "" || body["access"] == nil {
		t.Error("expected a fresh access token")
	}
	if _, ok := body["refresh"]; ok {
		t.Error("refresh response must not rotate the refresh token")
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/patients/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

// TestClientRecoversFromStaleAccessToken drives the full reauth loop:
// a request with a dead access token gets a 401, the client refreshes
// with the stored refresh token, and the retry succeeds. The refresh
// token itself must survive untouched.
func TestClientRecoversFromStaleAccessToken(t *testing.T) {
	ts := newTestServer(t)
	client := newTestClient(t, ts)

	if _, err := client.Login(context.Background(), "admin@harman.health", "admin"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	before := client.Store().Current()

	client.Store().SetCredentials(session.Patch{Access: "not-a-token"})

	resp, err := client.Do(context.Background(), api.Request{
		Method: http.MethodGet,
		Path:   "v1/patients/",
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.Status)
	}

	after := client.Store().Current()
	if after.AccessToken == "not-a-token" || after.AccessToken == "" {
		t.Error("expected a refreshed access token")
	}
	if after.RefreshToken != before.RefreshToken {
		t.Error("refresh token must be preserved across an access refresh")
	}
	if after.User == nil || after.User.Email != "admin@harman.health" {
		t.Error("user must survive the refresh")
	}
}

func TestCRUDRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := client.Login(ctx, "admin@harman.health", "admin"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	created, err := client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "v1/patients/",
		Body:   map[string]any{"name": "Katherine Johnson", "mrn": "MRN-2001"},
	})
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	var patient map[string]any
	if err := created.Decode(&patient); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, _ := patient["id"].(string)
	if id == "" {
		t.Fatal("created patient has no id")
	}

	updated, err := client.Do(ctx, api.Request{
		Method: http.MethodPatch,
		Path:   "v1/patients/" + id + "/",
		Body:   map[string]any{"status": "active"},
	})
	if err != nil {
		t.Fatalf("update error = %v", err)
	}
	var got map[string]any
	if err := updated.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "active" || got["name"] != "Katherine Johnson" {
		t.Errorf("update result = %v", got)
	}

	deleted, err := client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   "v1/patients/" + id + "/",
	})
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if deleted.Status != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", deleted.Status)
	}

	missing, err := client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "v1/patients/" + id + "/",
	})
	if err == nil {
		t.Fatalf("expected not-found error, got status %d", missing.Status)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404 api error, got %v", err)
	}
}

func TestSearchReturnsEnvelope(t *testing.T) {
	ts := newTestServer(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := client.Login(ctx, "admin@harman.health", "admin"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	resp, err := client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "v1/patients/search/",
		Query:  url.Values{"status": []string{"active"}},
	})
	if err != nil {
		t.Fatalf("search error = %v", err)
	}

	items := api.NormalizeList(resp.Body)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	for _, item := range items {
		if item["status"] != "active" {
			t.Errorf("search leaked non-matching item: %v", item)
		}
	}
}

func TestAssignRoleAppends(t *testing.T) {
	ts := newTestServer(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := client.Login(ctx, "admin@harman.health", "admin"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	resp, err := client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "admin/users/assign-role/",
		Body:   map[string]string{"email": "staff@harman.health", "role": "CLINICIAN"},
	})
	if err != nil {
		t.Fatalf("assign-role error = %v", err)
	}

	var profile map[string]any
	if err := resp.Decode(&profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	roles, _ := profile["roles"].([]any)
	if len(roles) != 2 || roles[1] != "CLINICIAN" {
		t.Errorf("roles = %v, want [STAFF CLINICIAN]", roles)
	}
}
