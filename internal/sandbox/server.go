// Package sandbox runs an in-memory rendition of the portal backend:
// the auth endpoints and the v1 resource surface over seeded synthetic
// data. It exists for developer on-boarding, demos, and integration
// tests that need a real HTTP boundary without a real backend.
package sandbox

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type account struct {
	password string
	profile  map[string]any
}

// Server is the sandbox API. All state is in memory and lost on exit.
type Server struct {
	e         *echo.Echo
	logger    zerolog.Logger
	secret    []byte
	accessTTL time.Duration

	mu          sync.Mutex
	collections map[string][]map[string]any
	accounts    map[string]*account
	refresh     map[string]string
}

// Option configures the sandbox server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSecret overrides the token-signing secret.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithAccessTTL overrides the access-token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) { s.accessTTL = ttl }
}

// New creates a seeded sandbox server.
func New(opts ...Option) *Server {
	s := &Server{
		logger:      zerolog.Nop(),
		secret:      []byte(uuid.NewString()),
		accessTTL:   15 * time.Minute,
		collections: make(map[string][]map[string]any),
		accounts:    make(map[string]*account),
		refresh:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seed()
	s.routes()
	return s
}

// Handler returns the server as an http.Handler, for httptest.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on the given address until the process exits.
func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) routes() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.requestLogger())

	api := e.Group("/api")
	api.POST("/auth/login/", s.handleLogin)
	api.POST("/auth/refresh/", s.handleRefresh)

	authed := api.Group("", s.bearerAuth)
	authed.GET("/auth/me/", s.handleMe)
	authed.POST("/auth/register/", s.handleRegister)

	for _, base := range collectionPaths() {
		base := base
		authed.GET("/"+base, s.handleList(base))
		authed.POST("/"+base, s.handleCreate(base))
		authed.GET("/"+base+":id/", s.handleGet(base))
		authed.PATCH("/"+base+":id/", s.handleUpdate(base))
		authed.DELETE("/"+base+":id/", s.handleDelete(base))
	}

	// Sub-actions. Static segments are registered alongside the :id
	// routes; echo prefers the static match.
	authed.GET("/v1/patients/search/", s.handleSearch("v1/patients/"))
	authed.POST("/v1/patients/:id/merge/:target/", s.handleMerge)
	authed.GET("/v1/patients/:id/export/", s.handleGet("v1/patients/"))
	authed.GET("/v1/appointments/availability/", s.handleAvailability)
	authed.POST("/v1/appointments/:id/waitlist/", s.handleJoinWaitlist)
	authed.GET("/v1/observations/:id/trends/", s.handleTrends)
	authed.POST("/v1/observations/alerts/configure/", s.handleConfigureAlerts)
	authed.POST("/v1/hl7-parser/ingest/", s.handleIngest)
	authed.GET("/v1/hl7-parser/parse-status/:id/", s.handleParseStatus)
	authed.POST("/v1/hl7-parser/batch/", s.handleBatch)
	authed.POST("/admin/users/assign-role/", s.handleAssignRole)

	s.e = e
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			evt := s.logger.Info()
			if err != nil {
				evt = s.logger.Error().Err(err)
			}
			evt.
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("request")

			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Auth handlers
// ---------------------------------------------------------------------------

func (s *Server) handleLogin(c echo.Context) error {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}
	if creds.Email == "" || creds.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"detail":   "Validation failed.",
			"email":    []string{"This field is required."},
			"password": []string{"This field is required."},
		})
	}

	s.mu.Lock()
	acct, ok := s.accounts[creds.Email]
	s.mu.Unlock()
	if !ok || acct.password != creds.Password {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Invalid credentials."})
	}

	access, err := s.mintAccess(creds.Email, profileRoles(acct.profile))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "Token signing failed."})
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refresh[refresh] = creds.Email
	s.mu.Unlock()

	return c.JSON(http.StatusOK, echo.Map{
		"access":  access,
		"refresh": refresh,
		"user":    acct.profile,
	})
}

// handleRefresh rotates the access token only; the refresh token stays
// valid, so clients must preserve it across refreshes.
func (s *Server) handleRefresh(c echo.Context) error {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}

	s.mu.Lock()
	email, ok := s.refresh[body.Refresh]
	var acct *account
	if ok {
		acct = s.accounts[email]
	}
	s.mu.Unlock()
	if !ok || acct == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Refresh token invalid."})
	}

	access, err := s.mintAccess(email, profileRoles(acct.profile))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "Token signing failed."})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access})
}

func (s *Server) handleMe(c echo.Context) error {
	s.mu.Lock()
	acct, ok := s.accounts[requestEmail(c)]
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Unknown account."})
	}
	return c.JSON(http.StatusOK, acct.profile)
}

func (s *Server) handleRegister(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}
	email, _ := body["email"].(string)
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"email": []string{"This field is required."},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"email": []string{"A user with this email already exists."},
		})
	}

	password, _ := body["password"].(string)
	profile := make(map[string]any, len(body))
	for k, v := range body {
		if k != "password" {
			profile[k] = v
		}
	}
	if _, ok := profile["id"]; !ok {
		profile["id"] = uuid.NewString()
	}
	if _, ok := profile["roles"]; !ok {
		profile["roles"] = []any{"STAFF"}
	}

	s.accounts[email] = &account{password: password, profile: profile}
	s.collections["v1/admin/users/"] = append(s.collections["v1/admin/users/"], profile)
	return c.JSON(http.StatusCreated, profile)
}

// ---------------------------------------------------------------------------
// Generic CRUD handlers
// ---------------------------------------------------------------------------

func (s *Server) handleList(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		items := s.collections[base]
		filtered := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if matchesQuery(item, c.QueryParams()) {
				filtered = append(filtered, item)
			}
		}
		return c.JSON(http.StatusOK, filtered)
	}
}

func (s *Server) handleCreate(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var item map[string]any
		if err := c.Bind(&item); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
		}
		if item == nil {
			item = map[string]any{}
		}
		if _, ok := item["id"]; !ok {
			item["id"] = uuid.NewString()
		}

		s.mu.Lock()
		s.collections[base] = append(s.collections[base], item)
		s.mu.Unlock()
		return c.JSON(http.StatusCreated, item)
	}
}

func (s *Server) handleGet(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		item := s.findLocked(base, c.Param("id"))
		if item == nil {
			return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
		}
		return c.JSON(http.StatusOK, item)
	}
}

func (s *Server) handleUpdate(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch map[string]any
		if err := c.Bind(&patch); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		item := s.findLocked(base, c.Param("id"))
		if item == nil {
			return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
		}
		for k, v := range patch {
			if k != "id" {
				item[k] = v
			}
		}
		return c.JSON(http.StatusOK, item)
	}
}

func (s *Server) handleDelete(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		id := c.Param("id")
		items := s.collections[base]
		kept := items[:0]
		found := false
		for _, item := range items {
			if itemIDEquals(item, id) {
				found = true
				continue
			}
			kept = append(kept, item)
		}
		s.collections[base] = kept
		if !found {
			return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ---------------------------------------------------------------------------
// Sub-action handlers
// ---------------------------------------------------------------------------

// handleSearch serves the same data as list but wrapped in the results
// envelope, so clients exercise both list shapes against the sandbox.
func (s *Server) handleSearch(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		filtered := make([]map[string]any, 0)
		for _, item := range s.collections[base] {
			if matchesQuery(item, c.QueryParams()) {
				filtered = append(filtered, item)
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"results": filtered})
	}
}

func (s *Server) handleMerge(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	source := s.findLocked("v1/patients/", c.Param("id"))
	target := s.findLocked("v1/patients/", c.Param("target"))
	if source == nil || target == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
	}

	kept := s.collections["v1/patients/"][:0]
	for _, item := range s.collections["v1/patients/"] {
		if !itemIDEquals(item, c.Param("target")) {
			kept = append(kept, item)
		}
	}
	s.collections["v1/patients/"] = kept
	source["merged_from"] = target["id"]
	return c.JSON(http.StatusOK, source)
}

func (s *Server) handleAvailability(c echo.Context) error {
	now := time.Now()
	slots := make([]map[string]any, 0, 4)
	for i := 1; i <= 4; i++ {
		slots = append(slots, map[string]any{
			"id":    uuid.NewString(),
			"start": now.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			"open":  true,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"results": slots})
}

func (s *Server) handleJoinWaitlist(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked("v1/appointments/", c.Param("id")) == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
	}

	entry := map[string]any{
		"id":          uuid.NewString(),
		"appointment": c.Param("id"),
	}
	for k, v := range body {
		entry[k] = v
	}
	s.collections["v1/waitlist/"] = append(s.collections["v1/waitlist/"], entry)
	return c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleTrends(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	patientID := c.Param("id")
	trends := make([]map[string]any, 0)
	for _, obs := range s.collections["v1/observations/"] {
		if obs["patient"] == patientID {
			trends = append(trends, obs)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"results": trends})
}

func (s *Server) handleConfigureAlerts(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}
	body["configured"] = true
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleIngest(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}

	msg := map[string]any{
		"id":     uuid.NewString(),
		"status": "parsed",
	}
	for k, v := range body {
		msg[k] = v
	}

	s.mu.Lock()
	s.collections["v1/hl7-parser/"] = append(s.collections["v1/hl7-parser/"], msg)
	s.mu.Unlock()
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleParseStatus(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.findLocked("v1/hl7-parser/", c.Param("id"))
	if msg == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": msg["id"], "status": msg["status"]})
}

func (s *Server) handleBatch(c echo.Context) error {
	var body struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]map[string]any, 0, len(body.Messages))
	for _, raw := range body.Messages {
		msg := map[string]any{"id": uuid.NewString(), "status": "parsed"}
		for k, v := range raw {
			msg[k] = v
		}
		s.collections["v1/hl7-parser/"] = append(s.collections["v1/hl7-parser/"], msg)
		created = append(created, msg)
	}
	return c.JSON(http.StatusCreated, echo.Map{"results": created})
}

func (s *Server) handleAssignRole(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[body.Email]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Unknown account."})
	}
	roles, _ := acct.profile["roles"].([]any)
	acct.profile["roles"] = append(roles, body.Role)
	return c.JSON(http.StatusOK, acct.profile)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Server) findLocked(base, id string) map[string]any {
	for _, item := range s.collections[base] {
		if itemIDEquals(item, id) {
			return item
		}
	}
	return nil
}

func itemIDEquals(item map[string]any, id string) bool {
	v, _ := item["id"].(string)
	return v == id
}

func matchesQuery(item map[string]any, params map[string][]string) bool {
	for key, vals := range params {
		if len(vals) == 0 {
			continue
		}
		field, ok := item[key]
		if !ok {
			continue
		}
		if sv, ok := field.(string); !ok || sv != vals[0] {
			return false
		}
	}
	return true
}

func profileRoles(profile map[string]any) []string {
	raw, _ := profile["roles"].([]any)
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
