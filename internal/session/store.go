package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Store is the sole owner of the Session. All reads go through Current,
// all writes through SetCredentials and Clear, and every write persists
// the full session to disk. Persistence failures never surface to the
// caller: the in-memory state stays authoritative and the failure is
// logged.
type Store struct {
	mu     sync.RWMutex
	path   string
	cur    Session
	logger zerolog.Logger
}

// NewStore creates a store persisting to the given file path.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Load restores the session from disk. A missing or corrupt file yields
// the empty session; no error is surfaced.
func (st *Store) Load() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.cur = Session{}
	raw, err := os.ReadFile(st.path)
	if err != nil {
		return
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		st.logger.Warn().Err(err).Str("path", st.path).Msg("discarding corrupt session file")
		return
	}
	st.cur = s
}

// Current returns a snapshot copy of the session.
func (st *Store) Current() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s := st.cur
	s.User = s.User.clone()
	return s
}

// SetCredentials merges a partial update into the session and persists
// the result. See Patch for the merge rules.
func (st *Store) SetCredentials(p Patch) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if p.UserSet {
		st.cur.User = p.User.clone()
	}
	if p.Access != "" {
		st.cur.AccessToken = p.Access
	}
	if p.Refresh != "" {
		st.cur.RefreshToken = p.Refresh
	}
	st.persistLocked()
}

// Clear resets the session to empty and persists the empty state. Calling
// it twice is harmless.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.cur = Session{}
	st.persistLocked()
}

// persistLocked writes the full session atomically: the document is
// written to a temp file in the same directory and renamed over the
// target, so a crash mid-write never leaves a partial session behind.
func (st *Store) persistLocked() {
	raw, err := json.Marshal(st.cur)
	if err != nil {
		st.logger.Warn().Err(err).Msg("failed to encode session")
		return
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		st.logger.Warn().Err(err).Str("path", st.path).Msg("failed to persist session")
		return
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		st.logger.Warn().Err(err).Str("path", st.path).Msg("failed to persist session")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		st.logger.Warn().Err(err).Str("path", st.path).Msg("failed to persist session")
		return
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		st.logger.Warn().Err(err).Str("path", st.path).Msg("failed to persist session")
		return
	}
	if err := tmp.Close(); err != nil {
		st.logger.Warn().Err(err).Str("path", st.path).Msg("failed to persist session")
		return
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		st.logger.Warn().Err(err).Str("path", st.path).Msg("failed to persist session")
	}
}
