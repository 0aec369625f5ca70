// Package identity mints and persists the two anonymous identifiers the SDK
// lives on: the session id and the end-user id. A session is resumed only
// while its activity window is warm; the end-user id is long-lived and
// survives session rotation.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/adeelakhani/swing-sdk/internal/storage"
)

const (
	// sessionTTL hard-expires a session id regardless of activity.
	sessionTTL = 24 * time.Hour
	// sessionIdle is the default activity window. A session with no
	// recorded activity for this long is not resumed.
	sessionIdle = 30 * time.Minute
	// endUserTTL keeps the anonymous end-user id across visits.
	endUserTTL = 365 * 24 * time.Hour
	// persistEvery caps how often activity is written through to the store.
	persistEvery = 30 * time.Second
)

const (
	keySession = "swing_session_id"
	keySeen    = "swing_session_seen"
	keyEndUser = "swing_end_user_id"
)

// Manager owns identity reads and writes against a Store.
type Manager struct {
	store  storage.Store
	clock  clock.Clock
	logger *zap.Logger
	idle   time.Duration

	mu        sync.Mutex
	entropy   io.Reader
	lastTouch time.Time
}

// NewManager builds a Manager. clk and logger may be nil; idle is the
// activity window, with zero or negative meaning the thirty-minute default.
func NewManager(store storage.Store, clk clock.Clock, logger *zap.Logger, idle time.Duration) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if idle <= 0 {
		idle = sessionIdle
	}
	return &Manager{
		store:   store,
		clock:   clk,
		logger:  logger,
		idle:    idle,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// GetOrCreateSession returns the current session id, resuming the stored one
// only while both the id itself and its activity window are live. resumed
// reports whether an earlier session carried over.
func (m *Manager) GetOrCreateSession() (id string, resumed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if stored, ok := m.store.Get(keySession); ok {
		if _, warm := m.store.Get(keySeen); warm {
			m.touchLocked(now, true)
			return stored, true
		}
	}

	id = m.mintLocked("swing", now)
	if err := m.store.Set(keySession, id, now.Add(sessionTTL)); err != nil {
		m.logger.Warn("failed to persist session id, continuing in memory", zap.Error(err))
	}
	m.touchLocked(now, true)
	m.logger.Debug("minted session id", zap.String("sessionId", id))
	return id, false
}

// GetOrCreateEndUser returns the anonymous end-user id, minting one on first
// contact. returning reports whether the id predates this call.
func (m *Manager) GetOrCreateEndUser() (id string, returning bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.store.Get(keyEndUser); ok {
		return stored, true
	}

	now := m.clock.Now()
	id = m.mintLocked("user", now)
	if err := m.store.Set(keyEndUser, id, now.Add(endUserTTL)); err != nil {
		m.logger.Warn("failed to persist end-user id, continuing in memory", zap.Error(err))
	}
	m.logger.Debug("minted end-user id", zap.String("endUserId", id))
	return id, false
}

// RecordActivity marks the session as live now. Writes are coalesced so a
// burst of events costs at most one store write per interval.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(m.clock.Now(), false)
}

// AdoptSession replaces the stored session id with a server-assigned one.
func (m *Manager) AdoptSession(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if err := m.store.Set(keySession, id, now.Add(sessionTTL)); err != nil {
		m.logger.Warn("failed to persist adopted session id", zap.Error(err))
	}
	m.touchLocked(now, true)
}

// AdoptEndUser replaces the stored end-user id with a server-assigned one.
func (m *Manager) AdoptEndUser(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(keyEndUser, id, m.clock.Now().Add(endUserTTL)); err != nil {
		m.logger.Warn("failed to persist adopted end-user id", zap.Error(err))
	}
}

// CurrentSession reads the stored session id without minting. It reports
// false when the session is absent, expired, or idle past its window.
func (m *Manager) CurrentSession() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.store.Get(keySession)
	if !ok {
		return "", false
	}
	if _, warm := m.store.Get(keySeen); !warm {
		return "", false
	}
	return id, true
}

// CurrentEndUser reads the stored end-user id without minting.
func (m *Manager) CurrentEndUser() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(keyEndUser)
}

// Clear wipes all stored identity. The next GetOrCreate calls mint fresh ids.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastTouch = time.Time{}
	return errors.Join(
		m.store.Delete(keySession),
		m.store.Delete(keySeen),
		m.store.Delete(keyEndUser),
	)
}

// touchLocked refreshes the activity window. Unforced touches are dropped
// while the previous write is newer than the coalescing interval. Callers
// must hold the mutex.
func (m *Manager) touchLocked(now time.Time, force bool) {
	every := persistEvery
	if m.idle/3 < every {
		// Short windows need frequent writes or the session expires between
		// touches.
		every = m.idle / 3
	}
	if !force && now.Sub(m.lastTouch) < every {
		return
	}
	m.lastTouch = now
	if err := m.store.Set(keySeen, now.Format(time.RFC3339Nano), now.Add(m.idle)); err != nil {
		m.logger.Warn("failed to persist session activity", zap.Error(err))
	}
}

// mintLocked builds a fresh id of the form <prefix>_<epochMillis>_<ulid>.
// Callers must hold the mutex; the entropy source is monotonic so ids minted
// in the same millisecond stay unique and ordered.
func (m *Manager) mintLocked(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), ulid.MustNew(ulid.Timestamp(now), m.entropy))
}

// MintedAt extracts the mint time embedded in an id. It reports false for ids
// that do not carry the <prefix>_<epochMillis>_<ulid> shape.
func MintedAt(id string) (time.Time, bool) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || millis <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
