package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Dual layers a primary store over a fallback. Writes go to both so either
// can serve a later read; a write succeeds if at least one store took it.
// Reads try the primary first.
type Dual struct {
	primary  Store
	fallback Store
	logger   *zap.Logger
}

// NewDual builds a layered store. logger may be nil.
func NewDual(primary, fallback Store, logger *zap.Logger) *Dual {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dual{primary: primary, fallback: fallback, logger: logger}
}

func (d *Dual) Get(key string) (string, bool) {
	if v, ok := d.primary.Get(key); ok {
		return v, true
	}
	return d.fallback.Get(key)
}

func (d *Dual) Set(key, value string, expiresAt time.Time) error {
	perr := d.primary.Set(key, value, expiresAt)
	ferr := d.fallback.Set(key, value, expiresAt)
	if perr != nil && ferr != nil {
		return errors.Join(perr, ferr)
	}
	if perr != nil {
		d.logger.Warn("primary store write failed, fallback took it", zap.String("key", key), zap.Error(perr))
	}
	if ferr != nil {
		d.logger.Warn("fallback store write failed", zap.String("key", key), zap.Error(ferr))
	}
	return nil
}

func (d *Dual) Delete(key string) error {
	return errors.Join(d.primary.Delete(key), d.fallback.Delete(key))
}

func (d *Dual) Close() error {
	return errors.Join(d.primary.Close(), d.fallback.Close())
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is the last-resort store. Nothing survives the process, so identity
// simply starts over on the next run.
type Memory struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]memEntry
}

// NewMemory builds an empty in-process store.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.New()
	}
	return &Memory{clock: clk, entries: map[string]memEntry{}}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(m.clock.Now()) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

func (m *Memory) Set(key, value string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
