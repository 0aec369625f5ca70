// Package storage provides the small expiring key-value stores that keep
// session and end-user identity across restarts. Identity runs on a durable
// primary (a JSON jar file) layered over a SQLite fallback; when neither can
// be opened it degrades to a process-local store and identity simply resets
// with the process.
package storage

import (
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// JarFile and DBFile are the identity file names under the state directory.
const (
	JarFile = "identity.json"
	DBFile  = "identity.db"
)

// Store is an expiring key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the live value for key. Expired and missing keys both
	// report false.
	Get(key string) (value string, ok bool)
	// Set writes key with an absolute expiry.
	Set(key, value string, expiresAt time.Time) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Close releases underlying resources.
	Close() error
}

// Open opens the layered identity store under dir, degrading store by store:
// jar over sqlite when both open, whichever one opens otherwise, and a
// process-local store when neither does. logger may be nil.
func Open(dir string, clk clock.Clock, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, jarErr := NewJar(filepath.Join(dir, JarFile), clk)
	kv, kvErr := NewSQLite(filepath.Join(dir, DBFile), clk)

	switch {
	case jarErr == nil && kvErr == nil:
		return NewDual(jar, kv, logger)
	case jarErr == nil:
		logger.Warn("identity fallback store unavailable", zap.Error(kvErr))
		return jar
	case kvErr == nil:
		logger.Warn("identity jar unavailable", zap.Error(jarErr))
		return kv
	default:
		logger.Warn("no durable identity store, ids will reset with the process",
			zap.NamedError("jar", jarErr), zap.NamedError("sqlite", kvErr))
		return NewMemory(clk)
	}
}
