package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const jarSchemaVersion = 1

type jarEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type jarFile struct {
	Type          string              `json:"type"` // "cookie_jar"
	SchemaVersion int                 `json:"schemaVersion"`
	Entries       map[string]jarEntry `json:"entries"`
}

// Jar is the primary identity store: a single JSON file of entries with
// absolute expiries. The whole file is rewritten on every mutation, which is
// fine at the handful of keys identity keeps.
type Jar struct {
	mu      sync.Mutex
	path    string
	clock   clock.Clock
	entries map[string]jarEntry
}

// NewJar opens the jar at path, creating parent directories as needed. A
// corrupt jar file is discarded and replaced on the next write; only real
// I/O failures are returned.
func NewJar(path string, clk clock.Clock) (*Jar, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage: jar path is required")
	}
	if clk == nil {
		clk = clock.New()
	}

	j := &Jar{path: path, clock: clk, entries: map[string]jarEntry{}}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, err
	}
	var f jarFile
	if err := json.Unmarshal(b, &f); err == nil && f.Entries != nil {
		j.entries = f.Entries
	}
	return j, nil
}

// Get returns the live value for key, dropping it if it has expired.
func (j *Jar) Get(key string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.entries[key]
	if !ok {
		return "", false
	}
	if !e.ExpiresAt.After(j.clock.Now()) {
		delete(j.entries, key)
		return "", false
	}
	return e.Value, true
}

// Set writes key and persists the jar.
func (j *Jar) Set(key, value string, expiresAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[key] = jarEntry{Value: value, ExpiresAt: expiresAt}
	return j.persist()
}

// Delete removes key and persists the jar.
func (j *Jar) Delete(key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.entries[key]; !ok {
		return nil
	}
	delete(j.entries, key)
	return j.persist()
}

// Close is a no-op; the jar has no open handles between mutations.
func (j *Jar) Close() error {
	return nil
}

// persist writes the jar file, pruning expired entries on the way out.
// Callers must hold the mutex.
func (j *Jar) persist() error {
	now := j.clock.Now()
	for key, e := range j.entries {
		if !e.ExpiresAt.After(now) {
			delete(j.entries, key)
		}
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(jarFile{
		Type:          "cookie_jar",
		SchemaVersion: jarSchemaVersion,
		Entries:       j.entries,
	}, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return replaceFile(j.path, b, 0o644)
}

// replaceFile writes data to a temp file beside path and renames it into
// place. Readers see the old jar or the new one, never a partial write.
func replaceFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		_ = tmp.Close()
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	renamed = true
	return nil
}
