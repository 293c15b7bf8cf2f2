package settings

import (
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when CachePayload format changes
const cacheSchemaVersion uint16 = 1

const cacheFileName = "run.mp"

// CachePayload stores cheap-to-recompute state between runs: the exit
// code of the previous invocation and the resolved executable paths so
// repeated compiles skip PATH lookups.
type CachePayload struct {
	Schema           uint16
	PreviousExitCode int
	HasPreviousExit  bool

	// Resolved tool paths keyed by tool name (engines plus the converter).
	Executables map[string]string
}

// CacheDir resolves the per-user cache directory.
func CacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "texsvg"), nil
}

// LoadCache reads the run cache from dir. A missing file, a decode
// failure or a schema mismatch all yield an empty payload: the cache is
// an optimization and never an error source.
func LoadCache(dir string) CachePayload {
	empty := CachePayload{Schema: cacheSchemaVersion}
	data, err := os.ReadFile(filepath.Join(dir, cacheFileName))
	if err != nil {
		return empty
	}
	var payload CachePayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return empty
	}
	if payload.Schema != cacheSchemaVersion {
		return empty
	}
	return payload
}

// SaveCache writes the run cache atomically (temp file plus rename).
func SaveCache(dir string, payload CachePayload) error {
	payload.Schema = cacheSchemaVersion
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := msgpack.Marshal(&payload)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-cache-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, cacheFileName))
}
