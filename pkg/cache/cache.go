// Package cache implements the content-addressed artifact cache.
//
// Every expensive geometric artifact (a stock solid, a machined feature) is
// stored on disk under a name derived from a human-readable label and a
// 64-bit hash of its semantic inputs: "Name__<16-hex-digit-hash>.<ext>".
// A build activates the entries it needs; entries still inactive when the
// build finishes are garbage collected. Identical inputs across builds
// therefore never regenerate, and the cache directory never grows beyond
// the set of artifacts reachable from the current design.
//
// One build must own the cache directory exclusively. There is no file
// locking; two concurrent builds pointed at the same directory is
// unsupported.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/tenon/pkg/ctxlog"
	"github.com/chazu/tenon/pkg/hashkey"
)

// separator splits the human name from the hash in artifact filenames.
// Load-bearing: Scan splits on the last occurrence and validates the
// 16-hex-digit width before trusting a match.
const separator = "__"

type entryKey struct {
	name string
	hash hashkey.Key
}

// Cache maps (name, input hash) pairs to stable artifact paths.
type Cache struct {
	dir string
	ext string // artifact extension without the dot, e.g. "stl"

	index  map[entryKey]string // known on-disk artifacts
	active map[entryKey]bool   // entries resolved during the current pass
}

// New creates a cache rooted at dir for artifacts with the given extension.
// The directory is created if it does not exist.
func New(dir, ext string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "cache: create directory")
	}
	return &Cache{
		dir:    dir,
		ext:    strings.TrimPrefix(ext, "."),
		index:  make(map[entryKey]string),
		active: make(map[entryKey]bool),
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Scan enumerates existing artifact files and rebuilds the in-memory index.
// Called once at the start of a build. Files whose names do not follow the
// Name__<16hex>.<ext> convention are foreign: they are skipped here and
// never deleted by FlushInactive.
func (c *Cache) Scan(ctx context.Context) error {
	log := ctxlog.FromContext(ctx)

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return errors.Wrap(err, "cache: scan")
	}

	c.index = make(map[entryKey]string)
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name, key, ok := c.parseFilename(de.Name())
		if !ok {
			continue
		}
		c.index[entryKey{name, key}] = filepath.Join(c.dir, de.Name())
	}

	log.Debug("cache scanned", "dir", c.dir, "artifacts", len(c.index))
	return nil
}

// parseFilename splits an artifact filename into its name and hash parts.
// Returns ok=false for foreign files.
func (c *Cache) parseFilename(fn string) (string, hashkey.Key, bool) {
	ext := "." + c.ext
	if !strings.HasSuffix(fn, ext) {
		return "", 0, false
	}
	stem := strings.TrimSuffix(fn, ext)
	i := strings.LastIndex(stem, separator)
	if i < 0 {
		return "", 0, false
	}
	name := stem[:i]
	hexPart := stem[i+len(separator):]
	key, ok := hashkey.ParseHex(hexPart)
	if !ok || name == "" {
		return "", 0, false
	}
	return name, key, true
}

// Activate resolves the artifact path for (name, inputs). The returned hit
// reports whether the artifact already exists on disk, in which case the
// caller must not regenerate it. Repeated calls with the same inputs within
// one pass return the same path and never downgrade a hit to a miss.
//
// An indexed entry whose file has vanished is treated as a miss: the same
// path is returned with hit=false so the caller regenerates in place.
func (c *Cache) Activate(ctx context.Context, name string, inputs hashkey.Value) (path string, hit bool, err error) {
	if strings.Contains(name, separator) {
		return "", false, errors.Errorf("cache: artifact name %q contains reserved separator %q", name, separator)
	}
	log := ctxlog.FromContext(ctx)

	key := hashkey.Of(inputs)
	ek := entryKey{name, key}
	path = filepath.Join(c.dir, name+separator+key.Hex()+"."+c.ext)

	c.active[ek] = true

	if existing, ok := c.index[ek]; ok {
		if _, statErr := os.Stat(existing); statErr == nil {
			log.Debug("cache hit", "name", name, "hash", key.Hex())
			return existing, true, nil
		}
		// Indexed but missing or unreadable: fall through as a miss.
		log.Warn("cache entry missing on disk, regenerating", "name", name, "hash", key.Hex())
	}

	c.index[ek] = path
	log.Debug("cache miss", "name", name, "hash", key.Hex())
	return path, false, nil
}

// FlushInactive deletes every on-disk artifact that was not activated during
// the current pass, then clears the active set for the next pass. Foreign
// files are untouched. Returns the number of artifacts removed.
func (c *Cache) FlushInactive(ctx context.Context) (int, error) {
	log := ctxlog.FromContext(ctx)

	removed := 0
	for ek, path := range c.index {
		if c.active[ek] {
			continue
		}
		switch err := os.Remove(path); {
		case err == nil:
			removed++
		case !os.IsNotExist(err):
			return removed, errors.Wrapf(err, "cache: flush %s", path)
		}
		// An already-vanished entry drops from the index without counting
		// as a deletion.
		delete(c.index, ek)
	}

	log.Debug("cache flushed", "removed", removed, "remaining", len(c.index))
	c.active = make(map[entryKey]bool)
	return removed, nil
}

// ActiveCount returns the number of entries activated in the current pass.
func (c *Cache) ActiveCount() int { return len(c.active) }
