package bundle

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// SassCache persists compiled CSS keyed by a hash over the entry point and
// all of its transitive partials. dart-sass startup dominates style builds
// which makes skipping unchanged entries worthwhile.
type SassCache struct {
	path    string
	entries map[string]sassCacheEntry
	dirty   bool
	mu      sync.Mutex
}

type sassCacheEntry struct {
	Key string
	CSS string
}

// NewSassCache returns an empty cache that will be written to the given path
func NewSassCache(path string) *SassCache {
	return &SassCache{
		path:    path,
		entries: map[string]sassCacheEntry{},
	}
}

// OpenSassCache loads the cache from disk. A missing file yields an empty
// cache; anything else that fails to decode is an error.
func OpenSassCache(path string) (*SassCache, error) {
	cache := NewSassCache(path)

	handle, err := os.Open(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return cache, nil
		}
		return nil, eris.Wrapf(err, "Failed to open cache %s", path)
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)
	err = decoder.Decode(&cache.entries)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to decode cache %s", path)
	}

	return cache, nil
}

func (c *SassCache) Lookup(file, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[file]
	if !ok || entry.Key != key {
		return "", false
	}
	return entry.CSS, true
}

func (c *SassCache) Store(file, key, css string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[file] = sassCacheEntry{Key: key, CSS: css}
	c.dirty = true
}

// Save writes the cache back to disk if anything changed
func (c *SassCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	err := os.MkdirAll(filepath.Dir(c.path), os.FileMode(0770))
	if err != nil {
		return eris.Wrapf(err, "Failed to create cache directory for %s", c.path)
	}

	handle, err := os.Create(c.path)
	if err != nil {
		return eris.Wrapf(err, "Failed to create cache %s", c.path)
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(c.entries)
	if err != nil {
		return eris.Wrapf(err, "Failed to encode cache %s", c.path)
	}

	c.dirty = false
	return nil
}

var sassImportPattern = regexp.MustCompile(`(?m)^\s*@(?:use|import|forward)\s+['"]([^'"]+)['"]`)

// CollectSassFiles returns the entry point plus every partial it transitively
// pulls in through @use, @import or @forward. Unresolvable references are
// ignored here; dart-sass reports them with proper positions during compile.
func CollectSassFiles(entry string, loadPaths []string) ([]string, error) {
	visited := map[string]bool{}
	queue := []string{filepath.Clean(entry)}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		data, err := os.ReadFile(current)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to read %s", current)
		}

		for _, match := range sassImportPattern.FindAllStringSubmatch(string(data), -1) {
			ref := match[1]
			if strings.HasPrefix(ref, "sass:") || strings.Contains(ref, "://") {
				continue
			}

			resolved := resolveSassRef(filepath.Dir(current), ref, loadPaths)
			if resolved != "" && !visited[resolved] {
				queue = append(queue, resolved)
			}
		}
	}

	result := make([]string, 0, len(visited))
	for file := range visited {
		result = append(result, file)
	}
	sort.Strings(result)
	return result, nil
}

// resolveSassRef applies dart-sass' resolution order: the importing file's
// directory first, then the configured load paths; partials (leading
// underscore) and index files are considered at each step.
func resolveSassRef(fromDir, ref string, loadPaths []string) string {
	bases := append([]string{fromDir}, loadPaths...)
	ref = filepath.FromSlash(ref)

	for _, base := range bases {
		full := filepath.Join(base, ref)
		dir, name := filepath.Split(full)

		var candidates []string
		if strings.HasSuffix(name, ".scss") {
			candidates = []string{full, filepath.Join(dir, "_"+name)}
		} else {
			candidates = []string{
				full + ".scss",
				filepath.Join(dir, "_"+name+".scss"),
				filepath.Join(full, "_index.scss"),
				filepath.Join(full, "index.scss"),
			}
		}

		for _, item := range candidates {
			info, err := os.Stat(item)
			if err == nil && !info.IsDir() {
				return filepath.Clean(item)
			}
		}
	}

	return ""
}

func hashFiles(files []string) (string, error) {
	hash := sha256.New()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", eris.Wrapf(err, "Failed to read %s", file)
		}

		hash.Write([]byte(file))
		hash.Write([]byte{0})
		hash.Write(data)
		hash.Write([]byte{0})
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
