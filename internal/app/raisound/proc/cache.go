package proc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"
)

const (
	keyHashLen = 12
	keySlugLen = 48
	keyExtLen  = 5
)

// Store is a cache of fetched resources keyed by KeyFor
type Store interface {
	// Get returns stored bytes, ok is false if nothing is stored for the key
	Get(key string) (data []byte, ok bool, err error)
	// Put stores bytes under key, replacing any previous entry
	Put(key string, data []byte) error
}

// KeyFor makes a file name safe cache key from resource url.
// The key is <slug>-<hash><ext> where hash is a truncated sha256 of the whole url,
// so two urls collide only if 48 bits of their hashes collide and slug and ext match.
func KeyFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	hash := hex.EncodeToString(sum[:])[:keyHashLen]

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	ext := strings.ToLower(path.Ext(base))
	if !validKeyExt(ext) {
		ext = ""
	}
	slug := keySlug(strings.TrimSuffix(base, path.Ext(base)))

	return slug + "-" + hash + ext
}

func keySlug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= keySlugLen {
			break
		}
	}
	slug := strings.Trim(b.String(), "_-")
	if slug == "" {
		return "index"
	}
	return slug
}

func validKeyExt(ext string) bool {
	if len(ext) < 2 || len(ext) > keyExtLen {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// FileStore keeps one file per key under Root
type FileStore struct {
	Root string
}

// Get entry from disk; a missing file is not an error
func (f *FileStore) Get(key string) ([]byte, bool, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p) // nolint
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	log.Printf("[DEBUG] cache hit %s, %d bytes", key, len(data))
	return data, true, nil
}

// Put entry to disk atomically, via temp file and rename
func (f *FileStore) Put(key string, data []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(f.Root, 0o755); err != nil {
		return fmt.Errorf("create cache root %s: %w", f.Root, err)
	}

	tmp, err := os.CreateTemp(f.Root, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry for %s: %w", key, err)
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry %s: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache entry %s: %w", key, err)
	}

	log.Printf("[DEBUG] cache put %s, %d bytes", key, len(data))
	return nil
}

func (f *FileStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(f.Root, key), nil
}

// MemStore keeps entries in memory, nothing survives the process
type MemStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemStore makes empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{entries: map[string][]byte{}}
}

// Get entry copy
func (m *MemStore) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Put entry copy
func (m *MemStore) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), data...)
	return nil
}

// Len returns number of entries
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
