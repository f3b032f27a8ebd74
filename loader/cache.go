package loader

import (
	"encoding/base64"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tetratelabs/wazero"
	"golang.org/x/crypto/blake2b"
)

// DefaultCacheSize is the number of compiled modules kept by default.
const DefaultCacheSize = 64

// Cache holds compiled modules keyed by the digest of their image.
type Cache struct {
	mu    sync.RWMutex
	cache *lru.ARCCache
}

// NewCache returns a cache of the given size.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: cache}, nil
}

// Lookup returns the compiled module stored under key.
func (c *Cache) Lookup(key string) (wazero.CompiledModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return val.(wazero.CompiledModule), true
}

// Set stores m under key.
func (c *Cache) Set(key string, m wazero.CompiledModule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key, m)
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

// Digest returns the cache key of a module image.
func Digest(image []byte) string {
	sum := blake2b.Sum256(image)
	return base64.URLEncoding.EncodeToString(sum[:])
}
