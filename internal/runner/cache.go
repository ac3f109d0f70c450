package runner

import (
	"sync"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/contract"
	"github.com/roach88/vmparity/internal/prepare"
)

// CacheKey identifies a prepared module: the code plus every parameter
// preparation depends on.
type CacheKey struct {
	CodeHash        string
	Version         config.PrepareVersion
	RegularOpCost   uint64
	MaxMemoryPages  uint32
	MaxContractSize uint64
	MaxFunctions    uint64
	MaxStackHeight  uint64
}

func cacheKey(code *contract.Code, cfg *config.WasmConfig) CacheKey {
	return CacheKey{
		CodeHash:        code.Hash(),
		Version:         cfg.Limits.PrepareVersion,
		RegularOpCost:   cfg.RegularOpCost,
		MaxMemoryPages:  cfg.Limits.MaxMemoryPages,
		MaxContractSize: cfg.Limits.MaxContractSize,
		MaxFunctions:    cfg.Limits.MaxFunctionsNumber,
		MaxStackHeight:  cfg.Limits.MaxStackHeight,
	}
}

// Cache memoizes successfully prepared modules. Prepared modules are
// immutable, so one entry may serve any number of runs.
type Cache interface {
	Get(key CacheKey) (*prepare.Module, bool)
	Put(key CacheKey, m *prepare.Module)
}

// MemoryCache is a Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[CacheKey]*prepare.Module
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[CacheKey]*prepare.Module)}
}

func (c *MemoryCache) Get(key CacheKey) (*prepare.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[key]
	return m, ok
}

func (c *MemoryCache) Put(key CacheKey, m *prepare.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = m
}

// Len is the number of cached modules.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func prepareCached(cache Cache, code *contract.Code, cfg *config.WasmConfig) (*prepare.Module, error) {
	if cache == nil {
		return prepare.Prepare(code.Bytes(), cfg)
	}
	key := cacheKey(code, cfg)
	if m, ok := cache.Get(key); ok {
		return m, nil
	}
	m, err := prepare.Prepare(code.Bytes(), cfg)
	if err != nil {
		return nil, err
	}
	cache.Put(key, m)
	return m, nil
}
