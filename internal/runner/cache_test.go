package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/contract"
)

func TestPrepareCached(t *testing.T) {
	code, err := contract.FromWAT(`(module (func (export "main")))`)
	require.NoError(t, err)
	cfg := wasmConfig(t)
	cache := NewMemoryCache()

	first, err := prepareCached(cache, code, cfg)
	require.NoError(t, err)
	second, err := prepareCached(cache, code, cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())

	other := *cfg
	other.RegularOpCost++
	third, err := prepareCached(cache, code, &other)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, cache.Len())
}

func TestPrepareCached_RejectionsAreNotCached(t *testing.T) {
	cache := NewMemoryCache()
	_, err := prepareCached(cache, contract.New([]byte("nope"), ""), wasmConfig(t))
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestPrepareCached_NilCache(t *testing.T) {
	code, err := contract.FromWAT(`(module (func (export "main")))`)
	require.NoError(t, err)
	m, err := prepareCached(nil, code, wasmConfig(t))
	require.NoError(t, err)
	assert.Equal(t, config.PrepareV2, m.Version)
}
