package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	// Test if memcached is available
	_, err := mc.client.Get("probe")
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		t.Skip("Memcached is not available, skipping test")
	}

	// Set a value
	err = mc.Set("cooldown:dir.indiamart.com", []byte("8000"), 1*time.Second)
	assert.NoError(t, err)

	// Get the value
	value, err := mc.Get("cooldown:dir.indiamart.com")
	assert.NoError(t, err)
	assert.Equal(t, "8000", string(value))

	// Delete the value
	err = mc.Delete("cooldown:dir.indiamart.com")
	assert.NoError(t, err)

	// A missing key reports ErrMiss, not a transport error
	_, err = mc.Get("cooldown:dir.indiamart.com")
	assert.ErrorIs(t, err, ErrMiss)

	// Deleting a missing key is not an error
	assert.NoError(t, mc.Delete("cooldown:dir.indiamart.com"))
}
