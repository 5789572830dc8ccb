package dataverse

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataverse-agent/internal/common/logger"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok := c.Get(ctx, "account")
	assert.False(t, ok)

	entry := Entry{EntitySet: "accounts", HasEntitySet: true}
	c.Put(ctx, "account", entry)

	got, ok := c.Get(ctx, "account")
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestMemoryCache_PartialSections(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Put(ctx, "account", Entry{EntitySet: "accounts", HasEntitySet: true})

	got, ok := c.Get(ctx, "account")
	require.True(t, ok)
	assert.True(t, got.HasEntitySet)
	assert.False(t, got.HasNumeric)
	assert.False(t, got.HasDates)

	got.Numeric = []string{"revenue"}
	got.HasNumeric = true
	got.HasDates = true
	c.Put(ctx, "account", got)

	got, ok = c.Get(ctx, "account")
	require.True(t, ok)
	assert.True(t, got.HasEntitySet)
	assert.Equal(t, []string{"revenue"}, got.Numeric)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, logger.NewTestLogger(t))
	ctx := context.Background()

	_, ok := c.Get(ctx, "contact")
	assert.False(t, ok)

	entry := Entry{
		EntitySet:    "contacts",
		HasEntitySet: true,
		Numeric:      []string{"numberofchildren"},
		HasNumeric:   true,
		Dates:        []string{"birthdate", "createdon"},
		HasDates:     true,
	}
	c.Put(ctx, "contact", entry)

	got, ok := c.Get(ctx, "contact")
	require.True(t, ok)
	assert.Equal(t, entry, got)

	// Entries are written without expiry
	assert.Equal(t, int64(0), int64(mr.TTL("dataverse:metadata:contact")))
}

func TestRedisCache_BackendDownIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, logger.NewNoOpLogger())
	ctx := context.Background()

	c.Put(ctx, "account", Entry{EntitySet: "accounts", HasEntitySet: true})
	mr.Close()

	_, ok := c.Get(ctx, "account")
	assert.False(t, ok)

	// Writes against a dead backend must not panic or error out
	c.Put(ctx, "account", Entry{EntitySet: "accounts", HasEntitySet: true})
}
