package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{revoked: make(map[string]time.Time), nowFunc: func() time.Time { return now }}

	require.NoError(t, store.Revoke(ctx, "live", now.Add(time.Hour)))
	require.NoError(t, store.Revoke(ctx, "expired", now.Add(-time.Hour)))

	revoked, err := store.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, revoked, "already expired tokens are not stored")

	revoked, err = store.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	// once the token expires it is forgotten
	now = now.Add(2 * time.Hour)
	revoked, err = store.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "other", now.Add(time.Hour)))
	assert.Len(t, store.revoked, 1, "expired entries are purged on write")
}
