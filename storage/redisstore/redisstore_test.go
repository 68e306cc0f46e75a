package redisstore_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-manager/storage"
	"github.com/jrsteele09/go-session-manager/storage/redisstore"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	// Quick availability check to allow graceful skip in environments without Redis
	s, err := redisstore.NewFromEnv()
	if err != nil {
		t.Skipf("skipping redis store tests: %v", err)
		return
	}
	defer func() { _ = s.Close() }()

	key := "test:" + uuid.New().String()
	defer func() { _ = s.Remove(key) }()

	_, err = s.Get(key)
	require.ErrorIs(t, err, storage.NotFoundErr)

	require.NoError(t, s.Set(key, "value-1"))

	value, err := s.Get(key)
	require.NoError(t, err)
	require.Equal(t, "value-1", value)

	require.NoError(t, s.Remove(key))

	_, err = s.Get(key)
	require.ErrorIs(t, err, storage.NotFoundErr)
}
