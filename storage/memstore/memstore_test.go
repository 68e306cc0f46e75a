package memstore_test

import (
	"testing"

	"github.com/jrsteele09/go-session-manager/storage"
	"github.com/jrsteele09/go-session-manager/storage/memstore"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s := memstore.New()

	_, err := s.Get(storage.KeyAccessToken)
	require.ErrorIs(t, err, storage.NotFoundErr)

	require.NoError(t, s.Set(storage.KeyAccessToken, "token-value"))

	value, err := s.Get(storage.KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, "token-value", value)

	require.NoError(t, s.Remove(storage.KeyAccessToken))

	_, err = s.Get(storage.KeyAccessToken)
	require.ErrorIs(t, err, storage.NotFoundErr)
}

func TestRemoveAbsentKeyIsNotAnError(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.Remove("never-set"))
}
