package session_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-manager/session"
	"github.com/jrsteele09/go-session-manager/storage"
	"github.com/jrsteele09/go-session-manager/storage/memstore"
)

func TestMetadataStoreRoundTrip(t *testing.T) {
	store := memstore.New()
	metaStore := session.NewMetadataStore(store)

	md := &session.Metadata{
		LoginTime:      time.Now().Truncate(time.Millisecond),
		LastActivity:   time.Now().Truncate(time.Millisecond),
		ExpirationTime: time.Now().Add(time.Hour).Truncate(time.Millisecond),
		RememberMe:     true,
		DeviceID:       "device-1",
		SessionID:      "session-1",
	}
	require.NoError(t, metaStore.Save(md))

	loaded, err := metaStore.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, md.SessionID, loaded.SessionID)
	require.Equal(t, md.DeviceID, loaded.DeviceID)
	require.True(t, loaded.LoginTime.Equal(md.LoginTime))
	require.True(t, loaded.RememberMe)

	// Remember-me sessions also set the standalone flag key.
	flag, err := store.Get(storage.KeyRememberMe)
	require.NoError(t, err)
	require.Equal(t, "true", flag)

	require.NoError(t, metaStore.Clear())
	loaded, err = metaStore.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMetadataStoreLoadNothingStored(t *testing.T) {
	metaStore := session.NewMetadataStore(memstore.New())

	loaded, err := metaStore.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMetadataStoreTreatsMalformedPayloadAsAbsent(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Set(storage.KeyMetadata, "{not json"))

	loaded, err := session.NewMetadataStore(store).Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMetadataStoreLogsUnparsablePayload(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Set(storage.KeyMetadata, "{not json"))

	var buf bytes.Buffer
	metaStore := session.NewMetadataStore(store, session.WithMetadataLogger(zerolog.New(&buf)))

	loaded, err := metaStore.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
	require.Contains(t, buf.String(), "unparsable")
}
