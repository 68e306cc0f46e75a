package session

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-manager/storage"
)

// Metadata is the persisted session snapshot used to reconstruct state after
// a process restart. It is not a source of truth while the session is live
// in memory.
type Metadata struct {
	LoginTime      time.Time `json:"loginTime"`
	LastActivity   time.Time `json:"lastActivity"`
	ExpirationTime time.Time `json:"expirationTime,omitempty"`
	RememberMe     bool      `json:"rememberMe"`
	DeviceID       string    `json:"deviceId"`
	SessionID      string    `json:"sessionId"`
}

// MetadataStore round-trips Metadata through the persisted key/value store.
type MetadataStore struct {
	store storage.Store
	log   zerolog.Logger
}

// MetadataStoreOption defines a function type to modify a MetadataStore.
type MetadataStoreOption func(*MetadataStore)

func WithMetadataLogger(log zerolog.Logger) MetadataStoreOption {
	return func(m *MetadataStore) { m.log = log }
}

func NewMetadataStore(store storage.Store, options ...MetadataStoreOption) *MetadataStore {
	m := &MetadataStore{store: store, log: zerolog.Nop()}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *MetadataStore) Save(md *Metadata) error {
	payload, err := json.Marshal(md)
	if err != nil {
		return errors.Wrap(err, "[MetadataStore.Save] marshal")
	}
	if err := m.store.Set(storage.KeyMetadata, string(payload)); err != nil {
		return errors.Wrap(err, "[MetadataStore.Save] store set")
	}
	if md.RememberMe {
		if err := m.store.Set(storage.KeyRememberMe, "true"); err != nil {
			return errors.Wrap(err, "[MetadataStore.Save] remember-me flag")
		}
	}
	return nil
}

// Load returns the stored metadata, or nil when nothing is stored. An
// unparsable payload is treated conservatively as absent rather than trusted.
func (m *MetadataStore) Load() (*Metadata, error) {
	payload, err := m.store.Get(storage.KeyMetadata)
	if err != nil {
		if errors.Is(err, storage.NotFoundErr) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[MetadataStore.Load] store get")
	}

	var md Metadata
	if err := json.Unmarshal([]byte(payload), &md); err != nil {
		m.log.Warn().Err(err).Msg("stored session metadata unparsable, treating as absent")
		return nil, nil
	}
	return &md, nil
}

func (m *MetadataStore) Clear() error {
	if err := m.store.Remove(storage.KeyMetadata); err != nil {
		return errors.Wrap(err, "[MetadataStore.Clear] metadata key")
	}
	if err := m.store.Remove(storage.KeyRememberMe); err != nil {
		return errors.Wrap(err, "[MetadataStore.Clear] remember-me key")
	}
	return nil
}
