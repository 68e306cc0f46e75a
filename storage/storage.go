package storage

import "errors"

var NotFoundErr = errors.New("key not found")

// Keys used by the session manager. Namespaced so a shared store can host
// other application state alongside session material.
const (
	KeyAccessToken  = "session.access_token"
	KeyIDToken      = "session.id_token"
	KeyRefreshToken = "session.refresh_token"
	KeyTokenExpiry  = "session.token_expiry"
	KeyMetadata     = "session.metadata"
	KeyRememberMe   = "session.remember_me"
)

// Store is the persisted key/value collaborator used to carry credential
// material and session metadata across process restarts. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the stored value, or NotFoundErr if the key is absent
	Get(key string) (string, error)

	// Set stores or replaces the value for a key
	Set(key, value string) error

	// Remove deletes a key; removing an absent key is not an error
	Remove(key string) error
}
