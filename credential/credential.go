package credential

import (
	"errors"
	"time"
)

var (
	InvalidCredentialErr = errors.New("credential missing required token material")
	NoCredentialErr      = errors.New("no credential available")
)

// Record holds the bearer material issued by the external auth provider.
// Token content is treated as opaque; only the expiry instant is interpreted.
// The refresh engine is the sole mutator of the live Record.
type Record struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the record carries all required token fields.
// A structurally incomplete record cannot be fixed by retrying a fetch.
func (r *Record) Valid() bool {
	return r != nil && r.AccessToken != "" && r.IDToken != "" && r.RefreshToken != ""
}

// TimeUntilExpiry returns how long the record remains usable from now.
// Negative when already expired.
func (r *Record) TimeUntilExpiry(now time.Time) time.Duration {
	return r.ExpiresAt.Sub(now)
}
