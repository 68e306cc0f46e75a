package credential

import "context"

// Provider is the external auth service the session manager authenticates
// against. Implementations are treated as opaque black boxes that can fail
// transiently; callers decide retry policy.
//
// A FetchSession error wrapping InvalidCredentialErr signals a structurally
// invalid session (nothing to refresh with) and must not be retried.
type Provider interface {
	// FetchSession renews and returns the current credential
	FetchSession(ctx context.Context) (*Record, error)

	// SignIn authenticates the user and returns the initial credential
	SignIn(ctx context.Context, username, password string) (*Record, error)

	// SignOut invalidates the credential with the provider
	SignOut(ctx context.Context) error
}
