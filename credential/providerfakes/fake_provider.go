package providerfakes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-session-manager/credential"
)

var _ credential.Provider = (*FakeProvider)(nil)

var PasswordsDontMatchErr = errors.New("invalid username or password")

// fetchResult is one scripted FetchSession outcome.
type fetchResult struct {
	record *credential.Record
	err    error
}

// FakeProvider is a scriptable credential.Provider for tests and demos.
// By default every FetchSession succeeds with a freshly minted session;
// outcomes can be queued to simulate transient and terminal failures, and
// fetches can be gated to hold callers in flight.
type FakeProvider struct {
	users      map[string]string // username -> bcrypt hash
	queued     []fetchResult
	fetchCalls int
	fetchTimes []time.Time
	signOuts   int
	sessionTTL time.Duration
	gate       chan struct{}
	signingKey []byte
	lock       sync.Mutex
}

func New() *FakeProvider {
	return &FakeProvider{
		users:      make(map[string]string),
		sessionTTL: time.Hour,
		signingKey: []byte(uuid.New().String()),
	}
}

// WithUser registers a username/password pair accepted by SignIn.
func (p *FakeProvider) WithUser(username, password string) *FakeProvider {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err) // bcrypt only fails on invalid cost
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.users[username] = string(hash)
	return p
}

// SetSessionTTL sets the lifetime of minted sessions.
func (p *FakeProvider) SetSessionTTL(ttl time.Duration) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.sessionTTL = ttl
}

// QueueError scripts the next FetchSession call to fail with err.
func (p *FakeProvider) QueueError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.queued = append(p.queued, fetchResult{err: err})
}

// QueueInvalidSession scripts the next FetchSession call to return a record
// missing its token material.
func (p *FakeProvider) QueueInvalidSession() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.queued = append(p.queued, fetchResult{record: &credential.Record{}})
}

// BlockFetches holds every FetchSession call until ReleaseFetches.
func (p *FakeProvider) BlockFetches() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.gate = make(chan struct{})
}

// ReleaseFetches releases callers held by BlockFetches.
func (p *FakeProvider) ReleaseFetches() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
}

// FetchCalls returns the number of FetchSession invocations.
func (p *FakeProvider) FetchCalls() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.fetchCalls
}

// FetchTimes returns the instant each FetchSession invocation arrived.
func (p *FakeProvider) FetchTimes() []time.Time {
	p.lock.Lock()
	defer p.lock.Unlock()
	times := make([]time.Time, len(p.fetchTimes))
	copy(times, p.fetchTimes)
	return times
}

// SignOutCalls returns the number of SignOut invocations.
func (p *FakeProvider) SignOutCalls() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.signOuts
}

func (p *FakeProvider) FetchSession(ctx context.Context) (*credential.Record, error) {
	p.lock.Lock()
	p.fetchCalls++
	p.fetchTimes = append(p.fetchTimes, time.Now())
	gate := p.gate
	p.lock.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if len(p.queued) > 0 {
		next := p.queued[0]
		p.queued = p.queued[1:]
		if next.err != nil {
			return nil, next.err
		}
		return next.record, nil
	}

	return p.mintSession("user")
}

func (p *FakeProvider) SignIn(_ context.Context, username, password string) (*credential.Record, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	hash, ok := p.users[username]
	if !ok {
		return nil, PasswordsDontMatchErr
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, PasswordsDontMatchErr
	}
	return p.mintSession(username)
}

func (p *FakeProvider) SignOut(context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.signOuts++
	return nil
}

// mintSession issues a record with a signed access token so consumers that
// inspect the exp claim see a coherent expiry. Callers must hold the lock.
func (p *FakeProvider) mintSession(subject string) (*credential.Record, error) {
	now := time.Now()
	expiresAt := now.Add(p.sessionTTL)

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}).SignedString(p.signingKey)
	if err != nil {
		return nil, err
	}

	return &credential.Record{
		AccessToken:  accessToken,
		IDToken:      uuid.New().String(),
		RefreshToken: uuid.New().String(),
		ExpiresAt:    expiresAt,
	}, nil
}
