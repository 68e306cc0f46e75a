package oauthprovider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-manager/credential"
	"github.com/jrsteele09/go-session-manager/storage"
)

var _ credential.Provider = (*Provider)(nil)

// Config identifies the OAuth2/OIDC issuer and client.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Provider implements credential.Provider against a standard OAuth2/OIDC
// issuer: SignIn uses the resource-owner password grant, FetchSession the
// refresh-token grant. ID tokens are verified against the issuer's keys and
// the credential expiry falls back to the access token's exp claim when the
// token endpoint does not report one.
type Provider struct {
	oauth              *oauth2.Config
	verifier           *oidc.IDTokenVerifier
	store              storage.Store
	revocationEndpoint string
	httpClient         *http.Client
	log                zerolog.Logger
}

// Option defines a function type to modify a Provider instance.
type Option func(*Provider)

func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// New discovers the issuer and builds a provider. store is used to carry the
// refresh token across restarts; credential persistence itself is owned by
// the refresh engine.
func New(ctx context.Context, cfg Config, store storage.Store, options ...Option) (*Provider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("[oauthprovider.New] issuer URL and client ID are required")
	}
	if store == nil {
		return nil, errors.New("[oauthprovider.New] store is required")
	}

	issuer, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oauthprovider.New] issuer discovery")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	var discovered struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	_ = issuer.Claims(&discovered)

	provider := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     issuer.Endpoint(),
			Scopes:       scopes,
		},
		verifier:           issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		store:              store,
		revocationEndpoint: discovered.RevocationEndpoint,
		httpClient:         http.DefaultClient,
		log:                zerolog.Nop(),
	}
	for _, opt := range options {
		opt(provider)
	}
	return provider, nil
}

// SignIn authenticates with the password grant and returns the initial
// credential.
func (p *Provider) SignIn(ctx context.Context, username, password string) (*credential.Record, error) {
	token, err := p.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.SignIn] password grant")
	}
	return p.toRecord(ctx, token)
}

// FetchSession renews the credential with the stored refresh token. A
// missing refresh token is a structurally invalid session and is reported
// via credential.InvalidCredentialErr so callers do not retry.
func (p *Provider) FetchSession(ctx context.Context) (*credential.Record, error) {
	refreshToken, err := p.store.Get(storage.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		return nil, errors.Wrap(credential.InvalidCredentialErr, "[Provider.FetchSession] no refresh token")
	}

	source := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.FetchSession] refresh grant")
	}
	return p.toRecord(ctx, token)
}

// SignOut revokes the stored refresh token when the issuer advertises a
// revocation endpoint; otherwise it is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	if p.revocationEndpoint == "" {
		return nil
	}

	refreshToken, err := p.store.Get(storage.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		return nil
	}

	form := url.Values{}
	form.Set("token", refreshToken)
	form.Set("token_type_hint", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[Provider.SignOut] build revocation request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.oauth.ClientID, p.oauth.ClientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Provider.SignOut] revocation request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("[Provider.SignOut] revocation endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) toRecord(ctx context.Context, token *oauth2.Token) (*credential.Record, error) {
	idToken, _ := token.Extra("id_token").(string)
	if idToken != "" {
		if _, err := p.verifier.Verify(ctx, idToken); err != nil {
			return nil, errors.Wrap(credential.InvalidCredentialErr, err.Error())
		}
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// Some issuers do not rotate the refresh token on renewal.
		refreshToken, _ = p.store.Get(storage.KeyRefreshToken)
	}

	record := &credential.Record{
		AccessToken:  token.AccessToken,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    token.Expiry,
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = accessTokenExpiry(token.AccessToken)
	}
	if !record.Valid() {
		return nil, errors.Wrap(credential.InvalidCredentialErr, "[Provider.toRecord] token response incomplete")
	}
	return record, nil
}

// accessTokenExpiry reads the exp claim of a JWT access token without
// verifying it; the token is only inspected, never trusted, client side.
func accessTokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
