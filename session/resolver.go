// Package session decides which local user a command acts as and produces a
// backend client whose authorization has been confirmed with a live probe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagarc03/diskcli/backend"
	"github.com/sagarc03/diskcli/vault"
)

// probeDir is listed to confirm that the backend accepts the authorization.
const probeDir = "/"

// TokenStore is the part of the vault the resolver needs.
type TokenStore interface {
	EnsureUser(user string) error
	IsAuthenticated(user string) (bool, error)
	ReadToken(user string) (vault.Token, error)
	WriteToken(user string, tok vault.Token) error
	DeleteToken(user string) error
}

// ClientFactory builds a backend client.
type ClientFactory func() (backend.Client, error)

// Session is a resolved user with a live backend client.
type Session struct {
	User   string
	Client backend.Client
}

// Resolver resolves sessions.
type Resolver struct {
	tokens    TokenStore
	defaults  *DefaultUser
	newClient ClientFactory
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithClock sets the clock used for token timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver.
func NewResolver(tokens TokenStore, defaults *DefaultUser, newClient ClientFactory, opts ...Option) *Resolver {
	r := &Resolver{
		tokens:    tokens,
		defaults:  defaults,
		newClient: newClient,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EffectiveUser returns explicit if set, otherwise the default user.
func (r *Resolver) EffectiveUser(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	user, err := r.defaults.Get()
	if err != nil {
		return "", err
	}
	if user == "" {
		return "", ErrNoUserSpecified
	}
	return user, nil
}

// Resolve returns a live session for the effective user. With requireLogin a
// user without a token is authorized interactively; otherwise that is
// ErrUserNotAuthenticated.
func (r *Resolver) Resolve(ctx context.Context, explicit string, requireLogin bool) (*Session, error) {
	user, err := r.EffectiveUser(explicit)
	if err != nil {
		return nil, err
	}

	exists, err := r.tokens.IsAuthenticated(user)
	if err != nil {
		return nil, err
	}

	if !exists {
		if !requireLogin {
			return nil, fmt.Errorf("%w: %s", ErrUserNotAuthenticated, user)
		}
		return r.login(ctx, user)
	}

	return r.resume(ctx, user)
}

func (r *Resolver) login(ctx context.Context, user string) (*Session, error) {
	if err := r.tokens.EnsureUser(user); err != nil {
		return nil, err
	}

	client, err := r.newClient()
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	// Force fresh consent.
	if a, ok := client.(backend.Authorizer); ok {
		if err := a.ClearAuthorization(); err != nil {
			r.logger.Warn("failed to clear global authorization", "err", err)
		}
	}

	r.logger.Debug("authorizing", "user", user)
	if err := client.Authorize(ctx); err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrAuthenticationFailed, user, err)
	}
	if _, err := client.List(ctx, probeDir); err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrAuthenticationFailed, user, err)
	}

	tok := vault.NewToken(user, r.now())
	if err := r.tokens.WriteToken(user, tok); err != nil {
		return nil, err
	}

	r.logger.Debug("user authorized", "user", user)
	return &Session{User: user, Client: client}, nil
}

func (r *Resolver) resume(ctx context.Context, user string) (*Session, error) {
	tok, err := r.tokens.ReadToken(user)
	if err != nil {
		return nil, err
	}
	if !tok.Authenticated {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, user)
	}

	client, err := r.newClient()
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	if _, err := client.List(ctx, probeDir); err != nil {
		// A cancelled or timed out command says nothing about the session.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("check session for %s: %w", user, err)
		}
		r.logger.Debug("probe failed, evicting token", "user", user, "err", err)
		if delErr := r.tokens.DeleteToken(user); delErr != nil {
			r.logger.Warn("failed to delete expired token", "user", user, "err", delErr)
		}
		return nil, fmt.Errorf("%w for %s: %w", ErrSessionExpired, user, err)
	}

	return &Session{User: user, Client: client}, nil
}
