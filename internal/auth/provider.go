package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

// ErrAuthFailure means no usable credential could be obtained.
var ErrAuthFailure = errors.New("authorization failed")

// CorruptPolicy decides what Obtain does with an undecodable cache.
type CorruptPolicy int

const (
	// CorruptReauthorize treats a corrupt cache as absent.
	CorruptReauthorize CorruptPolicy = iota
	// CorruptFail turns a corrupt cache into ErrAuthFailure.
	CorruptFail
)

// ParseCorruptPolicy accepts "reauth" or "fail".
func ParseCorruptPolicy(s string) (CorruptPolicy, error) {
	switch s {
	case "reauth", "":
		return CorruptReauthorize, nil
	case "fail":
		return CorruptFail, nil
	default:
		return 0, fmt.Errorf("unknown corrupt-cache policy %q (want reauth or fail)", s)
	}
}

// Authorizer runs an interactive flow that yields a brand-new token.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// Provider owns the credential lifecycle. It never holds the credential
// itself; the store is passed in and written back explicitly.
type Provider struct {
	Config     *oauth2.Config
	Authorizer Authorizer
	Corrupt    CorruptPolicy
	Logger     *slog.Logger
}

// NewProvider constructs a Provider with sane defaults.
func NewProvider(cfg *oauth2.Config, authorizer Authorizer, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Provider{Config: cfg, Authorizer: authorizer, Logger: logger}
}

// Obtain returns a usable token, refreshing or re-authorizing as needed and
// persisting any change to store.
func (p *Provider) Obtain(ctx context.Context, store CredentialStore) (*oauth2.Token, error) {
	tok, err := store.Load()
	switch {
	case err == nil:
	case errors.Is(err, ErrNoCredential):
		p.Logger.DebugContext(ctx, "no cached credential")
	case errors.Is(err, ErrCorruptCredential):
		if p.Corrupt == CorruptFail {
			return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
		}
		p.Logger.WarnContext(ctx, "ignoring corrupt credential cache", "error", err)
		tok = nil
	default:
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	if tok != nil && tok.Valid() {
		return tok, nil
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, refreshErr := p.refresh(ctx, tok)
		if refreshErr == nil {
			return p.persist(ctx, store, refreshed)
		}
		p.Logger.WarnContext(ctx, "credential refresh failed; reauthorizing", "error", refreshErr)
	}

	if p.Authorizer == nil {
		return nil, fmt.Errorf("%w: interactive authorization unavailable", ErrAuthFailure)
	}
	fresh, err := p.Authorizer.Authorize(ctx, p.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	return p.persist(ctx, store, fresh)
}

// HTTPClient returns a client authorized with tok. Tokens refreshed by the
// client mid-run are not written back.
func (p *Provider) HTTPClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	return p.Config.Client(ctx, tok)
}

func (p *Provider) refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	expired := *tok
	// force the token source to refresh even if the clock says otherwise
	expired.AccessToken = ""
	refreshed, err := p.Config.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh credential: %w", err)
	}
	p.Logger.InfoContext(ctx, "refreshed credential", "expiry", refreshed.Expiry)
	return refreshed, nil
}

func (p *Provider) persist(ctx context.Context, store CredentialStore, tok *oauth2.Token) (*oauth2.Token, error) {
	if err := store.Save(tok); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	p.Logger.DebugContext(ctx, "credential cache updated")
	return tok, nil
}
