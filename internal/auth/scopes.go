package auth

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

const (
	ScopeFull    = "full"
	ScopeMinimal = "minimal"
)

// Scopes maps a scope-set name to OAuth scopes.
//
// full matches the broad grant needed for permanent bulk deletion. minimal
// can list, send and trash but not hard-delete, so disposal always ends up on
// the per-message trash path.
func Scopes(name string) ([]string, error) {
	switch name {
	case ScopeFull, "":
		return []string{
			gmail.MailGoogleComScope,
			gmail.GmailModifyScope,
			gmail.GmailLabelsScope,
			gmail.GmailComposeScope,
		}, nil
	case ScopeMinimal:
		return []string{
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
			gmail.GmailModifyScope,
		}, nil
	default:
		return nil, fmt.Errorf("unknown scope set %q (want %s or %s)", name, ScopeFull, ScopeMinimal)
	}
}

// LoadConfig reads the provider-issued client secret file.
func LoadConfig(path string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secret %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return cfg, nil
}
