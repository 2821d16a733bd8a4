package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/labelcast/internal/auth"
	"github.com/joshsymonds/labelcast/internal/gmail"
	"github.com/joshsymonds/labelcast/internal/runtime"
)

const (
	credentialsFile = "credentials.json"
	tokenFile       = "token.json"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	cfgDir       string
	scope        string
	corruptCache string
	rps          int
	pageSize     int
	verbose      bool
}

var opts globalOptions

var rootCmd = &cobra.Command{
	Use:   "labelcast",
	Short: "Announce to everyone who wrote under a Gmail label, then clear the label",
	Long: `labelcast collects the reply addresses of every message under a Gmail
label, sends one HTML announcement to all of them as blind copies, and can
then delete the harvested messages.

Each destructive step asks for confirmation first.`,
	SilenceUsage: true,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		runtime.DefaultLogger().Error("labelcast failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.cfgDir, "config", os.ExpandEnv("$HOME/.labelcast"), "directory holding credentials.json and token.json")
	pf.StringVar(&opts.scope, "scope", auth.ScopeFull, "OAuth scope set: full or minimal")
	pf.StringVar(&opts.corruptCache, "corrupt-cache", "reauth", "what to do with an unreadable token cache: reauth or fail")
	pf.IntVar(&opts.rps, "rps", 4, "max Gmail requests per second (0 = unlimited)")
	pf.IntVar(&opts.pageSize, "page-size", 500, "Gmail list page size (<=500)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newAuthCmd())
}

func (o globalOptions) logger() *slog.Logger {
	return runtime.NewLogger(o.verbose)
}

// provider loads the client secret and builds the credential provider.
func (o globalOptions) provider(logger *slog.Logger) (*auth.Provider, auth.FileStore, error) {
	scopes, err := auth.Scopes(o.scope)
	if err != nil {
		return nil, auth.FileStore{}, err
	}
	policy, err := auth.ParseCorruptPolicy(o.corruptCache)
	if err != nil {
		return nil, auth.FileStore{}, err
	}
	cfg, err := auth.LoadConfig(filepath.Join(o.cfgDir, credentialsFile), scopes...)
	if err != nil {
		return nil, auth.FileStore{}, fmt.Errorf("%w: %w", auth.ErrAuthFailure, err)
	}
	authorizer := auth.LoopbackAuthorizer{In: os.Stdin, Out: os.Stderr}
	p := auth.NewProvider(cfg, authorizer, logger)
	p.Corrupt = policy
	return p, auth.FileStore{Path: filepath.Join(o.cfgDir, tokenFile)}, nil
}

// gmailClient obtains a credential and returns an authorized Gmail client.
func (o globalOptions) gmailClient(ctx context.Context, logger *slog.Logger) (gmail.Client, error) {
	p, store, err := o.provider(logger)
	if err != nil {
		return nil, err
	}
	tok, err := p.Obtain(ctx, store)
	if err != nil {
		return nil, err
	}
	client, err := runtime.NewGmailClient(ctx, p.HTTPClient(ctx, tok))
	if err != nil {
		return nil, fmt.Errorf("create gmail client: %w", err)
	}
	return client, nil
}

func (o globalOptions) validate() error {
	if o.pageSize <= 0 || o.pageSize > 500 {
		return errors.New("--page-size must be between 1 and 500")
	}
	if o.rps < 0 {
		return errors.New("--rps must not be negative")
	}
	return nil
}
