package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize labelcast and cache the credential",
		Long: `Load the cached credential, refreshing it or running the browser
authorization when needed, and write the result to token.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			p, store, err := opts.provider(logger)
			if err != nil {
				return err
			}
			tok, err := p.Obtain(cmd.Context(), store)
			if err != nil {
				return err
			}
			if tok.Expiry.IsZero() {
				fmt.Fprintf(os.Stdout, "Credential cached in %s (no expiry).\n", store.Path)
				return nil
			}
			fmt.Fprintf(os.Stdout, "Credential cached in %s, valid until %s.\n", store.Path, tok.Expiry.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
