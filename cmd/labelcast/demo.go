package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/labelcast/internal/broadcast"
	"github.com/joshsymonds/labelcast/internal/harvest"
)

func newDemoCmd() *cobra.Command {
	var (
		spec      broadcast.DemoSpec
		transport string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Send the announcement to a single address to check how it renders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if spec.Sender == "" {
				return errors.New("--sender is required (or set GMAIL_ADDRESS)")
			}
			if spec.Recipient == "" {
				spec.Recipient = strings.TrimSpace(harvest.ExtractAddress(spec.Sender))
			}
			if err := opts.validate(); err != nil {
				return err
			}
			logger := opts.logger()

			fmt.Fprintln(os.Stdout, "Sending a demo email to yourself...")
			client, err := opts.gmailClient(ctx, logger)
			if err != nil {
				return err
			}
			dispatcher, err := newDispatcher(transport, client, logger)
			if err != nil {
				return err
			}
			svc := broadcast.NewService(client, nil, dispatcher, nil,
				broadcast.NewLinePrompter(os.Stdin, os.Stdout), os.Stdout, logger)
			if _, err := svc.Demo(ctx, spec); err != nil {
				return fmt.Errorf("demo: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&spec.Sender, "sender", os.Getenv("GMAIL_ADDRESS"), "From header of the demo message")
	f.StringVar(&spec.Recipient, "recipient", "", "address to send to (defaults to the sender's address)")
	f.StringVar(&spec.Subject, "subject", defaultSubject, "demo subject")
	f.StringVar(&spec.TemplatePath, "template", defaultTemplate, "HTML body file, used verbatim")
	f.StringVar(&transport, "transport", "gmail", "gmail or smtp")

	return cmd
}
