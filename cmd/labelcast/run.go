package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/labelcast/internal/broadcast"
	"github.com/joshsymonds/labelcast/internal/dispatch"
	"github.com/joshsymonds/labelcast/internal/dispose"
	"github.com/joshsymonds/labelcast/internal/gmail"
	"github.com/joshsymonds/labelcast/internal/harvest"
	"github.com/joshsymonds/labelcast/internal/rate"
)

const (
	defaultSubject  = "SCE 2015 Drive - לינק לדרייב 2015"
	defaultTemplate = "email_template.html"
)

var errSendFailed = errors.New("announcement was not sent")

type runOptions struct {
	label     string
	sender    string
	subject   string
	template  string
	ask       bool
	preview   bool
	action    string
	transport string
}

func newRunCmd() *cobra.Command {
	var ro runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest addresses under a label, send the announcement, delete the originals",
		Long: `Resolve the label, collect one reply address per message (Reply-To, else
From), list them, then send and/or delete according to the chosen action.

Unless --preview or --action are given, the operator is asked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			spec, err := ro.spec(cmd.Flags().Changed("preview"))
			if err != nil {
				return err
			}
			sum, err := runBroadcast(ctx, ro, spec)
			if err != nil {
				return err
			}
			if sum.Failed() {
				return fmt.Errorf("%w: %w", errSendFailed, sum.SendErr)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&ro.label, "label", "SCE", "Gmail label whose messages are harvested")
	f.StringVar(&ro.sender, "sender", os.Getenv("GMAIL_ADDRESS"), "From header of the announcement, e.g. \"Name <me@example.com>\"")
	f.StringVar(&ro.subject, "subject", defaultSubject, "announcement subject")
	f.StringVar(&ro.template, "template", defaultTemplate, "HTML body file, used verbatim")
	f.BoolVar(&ro.ask, "ask", false, "prompt for subject and template, offering the flag values as defaults")
	f.BoolVar(&ro.preview, "preview", false, "list addresses only (asked when not given)")
	f.StringVar(&ro.action, "action", "", "send-delete, send or delete (menu when not given)")
	f.StringVar(&ro.transport, "transport", "gmail", "gmail or smtp")

	return cmd
}

func (ro runOptions) spec(previewSet bool) (broadcast.Spec, error) {
	action, err := broadcast.ParseAction(ro.action)
	if err != nil {
		return broadcast.Spec{}, err
	}
	if action != broadcast.ActionDeleteOnly && ro.sender == "" {
		return broadcast.Spec{}, errors.New("--sender is required (or set GMAIL_ADDRESS)")
	}
	spec := broadcast.Spec{
		Label:        ro.label,
		Sender:       ro.sender,
		Subject:      ro.subject,
		TemplatePath: ro.template,
		Action:       action,
		AskFields:    ro.ask,
	}
	if previewSet {
		preview := ro.preview
		spec.Preview = &preview
	}
	return spec, nil
}

func runBroadcast(ctx context.Context, ro runOptions, spec broadcast.Spec) (broadcast.Summary, error) {
	if err := opts.validate(); err != nil {
		return broadcast.Summary{}, err
	}
	logger := opts.logger()

	client, err := opts.gmailClient(ctx, logger)
	if err != nil {
		return broadcast.Summary{}, err
	}
	dispatcher, err := newDispatcher(ro.transport, client, logger)
	if err != nil {
		return broadcast.Summary{}, err
	}

	limiter := rate.New(opts.rps)
	defer limiter.Stop()

	harvester := harvest.NewService(client, limiter, logger)
	harvester.PageSize = opts.pageSize
	disposer := dispose.NewService(client, limiter, logger)
	disposer.Progress = os.Stdout

	svc := broadcast.NewService(
		client,
		harvester,
		dispatcher,
		disposer,
		broadcast.NewLinePrompter(os.Stdin, os.Stdout),
		os.Stdout,
		logger,
	)
	sum, err := svc.Run(ctx, spec)
	if err != nil {
		return sum, fmt.Errorf("run broadcast: %w", err)
	}
	logger.DebugContext(ctx, "run finished", "outcome", sum.Outcome, "count", len(sum.Harvest.MessageIDs))
	return sum, nil
}

func newDispatcher(transport string, client gmail.Client, logger *slog.Logger) (dispatch.Dispatcher, error) {
	switch transport {
	case "gmail":
		return dispatch.NewGmailDispatcher(client, logger), nil
	case "smtp":
		return dispatch.SMTPFromEnv(logger)
	default:
		return nil, fmt.Errorf("unknown transport %q (want gmail or smtp)", transport)
	}
}
