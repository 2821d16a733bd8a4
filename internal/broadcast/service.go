// Package broadcast runs the operator pipeline: resolve the label, harvest
// reply addresses, then send the announcement and/or dispose of the
// harvested messages behind confirmation gates.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joshsymonds/labelcast/internal/compose"
	"github.com/joshsymonds/labelcast/internal/dispatch"
	"github.com/joshsymonds/labelcast/internal/dispose"
	"github.com/joshsymonds/labelcast/internal/gmail"
	"github.com/joshsymonds/labelcast/internal/harvest"
)

// Action selects which phases run after harvesting.
type Action int

const (
	ActionUnset Action = iota
	ActionSendAndDelete
	ActionSendOnly
	ActionDeleteOnly
)

// ParseAction accepts send-delete, send, delete, or "" for "ask".
func ParseAction(s string) (Action, error) {
	switch s {
	case "":
		return ActionUnset, nil
	case "send-delete":
		return ActionSendAndDelete, nil
	case "send":
		return ActionSendOnly, nil
	case "delete":
		return ActionDeleteOnly, nil
	default:
		return ActionUnset, fmt.Errorf("unknown action %q (want send-delete, send or delete)", s)
	}
}

func (a Action) sends() bool   { return a == ActionSendAndDelete || a == ActionSendOnly }
func (a Action) deletes() bool { return a == ActionSendAndDelete || a == ActionDeleteOnly }

// Outcome names where a run stopped.
type Outcome string

const (
	OutcomeLabelNotFound Outcome = "label-not-found"
	OutcomeNoAddresses   Outcome = "no-addresses"
	OutcomePreview       Outcome = "preview"
	OutcomeInvalidChoice Outcome = "invalid-choice"
	OutcomeSendCancelled Outcome = "send-cancelled"
	OutcomeCompleted     Outcome = "completed"
)

// Spec describes one run.
type Spec struct {
	Label        string
	Sender       string
	Subject      string
	TemplatePath string
	// Preview nil means ask the operator.
	Preview *bool
	// ActionUnset means show the action menu.
	Action Action
	// AskFields solicits subject and template path, offering the Spec
	// values as defaults.
	AskFields bool
}

// Summary reports what a run did. Completed phases are never rolled back.
type Summary struct {
	Outcome  Outcome
	LabelID  gmail.LabelID
	Harvest  harvest.Result
	Receipt  *dispatch.Receipt
	SendErr  error
	Disposal *dispose.Report
	// DeleteDeclined is set when the operator answered no at the delete gate.
	DeleteDeclined bool
}

// Failed reports a run whose send phase failed.
func (s Summary) Failed() bool { return s.SendErr != nil }

type Harvester interface {
	Harvest(ctx context.Context, label gmail.LabelID) (harvest.Result, error)
}

type Disposer interface {
	Dispose(ctx context.Context, ids []gmail.MessageID) (dispose.Report, error)
}

// ComposeFunc matches compose.Compose.
type ComposeFunc func(sender string, bcc []string, subject, templatePath string) (compose.OutboundMessage, error)

// Service wires the pipeline components together.
type Service struct {
	Client     gmail.Client
	Harvester  Harvester
	Dispatcher dispatch.Dispatcher
	Disposer   Disposer
	Compose    ComposeFunc
	Prompter   Prompter
	Out        io.Writer
	Logger     *slog.Logger
}

// NewService constructs a Service with sane defaults.
func NewService(
	client gmail.Client,
	harvester Harvester,
	dispatcher dispatch.Dispatcher,
	disposer Disposer,
	prompter Prompter,
	out io.Writer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if out == nil {
		out = io.Discard
	}
	return &Service{
		Client:     client,
		Harvester:  harvester,
		Dispatcher: dispatcher,
		Disposer:   disposer,
		Compose:    compose.Compose,
		Prompter:   prompter,
		Out:        out,
		Logger:     logger,
	}
}

// Run executes the pipeline. A missing label, preview, an invalid menu choice
// or a declined gate end the run early with a nil error. Send failures are
// reported in Summary.SendErr and suppress deletion.
func (s *Service) Run(ctx context.Context, spec Spec) (Summary, error) {
	var sum Summary
	logger := s.Logger.With("label", spec.Label)

	labelID, err := harvest.ResolveLabel(ctx, s.Client, spec.Label)
	if errors.Is(err, harvest.ErrLabelNotFound) {
		fmt.Fprintf(s.Out, "Label '%s' not found. Exiting.\n", spec.Label)
		sum.Outcome = OutcomeLabelNotFound
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("resolve label: %w", err)
	}
	sum.LabelID = labelID
	logger.DebugContext(ctx, "resolved label", "label_id", labelID)

	preview, err := s.previewMode(spec)
	if err != nil {
		return sum, err
	}

	fmt.Fprintf(s.Out, "Fetching email addresses from '%s' label...\n", spec.Label)
	res, err := s.Harvester.Harvest(ctx, labelID)
	if err != nil {
		return sum, fmt.Errorf("harvest: %w", err)
	}
	sum.Harvest = res
	printAddresses(s.Out, res)

	if len(res.Addresses) == 0 {
		fmt.Fprintln(s.Out, "No email addresses found. Exiting.")
		sum.Outcome = OutcomeNoAddresses
		return sum, nil
	}
	if preview {
		fmt.Fprintln(s.Out, "\nPREVIEW MODE - No emails will be sent or deleted.")
		sum.Outcome = OutcomePreview
		return sum, nil
	}

	subject, templatePath, err := s.messageFields(spec)
	if err != nil {
		return sum, err
	}

	action, err := s.chooseAction(spec.Action)
	if err != nil {
		return sum, err
	}
	if action == ActionUnset {
		fmt.Fprintln(s.Out, "Invalid choice. Exiting.")
		sum.Outcome = OutcomeInvalidChoice
		return sum, nil
	}

	deleteAfter := action.deletes()
	if action.sends() {
		fmt.Fprintf(s.Out, "\nReady to send email to %d recipients (BCC).\n", len(res.Addresses))
		ok, err := s.Prompter.Confirm("Send the email? (y/n): ")
		if err != nil {
			return sum, err
		}
		if !ok {
			fmt.Fprintln(s.Out, "Sending cancelled.")
			sum.Outcome = OutcomeSendCancelled
			return sum, nil
		}
		if err := s.send(ctx, &sum, spec.Sender, res.Addresses, subject, templatePath); err != nil {
			fmt.Fprintf(s.Out, "Failed to send email: %v\n", err)
			deleteAfter = false
		} else {
			fmt.Fprintln(s.Out, "Email sent successfully!")
		}
	}

	if deleteAfter {
		if err := s.dispose(ctx, &sum, res.MessageIDs); err != nil {
			return sum, err
		}
	}

	fmt.Fprintln(s.Out, "Operation complete.")
	sum.Outcome = OutcomeCompleted
	return sum, nil
}

func (s *Service) previewMode(spec Spec) (bool, error) {
	if spec.Preview != nil {
		return *spec.Preview, nil
	}
	return s.Prompter.Confirm("Run in preview mode? (y/n): ")
}

func (s *Service) messageFields(spec Spec) (string, string, error) {
	if !spec.AskFields {
		return spec.Subject, spec.TemplatePath, nil
	}
	subject, err := s.askDefault("Email subject", spec.Subject)
	if err != nil {
		return "", "", err
	}
	templatePath, err := s.askDefault("HTML template path", spec.TemplatePath)
	if err != nil {
		return "", "", err
	}
	return subject, templatePath, nil
}

func (s *Service) askDefault(what, def string) (string, error) {
	q := what + ": "
	if def != "" {
		q = fmt.Sprintf("%s [%s]: ", what, def)
	}
	ans, err := s.Prompter.Ask(q)
	if err != nil {
		return "", err
	}
	if ans == "" {
		return def, nil
	}
	return ans, nil
}

func (s *Service) chooseAction(preset Action) (Action, error) {
	if preset != ActionUnset {
		return preset, nil
	}
	fmt.Fprintln(s.Out, "\nWhat would you like to do?")
	fmt.Fprintln(s.Out, "1. Send emails and delete originals")
	fmt.Fprintln(s.Out, "2. Send emails without deleting originals")
	fmt.Fprintln(s.Out, "3. Delete originals without sending emails")
	choice, err := s.Prompter.Ask("Enter your choice (1-3): ")
	if err != nil {
		return ActionUnset, err
	}
	switch choice {
	case "1":
		return ActionSendAndDelete, nil
	case "2":
		return ActionSendOnly, nil
	case "3":
		return ActionDeleteOnly, nil
	default:
		return ActionUnset, nil
	}
}

func (s *Service) send(ctx context.Context, sum *Summary, sender string, bcc []string, subject, templatePath string) error {
	msg, err := s.Compose(sender, bcc, subject, templatePath)
	if err != nil {
		sum.SendErr = err
		s.Logger.ErrorContext(ctx, "compose failed", "error", err)
		return err
	}
	receipt, err := s.Dispatcher.Send(ctx, msg)
	if err != nil {
		sum.SendErr = err
		return err
	}
	sum.Receipt = &receipt
	fmt.Fprintf(s.Out, "Message sent. Message ID: %s\n", receipt.ID)
	return nil
}

func (s *Service) dispose(ctx context.Context, sum *Summary, ids []gmail.MessageID) error {
	ok, err := s.Prompter.Confirm(fmt.Sprintf("Delete all %d emails under the label? (y/n): ", len(ids)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(s.Out, "Emails were not deleted.")
		sum.DeleteDeclined = true
		return nil
	}
	rep, err := s.Disposer.Dispose(ctx, ids)
	sum.Disposal = &rep
	if err != nil {
		return fmt.Errorf("dispose: %w", err)
	}
	printDisposal(s.Out, rep)
	return nil
}

func printAddresses(w io.Writer, res harvest.Result) {
	fmt.Fprintf(w, "Found %d unique email addresses from %d emails.\n", len(res.Addresses), len(res.MessageIDs))
	fmt.Fprintln(w, "\nEmail addresses fetched:")
	for i, addr := range res.Addresses {
		fmt.Fprintf(w, "%d. %s\n", i+1, addr)
	}
	fmt.Fprintln(w)
}

func printDisposal(w io.Writer, rep dispose.Report) {
	if !rep.UsedFallback() {
		fmt.Fprintf(w, "Successfully deleted %d messages.\n", rep.Succeeded)
		return
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "Failed to delete message %s: %v\n", f.ID, f.Err)
	}
	fmt.Fprintf(w, "Deletion complete. Successfully deleted %d/%d messages.\n", rep.Succeeded, rep.Requested)
}
