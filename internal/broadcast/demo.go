package broadcast

import (
	"context"
	"fmt"
	"os"
)

// DemoSpec describes a test send to a single address.
type DemoSpec struct {
	Sender       string
	Recipient    string
	Subject      string
	TemplatePath string
}

// Demo sends the template to one recipient after confirmation. The recipient
// is blind-copied, the same way the real announcement addresses everyone.
// It returns whether a message went out.
func (s *Service) Demo(ctx context.Context, spec DemoSpec) (bool, error) {
	if _, err := os.Stat(spec.TemplatePath); err != nil {
		return false, fmt.Errorf("template file %q not found: %w", spec.TemplatePath, err)
	}
	fmt.Fprintf(s.Out, "Creating email using template: %s\n", spec.TemplatePath)
	fmt.Fprintf(s.Out, "From: %s\n", spec.Sender)
	fmt.Fprintf(s.Out, "To: %s\n", spec.Recipient)
	fmt.Fprintf(s.Out, "Subject: %s\n", spec.Subject)

	msg, err := s.Compose(spec.Sender, []string{spec.Recipient}, spec.Subject, spec.TemplatePath)
	if err != nil {
		return false, err
	}
	ok, err := s.Prompter.Confirm("\nSend the demo email? (y/n): ")
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(s.Out, "Operation cancelled.")
		return false, nil
	}
	receipt, err := s.Dispatcher.Send(ctx, msg)
	if err != nil {
		return false, err
	}
	fmt.Fprintf(s.Out, "Demo email sent successfully! Message ID: %s\n", receipt.ID)
	return true, nil
}
