// Package dispatch sends a composed message and converts every failure into
// a SendError instead of letting it escape.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/labelcast/internal/compose"
	"github.com/joshsymonds/labelcast/internal/gmail"
)

// Receipt identifies the sent message.
type Receipt struct {
	ID gmail.MessageID
}

// SendError wraps the cause of a failed send.
type SendError struct {
	Transport string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send via %s: %v", e.Transport, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Dispatcher sends one OutboundMessage.
type Dispatcher interface {
	Send(ctx context.Context, msg compose.OutboundMessage) (Receipt, error)
}

// GmailDispatcher posts the encoded payload through the Gmail API.
type GmailDispatcher struct {
	Client gmail.Client
	Logger *slog.Logger
}

func NewGmailDispatcher(client gmail.Client, logger *slog.Logger) *GmailDispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &GmailDispatcher{Client: client, Logger: logger}
}

func (d *GmailDispatcher) Send(ctx context.Context, msg compose.OutboundMessage) (Receipt, error) {
	id, err := d.Client.Send(ctx, msg.Encoded)
	if err != nil {
		d.Logger.ErrorContext(ctx, "send failed", "transport", "gmail", "error", err)
		return Receipt{}, &SendError{Transport: "gmail", Err: err}
	}
	d.Logger.InfoContext(ctx, "message sent", "transport", "gmail", "message_id", id, "bcc", len(msg.Bcc))
	return Receipt{ID: id}, nil
}

var _ Dispatcher = (*GmailDispatcher)(nil)
