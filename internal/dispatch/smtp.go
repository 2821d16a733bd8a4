package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/joshsymonds/labelcast/internal/compose"
	"github.com/joshsymonds/labelcast/internal/gmail"
)

const (
	gmailSMTPHost    = "smtp.gmail.com"
	gmailSMTPAddress = "smtp.gmail.com:465"

	envGmailAddress     = "GMAIL_ADDRESS"
	envGmailAppPassword = "GMAIL_APP_PASSWORD"
)

// SMTPDispatcher submits the message over implicit-TLS SMTP with an app
// password. Bcc recipients go into the envelope only; the header is
// stripped before DATA.
type SMTPDispatcher struct {
	Username string
	Password string
	// Dial opens the connection. Nil dials Gmail's submission port.
	Dial   func(ctx context.Context) (*smtp.Client, error)
	Logger *slog.Logger
}

// SMTPFromEnv reads GMAIL_ADDRESS and GMAIL_APP_PASSWORD.
func SMTPFromEnv(logger *slog.Logger) (*SMTPDispatcher, error) {
	user := strings.TrimSpace(os.Getenv(envGmailAddress))
	if user == "" {
		return nil, fmt.Errorf("%s is required for the smtp transport", envGmailAddress)
	}
	pass := strings.ReplaceAll(os.Getenv(envGmailAppPassword), " ", "")
	if pass == "" {
		return nil, fmt.Errorf("%s is required for the smtp transport", envGmailAppPassword)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &SMTPDispatcher{Username: user, Password: pass, Logger: logger}, nil
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg compose.OutboundMessage) (Receipt, error) {
	id, err := d.send(ctx, msg)
	if err != nil {
		d.logger().ErrorContext(ctx, "send failed", "transport", "smtp", "error", err)
		return Receipt{}, &SendError{Transport: "smtp", Err: err}
	}
	d.logger().InfoContext(ctx, "message sent", "transport", "smtp", "message_id", id, "bcc", len(msg.Bcc))
	return Receipt{ID: id}, nil
}

func (d *SMTPDispatcher) send(ctx context.Context, msg compose.OutboundMessage) (gmail.MessageID, error) {
	if len(msg.Bcc) == 0 {
		return "", errors.New("no recipients")
	}
	from := envelopeAddress(msg.Sender)
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from))
	data, err := stripBcc(msg.Raw, messageID)
	if err != nil {
		return "", err
	}

	c, err := d.dial(ctx)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if d.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", d.Username, d.Password)); err != nil {
			return "", fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from, nil); err != nil {
		return "", fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range msg.Bcc {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return "", fmt.Errorf("RCPT TO %q: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return "", fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize message: %w", err)
	}
	if err := c.Quit(); err != nil {
		return "", fmt.Errorf("QUIT: %w", err)
	}
	return gmail.MessageID(messageID), nil
}

func (d *SMTPDispatcher) dial(ctx context.Context) (*smtp.Client, error) {
	if d.Dial != nil {
		return d.Dial(ctx)
	}
	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: &tls.Config{ServerName: gmailSMTPHost}}
	conn, err := dialer.DialContext(ctx, "tcp", gmailSMTPAddress)
	if err != nil {
		return nil, fmt.Errorf("smtp tls dial: %w", err)
	}
	return smtp.NewClient(conn), nil
}

func (d *SMTPDispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

// stripBcc rewrites the header block without Bcc and with a Message-ID,
// leaving the body bytes untouched.
func stripBcc(raw []byte, messageID string) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("parse message header: %w", err)
	}
	h.Del("Bcc")
	h.Set("Message-Id", messageID)

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, h); err != nil {
		return nil, fmt.Errorf("write message header: %w", err)
	}
	if _, err := io.Copy(&out, br); err != nil {
		return nil, fmt.Errorf("copy message body: %w", err)
	}
	return out.Bytes(), nil
}

// envelopeAddress uses the same first-angle-bracket rule as harvesting.
func envelopeAddress(sender string) string {
	open := strings.Index(sender, "<")
	closing := strings.Index(sender, ">")
	if open == -1 || closing <= open {
		return strings.TrimSpace(sender)
	}
	return sender[open+1 : closing]
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at != -1 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}

var _ Dispatcher = (*SMTPDispatcher)(nil)
