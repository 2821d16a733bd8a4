// Package compose builds the outbound announcement: one sender, blind-copy
// recipients, and a static HTML body read from a file.
package compose

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// ErrTemplateRead reports an unreadable HTML template.
var ErrTemplateRead = errors.New("read template")

// OutboundMessage is built once per send and not modified afterwards.
type OutboundMessage struct {
	Sender  string
	Bcc     []string
	Subject string
	HTML    string
	// Raw is the RFC 5322 message, Bcc header included.
	Raw []byte
	// Encoded is Raw in URL-safe base64, the form the Gmail send call takes.
	Encoded string
}

// Compose reads templatePath verbatim as the HTML body and builds the message.
// No substitution is performed on the template.
func Compose(sender string, bcc []string, subject, templatePath string) (OutboundMessage, error) {
	html, err := os.ReadFile(templatePath)
	if err != nil {
		return OutboundMessage{}, fmt.Errorf("%w %s: %w", ErrTemplateRead, templatePath, err)
	}
	return Build(sender, bcc, subject, string(html), time.Now())
}

// Build assembles a multipart/alternative message holding a single HTML part.
// The From header is the literal sender string; Bcc entries are joined with
// ", " and the header is omitted when there are none.
func Build(sender string, bcc []string, subject, html string, date time.Time) (OutboundMessage, error) {
	var h mail.Header
	h.SetDate(date)
	h.Set("From", sender)
	if len(bcc) > 0 {
		h.Set("Bcc", strings.Join(bcc, ", "))
	}
	h.SetSubject(subject)

	var buf bytes.Buffer
	mw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return OutboundMessage{}, fmt.Errorf("create message writer: %w", err)
	}
	var ph mail.InlineHeader
	ph.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(ph)
	if err != nil {
		return OutboundMessage{}, fmt.Errorf("create html part: %w", err)
	}
	if _, err := io.WriteString(pw, html); err != nil {
		return OutboundMessage{}, fmt.Errorf("write html part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return OutboundMessage{}, fmt.Errorf("close html part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return OutboundMessage{}, fmt.Errorf("close message: %w", err)
	}

	raw := buf.Bytes()
	return OutboundMessage{
		Sender:  sender,
		Bcc:     append([]string(nil), bcc...),
		Subject: subject,
		HTML:    html,
		Raw:     raw,
		Encoded: base64.URLEncoding.EncodeToString(raw),
	}, nil
}
