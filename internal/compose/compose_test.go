package compose

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "email_template.html")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// decode reads the encoded payload back and returns its header and the
// decoded bodies of every part.
func decode(t *testing.T, msg OutboundMessage) (mail.Header, []string, []string) {
	t.Helper()
	raw, err := base64.URLEncoding.DecodeString(msg.Encoded)
	require.NoError(t, err)
	assert.Equal(t, msg.Raw, raw)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	var bodies, types []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		h, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok, "unexpected attachment part")
		ct, _, err := h.ContentType()
		require.NoError(t, err)
		b, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		types = append(types, ct)
		bodies = append(bodies, string(b))
	}
	return mr.Header, bodies, types
}

func TestComposeScenario(t *testing.T) {
	path := writeTemplate(t, "<p>hi</p>")

	msg, err := Compose("S <s@s.com>", []string{"a@a.com", "b@b.com"}, "Hi", path)
	require.NoError(t, err)

	h, bodies, types := decode(t, msg)
	assert.Equal(t, "S <s@s.com>", h.Get("From"))
	assert.Equal(t, "a@a.com, b@b.com", h.Get("Bcc"))
	subject, err := h.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Hi", subject)
	ct, _, err := h.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", ct)
	assert.Equal(t, []string{"text/html"}, types)
	assert.Equal(t, []string{"<p>hi</p>"}, bodies)

	assert.Equal(t, "<p>hi</p>", msg.HTML)
	assert.Equal(t, []string{"a@a.com", "b@b.com"}, msg.Bcc)
}

func TestComposeTemplateIsVerbatim(t *testing.T) {
	content := `<div style="color:red">{{.Name}} שלום $name</div>`
	msg, err := Compose("S <s@s.com>", []string{"a@a.com"}, "SCE 2015 Drive - לינק לדרייב 2015", writeTemplate(t, content))
	require.NoError(t, err)

	h, bodies, _ := decode(t, msg)
	assert.Equal(t, []string{content}, bodies)
	subject, err := h.Subject()
	require.NoError(t, err)
	assert.Equal(t, "SCE 2015 Drive - לינק לדרייב 2015", subject)
}

func TestComposeEmptyBccOmitsHeader(t *testing.T) {
	msg, err := Compose("S <s@s.com>", nil, "Hi", writeTemplate(t, "<p/>"))
	require.NoError(t, err)

	h, _, _ := decode(t, msg)
	assert.False(t, h.Has("Bcc"))
	assert.Empty(t, msg.Bcc)
}

func TestComposeTemplateReadFailure(t *testing.T) {
	_, err := Compose("S <s@s.com>", []string{"a@a.com"}, "Hi", filepath.Join(t.TempDir(), "missing.html"))
	require.ErrorIs(t, err, ErrTemplateRead)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildCopiesRecipients(t *testing.T) {
	bcc := []string{"a@a.com"}
	msg, err := Build("S <s@s.com>", bcc, "Hi", "<p/>", time.Unix(1700000000, 0))
	require.NoError(t, err)
	bcc[0] = "mutated@x.com"
	assert.Equal(t, []string{"a@a.com"}, msg.Bcc)

	h, _, _ := decode(t, msg)
	date, err := h.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Unix(1700000000, 0)))
}
