package harvest

import (
	"strings"

	"github.com/joshsymonds/labelcast/internal/gmail"
)

const (
	headerReplyTo = "Reply-To"
	headerFrom    = "From"
)

// ExtractAddress returns the text between the first '<' and the first '>'
// of value when both are present, and value unchanged otherwise. It is a
// plain substring rule, not an RFC 5322 parser: comments, groups and
// multiple addresses are not interpreted.
func ExtractAddress(value string) string {
	open := strings.Index(value, "<")
	closing := strings.Index(value, ">")
	if open == -1 || closing == -1 {
		return value
	}
	if closing <= open {
		// '>' before '<' encloses nothing
		return ""
	}
	return value[open+1 : closing]
}

// ReplyAddress picks the reply address of one message: Reply-To first,
// then From. ok is false when neither header is present.
func ReplyAddress(detail gmail.MessageDetail) (addr string, ok bool) {
	if v, found := detail.Header(headerReplyTo); found {
		return ExtractAddress(v), true
	}
	if v, found := detail.Header(headerFrom); found {
		return ExtractAddress(v), true
	}
	return "", false
}
