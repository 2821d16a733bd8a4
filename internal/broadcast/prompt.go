package broadcast

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the operator line-oriented questions.
type Prompter interface {
	Confirm(question string) (bool, error)
	Ask(question string) (string, error)
}

// LinePrompter reads one line per answer from in and writes questions to out.
type LinePrompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{sc: bufio.NewScanner(in), out: out}
}

// Ask returns the answer with surrounding whitespace removed. Running out of
// input is an error.
func (p *LinePrompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return "", fmt.Errorf("read answer: %w", io.EOF)
	}
	return strings.TrimSpace(p.sc.Text()), nil
}

// Confirm is true only for "y" or "Y".
func (p *LinePrompter) Confirm(question string) (bool, error) {
	ans, err := p.Ask(question)
	if err != nil {
		return false, err
	}
	return strings.ToLower(ans) == "y", nil
}

var _ Prompter = (*LinePrompter)(nil)
