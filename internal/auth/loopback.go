package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const defaultRedirectTimeout = 120 * time.Second

// LoopbackAuthorizer captures the provider redirect on a transient
// 127.0.0.1 listener. If no redirect arrives within Timeout it falls back to
// reading a pasted code or redirect URL from In.
type LoopbackAuthorizer struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration
	// Open presents the authorization URL to the operator. Nil prints it to Out.
	Open func(authURL string) error
}

type codeResult struct {
	code string
	err  error
}

func (a LoopbackAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return a.manual(ctx, cfg)
	}
	c := *cfg
	c.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)
	state := uuid.NewString()

	resCh := make(chan codeResult, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           redirectHandler(state, resCh),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := a.open(authURL); err != nil {
		return nil, fmt.Errorf("present authorization url: %w", err)
	}
	fmt.Fprintf(a.out(), "Waiting for redirect on %s\n", c.RedirectURL)

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultRedirectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		return exchange(ctx, &c, r.code)
	case <-timer.C:
		fmt.Fprintln(a.out(), "Timed out waiting for redirect; falling back to manual entry.")
		return a.manual(ctx, cfg)
	}
}

func redirectHandler(state string, resCh chan<- codeResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Authorization denied.", http.StatusForbidden)
			deliver(resCh, codeResult{err: fmt.Errorf("authorization denied: %s", e)})
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch.", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		deliver(resCh, codeResult{code: code})
	})
}

func deliver(ch chan<- codeResult, r codeResult) {
	select {
	case ch <- r:
	default:
	}
}

func (a LoopbackAuthorizer) manual(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	if a.In == nil {
		return nil, errors.New("no redirect received and no input for manual entry")
	}
	authURL := cfg.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := a.open(authURL); err != nil {
		return nil, fmt.Errorf("present authorization url: %w", err)
	}
	fmt.Fprintln(a.out(), "Paste the authorization code or the full redirect URL, then press Enter.")
	fmt.Fprint(a.out(), "> ")

	sc := bufio.NewScanner(a.In)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}
	code, err := parseCodeInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(ctx, cfg, code)
}

// parseCodeInput accepts either a bare code or a redirect URL carrying one.
func parseCodeInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}

func exchange(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

func (a LoopbackAuthorizer) open(authURL string) error {
	if a.Open != nil {
		return a.Open(authURL)
	}
	fmt.Fprintln(a.out(), "Open this URL in your browser to authorize labelcast:")
	fmt.Fprintln(a.out(), authURL)
	return nil
}

func (a LoopbackAuthorizer) out() io.Writer {
	if a.Out == nil {
		return io.Discard
	}
	return a.Out
}

var _ Authorizer = LoopbackAuthorizer{}
