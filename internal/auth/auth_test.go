package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memStore struct {
	tok     *oauth2.Token
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load() (*oauth2.Token, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.tok == nil {
		return nil, ErrNoCredential
	}
	return m.tok, nil
}

func (m *memStore) Save(tok *oauth2.Token) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.tok = tok
	return nil
}

type stubAuthorizer struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (s *stubAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	_ = ctx
	_ = cfg
	s.calls++
	return s.tok, s.err
}

// tokenServer answers refresh and code exchanges with a fixed token.
func tokenServer(t *testing.T, status int, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.NoError(t, r.ParseForm())
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		access := "refreshed"
		if r.PostForm.Get("grant_type") == "authorization_code" {
			access = "exchanged-" + r.PostForm.Get("code")
		}
		_, _ = io.WriteString(w, `{"access_token":"`+access+`","token_type":"Bearer","refresh_token":"r2","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"scope-a"},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestObtainReturnsValidCachedTokenUnchanged(t *testing.T) {
	cached := &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}
	store := &memStore{tok: cached}
	authz := &stubAuthorizer{}
	p := NewProvider(testConfig("http://unused"), authz, discard())

	tok, err := p.Obtain(context.Background(), store)
	require.NoError(t, err)
	assert.Same(t, cached, tok)
	assert.Zero(t, store.saves)
	assert.Zero(t, authz.calls)
}

func TestObtainRefreshesExpiredToken(t *testing.T) {
	var hits int32
	srv := tokenServer(t, http.StatusOK, &hits)
	store := &memStore{tok: &oauth2.Token{AccessToken: "old", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour)}}
	authz := &stubAuthorizer{}
	p := NewProvider(testConfig(srv.URL), authz, discard())

	tok, err := p.Obtain(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, "refreshed", store.tok.AccessToken)
	assert.Zero(t, authz.calls)
}

func TestObtainFallsBackToAuthorizerWhenRefreshFails(t *testing.T) {
	srv := tokenServer(t, http.StatusBadRequest, nil)
	store := &memStore{tok: &oauth2.Token{AccessToken: "old", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour)}}
	fresh := &oauth2.Token{AccessToken: "fresh", RefreshToken: "r9", Expiry: time.Now().Add(time.Hour)}
	authz := &stubAuthorizer{tok: fresh}
	p := NewProvider(testConfig(srv.URL), authz, discard())

	tok, err := p.Obtain(context.Background(), store)
	require.NoError(t, err)
	assert.Same(t, fresh, tok)
	assert.Equal(t, 1, authz.calls)
	assert.Same(t, fresh, store.tok)
}

func TestObtainExpiredWithoutRefreshTokenReauthorizes(t *testing.T) {
	store := &memStore{tok: &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}}
	fresh := &oauth2.Token{AccessToken: "fresh"}
	authz := &stubAuthorizer{tok: fresh}
	p := NewProvider(testConfig("http://unused"), authz, discard())

	tok, err := p.Obtain(context.Background(), store)
	require.NoError(t, err)
	assert.Same(t, fresh, tok)
	assert.Equal(t, 1, store.saves)
}

func TestObtainCorruptCachePolicy(t *testing.T) {
	corrupt := &memStore{loadErr: ErrCorruptCredential}

	t.Run("reauth", func(t *testing.T) {
		authz := &stubAuthorizer{tok: &oauth2.Token{AccessToken: "fresh"}}
		p := NewProvider(testConfig("http://unused"), authz, discard())
		tok, err := p.Obtain(context.Background(), &memStore{loadErr: corrupt.loadErr})
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok.AccessToken)
		assert.Equal(t, 1, authz.calls)
	})

	t.Run("fail", func(t *testing.T) {
		authz := &stubAuthorizer{tok: &oauth2.Token{AccessToken: "fresh"}}
		p := NewProvider(testConfig("http://unused"), authz, discard())
		p.Corrupt = CorruptFail
		_, err := p.Obtain(context.Background(), &memStore{loadErr: corrupt.loadErr})
		require.ErrorIs(t, err, ErrAuthFailure)
		require.ErrorIs(t, err, ErrCorruptCredential)
		assert.Zero(t, authz.calls)
	})
}

func TestObtainFailures(t *testing.T) {
	tests := []struct {
		name  string
		store *memStore
		authz Authorizer
	}{
		{"unreadable cache", &memStore{loadErr: errors.New("permission denied")}, &stubAuthorizer{}},
		{"authorizer fails", &memStore{}, &stubAuthorizer{err: errors.New("no browser")}},
		{"no authorizer", &memStore{}, nil},
		{"save fails", &memStore{saveErr: errors.New("disk full")}, &stubAuthorizer{tok: &oauth2.Token{AccessToken: "x"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProvider(testConfig("http://unused"), tc.authz, discard())
			_, err := p.Obtain(context.Background(), tc.store)
			require.ErrorIs(t, err, ErrAuthFailure)
		})
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := FileStore{Path: path}

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoCredential)

	first := &oauth2.Token{AccessToken: "first-access-token-longer", RefreshToken: "r1", Expiry: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(&oauth2.Token{AccessToken: "second", RefreshToken: "r2"}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"garbage": "\x80\x04pickled",
		"empty":   "{}",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, err := FileStore{Path: path}.Load()
		require.ErrorIs(t, err, ErrCorruptCredential, name)
	}
}

func TestScopes(t *testing.T) {
	full, err := Scopes(ScopeFull)
	require.NoError(t, err)
	assert.Contains(t, full, "https://mail.google.com/")

	minimal, err := Scopes(ScopeMinimal)
	require.NoError(t, err)
	assert.NotContains(t, minimal, "https://mail.google.com/")

	_, err = Scopes("everything")
	require.Error(t, err)
}

func TestParseCorruptPolicy(t *testing.T) {
	p, err := ParseCorruptPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, CorruptFail, p)
	p, err = ParseCorruptPolicy("")
	require.NoError(t, err)
	assert.Equal(t, CorruptReauthorize, p)
	_, err = ParseCorruptPolicy("ignore")
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	secret := `{"installed":{"client_id":"cid","client_secret":"cs","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(path, []byte(secret), 0o600))

	cfg, err := LoadConfig(path, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, "cid", cfg.ClientID)
	assert.Equal(t, []string{"scope-a"}, cfg.Scopes)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoopbackAuthorizerCapturesRedirect(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, nil)
	cfg := testConfig(srv.URL)

	a := LoopbackAuthorizer{
		Out:     io.Discard,
		Timeout: 5 * time.Second,
		Open: func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := u.Query()
			redirect := q.Get("redirect_uri") + "?code=abc&state=" + url.QueryEscape(q.Get("state"))
			go func() {
				resp, err := http.Get(redirect)
				if err == nil {
					_ = resp.Body.Close()
				}
			}()
			return nil
		},
	}

	tok, err := a.Authorize(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "exchanged-abc", tok.AccessToken)
	assert.Empty(t, cfg.RedirectURL, "caller config must not be mutated")
}

func TestLoopbackAuthorizerManualFallback(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, nil)
	a := LoopbackAuthorizer{
		In:      strings.NewReader("http://127.0.0.1:1/?code=pasted&scope=x\n"),
		Out:     io.Discard,
		Timeout: 10 * time.Millisecond,
	}

	tok, err := a.Authorize(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "exchanged-pasted", tok.AccessToken)
}

func TestParseCodeInput(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "4/abc", want: "4/abc"},
		{in: "  4/abc \n", want: "4/abc"},
		{in: "http://127.0.0.1:8080/?state=s&code=xyz", want: "xyz"},
		{in: "https://localhost/?state=s", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseCodeInput(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}
