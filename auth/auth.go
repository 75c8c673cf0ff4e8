// Package auth authorises requests to the YouTube Data API on behalf of a
// user with the OAuth 2.0 installed-app flow.
//
// Tokens are cached between runs. When no usable token is cached, Login
// starts a one-shot HTTP server on the loopback interface, prints the
// consent URL and waits for Google to redirect back with an authorisation
// code.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	youtube "google.golang.org/api/youtube/v3"

	"watchlater/storage"
)

// Scopes requested during consent: read subscriptions and channels, and
// write playlist items.
var Scopes = []string{
	youtube.YoutubeReadonlyScope,
	youtube.YoutubeForceSslScope,
}

// Stages reported in AuthError.
const (
	StageSecrets  = "secrets"
	StageToken    = "token"
	StageConsent  = "consent"
	StageExchange = "exchange"
	StageSave     = "save"
)

// Errors reported by the loopback callback.
var (
	ErrStateMismatch  = errors.New("auth: state parameter mismatch")
	ErrConsentDenied  = errors.New("auth: consent denied")
	ErrMissingCode    = errors.New("auth: callback without authorization code")
	ErrNoRefreshToken = errors.New("auth: token has no refresh token")
)

// AuthError is returned for every authentication failure. Stage names the
// step that failed.
type AuthError struct {
	Stage string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TokenCache persists a token between runs. *storage.TokenStore implements it.
type TokenCache interface {
	Load() (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// Authenticator produces authorised HTTP clients.
type Authenticator struct {
	Config *oauth2.Config
	Store  TokenCache
	// HTTPClient carries token exchanges and, wrapped, API calls. Nil
	// means http.DefaultClient.
	HTTPClient *http.Client
	// ListenAddr is the loopback address for the consent redirect. Empty
	// means 127.0.0.1 on a random port.
	ListenAddr string
	// OpenURL presents the consent URL to the user. Nil prints it to Prompt.
	OpenURL func(url string) error
	// Prompt receives user-facing instructions. Nil means os.Stderr.
	Prompt io.Writer
	Logger zerolog.Logger
}

// LoadConfig reads a Google "installed app" client secrets file.
func LoadConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &AuthError{Stage: StageSecrets, Err: err}
	}
	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, &AuthError{Stage: StageSecrets, Err: fmt.Errorf("%s: %w", path, err)}
	}
	return cfg, nil
}

// New loads client secrets from secretsPath and returns an Authenticator
// caching tokens in store.
func New(secretsPath string, store TokenCache, httpClient *http.Client, logger zerolog.Logger) (*Authenticator, error) {
	cfg, err := LoadConfig(secretsPath)
	if err != nil {
		return nil, err
	}
	return &Authenticator{Config: cfg, Store: store, HTTPClient: httpClient, Logger: logger}, nil
}

// Client returns an HTTP client that attaches the user's access token and
// refreshes it when it expires. Refreshed tokens are written back to Store.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}

	base := a.httpClient()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	src := &persistingSource{
		ctx:    ctx,
		src:    a.Config.TokenSource(ctx, tok),
		store:  a.Store,
		last:   tok,
		logger: a.Logger,
	}

	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src))
	client.Timeout = base.Timeout
	return client, nil
}

// Token returns the cached token, running Login when none is cached or the
// cache is unreadable.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.Store.Load()
	switch {
	case err == nil && (tok.Valid() || tok.RefreshToken != ""):
		return tok, nil
	case err == nil:
		a.Logger.Info().Msg("cached token expired without refresh token, signing in again")
	case errors.Is(err, storage.ErrNotFound):
		a.Logger.Info().Msg("no cached token, signing in")
	case errors.Is(err, storage.ErrStorageCorrupt):
		a.Logger.Warn().Err(err).Msg("cached token unreadable, signing in again")
	default:
		return nil, &AuthError{Stage: StageToken, Err: err}
	}
	return a.Login(ctx)
}

// Login runs the loopback consent flow, exchanges the code and caches the
// resulting token. It blocks until the redirect arrives or ctx is done.
func (a *Authenticator) Login(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", a.listenAddr())
	if err != nil {
		return nil, &AuthError{Stage: StageConsent, Err: err}
	}

	cfg := *a.Config
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go srv.Serve(ln)
	defer srv.Close()

	a.Logger.Debug().Str("redirect", cfg.RedirectURL).Msg("waiting for consent")
	if err := a.openURL(authURL); err != nil {
		return nil, &AuthError{Stage: StageConsent, Err: err}
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, &AuthError{Stage: StageConsent, Err: ctx.Err()}
	case res = <-results:
	}
	if res.err != nil {
		return nil, &AuthError{Stage: StageConsent, Err: res.err}
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, a.httpClient())
	tok, err := cfg.Exchange(exchangeCtx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &AuthError{Stage: StageExchange, Err: err}
	}
	if tok.RefreshToken == "" {
		a.Logger.Warn().Err(ErrNoRefreshToken).Msg("next run will ask for consent again")
	}

	if err := a.Store.Save(ctx, tok); err != nil {
		return nil, &AuthError{Stage: StageSave, Err: err}
	}
	a.Logger.Info().Msg("signed in")
	return tok, nil
}

func (a *Authenticator) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a *Authenticator) listenAddr() string {
	if a.ListenAddr != "" {
		return a.ListenAddr
	}
	return "127.0.0.1:0"
}

func (a *Authenticator) openURL(url string) error {
	if a.OpenURL != nil {
		return a.OpenURL(url)
	}
	w := a.Prompt
	if w == nil {
		w = os.Stderr
	}
	_, err := fmt.Fprintf(w, "Open this URL in your browser to authorise watchlater:\n\n  %s\n\n", url)
	return err
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler reports the first redirect on results. Only requests that
// carry a code or an error parameter count as the redirect; anything else,
// such as a browser prefetch or a favicon request, is answered without ending
// the login. Later redirects get a plain response and are otherwise ignored.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		if !q.Has("code") && !q.Has("error") {
			fmt.Fprintln(w, "Waiting for authorisation.")
			return
		}
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("%w: %s", ErrConsentDenied, q.Get("error"))
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		case q.Get("code") == "":
			res.err = ErrMissingCode
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, "Authorisation failed: "+res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Authorisation complete. You can close this window.")
		}
		once.Do(func() { results <- res })
	})
}

// persistingSource saves every token that differs from the last one seen.
type persistingSource struct {
	ctx    context.Context
	src    oauth2.TokenSource
	store  TokenCache
	logger zerolog.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && tok.AccessToken == s.last.AccessToken {
		return tok, nil
	}
	s.last = tok
	if err := s.store.Save(s.ctx, tok); err != nil {
		s.logger.Warn().Err(err).Msg("could not cache refreshed token")
	} else {
		s.logger.Debug().Time("expiry", tok.Expiry).Msg("refreshed token cached")
	}
	return tok, nil
}
