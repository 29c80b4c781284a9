// Package auth implements the OAuth 2.0 bearer mode: the interactive login
// flow, token persistence and an HTTP client that refreshes and saves tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/beekhof/exchange-sync/internal/config"
	"github.com/beekhof/exchange-sync/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultCallbackAddr is where the login flow listens for the redirect.
const DefaultCallbackAddr = "127.0.0.1:8080"

// ErrNoToken is returned when a non-interactive client is requested but no
// token has been stored yet.
var ErrNoToken = errors.New("no stored token, run the login command first")

// TokenStore is an interface for saving and loading OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// OAuthConfig builds the oauth2 configuration for the connector settings.
func OAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	if cfg.OAuth == nil {
		return nil, &domain.ConfigError{Field: "oauth", Err: fmt.Errorf("oauth section is required when auth is 'oauth2'")}
	}
	clientID, clientSecret, err := cfg.OAuth.ResolveClientCredentials()
	if err != nil {
		return nil, &domain.ConfigError{Field: "oauth.credentials_path", Err: err}
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       cfg.OAuth.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.OAuth.AuthURL,
			TokenURL: cfg.OAuth.TokenURL,
		},
	}, nil
}

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// NewClient returns an HTTP client that authorizes requests with the stored
// token. It never prompts: a missing token yields ErrNoToken. When base is
// non-nil it is used for both token refreshes and the authorized requests.
func NewClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, base *http.Client) (*http.Client, error) {
	token, err := tokenStore.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return nil, &domain.ConfigError{Field: "oauth.token_path", Err: ErrNoToken}
	}
	return newClient(ctx, oauthConfig, tokenStore, token, base), nil
}

func newClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, token *oauth2.Token, base *http.Client) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}

	source := &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		tokenStore: tokenStore,
		lastToken:  token,
	}
	return oauth2.NewClient(ctx, source)
}

// startLocalServer starts a local HTTP server to receive the OAuth callback.
// Returns the redirect URL, a channel for the authorization code, and a channel for errors.
// Uses addr if available, or a random port otherwise.
func startLocalServer(addr, state string) (string, <-chan string, <-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>State mismatch.</p></body></html>")
			sendErr(errorChan, fmt.Errorf("authorization state mismatch"))
		case query.Get("code") != "":
			fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			select {
			case codeChan <- query.Get("code"):
			default:
			}
		case query.Get("error") != "":
			errMsg := query.Get("error")
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
			sendErr(errorChan, fmt.Errorf("authorization error: %s: %s", errMsg, query.Get("error_description")))
		default:
			fmt.Fprintf(w, "<html><body><h1>No authorization code received</h1></body></html>")
			sendErr(errorChan, fmt.Errorf("no authorization code received"))
		}
		go func() {
			time.Sleep(1 * time.Second)
			server.Shutdown(context.Background())
		}()
	})
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			sendErr(errorChan, fmt.Errorf("server error: %w", err))
		}
	}()

	return redirectURL, codeChan, errorChan, nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// Login runs the interactive authorization code flow with a local callback
// server, stores the resulting token and returns an authorized client.
// Instructions for the user are written to out.
func Login(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, addr string, out io.Writer) (*http.Client, error) {
	state := uuid.NewString()
	redirectURL, codeChan, errorChan, err := startLocalServer(addr, state)
	if err != nil {
		return nil, err
	}
	oauthConfig.RedirectURL = redirectURL

	verifier := oauth2.GenerateVerifier()
	authURL := oauthConfig.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(out, "Starting local server on %s\n", redirectURL)
	if redirectURL != "http://"+addr {
		fmt.Fprintf(out, "Note: %s was unavailable. Make sure %s is registered as a redirect URI for the application.\n", addr, redirectURL)
	}
	fmt.Fprintln(out, "\nPlease visit the following URL to authorize the application:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "\nWaiting for authorization...")

	var code string
	select {
	case code = <-codeChan:
	case err := <-errorChan:
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timeout: no response received within 5 minutes")
	}

	token, err := oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := tokenStore.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Fprintln(out, "Authorization successful!")
	return newClient(ctx, oauthConfig, tokenStore, token, nil), nil
}

// LoginWithReader is the manual variant of Login for hosts without a
// browser: the user pastes the authorization code, which is read from in.
func LoginWithReader(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, in io.Reader, out io.Writer) (*http.Client, error) {
	verifier := oauth2.GenerateVerifier()
	authURL := oauthConfig.AuthCodeURL(uuid.NewString(), oauth2.S256ChallengeOption(verifier))

	fmt.Fprintln(out, "Please visit the following URL to authorize the application:")
	fmt.Fprintln(out, authURL)
	fmt.Fprint(out, "Enter the authorization code: ")

	var code string
	if _, err := fmt.Fscanln(in, &code); err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := tokenStore.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	return newClient(ctx, oauthConfig, tokenStore, token, nil), nil
}
