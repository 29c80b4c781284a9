package exchange

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beekhof/exchange-sync/internal/domain"
	"github.com/beekhof/exchange-sync/internal/ntlm"
)

// Fetcher retrieves the raw calendar view body for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// NewHTTPClient returns a client whose connections are bounded by the
// given connect timeout. HTTP/2 is disabled because NTLM authenticates the
// underlying HTTP/1.1 connection.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{Transport: newTransport(newDialer(connectTimeout).DialContext, connectTimeout)}
}

func newDialer(connectTimeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
}

func newTransport(dial func(ctx context.Context, network, addr string) (net.Conn, error), connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dial,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConnsPerHost: 1,
		TLSNextProto:        map[string]func(string, *tls.Conn) http.RoundTripper{},
	}
}

// pinnedDialer opens at most one connection. Once it has dialed, every
// further dial fails with domain.ErrConnectionDropped, so the transport
// cannot replay a request on a connection the handshake never saw.
type pinnedDialer struct {
	dialer *net.Dialer

	mu     sync.Mutex
	dialed bool
}

func newPinnedDialer(connectTimeout time.Duration) *pinnedDialer {
	return &pinnedDialer{dialer: newDialer(connectTimeout)}
}

func (d *pinnedDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	if d.dialed {
		d.mu.Unlock()
		return nil, domain.ErrConnectionDropped
	}
	d.dialed = true
	d.mu.Unlock()

	return d.dialer.DialContext(ctx, network, addr)
}

// newPinnedClient returns a client bound to a single connection, for one
// NTLM handshake.
func newPinnedClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{Transport: newTransport(newPinnedDialer(connectTimeout).DialContext, connectTimeout)}
}

// preferHeaders asks for plain-text bodies and start times in zone.
func preferHeaders(h http.Header, zone string) {
	h.Add("Prefer", `outlook.body-content-type="text"`)
	h.Add("Prefer", fmt.Sprintf("outlook.timezone=%q", zone))
}

// NTLMFetcher performs the two round trip NTLM handshake and returns the
// body of the authenticated response. Nothing is retried.
type NTLMFetcher struct {
	// Client overrides the per-fetch client. When nil, each Fetch runs on
	// its own single-connection client built with ConnectTimeout.
	Client         *http.Client
	ConnectTimeout time.Duration

	Login            string
	Password         string
	Workstation      string
	ResponseTimezone string
	Logger           *slog.Logger

	// Now and Rand feed the client timestamp and nonce; nil means wall
	// clock and crypto/rand.
	Now  func() time.Time
	Rand io.Reader
}

// Fetch implements Fetcher.
func (f *NTLMFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	creds, err := ntlm.ParseCredentials(f.Login, f.Password)
	if err != nil {
		return nil, &domain.ConfigError{Field: "login", Err: err}
	}
	logger := loggerOr(f.Logger)

	client := f.Client
	if client == nil {
		client = newPinnedClient(f.ConnectTimeout)
		defer client.CloseIdleConnections()
	}

	// Round trip 1: negotiate -> challenge
	negotiate, err := ntlm.EncodeHeader(ntlm.NewNegotiateMessage(f.Workstation))
	if err != nil {
		return nil, &domain.ProtocolError{Op: "negotiate", Err: err}
	}

	req, err := newRequest(ctx, url, negotiate)
	if err != nil {
		return nil, err
	}
	resp, err := send(client, req)
	if err != nil {
		return nil, err
	}
	discard(resp)
	logger.Debug("ntlm negotiate round trip", "status", resp.StatusCode)

	header := challengeHeader(resp.Header)
	if header == "" {
		return nil, &domain.ProtocolError{Op: "challenge", Err: domain.ErrMissingChallenge}
	}

	challenge, err := ntlm.DecodeChallenge(header)
	if err != nil {
		var wrongType *ntlm.WrongTypeError
		if errors.As(err, &wrongType) {
			err = fmt.Errorf("%w: %w", domain.ErrUnexpectedMessageType, err)
		}
		return nil, &domain.ProtocolError{Op: "challenge", Err: err}
	}

	if serverTime, ok := challenge.TargetInfo.Timestamp(); ok {
		logger.Debug("ntlm challenge", "target", challenge.TargetName, "server_time", serverTime)
	} else {
		logger.Debug("ntlm challenge", "target", challenge.TargetName)
	}

	// Round trip 2: authenticate -> calendar view
	responder := &ntlm.Responder{
		Credentials: creds,
		Workstation: f.Workstation,
		Flags:       ntlm.DefaultAuthenticateFlags,
		Now:         f.Now,
		Rand:        f.Rand,
	}
	authenticate, err := responder.Respond(challenge)
	if err != nil {
		return nil, &domain.ProtocolError{Op: "authenticate", Err: err}
	}
	authorization, err := ntlm.EncodeHeader(authenticate)
	if err != nil {
		return nil, &domain.ProtocolError{Op: "authenticate", Err: err}
	}

	req, err = newRequest(ctx, url, authorization)
	if err != nil {
		return nil, err
	}
	preferHeaders(req.Header, f.ResponseTimezone)

	resp, err = send(client, req)
	if err != nil {
		return nil, err
	}
	logger.Debug("ntlm authenticate round trip", "status", resp.StatusCode, "user", creds.String())

	return readOK(resp)
}

// BearerFetcher issues a single request with an OAuth2 client, which
// attaches and refreshes the bearer token itself.
type BearerFetcher struct {
	Client           *http.Client
	ResponseTimezone string
	Logger           *slog.Logger
}

// Fetch implements Fetcher.
func (f *BearerFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := newRequest(ctx, url, "")
	if err != nil {
		return nil, err
	}
	preferHeaders(req.Header, f.ResponseTimezone)

	resp, err := send(f.Client, req)
	if err != nil {
		return nil, err
	}
	loggerOr(f.Logger).Debug("bearer round trip", "status", resp.StatusCode)

	return readOK(resp)
}

func newRequest(ctx context.Context, url, authorization string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.ConfigError{Field: "endpoint", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func send(client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	return resp, nil
}

// discard drains and closes the body so the connection returns to the pool
// and is reused for the authenticated request.
func discard(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func readOK(resp *http.Response) ([]byte, error) {
	if resp.StatusCode != http.StatusOK {
		discard(resp)
		return nil, &domain.TransportError{StatusCode: resp.StatusCode}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return body, nil
}

// challengeHeader returns the NTLM WWW-Authenticate value, falling back to
// the first value when no NTLM scheme is offered.
func challengeHeader(h http.Header) string {
	values := h.Values("WWW-Authenticate")
	for _, v := range values {
		scheme, _, _ := strings.Cut(strings.TrimSpace(v), " ")
		if strings.EqualFold(scheme, ntlm.AuthScheme) {
			return v
		}
	}
	if len(values) > 0 {
		return values[0]
	}
	return ""
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
