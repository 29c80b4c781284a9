// Package exchange implements the Exchange calendar connector: it fetches
// the current day's calendar view over an NTLM (or OAuth2) authenticated
// connection and turns events carrying bot directives into notify tasks.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/beekhof/exchange-sync/internal/auth"
	"github.com/beekhof/exchange-sync/internal/config"
	"github.com/beekhof/exchange-sync/internal/connector"
	"github.com/beekhof/exchange-sync/internal/directive"
	"github.com/beekhof/exchange-sync/internal/domain"
	"github.com/beekhof/exchange-sync/internal/schedule"
	"github.com/beekhof/exchange-sync/internal/task"
)

// Connector metadata.
const (
	Name        = "Exchange"
	Author      = "OctaHive"
	Description = "Exchange integration connector"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

var _ connector.Connector = (*Connector)(nil)

// Connector is the Exchange task source. Process may be called
// concurrently; invocations share the configuration and whatever the options
// supplied, so a reader passed to WithRand must itself be safe for
// concurrent use.
type Connector struct {
	mu     sync.RWMutex
	config *config.Config

	logger  *slog.Logger
	client  *http.Client
	fetcher Fetcher
	now     func() time.Time
	rand    io.Reader
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the client built from the configured timeout.
// NTLM fetches then share it instead of pinning a fresh connection each.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) { c.client = client }
}

// WithFetcher bypasses authentication entirely and reads the feed from f.
func WithFetcher(f Fetcher) Option {
	return func(c *Connector) { c.fetcher = f }
}

// WithClock sets the source of the current time used for the query window
// and the NTLM timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Connector) { c.now = now }
}

// WithRand sets the source of NTLM client nonces.
func WithRand(r io.Reader) Option {
	return func(c *Connector) { c.rand = r }
}

// New returns a connector. A nil cfg leaves it uninitialized until Init.
func New(cfg *config.Config, opts ...Option) *Connector {
	c := &Connector{
		config: cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory adapts New to connector.Factory.
func Factory(cfg *config.Config, logger *slog.Logger) connector.Connector {
	return New(cfg, WithLogger(logger))
}

// Load implements connector.Connector.
func (c *Connector) Load() domain.Metadata {
	return domain.Metadata{
		Name:        Name,
		Version:     Version,
		Author:      Author,
		Description: Description,
	}
}

// Init implements connector.Connector.
func (c *Connector) Init(raw []byte) error {
	cfg, err := config.Parse(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
	return nil
}

func (c *Connector) currentConfig() (*config.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.config == nil {
		return nil, &domain.ConfigError{Err: domain.ErrNotInitialized}
	}
	return c.config, nil
}

// Process implements connector.Connector. Events are handled in feed order;
// events without a directive block are skipped, any other failure aborts the
// whole batch.
func (c *Connector) Process(ctx context.Context, payload []byte) ([]domain.Task, error) {
	cfg, err := c.currentConfig()
	if err != nil {
		return nil, err
	}

	var inv domain.Invocation
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, &domain.DecodeError{Err: fmt.Errorf("failed to decode invocation payload: %w", err)}
	}
	logger := c.logger.With("task_id", inv.TaskID)

	resolver, err := schedule.NewResolver(cfg.Timezone)
	if err != nil {
		return nil, &domain.ConfigError{Field: "timezone", Err: err}
	}
	resolver.Now = c.now
	window := resolver.Today()

	fetcher, err := c.fetcherFor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	body, err := fetcher.Fetch(ctx, BuildURL(cfg.Endpoint, window))
	if err != nil {
		return nil, err
	}
	events, err := DecodeFeed(body)
	if err != nil {
		return nil, err
	}
	logger.Info("fetched calendar view", "start", window.Start, "end", window.End, "events", len(events))

	tasks := make([]domain.Task, 0, len(events))
	for _, event := range Filter(events, logger) {
		t, err := Materialize(event)
		if err != nil {
			return nil, &domain.EventError{ID: event.ID, Subject: event.Subject, Err: err}
		}
		tasks = append(tasks, t)
	}

	logger.Info("materialized tasks", "tasks", len(tasks))
	return tasks, nil
}

func (c *Connector) fetcherFor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	if c.fetcher != nil {
		return c.fetcher, nil
	}

	switch cfg.Auth {
	case config.AuthOAuth2:
		client := c.client
		if client == nil {
			client = NewHTTPClient(cfg.ConnectTimeout())
		}
		oauthConfig, err := auth.OAuthConfig(cfg)
		if err != nil {
			return nil, err
		}
		bearer, err := auth.NewClient(ctx, oauthConfig, auth.NewFileTokenStore(cfg.OAuth.TokenPath), client)
		if err != nil {
			return nil, err
		}
		return &BearerFetcher{Client: bearer, ResponseTimezone: cfg.ResponseTimezone, Logger: logger}, nil
	default:
		return &NTLMFetcher{
			Client:           c.client,
			ConnectTimeout:   cfg.ConnectTimeout(),
			Login:            cfg.Login,
			Password:         cfg.Password,
			Workstation:      cfg.Workstation,
			ResponseTimezone: cfg.ResponseTimezone,
			Logger:           logger,
			Now:              c.now,
			Rand:             c.rand,
		}, nil
	}
}

// Filter keeps the events whose body carries a directive block and logs
// the rest.
func Filter(events []CalendarEvent, logger *slog.Logger) []CalendarEvent {
	kept := make([]CalendarEvent, 0, len(events))
	for _, event := range events {
		if !directive.HasBlock(event.Body.Content) {
			loggerOr(logger).Info("skipping event without bot directives", "subject", event.Subject, "id", event.ID)
			continue
		}
		kept = append(kept, event)
	}
	return kept
}

// Materialize parses an event's directives and times into a task.
func Materialize(event CalendarEvent) (domain.Task, error) {
	directives, err := directive.Parse(event.Body.Content)
	if err != nil {
		return domain.Task{}, err
	}

	start, err := schedule.ResolveLocal(event.Start.DateTime, event.Start.TimeZone)
	if err != nil {
		return domain.Task{}, err
	}

	modified, err := schedule.ParseModified(event.LastModifiedDateTime)
	if err != nil {
		return domain.Task{}, err
	}

	return task.Materialize(task.Source{
		ID:         event.ID,
		Subject:    event.Subject,
		Start:      start,
		ModifiedAt: modified,
		Directives: directives,
	})
}
