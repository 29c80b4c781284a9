package connector

import (
	"context"
	"log/slog"
	"testing"

	"github.com/beekhof/exchange-sync/internal/config"
	"github.com/beekhof/exchange-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	cfg *config.Config
}

func (s *stubConnector) Load() domain.Metadata { return domain.Metadata{Name: "Stub"} }

func (s *stubConnector) Init(raw []byte) error { return nil }

func (s *stubConnector) Process(ctx context.Context, payload []byte) ([]domain.Task, error) {
	return []domain.Task{{Name: s.cfg.Endpoint, Kind: domain.TaskKindNotify}}, nil
}

func TestRegistry(t *testing.T) {
	var r Registry
	r.Register("stub", func(cfg *config.Config, logger *slog.Logger) Connector {
		return &stubConnector{cfg: cfg}
	})
	r.Register("another", func(cfg *config.Config, logger *slog.Logger) Connector { return nil })

	assert.Equal(t, []string{"another", "stub"}, r.Names())

	c, err := r.New("stub", &config.Config{Endpoint: "https://x"}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "Stub", c.Load().Name)

	tasks, err := c.Process(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "https://x", tasks[0].Name)
}

func TestRegistry_Unknown(t *testing.T) {
	var r Registry
	_, err := r.New("missing", nil, nil)

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "connector", cfgErr.Field)
}
