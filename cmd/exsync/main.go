// Command exsync fetches today's Exchange calendar events and prints the
// bot tasks embedded in them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/beekhof/exchange-sync/internal/config"
	"github.com/beekhof/exchange-sync/internal/connector"
	"github.com/beekhof/exchange-sync/internal/exchange"
	"github.com/beekhof/exchange-sync/internal/logging"

	"github.com/spf13/cobra"
)

// DefaultConnector is the connector used when --connector is not given.
const DefaultConnector = "exchange"

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	connector  string
	verbose    bool
	logFormat  string

	endpoint string
	login    string
	timezone string
	auth     string
	timeout  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRegistry() *connector.Registry {
	var r connector.Registry
	r.Register(DefaultConnector, exchange.Factory)
	return &r
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "exsync",
		Short: "Turn Exchange calendar events into bot tasks",
		Long: `exsync queries today's calendar view of an Exchange mailbox and emits one
"notify" task for every event whose body carries a bot directive block:

    [PLATFORM_BOT]
    project: ABC
    owner: me
    [PLATFORM_BOT]

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (EXSYNC_ENDPOINT, EXSYNC_LOGIN, EXSYNC_PASSWORD,
       EXSYNC_TIMEZONE, EXSYNC_TIMEOUT)
    3. Config file (--config, JSON or YAML)
    4. Defaults`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to JSON or YAML config file")
	flags.StringVar(&opts.connector, "connector", DefaultConnector, "Connector to run")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")
	flags.StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format: text or json")
	flags.StringVar(&opts.endpoint, "endpoint", "", "Exchange server base URL (overrides config file and EXSYNC_ENDPOINT)")
	flags.StringVar(&opts.login, "login", "", "Login as user@domain (overrides config file and EXSYNC_LOGIN)")
	flags.StringVar(&opts.timezone, "timezone", "", "IANA zone of the daily query window (overrides config file and EXSYNC_TIMEZONE)")
	flags.StringVar(&opts.auth, "auth", "", "Authentication mode: ntlm or oauth2")
	flags.IntVar(&opts.timeout, "timeout", 0, "Connect timeout in seconds (overrides config file and EXSYNC_TIMEOUT)")

	root.AddCommand(
		newRunCommand(opts),
		newLoginCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// setup loads the configuration and builds the logger for a command.
func (o *globalOptions) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(o.configFile, config.Overrides{
		Endpoint: o.endpoint,
		Login:    o.login,
		Timezone: o.timezone,
		Auth:     o.auth,
		Timeout:  o.timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if o.verbose {
		level = slog.LevelDebug
	}
	logger, err := logging.Init(cmd.ErrOrStderr(), o.logFormat, level)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}
