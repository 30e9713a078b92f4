// Command feedly is a small command line client for the Feedly Cloud API.
//
// Configuration comes from the FEEDLY_* environment variables, overridden by an
// optional YAML file (see --config). Logs go to stderr; command output to stdout.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"feedlykit/internal/observability/logging"
	"feedlykit/internal/observability/metrics"
	"feedlykit/internal/pkg/config"
	"feedlykit/pkg/cloudapi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string

	logger   *slog.Logger
	registry *prometheus.Registry
	client   *cloudapi.Client
}

func newRootCmd() *cobra.Command {
	a := &app{registry: prometheus.NewRegistry()}

	root := &cobra.Command{
		Use:          "feedly",
		Short:        "Read streams and manage tags of a Feedly account",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts := logging.OptionsFromEnv()
			if a.logLevel != "" {
				opts.Level = a.logLevel
			}
			opts.Format = "text"
			a.logger = logging.New(cmd.ErrOrStderr(), opts)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"YAML config file (default "+defaultConfigPath()+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")

	root.AddCommand(
		a.profileCmd(),
		a.tagsCmd(),
		a.tagCmd(),
		a.untagCmd(),
		a.renameTagCmd(),
		a.deleteTagsCmd(),
		a.streamCmd(),
		a.entryCmd(),
		a.watchCmd(),
	)
	return root
}

// apiClient builds the client on first use. Every command of one process shares it.
func (a *app) apiClient() (*cloudapi.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	cfg, err := loadConfig(a.configPath, a.logger, config.NewConfigMetrics("feedly_cli", a.registry))
	if err != nil {
		return nil, err
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("no access token: set FEEDLY_ACCESS_TOKEN or access_token in the config file")
	}

	c, err := cloudapi.NewClient(cfg,
		cloudapi.WithLogger(a.logger),
		cloudapi.WithMetrics(metrics.NewRecorder(a.registry)),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	a.logger.Debug("client ready",
		slog.String("endpoint", cfg.Endpoint()),
		slog.Duration("timeout", cfg.Timeout))
	a.client = c
	return c, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
