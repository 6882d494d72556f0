package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dunamismax/voteframe/internal/assets"
	"github.com/dunamismax/voteframe/internal/compositor"
	"github.com/dunamismax/voteframe/internal/config"
	"github.com/dunamismax/voteframe/internal/logging"
	"github.com/dunamismax/voteframe/internal/storage"
	"github.com/dunamismax/voteframe/internal/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string

	cfg             config.Config
	logger          *logrus.Logger
	shutdownTracing func(context.Context) error
)

// Execute runs the CLI. The codec runtime is released only here, after the
// command tree has finished, because libvips cannot be restarted.
func Execute() error {
	defer compositor.Shutdown()
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "voteframe",
		Short:        "Compose a photo into a campaign picture frame",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}

			logger, err = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return err
			}

			if err := compositor.Startup(); err != nil {
				return fmt.Errorf("start image codec: %w", err)
			}

			shutdownTracing, err = telemetry.SetupTracing(cmd.Context(), telemetry.TraceConfig{
				ServiceName:  cfg.Telemetry.ServiceName,
				Exporter:     cfg.Telemetry.Exporter,
				OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
				OTLPInsecure: cfg.Telemetry.OTLPInsecure,
			}, logger)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdownTracing == nil {
				return nil
			}
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Warnf("tracing shutdown: %v", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (env VOTEFRAME_* overrides it)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(renderCmd(), framesCmd(), thumbsCmd())
	return root
}

// newResolver builds the frame resolver for the configured asset source.
func newResolver() (*assets.Resolver, error) {
	var src assets.Source
	switch cfg.Assets.Source {
	case "s3":
		client, err := newStorageClient()
		if err != nil {
			return nil, err
		}
		src = assets.ObjectSource{Storage: client, Prefix: cfg.Assets.Prefix}
	default:
		src = assets.NewDirSource(cfg.Assets.Dir)
	}

	return assets.NewResolver(assets.Options{
		Source:  src,
		Formats: cfg.Assets.Formats,
		Logger:  logger,
	})
}

func newStorageClient() (*storage.Client, error) {
	return storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
}

func writeFile(path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
