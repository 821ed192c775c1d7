package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wozozo/smpit/internal/config"
	"github.com/wozozo/smpit/internal/logging"
	"github.com/wozozo/smpit/pkg/server"
	"github.com/wozozo/smpit/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Secrets Manager server",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("host", config.DefaultHost, "address to listen on")
	flags.Int("port", config.DefaultPort, "port to listen on")
	flags.Bool("https", false, "serve HTTPS instead of HTTP")
	flags.String("cert-file", "", "TLS certificate file (with --https)")
	flags.String("key-file", "", "TLS private key file (with --https)")
	flags.String("access-key-id", config.DefaultAccessKeyID, "access key id clients must sign with")
	flags.String("secret-access-key", config.DefaultSecretAccessKey, "secret access key clients must sign with")
	flags.String("region", config.DefaultRegion, "region used in generated ARNs")
	flags.String("db-path", config.DefaultDBPath, "path of the SQLite database file")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.Int("cleanup-interval", config.DefaultCleanupSeconds, "seconds between background cleanup runs")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	applyFlagOverrides(cmd, cfg)

	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	log.WithField("db", cfg.DBPath).Info("Storage ready")

	return server.New(cfg, store).Run(ctx)
}

// applyFlagOverrides lets explicitly set flags win over environment
// variables.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("https") {
		cfg.EnableHTTPS, _ = flags.GetBool("https")
	}
	if flags.Changed("cert-file") {
		cfg.CertFile, _ = flags.GetString("cert-file")
	}
	if flags.Changed("key-file") {
		cfg.KeyFile, _ = flags.GetString("key-file")
	}
	if flags.Changed("access-key-id") {
		cfg.AccessKeyID, _ = flags.GetString("access-key-id")
	}
	if flags.Changed("secret-access-key") {
		cfg.SecretAccessKey, _ = flags.GetString("secret-access-key")
	}
	if flags.Changed("region") {
		cfg.Region, _ = flags.GetString("region")
	}
	if flags.Changed("db-path") {
		cfg.DBPath, _ = flags.GetString("db-path")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("cleanup-interval") {
		seconds, _ := flags.GetInt("cleanup-interval")
		cfg.CleanupInterval = time.Duration(seconds) * time.Second
	}
}
