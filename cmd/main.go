package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"yt2minio/internal/app"
	"yt2minio/internal/config"
	"yt2minio/internal/logger"
	"yt2minio/internal/storage"

	"github.com/spf13/cobra"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "yt2minio <url>",
	Short: "Archive playlist media into an S3 compatible bucket",
	Long:  `A sequential media archiving tool that enumerates a playlist with an extraction tool, skips items already present in the bucket, and streams the rest directly into S3 compatible storage without temporary files.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove all object versions and delete markers from the bucket",
	Long:  `Purges every object version and delete marker from the destination bucket on versioned stores, reclaiming space left behind by re-uploads.`,
	RunE:  runCleanup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	// Store flags
	rootCmd.PersistentFlags().String("endpoint", "", "S3 store endpoint")
	rootCmd.PersistentFlags().String("access-key", "", "S3 access key")
	rootCmd.PersistentFlags().String("secret-key", "", "S3 secret key")
	rootCmd.PersistentFlags().Bool("secure", false, "Use HTTPS for the store")
	rootCmd.PersistentFlags().String("bucket", "", "Destination bucket name (required)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Decide without transferring")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug/info/warn/error)")

	// Archive flags
	rootCmd.Flags().String("tool", "yt-dlp", "Extraction tool binary")
	rootCmd.Flags().String("format", "best", "Format selector passed to the tool")
	rootCmd.Flags().Int64("part-size", 67108864, "Upload part size in bytes for unknown-length streams")
	rootCmd.Flags().Bool("reupload-on-size-diff", false, "Re-upload when stored and probed sizes differ")
	rootCmd.Flags().Bool("check-full-key", false, "Match the exact object key instead of the base name prefix")
	rootCmd.Flags().Bool("create-bucket", false, "Create the bucket if it does not exist")
	rootCmd.Flags().Bool("show-progress", true, "Show progress display (auto-disabled for dry-run)")
	rootCmd.Flags().String("metrics-addr", "", "Address for the Prometheus metrics endpoint (disabled when empty)")

	rootCmd.AddCommand(cleanupCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// Create application
	archiver, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create archiver: %w", err)
	}

	// Setup graceful shutdown: the first signal finishes the in-flight
	// item and drains the rest, the second exits immediately
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, finishing current item before draining...")
		archiver.Stop().Request()
		<-sigChan
		log.Warn("Received second shutdown signal, exiting immediately")
		os.Exit(130)
	}()

	return archiver.Run(context.Background(), args[0])
}

func runCleanup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	client, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Store.Endpoint,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Secure:    cfg.Store.Secure,
	})
	if err != nil {
		return fmt.Errorf("failed to create store client: %w", err)
	}

	_, err = app.Cleanup(context.Background(), client, cfg.Archive.Bucket, cfg.Archive.DryRun, log)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
