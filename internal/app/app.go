package app

import (
	"context"
	"fmt"
	"time"

	"yt2minio/internal/config"
	"yt2minio/internal/extractor"
	"yt2minio/internal/metrics"
	"yt2minio/internal/progress"
	"yt2minio/internal/storage"
	"yt2minio/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Archiver represents the main archiving application
type Archiver struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     storage.Client
	extractor extractor.Extractor
	metrics   *metrics.Collector
	processor *worker.Processor
	policy    FailurePolicy
	stop      *StopFlag
}

// New creates a new archiver instance
func New(cfg *config.Config, logger *zap.Logger) (*Archiver, error) {
	// Create store client
	store, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Store.Endpoint,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Secure:    cfg.Store.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	// Resolve the extraction tool before any work starts
	tool, err := extractor.New(cfg.Archive.Tool, cfg.Archive.Format)
	if err != nil {
		return nil, err
	}

	return newArchiver(cfg, logger, store, tool, metrics.New(prometheus.DefaultRegisterer)), nil
}

// newArchiver wires an archiver from its dependencies
func newArchiver(cfg *config.Config, logger *zap.Logger, store storage.Client, ext extractor.Extractor, collector *metrics.Collector) *Archiver {
	processor := worker.NewProcessor(worker.Config{
		Bucket:             cfg.Archive.Bucket,
		PartSize:           cfg.Archive.PartSize,
		ReuploadOnSizeDiff: cfg.Archive.ReuploadOnSizeDiff,
		CheckFullKey:       cfg.Archive.CheckFullKey,
		DryRun:             cfg.Archive.DryRun,
	}, store, ext, collector.GetProgressTracker(), collector, logger)

	return &Archiver{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		extractor: ext,
		metrics:   collector,
		processor: processor,
		policy:    FailFast{},
		stop:      &StopFlag{},
	}
}

// Stop returns the cooperative cancellation token
func (a *Archiver) Stop() *StopFlag {
	return a.stop
}

// Run executes one archive pass for the given source URL
func (a *Archiver) Run(ctx context.Context, sourceURL string) error {
	a.logger.Info("Starting archive run",
		zap.String("url", sourceURL),
		zap.String("bucket", a.cfg.Archive.Bucket),
		zap.String("format", a.cfg.Archive.Format),
		zap.Bool("reupload_on_size_diff", a.cfg.Archive.ReuploadOnSizeDiff),
		zap.Bool("check_full_key", a.cfg.Archive.CheckFullKey),
		zap.Bool("dry_run", a.cfg.Archive.DryRun),
	)

	// Start metrics server when an address is configured
	if addr := a.cfg.Archive.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.StartServer(addr); err != nil {
				a.logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	if err := a.ensureBucket(ctx); err != nil {
		return err
	}

	items, err := a.enumerate(ctx, sourceURL)
	if err != nil {
		return err
	}
	a.metrics.SetTotalItems(int64(len(items)))
	a.logger.Info("Enumeration complete", zap.Int("items", len(items)))

	if len(items) == 0 {
		a.logger.Info("Nothing to archive")
		return nil
	}

	index := &BucketIndex{client: a.store, logger: a.logger}
	snap, err := index.Snapshot(ctx, a.cfg.Archive.Bucket)
	if err != nil {
		return err
	}

	// Create progress display if enabled and supported and not in dry-run mode
	var display *progress.Display
	if a.cfg.Archive.ShowProgress && !a.cfg.Archive.DryRun && progress.IsTerminalSupported() {
		display = progress.NewDisplay(a.metrics.GetProgressTracker(), 2*time.Second)
		display.Start()
		a.logger.Info("Progress display enabled")
	}

	var abortErr error
	for i, item := range items {
		// Stop requests are honored at item boundaries only; the item that
		// was in flight when the signal arrived has already resolved
		if a.stop.Requested() {
			for range items[i:] {
				a.metrics.IncDrained()
			}
			a.logger.Warn("Shutdown requested, draining remaining items",
				zap.Int("drained", len(items)-i))
			break
		}

		result := a.processor.Process(ctx, snap, item)
		if result.Err != nil {
			a.logger.Error("Item failed",
				zap.String("key", result.Item.BaseKey),
				zap.Error(result.Err),
			)
			if err := a.policy.OnFailure(result); err != nil {
				abortErr = err
				break
			}
		}
	}

	if display != nil {
		display.Stop()
	}

	summary := a.metrics.GetProgressTracker().GetStatus()
	a.logger.Info("Archive run finished",
		zap.Int64("uploaded", summary.Uploaded),
		zap.Int64("reuploaded", summary.ReUploaded),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Int64("drained", summary.Drained),
		zap.String("bytes", progress.FormatBytes(summary.ProcessedBytes)),
	)

	if abortErr != nil {
		return fmt.Errorf("archive run aborted: %w", abortErr)
	}
	return nil
}

// ensureBucket verifies the destination bucket exists, creating it when
// configured to
func (a *Archiver) ensureBucket(ctx context.Context) error {
	bucket := a.cfg.Archive.Bucket

	exists, err := a.store.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("%w: checking bucket %s: %v", storage.ErrStoreUnavailable, bucket, err)
	}
	if exists {
		return nil
	}

	if !a.cfg.Archive.CreateBucket {
		return fmt.Errorf("%w: %s", storage.ErrBucketMissing, bucket)
	}

	a.logger.Info("Creating bucket", zap.String("bucket", bucket))
	if err := a.store.MakeBucket(ctx, bucket); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// enumerate resolves the source URL into the run's work items
func (a *Archiver) enumerate(ctx context.Context, sourceURL string) ([]worker.Item, error) {
	entries, err := a.extractor.Enumerate(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", sourceURL, err)
	}

	items := make([]worker.Item, len(entries))
	for i, e := range entries {
		items[i] = worker.Item{
			SourceURL: e.SourceURL,
			Title:     e.Title,
			BaseKey:   e.BaseKey,
		}
	}
	return items, nil
}
