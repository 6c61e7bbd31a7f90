package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"yt2minio/internal/extractor"
	"yt2minio/internal/metrics"
	"yt2minio/internal/progress"
	"yt2minio/internal/storage"

	"go.uber.org/zap"
)

// ErrStoreWriteFailed indicates the upload call against the store failed
var ErrStoreWriteFailed = errors.New("store write failed")

// Processor turns one enumerated item into a skip, upload, or re-upload
type Processor struct {
	config    Config
	store     storage.Client
	extractor extractor.Extractor
	tracker   *progress.Tracker
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewProcessor creates a new item processor
func NewProcessor(cfg Config, store storage.Client, ext extractor.Extractor, tracker *progress.Tracker, collector *metrics.Collector, logger *zap.Logger) *Processor {
	return &Processor{
		config:    cfg,
		store:     store,
		extractor: ext,
		tracker:   tracker,
		metrics:   collector,
		logger:    logger,
	}
}

// Process runs the decide, probe, and transfer stages for a single item
func (p *Processor) Process(ctx context.Context, snap *Snapshot, item Item) Result {
	startTime := time.Now()

	// A prefix hit with size checking off decides a skip without probing
	if !p.config.CheckFullKey && !p.config.ReuploadOnSizeDiff {
		if key, _, ok := snap.MatchPrefix(item.BaseKey); ok {
			p.logger.Info("Skipping existing object", zap.String("key", key))
			p.metrics.IncSkipped()
			return Result{Item: item, Outcome: OutcomeSkipped, Key: key}
		}
	}

	meta, err := p.extractor.Probe(ctx, item.SourceURL)
	if err != nil {
		p.metrics.IncFailed()
		return Result{Item: item, Outcome: OutcomeFailed, Err: fmt.Errorf("probe %s: %w", item.BaseKey, err)}
	}

	key := item.BaseKey + "." + meta.Extension
	decision := Decide(snap, item.BaseKey, meta.Extension, meta.Size,
		p.config.ReuploadOnSizeDiff, p.config.CheckFullKey)

	if decision == DecisionSkip {
		p.logger.Info("Skipping existing object", zap.String("key", key))
		p.metrics.IncSkipped()
		return Result{Item: item, Outcome: OutcomeSkipped, Key: key}
	}

	if p.config.DryRun {
		p.logger.Info("Dry run, would transfer",
			zap.String("key", key),
			zap.String("action", decision.String()),
			zap.Int64("expected_size", meta.Size))
		return Result{Item: item, Outcome: outcomeForDecision(decision), Key: key}
	}

	p.logger.Info("Transferring",
		zap.String("key", key),
		zap.String("url", item.SourceURL),
		zap.Int64("expected_size", meta.Size))

	written, err := p.transfer(ctx, item, key, meta)
	if err != nil {
		p.metrics.IncFailed()
		return Result{Item: item, Outcome: OutcomeFailed, Key: key, Bytes: written, Err: err}
	}

	outcome := outcomeForDecision(decision)
	if outcome == OutcomeReUploaded {
		p.metrics.IncReUploaded()
	} else {
		p.metrics.IncUploaded()
	}
	p.metrics.AddBytes(written)
	p.metrics.ObserveDuration(time.Since(startTime))
	p.logger.Info("Item archived",
		zap.String("key", key),
		zap.Int64("bytes", written),
		zap.Duration("duration", time.Since(startTime)))

	return Result{Item: item, Outcome: outcome, Key: key, Bytes: written}
}

// transfer pipes the extraction stream into a streamed put against the store.
// Exactly one of extraction failure or store failure is reported; whichever
// side fails first forces the other down.
func (p *Processor) transfer(ctx context.Context, item Item, key string, meta extractor.Metadata) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := p.extractor.OpenStream(ctx, item.SourceURL, meta.Size)
	if err != nil {
		return 0, err
	}

	p.metrics.IncInFlight()
	defer p.metrics.DecInFlight()
	p.tracker.StartItem(key, meta.Size)

	size := int64(-1)
	if meta.Size > 0 {
		size = meta.Size
	}
	opts := storage.PutOptions{
		ContentType: contentTypeFor(meta.Extension),
		PartSize:    p.config.PartSize,
	}

	putErr := p.store.PutObject(ctx, p.config.Bucket, key, io.TeeReader(stream, p.tracker), size, opts)
	written := p.tracker.FinishItem()

	if putErr == nil {
		// The upload only completes on end-of-data; join the child for its
		// exit verdict
		<-stream.Done()
		if err := stream.Err(); err != nil {
			return written, err
		}
		stream.Close()
		return written, nil
	}

	// The upload failed. If the child had already died on its own, its error
	// caused the failure and wins; otherwise the store failed first and the
	// child must not be left running.
	select {
	case <-stream.Done():
		if err := stream.Err(); err != nil {
			return written, err
		}
	default:
	}
	stream.Close()
	return written, fmt.Errorf("%w: %v", ErrStoreWriteFailed, putErr)
}

func outcomeForDecision(d Decision) Outcome {
	if d == DecisionReUpload {
		return OutcomeReUploaded
	}
	return OutcomeUploaded
}

// contentTypeFor maps a file extension to a MIME type, falling back to a
// generic binary type when the extension is unknown
func contentTypeFor(extension string) string {
	if ct := mime.TypeByExtension("." + extension); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
