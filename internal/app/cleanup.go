package app

import (
	"context"
	"fmt"

	"yt2minio/internal/storage"

	"go.uber.org/zap"
)

// Cleanup removes every object version and delete marker from the bucket,
// leaving it empty. With dryRun set it only logs what would be removed.
func Cleanup(ctx context.Context, client storage.Client, bucket string, dryRun bool, logger *zap.Logger) (int, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return 0, fmt.Errorf("%w: checking bucket %s: %v", storage.ErrStoreUnavailable, bucket, err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", storage.ErrBucketMissing, bucket)
	}

	verCh, errCh := client.ListObjectVersions(ctx, bucket)

	removed := 0
	for {
		select {
		case v, ok := <-verCh:
			if !ok {
				// A listing failure closes both channels; the error channel
				// must be drained before the listing counts as complete
				if err := <-errCh; err != nil {
					return removed, fmt.Errorf("%w: listing versions in %s: %v", storage.ErrStoreUnavailable, bucket, err)
				}

				logger.Info("Cleanup complete",
					zap.String("bucket", bucket),
					zap.Int("removed", removed),
				)
				return removed, nil
			}

			if dryRun {
				logger.Info("Would remove version",
					zap.String("key", v.Key),
					zap.String("version_id", v.VersionID),
					zap.Bool("delete_marker", v.IsDeleteMarker),
				)
				continue
			}

			if err := client.RemoveObjectVersion(ctx, bucket, v.Key, v.VersionID); err != nil {
				return removed, fmt.Errorf("failed to remove %s (version %s): %w", v.Key, v.VersionID, err)
			}
			removed++
			logger.Debug("Removed version",
				zap.String("key", v.Key),
				zap.String("version_id", v.VersionID),
			)

		case err := <-errCh:
			if err != nil {
				return removed, fmt.Errorf("%w: listing versions in %s: %v", storage.ErrStoreUnavailable, bucket, err)
			}

		case <-ctx.Done():
			return removed, ctx.Err()
		}
	}
}
