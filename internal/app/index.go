package app

import (
	"context"
	"fmt"

	"yt2minio/internal/storage"
	"yt2minio/internal/worker"

	"go.uber.org/zap"
)

// BucketIndex materializes the destination bucket's object listing
type BucketIndex struct {
	client storage.Client
	logger *zap.Logger
}

// Snapshot lists every object in the bucket and returns the completed
// snapshot. The listing is consumed in full before reconciliation begins so
// decisions run against a fixed set rather than a live cursor.
func (b *BucketIndex) Snapshot(ctx context.Context, bucket string) (*worker.Snapshot, error) {
	objCh, errCh := b.client.ListObjects(ctx, bucket, "")

	var objects []storage.ObjectInfo

	for {
		select {
		case obj, ok := <-objCh:
			if !ok {
				// A listing failure closes both channels; the error channel
				// must be drained before the listing counts as complete
				if err := <-errCh; err != nil {
					return nil, fmt.Errorf("%w: listing bucket %s: %v", storage.ErrStoreUnavailable, bucket, err)
				}

				snap := worker.NewSnapshot(objects)
				b.logger.Info("Bucket snapshot complete",
					zap.String("bucket", bucket),
					zap.Int("objects", snap.Len()),
				)
				return snap, nil
			}

			objects = append(objects, obj)

		case err := <-errCh:
			if err != nil {
				return nil, fmt.Errorf("%w: listing bucket %s: %v", storage.ErrStoreUnavailable, bucket, err)
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
