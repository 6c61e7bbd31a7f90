package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"yt2minio/internal/extractor"
	"yt2minio/internal/metrics"
	"yt2minio/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExtractor struct {
	probeCalls int
	probeFn    func(url string) (extractor.Metadata, error)
	streamFn   func(url string, expectedSize int64) (extractor.Stream, error)
}

func (f *fakeExtractor) Enumerate(ctx context.Context, url string) ([]extractor.Entry, error) {
	return nil, nil
}

func (f *fakeExtractor) Probe(ctx context.Context, url string) (extractor.Metadata, error) {
	f.probeCalls++
	return f.probeFn(url)
}

func (f *fakeExtractor) OpenStream(ctx context.Context, url string, expectedSize int64) (extractor.Stream, error) {
	return f.streamFn(url, expectedSize)
}

type errorReader struct{ err error }

func (r errorReader) Read([]byte) (int, error) { return 0, r.err }

// fakeStream mimics a media stream whose reads deliver data and then either a
// clean EOF or the recorded verdict
type fakeStream struct {
	r        io.Reader
	done     chan struct{}
	doneOnce sync.Once
	verdict  error
	killed   bool
}

// newFinishedStream builds a stream whose backing process has already exited.
// A non-nil verdict replaces the clean EOF at end of data.
func newFinishedStream(data string, verdict error) *fakeStream {
	var r io.Reader = strings.NewReader(data)
	if verdict != nil {
		r = io.MultiReader(r, errorReader{verdict})
	}
	s := &fakeStream{r: r, done: make(chan struct{}), verdict: verdict}
	s.doneOnce.Do(func() { close(s.done) })
	return s
}

// newRunningStream builds a stream whose backing process is still alive until
// Close is called
func newRunningStream(data string) *fakeStream {
	return &fakeStream{r: strings.NewReader(data), done: make(chan struct{})}
}

func (s *fakeStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *fakeStream) Done() <-chan struct{}      { return s.done }
func (s *fakeStream) Err() error                 { return s.verdict }

func (s *fakeStream) Close() error {
	s.killed = true
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

type putRecord struct {
	bucket string
	key    string
	size   int64
	opts   storage.PutOptions
	data   []byte
}

type fakeStore struct {
	puts []putRecord

	// When putErr is set, PutObject reads failAfter bytes and then fails
	putErr    error
	failAfter int
}

func (s *fakeStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

func (s *fakeStore) MakeBucket(ctx context.Context, bucket string) error { return nil }

func (s *fakeStore) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) error {
	if s.putErr != nil {
		buf := make([]byte, s.failAfter)
		io.ReadFull(reader, buf)
		return s.putErr
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.puts = append(s.puts, putRecord{bucket: bucket, key: key, size: size, opts: opts, data: data})
	return nil
}

func (s *fakeStore) ListObjects(ctx context.Context, bucket, prefix string) (<-chan storage.ObjectInfo, <-chan error) {
	objCh := make(chan storage.ObjectInfo)
	errCh := make(chan error, 1)
	close(objCh)
	close(errCh)
	return objCh, errCh
}

func (s *fakeStore) ListObjectVersions(ctx context.Context, bucket string) (<-chan storage.VersionInfo, <-chan error) {
	verCh := make(chan storage.VersionInfo)
	errCh := make(chan error, 1)
	close(verCh)
	close(errCh)
	return verCh, errCh
}

func (s *fakeStore) RemoveObjectVersion(ctx context.Context, bucket, key, versionID string) error {
	return nil
}

func newTestProcessor(cfg Config, store storage.Client, ext extractor.Extractor) (*Processor, *metrics.Collector) {
	collector := metrics.New(prometheus.NewRegistry())
	p := NewProcessor(cfg, store, ext, collector.GetProgressTracker(), collector, zap.NewNop())
	return p, collector
}

func testItem() Item {
	return Item{
		SourceURL: "https://videos.example/watch?v=aaa111",
		Title:     "Clip",
		BaseKey:   "Clip [aaa111]",
	}
}

func TestProcessSkipsExistingWithoutProbing(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 100}, nil
		},
	}
	store := &fakeStore{}
	snap := NewSnapshot([]storage.ObjectInfo{{Key: "Clip [aaa111].mp4", Size: 100}})

	p, collector := newTestProcessor(Config{Bucket: "vids"}, store, ext)
	res := p.Process(context.Background(), snap, testItem())

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "Clip [aaa111].mp4", res.Key)
	assert.Equal(t, 0, ext.probeCalls, "a prefix hit without size checking decides without probing")
	assert.Empty(t, store.puts)
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().Skipped)
}

func TestProcessUploadsNewItem(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 4}, nil
		},
		streamFn: func(string, int64) (extractor.Stream, error) {
			return newFinishedStream("abcd", nil), nil
		},
	}
	store := &fakeStore{}
	cfg := Config{Bucket: "vids", PartSize: 8 * 1024 * 1024}

	p, collector := newTestProcessor(cfg, store, ext)
	res := p.Process(context.Background(), NewSnapshot(nil), testItem())

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeUploaded, res.Outcome)
	assert.Equal(t, "Clip [aaa111].mp4", res.Key)
	assert.Equal(t, int64(4), res.Bytes)

	require.Len(t, store.puts, 1)
	put := store.puts[0]
	assert.Equal(t, "vids", put.bucket)
	assert.Equal(t, "Clip [aaa111].mp4", put.key)
	assert.Equal(t, int64(4), put.size)
	assert.Equal(t, "abcd", string(put.data))
	assert.Equal(t, cfg.PartSize, put.opts.PartSize)

	status := collector.GetProgressTracker().GetStatus()
	assert.Equal(t, int64(1), status.Uploaded)
	assert.Equal(t, int64(4), status.ProcessedBytes)
}

func TestProcessUploadsUnknownSizeAsChunkedStream(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 0}, nil
		},
		streamFn: func(string, int64) (extractor.Stream, error) {
			return newFinishedStream("abcdef", nil), nil
		},
	}
	store := &fakeStore{}

	p, _ := newTestProcessor(Config{Bucket: "vids"}, store, ext)
	res := p.Process(context.Background(), NewSnapshot(nil), testItem())

	require.NoError(t, res.Err)
	assert.Equal(t, int64(6), res.Bytes)
	require.Len(t, store.puts, 1)
	assert.Equal(t, int64(-1), store.puts[0].size, "an unknown size streams without a length")
}

func TestProcessReUploadsOnSizeDiff(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 4}, nil
		},
		streamFn: func(string, int64) (extractor.Stream, error) {
			return newFinishedStream("abcd", nil), nil
		},
	}
	store := &fakeStore{}
	snap := NewSnapshot([]storage.ObjectInfo{{Key: "Clip [aaa111].mp4", Size: 9999}})

	p, collector := newTestProcessor(Config{Bucket: "vids", ReuploadOnSizeDiff: true}, store, ext)
	res := p.Process(context.Background(), snap, testItem())

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReUploaded, res.Outcome)
	assert.Equal(t, 1, ext.probeCalls)
	require.Len(t, store.puts, 1)
	assert.Equal(t, "Clip [aaa111].mp4", store.puts[0].key)
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().ReUploaded)
}

func TestProcessSkipsWhenSizesMatch(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 100}, nil
		},
	}
	store := &fakeStore{}
	snap := NewSnapshot([]storage.ObjectInfo{{Key: "Clip [aaa111].mp4", Size: 100}})

	p, _ := newTestProcessor(Config{Bucket: "vids", ReuploadOnSizeDiff: true}, store, ext)
	res := p.Process(context.Background(), snap, testItem())

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, 1, ext.probeCalls, "size checking needs the probe before it can skip")
	assert.Empty(t, store.puts)
}

func TestProcessSkipsWhenExpectedSizeUnknown(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 0}, nil
		},
	}
	store := &fakeStore{}
	snap := NewSnapshot([]storage.ObjectInfo{{Key: "Clip [aaa111].mp4", Size: 100}})

	p, _ := newTestProcessor(Config{Bucket: "vids", ReuploadOnSizeDiff: true}, store, ext)
	res := p.Process(context.Background(), snap, testItem())

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, store.puts)
}

func TestProcessProbeFailure(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{}, fmt.Errorf("%w: no formats found", extractor.ErrProbeFailed)
		},
	}
	store := &fakeStore{}

	p, collector := newTestProcessor(Config{Bucket: "vids"}, store, ext)
	res := p.Process(context.Background(), NewSnapshot(nil), testItem())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, extractor.ErrProbeFailed)
	assert.Empty(t, store.puts)
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().Failed)
}

func TestProcessChildFailureIsNotCommitted(t *testing.T) {
	verdict := fmt.Errorf("%w: exit status 3", extractor.ErrExtractionFailed)
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 100}, nil
		},
		streamFn: func(string, int64) (extractor.Stream, error) {
			return newFinishedStream("abc", verdict), nil
		},
	}
	store := &fakeStore{}

	p, collector := newTestProcessor(Config{Bucket: "vids"}, store, ext)
	res := p.Process(context.Background(), NewSnapshot(nil), testItem())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, extractor.ErrExtractionFailed)
	assert.NotErrorIs(t, res.Err, ErrStoreWriteFailed, "the child's failure wins over the induced upload failure")
	assert.Equal(t, int64(3), res.Bytes)
	assert.Empty(t, store.puts, "a truncated stream must not commit an object")
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().Failed)
}

func TestProcessStoreFailureKillsStream(t *testing.T) {
	var stream *fakeStream
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 0}, nil
		},
		streamFn: func(string, int64) (extractor.Stream, error) {
			stream = newRunningStream(strings.Repeat("x", 1024))
			return stream, nil
		},
	}
	store := &fakeStore{putErr: errors.New("connection reset"), failAfter: 2}

	p, _ := newTestProcessor(Config{Bucket: "vids"}, store, ext)
	res := p.Process(context.Background(), NewSnapshot(nil), testItem())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrStoreWriteFailed)
	require.NotNil(t, stream)
	assert.True(t, stream.killed, "a store failure must shut the extraction down")
	assert.Equal(t, int64(2), res.Bytes)
}

func TestProcessDryRun(t *testing.T) {
	ext := &fakeExtractor{
		probeFn: func(string) (extractor.Metadata, error) {
			return extractor.Metadata{Extension: "mp4", Size: 5}, nil
		},
		streamFn: func(string, int64) (extractor.Stream, error) {
			t.Fatal("dry run must not open a stream")
			return nil, nil
		},
	}
	store := &fakeStore{}

	p, _ := newTestProcessor(Config{Bucket: "vids", DryRun: true}, store, ext)
	res := p.Process(context.Background(), NewSnapshot(nil), testItem())

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeUploaded, res.Outcome)
	assert.Equal(t, "Clip [aaa111].mp4", res.Key)
	assert.Empty(t, store.puts)
}

func TestOutcomeForDecision(t *testing.T) {
	assert.Equal(t, OutcomeUploaded, outcomeForDecision(DecisionUpload))
	assert.Equal(t, OutcomeReUploaded, outcomeForDecision(DecisionReUpload))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", contentTypeFor("png"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("zzzunknown"))
}
