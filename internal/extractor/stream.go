package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Stream is a live media byte stream backed by a running extraction process.
// Reads return the process's raw stdout bytes; when the process exits non-zero
// the pending read fails with its exit error instead of a clean EOF, so a
// consumer can never mistake a truncated stream for a complete one.
type Stream interface {
	io.Reader
	// Done is closed once the process has been reaped
	Done() <-chan struct{}
	// Err returns the process exit verdict, valid once Done is closed
	Err() error
	// Close aborts the stream, killing the process if it is still running
	Close() error
}

type mediaStream struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	aborted bool
	exitErr error
}

// OpenStream starts the tool in streaming mode for url. expectedSize (0 when
// unknown) caps how many bytes are forwarded; anything the child writes past
// it is drained so the child can exit on its own.
func (t *Tool) OpenStream(ctx context.Context, url string, expectedSize int64) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, t.path,
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"-f", t.format,
		"-o", "-",
		url,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: starting %s: %v", ErrExtractionFailed, t.path, err)
	}

	pr, pw := io.Pipe()
	s := &mediaStream{
		pr:     pr,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer cancel()

		copyErr := forward(pw, stdout, expectedSize)
		waitErr := cmd.Wait()

		var verdict error
		if waitErr != nil {
			verdict = fmt.Errorf("%w: %v%s", ErrExtractionFailed, waitErr, stderrDetail(&stderr))
		} else if copyErr != nil {
			verdict = fmt.Errorf("%w: %v", ErrExtractionFailed, copyErr)
		}

		s.mu.Lock()
		if s.aborted {
			// The consumer gave up first; its own error is the verdict
			verdict = nil
		}
		s.exitErr = verdict
		s.mu.Unlock()

		pw.CloseWithError(verdict)
	}()

	return s, nil
}

// forward copies the child's stdout into the pipe. With a known expected size
// the copy stops there and the excess is discarded, so a child that produces
// more bytes than probed cannot block against a consumer that stopped reading.
func forward(pw *io.PipeWriter, stdout io.Reader, expected int64) error {
	if expected > 0 {
		n, err := io.CopyN(pw, stdout, expected)
		if err == io.EOF {
			return fmt.Errorf("stream ended after %d of %d bytes: %w", n, expected, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return err
		}
		_, err = io.Copy(io.Discard, stdout)
		return err
	}

	_, err := io.Copy(pw, stdout)
	return err
}

func (s *mediaStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

func (s *mediaStream) Done() <-chan struct{} {
	return s.done
}

func (s *mediaStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// Close aborts the stream. Safe to call on any path, including after a clean
// end of stream.
func (s *mediaStream) Close() error {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()

	s.pr.Close()
	s.cancel()
	<-s.done
	return nil
}
