package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var (
	// ErrToolNotFound indicates the extraction binary is not on the search path
	ErrToolNotFound = errors.New("extraction tool not found")
	// ErrEnumerationFailed indicates the playlist listing could not be produced or parsed
	ErrEnumerationFailed = errors.New("enumeration failed")
	// ErrProbeFailed indicates the metadata probe could not be produced or parsed
	ErrProbeFailed = errors.New("metadata probe failed")
	// ErrExtractionFailed indicates the streaming extraction process failed
	ErrExtractionFailed = errors.New("extraction failed")
)

// entryFields is the number of printed lines per playlist entry
const entryFields = 3

// Entry is one enumerated playlist entry
type Entry struct {
	SourceURL string
	Title     string
	BaseKey   string
}

// Metadata describes the probed output format of one entry
type Metadata struct {
	Extension string
	// Size is the expected byte size, 0 when the tool cannot report one
	Size int64
}

// Extractor defines the three invocation modes of the extraction tool
type Extractor interface {
	Enumerate(ctx context.Context, url string) ([]Entry, error)
	Probe(ctx context.Context, url string) (Metadata, error)
	OpenStream(ctx context.Context, url string, expectedSize int64) (Stream, error)
}

// Tool implements Extractor by invoking a yt-dlp compatible binary
type Tool struct {
	path   string
	format string
}

// New resolves the binary on the search path and returns a Tool bound to the
// given format selector
func New(binary, format string) (*Tool, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not installed or not in PATH", ErrToolNotFound, binary)
	}
	return &Tool{path: path, format: format}, nil
}

// Enumerate lists the playlist entries behind url. A non-playlist URL yields a
// single entry. Each entry prints three lines: source URL, title, and the
// base key rendered from the "{title} [{id}]" template.
func (t *Tool) Enumerate(ctx context.Context, url string) ([]Entry, error) {
	cmd := exec.CommandContext(ctx, t.path,
		"--flat-playlist",
		"--no-warnings",
		"--print", "url",
		"--print", "title",
		"--print", "filename",
		"-o", "%(title)s [%(id)s]",
		url,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnumerationFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrEnumerationFailed, t.path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v%s", ErrEnumerationFailed, err, stderrDetail(&stderr))
	}
	if scanErr != nil {
		return nil, fmt.Errorf("%w: reading tool output: %v", ErrEnumerationFailed, scanErr)
	}

	return parseEntries(lines)
}

// parseEntries validates the fixed per-entry record layout and builds entries
func parseEntries(lines []string) ([]Entry, error) {
	if len(lines)%entryFields != 0 {
		return nil, fmt.Errorf("%w: got %d output lines, want a multiple of %d",
			ErrEnumerationFailed, len(lines), entryFields)
	}

	entries := make([]Entry, 0, len(lines)/entryFields)
	for i := 0; i < len(lines); i += entryFields {
		entry := Entry{
			SourceURL: lines[i],
			Title:     lines[i+1],
			BaseKey:   sanitizeBaseKey(lines[i+2]),
		}
		if entry.SourceURL == "" || entry.BaseKey == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty url or key", ErrEnumerationFailed, i/entryFields)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// sanitizeBaseKey strips characters that are unsafe in object keys. The tool
// already sanitizes filenames; this guards the key shape if that changes.
func sanitizeBaseKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Probe queries the output extension and expected size for url without
// downloading any media bytes
func (t *Tool) Probe(ctx context.Context, url string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, t.path,
		"--no-playlist",
		"--no-warnings",
		"-f", t.format,
		"--print", "%(ext)s,%(filesize)s",
		url,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v%s", ErrProbeFailed, err, stderrDetail(&stderr))
	}

	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 1 {
		return Metadata{}, fmt.Errorf("%w: want one output line, got %d", ErrProbeFailed, len(lines))
	}

	return parseProbe(lines[0])
}

// parseProbe parses the "{extension},{size}" probe line. A missing or
// non-numeric size means the size is unknown and parses to 0.
func parseProbe(line string) (Metadata, error) {
	ext, sizeField, ok := strings.Cut(line, ",")
	ext = strings.TrimSpace(ext)
	if !ok || ext == "" {
		return Metadata{}, fmt.Errorf("%w: unexpected probe output %q", ErrProbeFailed, line)
	}

	meta := Metadata{Extension: ext}
	if n, err := strconv.ParseInt(strings.TrimSpace(sizeField), 10, 64); err == nil && n > 0 {
		meta.Size = n
	}

	return meta, nil
}

// stderrDetail renders a bounded stderr tail for error messages
func stderrDetail(buf *bytes.Buffer) string {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return ""
	}
	if len(out) > 2048 {
		out = out[len(out)-2048:]
	}
	return fmt.Sprintf(" (stderr: %s)", out)
}
