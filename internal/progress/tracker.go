package progress

import (
	"fmt"
	"sync"
	"time"
)

// Status represents the current archiving status
type Status struct {
	TotalItems     int64
	ProcessedItems int64
	Uploaded       int64
	ReUploaded     int64
	Skipped        int64
	Failed         int64
	Drained        int64
	ProcessedBytes int64
	StartTime      time.Time
	LastUpdateTime time.Time
	CurrentSpeed   float64 // bytes/second over the recent window
	AverageSpeed   float64 // bytes/second since start

	// In-flight item; zero values when no transfer is running
	CurrentKey      string
	CurrentExpected int64
	CurrentBytes    int64
}

// Tracker tracks archiving progress. It implements io.Writer so the transfer
// can tee the byte stream through it.
type Tracker struct {
	mu           sync.RWMutex
	status       Status
	speedSamples []speedSample
	maxSamples   int
}

type speedSample struct {
	timestamp time.Time
	bytes     int64
}

// NewTracker creates a new progress tracker
func NewTracker() *Tracker {
	return &Tracker{
		status: Status{
			StartTime:      time.Now(),
			LastUpdateTime: time.Now(),
		},
		speedSamples: make([]speedSample, 0, 60),
		maxSamples:   60,
	}
}

// SetTotalItems sets the number of enumerated items
func (t *Tracker) SetTotalItems(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.TotalItems = n
}

// StartItem marks an item transfer as in flight. expected is 0 when the
// probed size is unknown.
func (t *Tracker) StartItem(key string, expected int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.CurrentKey = key
	t.status.CurrentExpected = expected
	t.status.CurrentBytes = 0
}

// Write counts bytes flowing through the in-flight transfer
func (t *Tracker) Write(p []byte) (int, error) {
	n := len(p)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.CurrentBytes += int64(n)
	t.status.ProcessedBytes += int64(n)
	t.updateSpeed(int64(n))

	return n, nil
}

// FinishItem clears the in-flight item and returns its byte count
func (t *Tracker) FinishItem() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.status.CurrentBytes
	t.status.CurrentKey = ""
	t.status.CurrentExpected = 0
	t.status.CurrentBytes = 0
	return n
}

// AddUploaded records a completed upload
func (t *Tracker) AddUploaded() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Uploaded++
	t.status.ProcessedItems++
}

// AddReUploaded records a completed re-upload
func (t *Tracker) AddReUploaded() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.ReUploaded++
	t.status.ProcessedItems++
}

// AddSkipped records an item skipped by reconciliation
func (t *Tracker) AddSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Skipped++
	t.status.ProcessedItems++
}

// AddFailed records a failed item
func (t *Tracker) AddFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Failed++
	t.status.ProcessedItems++
}

// AddDrained records an item abandoned after a shutdown request
func (t *Tracker) AddDrained() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Drained++
	t.status.ProcessedItems++
}

// updateSpeed updates the speed calculation (must be called with lock held)
func (t *Tracker) updateSpeed(bytes int64) {
	now := time.Now()

	t.speedSamples = append(t.speedSamples, speedSample{
		timestamp: now,
		bytes:     bytes,
	})

	if len(t.speedSamples) > t.maxSamples {
		t.speedSamples = t.speedSamples[1:]
	}

	t.calculateCurrentSpeed(now)
	t.calculateAverageSpeed(now)

	t.status.LastUpdateTime = now
}

// calculateCurrentSpeed calculates current speed based on recent samples
func (t *Tracker) calculateCurrentSpeed(now time.Time) {
	if len(t.speedSamples) < 2 {
		t.status.CurrentSpeed = 0
		return
	}

	// Speed over the most recent 5 seconds
	cutoff := now.Add(-5 * time.Second)
	var recentBytes int64
	var firstSample *speedSample

	for i := len(t.speedSamples) - 1; i >= 0; i-- {
		sample := &t.speedSamples[i]
		if sample.timestamp.Before(cutoff) {
			break
		}
		recentBytes += sample.bytes
		firstSample = sample
	}

	if firstSample != nil {
		recentDuration := now.Sub(firstSample.timestamp)
		if recentDuration > 0 {
			t.status.CurrentSpeed = float64(recentBytes) / recentDuration.Seconds()
		}
	}
}

// calculateAverageSpeed calculates average speed since start
func (t *Tracker) calculateAverageSpeed(now time.Time) {
	elapsed := now.Sub(t.status.StartTime)
	if elapsed > 0 {
		t.status.AverageSpeed = float64(t.status.ProcessedBytes) / elapsed.Seconds()
	}
}

// GetStatus returns the current status (thread-safe)
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.status
}

// GetItemsPercent returns the processed fraction of enumerated items
func (t *Tracker) GetItemsPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status.TotalItems == 0 {
		return 0
	}

	return float64(t.status.ProcessedItems) / float64(t.status.TotalItems) * 100
}

// GetItemPercent returns the in-flight transfer's progress, clamped to 100.
// Returns 0 when the expected size is unknown.
func (t *Tracker) GetItemPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status.CurrentExpected <= 0 {
		return 0
	}

	pct := float64(t.status.CurrentBytes) / float64(t.status.CurrentExpected) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// FormatSpeed formats speed in human readable format
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond < 1024 {
		return fmt.Sprintf("%.1f B/s", bytesPerSecond)
	} else if bytesPerSecond < 1024*1024 {
		return fmt.Sprintf("%.1f KB/s", bytesPerSecond/1024)
	} else if bytesPerSecond < 1024*1024*1024 {
		return fmt.Sprintf("%.1f MB/s", bytesPerSecond/(1024*1024))
	} else {
		return fmt.Sprintf("%.1f GB/s", bytesPerSecond/(1024*1024*1024))
	}
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	} else if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	} else if bytes < 1024*1024*1024 {
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	} else {
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}

// FormatDuration formats duration in human readable format
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	} else {
		return fmt.Sprintf("%ds", seconds)
	}
}
