package progress

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Display handles the progress display
type Display struct {
	tracker   *Tracker
	interval  time.Duration
	stopCh    chan struct{}
	lastLines int
}

// NewDisplay creates a new progress display
func NewDisplay(tracker *Tracker, interval time.Duration) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the progress display
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop stops the progress display
func (d *Display) Stop() {
	close(d.stopCh)
}

// displayLoop runs the display update loop
func (d *Display) displayLoop() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.updateDisplay()
		case <-d.stopCh:
			d.finalDisplay()
			return
		}
	}
}

// updateDisplay updates the console display
func (d *Display) updateDisplay() {
	status := d.tracker.GetStatus()

	lines := d.generateDisplay(status)

	d.clearLines()

	fmt.Print(strings.Join(lines, "\n"))
	d.lastLines = len(lines)
}

// finalDisplay shows the final progress
func (d *Display) finalDisplay() {
	d.clearLines()
	status := d.tracker.GetStatus()
	lines := d.generateFinalDisplay(status)
	fmt.Println(strings.Join(lines, "\n"))
}

// clearLines clears the previous output lines
func (d *Display) clearLines() {
	if d.lastLines > 0 {
		fmt.Print("\n")
	}
}

// generateDisplay generates the progress display lines
func (d *Display) generateDisplay(status Status) []string {
	lines := make([]string, 0)

	lines = append(lines, "")
	lines = append(lines, "Archiving progress")
	lines = append(lines, "="+strings.Repeat("=", 50))

	itemsPercent := d.tracker.GetItemsPercent()
	lines = append(lines, fmt.Sprintf("Items: %d/%d (%.1f%%)",
		status.ProcessedItems, status.TotalItems, itemsPercent))
	lines = append(lines, fmt.Sprintf("    %s", d.generateProgressBar(itemsPercent, 40)))

	if status.CurrentKey != "" {
		lines = append(lines, fmt.Sprintf("Current: %s", status.CurrentKey))
		if status.CurrentExpected > 0 {
			itemPercent := d.tracker.GetItemPercent()
			lines = append(lines, fmt.Sprintf("    %s  %s / %s",
				d.generateProgressBar(itemPercent, 40),
				FormatBytes(status.CurrentBytes), FormatBytes(status.CurrentExpected)))
		} else {
			// Size unknown; a percentage would be meaningless
			lines = append(lines, fmt.Sprintf("    %s transferred", FormatBytes(status.CurrentBytes)))
		}
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Uploaded: %d  Re-uploaded: %d  Skipped: %d  Failed: %d  Drained: %d",
		status.Uploaded, status.ReUploaded, status.Skipped, status.Failed, status.Drained))

	lines = append(lines, fmt.Sprintf("Speed: %s (avg %s)",
		FormatSpeed(status.CurrentSpeed), FormatSpeed(status.AverageSpeed)))

	elapsed := time.Since(status.StartTime)
	lines = append(lines, fmt.Sprintf("Elapsed: %s", FormatDuration(elapsed)))
	lines = append(lines, "")

	return lines
}

// generateFinalDisplay generates the final completion display
func (d *Display) generateFinalDisplay(status Status) []string {
	lines := make([]string, 0)

	elapsed := time.Since(status.StartTime)

	lines = append(lines, "")
	lines = append(lines, "Archive run complete")
	lines = append(lines, "="+strings.Repeat("=", 50))

	lines = append(lines, fmt.Sprintf("Items processed: %d", status.ProcessedItems))
	lines = append(lines, fmt.Sprintf("Data transferred: %s", FormatBytes(status.ProcessedBytes)))
	lines = append(lines, fmt.Sprintf("Uploaded: %d", status.Uploaded))
	lines = append(lines, fmt.Sprintf("Re-uploaded: %d", status.ReUploaded))
	lines = append(lines, fmt.Sprintf("Skipped: %d", status.Skipped))
	lines = append(lines, fmt.Sprintf("Failed: %d", status.Failed))
	lines = append(lines, fmt.Sprintf("Drained: %d", status.Drained))
	lines = append(lines, fmt.Sprintf("Total time: %s", FormatDuration(elapsed)))
	lines = append(lines, fmt.Sprintf("Average speed: %s", FormatSpeed(status.AverageSpeed)))
	lines = append(lines, "")

	return lines
}

// generateProgressBar generates a visual progress bar
func (d *Display) generateProgressBar(percent float64, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(percent * float64(width) / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	return fmt.Sprintf("[%s] %.1f%%", bar, percent)
}

// IsTerminalSupported checks if the terminal supports progress display
func IsTerminalSupported() bool {
	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) == 0 {
		return false
	}

	return true
}
