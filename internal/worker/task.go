package worker

// Item represents one enumerated video to archive
type Item struct {
	SourceURL string
	Title     string
	BaseKey   string
}

// Outcome classifies how an item ended up
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeUploaded
	OutcomeReUploaded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeReUploaded:
		return "reuploaded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the per-item verdict reported back to the driver
type Result struct {
	Item    Item
	Outcome Outcome
	// Key is the object key written, matched, or intended
	Key   string
	Bytes int64
	Err   error
}

// Config contains processor configuration
type Config struct {
	Bucket             string
	PartSize           int64
	ReuploadOnSizeDiff bool
	CheckFullKey       bool
	DryRun             bool
}
