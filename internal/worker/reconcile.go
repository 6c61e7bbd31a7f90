package worker

// Decision is the reconciliation verdict for one item
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionUpload
	DecisionReUpload
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionUpload:
		return "upload"
	case DecisionReUpload:
		return "reupload"
	default:
		return "unknown"
	}
}

// Decide reconciles one item against the bucket snapshot.
//
// Full-key mode matches {baseKey}.{extension} exactly. Prefix mode treats any
// key starting with baseKey as a match regardless of extension, which lets a
// skip be decided without probing but can false-positive against sibling
// artifacts sharing the stem.
//
// Given a match: skip unless reuploadOnSizeDiff is set and the stored size
// disagrees with a known expected size. An unknown expected size (0) never
// counts as a difference.
func Decide(snap *Snapshot, baseKey, extension string, expectedSize int64, reuploadOnSizeDiff, checkFullKey bool) Decision {
	var storedSize int64
	var matched bool

	if checkFullKey {
		storedSize, matched = snap.Lookup(baseKey + "." + extension)
	} else {
		_, storedSize, matched = snap.MatchPrefix(baseKey)
	}

	if !matched {
		return DecisionUpload
	}
	if !reuploadOnSizeDiff {
		return DecisionSkip
	}
	if expectedSize == 0 || storedSize == expectedSize {
		return DecisionSkip
	}
	return DecisionReUpload
}
