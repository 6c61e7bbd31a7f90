package worker

import (
	"sort"
	"strings"

	"yt2minio/internal/storage"
)

// Snapshot is the destination bucket's object listing materialized once at
// run start. It is read-only after construction; every reconciliation
// decision in a run is made against the same snapshot, so external writers
// to the bucket are not observed mid-run.
type Snapshot struct {
	keys  []string
	sizes map[string]int64
}

// NewSnapshot builds a snapshot from a completed bucket listing
func NewSnapshot(objects []storage.ObjectInfo) *Snapshot {
	s := &Snapshot{
		keys:  make([]string, 0, len(objects)),
		sizes: make(map[string]int64, len(objects)),
	}

	for _, obj := range objects {
		if _, ok := s.sizes[obj.Key]; !ok {
			s.keys = append(s.keys, obj.Key)
		}
		s.sizes[obj.Key] = obj.Size
	}
	// Listings arrive in lexical order already; sorting makes that a
	// guarantee rather than an assumption
	sort.Strings(s.keys)

	return s
}

// Len returns the number of distinct keys in the snapshot
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Lookup returns the stored size for an exact key match
func (s *Snapshot) Lookup(key string) (int64, bool) {
	size, ok := s.sizes[key]
	return size, ok
}

// MatchPrefix returns the lexically first key that starts with prefix, so
// repeated runs always resolve a prefix against the same object
func (s *Snapshot) MatchPrefix(prefix string) (string, int64, bool) {
	i := sort.SearchStrings(s.keys, prefix)
	if i < len(s.keys) && strings.HasPrefix(s.keys[i], prefix) {
		key := s.keys[i]
		return key, s.sizes[key], true
	}
	return "", 0, false
}
