package app

import "yt2minio/internal/worker"

// FailurePolicy decides whether an item-level failure aborts the run
type FailurePolicy interface {
	// OnFailure receives a failed item's result; a non-nil return aborts the run
	OnFailure(result worker.Result) error
}

// FailFast aborts the run on the first item failure
type FailFast struct{}

func (FailFast) OnFailure(result worker.Result) error {
	return result.Err
}
