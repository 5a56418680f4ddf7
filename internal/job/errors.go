package job

import "errors"

// Failure kinds reported by the controller. Returned errors wrap one of
// these; match them with errors.Is.
var (
	ErrMissingSource = errors.New("no source video selected")
	ErrProbe         = errors.New("probe failed")
	ErrSubmission    = errors.New("job submission failed")
	ErrJobInProgress = errors.New("a job is already in progress")
	ErrStalledJob    = errors.New("job stalled: no completion before timeout")
	ErrTranscode     = errors.New("transcode failed")
	ErrCancelled     = errors.New("job cancelled")
)
