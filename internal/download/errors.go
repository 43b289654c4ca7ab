package download

import "errors"

var (
	// ErrCanceled is returned by Run when the run was canceled, either
	// through Cancel or the caller's context. It is distinct from ordinary
	// failures: works not yet attempted are not recorded as failed.
	ErrCanceled = errors.New("download: run canceled")

	// ErrRateLimited marks a download failure caused by upstream rate
	// limiting. Download functions wrap it into their errors; the
	// orchestrator reacts with a cooldown pause before the next dispatch.
	ErrRateLimited = errors.New("download: rate limited")

	// ErrAlreadyRunning is returned by Run while another run is active.
	ErrAlreadyRunning = errors.New("download: a run is already active")
)
