package download

// EventKind indicates the type of a run event.
type EventKind int

const (
	// EventInfo is a general progress note.
	EventInfo EventKind = iota

	// EventAdd marks a download task being dispatched.
	EventAdd

	// EventComplete marks a task settling successfully.
	EventComplete

	// EventFail marks a work failing: masked upstream, metadata parse
	// error, or download error.
	EventFail

	// EventError marks a run-level error.
	EventError
)

// String returns the lower-case name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventInfo:
		return "info"
	case EventAdd:
		return "add"
	case EventComplete:
		return "complete"
	case EventFail:
		return "fail"
	case EventError:
		return "error"
	default:
		return "info"
	}
}

// Event is one entry in a run's log stream.
type Event struct {
	Kind    EventKind
	Message string

	// WorkID is the affected work, zero when the event is not tied to one.
	WorkID int64

	// TaskID is set on dispatch and settlement events.
	TaskID string
}

// Phase is the orchestrator's lifecycle state. A run moves from Idle
// through Running into one terminal phase; the next run resets the phase
// at its start, so final counters stay readable in between.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseAborted
	PhaseErrored
)

// String returns the lower-case name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	case PhaseErrored:
		return "errored"
	default:
		return "idle"
	}
}

// Failure pairs a failed work id with the reason recorded for it.
type Failure struct {
	ID     int64
	Reason string
}

// RunState is a point-in-time snapshot of a run's observable counters.
//
// While a run is active and not canceled, Total eventually equals
// len(Succeeded) + len(Failed) + len(Excluded); that equality is the
// run-completion condition.
type RunState struct {
	// Total is the best-known candidate count, -1 until the first batch
	// arrives.
	Total int

	// Succeeded holds work ids whose download settled successfully, in
	// completion order.
	Succeeded []int64

	// Failed holds failed works with reasons, in completion order.
	Failed []Failure

	// Excluded holds work ids rejected by classification or filtering.
	Excluded []int64

	// Running reports whether a run is active.
	Running bool

	// Phase is the current lifecycle state.
	Phase Phase
}
