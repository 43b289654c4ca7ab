package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/handiism/artwork-downloader/internal/discovery"
	"github.com/handiism/artwork-downloader/internal/filter"
	"github.com/handiism/artwork-downloader/internal/model"
)

// errRunDone signals internally that the completion condition fired.
var errRunDone = errors.New("download: run complete")

// Config tunes the orchestrator.
type Config struct {
	// Concurrency bounds the number of outstanding download tasks.
	Concurrency int

	// DispatchDelay is the politeness pause between dispatches within a
	// batch.
	DispatchDelay time.Duration

	// EmptyBatchDelay is the pause after a batch with nothing available,
	// so a run full of filtered pages does not hammer the source.
	EmptyBatchDelay time.Duration

	// Cooldown is the pause taken before the next dispatch after an
	// upstream rate-limit signal.
	Cooldown time.Duration
}

// DefaultConfig returns the tuning used by the CLI and TUI.
func DefaultConfig() Config {
	return Config{
		Concurrency:     5,
		DispatchDelay:   500 * time.Millisecond,
		EmptyBatchDelay: time.Second,
		Cooldown:        30 * time.Second,
	}
}

// Collaborators are the externally supplied functions a run drives. Parse
// and Download are required; the rest are optional.
type Collaborators struct {
	// Parse resolves a candidate id to full metadata.
	Parse func(ctx context.Context, id int64) (*model.Artwork, error)

	// Download fetches one work. The task id names the attempt in events
	// and in the abort callback; the returned id echoes the work id on
	// success. Rate-limit failures wrap ErrRateLimited.
	Download func(ctx context.Context, art *model.Artwork, taskID string) (int64, error)

	// OnSuccess runs after each successful download, typically recording
	// the work in the history store. The orchestrator itself never
	// touches the store.
	OnSuccess func(art *model.Artwork, taskID string)

	// OnAbort receives the task ids still in flight when a run is
	// canceled, so the caller can cancel the underlying transfers.
	OnAbort func(taskIDs []string)

	// OnEvent receives the run's log stream.
	OnEvent func(Event)
}

// Request describes one orchestrated run.
type Request struct {
	// Source selects the discovery function by registry id.
	Source string

	// Args are passed through to the discovery function.
	Args []string

	// Pages limits discovery to a page range. Nil means all pages.
	Pages *discovery.PageRange

	// Filter classifies parsed works. Nil disables filtering entirely;
	// note that a non-nil pipeline with no include predicates rejects
	// every work.
	Filter *filter.Pipeline

	// InlineFilter applies Filter during discovery as the validity check
	// instead of after metadata parsing, saving a second pass when the
	// listing already carries enough metadata.
	InlineFilter bool
}

// outcome is one task settlement.
type outcome struct {
	taskID string
	workID int64
	err    error
}

// Manager is the batch-download orchestrator: it drives a discovery
// sequence, filters candidates, dispatches download tasks under a fixed
// concurrency budget with politeness delays and rate-limit cooldowns, and
// tracks the run's counters.
type Manager struct {
	cfg      Config
	registry *discovery.Registry
	collab   Collaborators
	logger   *slog.Logger

	mu        sync.RWMutex
	phase     Phase
	total     int
	succeeded []int64
	failed    []Failure
	excluded  []int64
	inFlight  map[string]int64
	cooldown  bool
	completed bool

	completeCh chan struct{}
	cancel     context.CancelFunc
}

// NewManager creates an orchestrator. Parse and Download collaborators
// must be set before Run is called.
func NewManager(cfg Config, registry *discovery.Registry, collab Collaborators, logger *slog.Logger) *Manager {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Manager{
		cfg:      cfg,
		registry: registry,
		collab:   collab,
		logger:   logger,
		phase:    PhaseIdle,
		total:    -1,
	}
}

// Run executes one orchestrated run and blocks until it reaches a
// terminal state. It returns nil on completion, ErrCanceled when the run
// was canceled, and the underlying error when setup or discovery failed.
// Only one run may be active at a time.
func (m *Manager) Run(ctx context.Context, req Request) error {
	runCtx, cancel, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	m.logger.Info("run starting", "source", req.Source, "args", req.Args)

	seq, err := m.setup(runCtx, req)
	if err != nil {
		return m.failSetup(err)
	}
	defer seq.Close()

	taskDone := make(chan outcome, m.cfg.Concurrency)

	err = m.loop(runCtx, req, seq, taskDone)
	switch {
	case err == nil || errors.Is(err, errRunDone):
		return m.finishCompleted()
	case errors.Is(err, ErrCanceled):
		if m.isCompleted() {
			// Completion and cancellation raced; the run did finish.
			return m.finishCompleted()
		}
		aborted := m.shutdown(seq, PhaseAborted)
		m.logger.Info("run canceled", "aborted", len(aborted))
		m.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Run canceled, %d in-flight tasks aborted", len(aborted))})
		return ErrCanceled
	default:
		m.shutdown(seq, PhaseErrored)
		m.logger.Error("run failed", "error", err)
		m.emit(Event{Kind: EventError, Message: fmt.Sprintf("Run error: %v", err)})
		return err
	}
}

// Cancel requests cancellation of the active run. Canceling an already
// finished run is a no-op.
func (m *Manager) Cancel() {
	m.mu.RLock()
	cancel := m.cancel
	running := m.phase == PhaseRunning
	m.mu.RUnlock()

	if running && cancel != nil {
		cancel()
	}
}

// Running reports whether a run is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase == PhaseRunning
}

// Snapshot returns a copy of the current run state. Counters from a
// finished run stay readable until the next run starts.
func (m *Manager) Snapshot() RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return RunState{
		Total:     m.total,
		Succeeded: append([]int64(nil), m.succeeded...),
		Failed:    append([]Failure(nil), m.failed...),
		Excluded:  append([]int64(nil), m.excluded...),
		Running:   m.phase == PhaseRunning,
		Phase:     m.phase,
	}
}

// begin resets all run state and claims the manager for a new run.
func (m *Manager) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseRunning {
		return nil, nil, ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.phase = PhaseRunning
	m.total = -1
	m.succeeded = nil
	m.failed = nil
	m.excluded = nil
	m.inFlight = make(map[string]int64)
	m.cooldown = false
	m.completed = false
	m.completeCh = make(chan struct{})
	m.cancel = cancel

	return runCtx, cancel, nil
}

// setup resolves the discovery function and builds the sequence. Any
// error here is fatal and aborts the run before a single batch is pulled.
func (m *Manager) setup(ctx context.Context, req Request) (discovery.Sequence, error) {
	if m.collab.Parse == nil || m.collab.Download == nil {
		return nil, errors.New("download: parse and download collaborators are required")
	}

	fn, err := m.registry.Lookup(req.Source)
	if err != nil {
		return nil, err
	}
	if err := req.Pages.Validate(); err != nil {
		return nil, err
	}

	var validity discovery.ValidityFunc
	if req.InlineFilter && req.Filter != nil {
		validity = req.Filter.Validity()
	}

	return fn(ctx, req.Pages, validity, req.Args...)
}

func (m *Manager) failSetup(err error) error {
	m.mu.Lock()
	m.phase = PhaseErrored
	m.mu.Unlock()

	m.logger.Error("run setup failed", "error", err)
	m.emit(Event{Kind: EventError, Message: fmt.Sprintf("Setup error: %v", err)})
	return err
}

// loop pulls discovery batches until the sequence is exhausted or an
// early-exit signal fires.
func (m *Manager) loop(ctx context.Context, req Request, seq discovery.Sequence, taskDone chan outcome) error {
	for {
		batch, err := m.pullBatch(ctx, seq, taskDone)
		if err != nil {
			return err
		}
		if batch == nil {
			// Exhausted. Let the stragglers settle, then reconcile the
			// total with what discovery actually yielded: a ranged run
			// stops short of the source-reported count.
			if err := m.drain(ctx, taskDone); err != nil {
				return err
			}
			m.finalizeTotal()
			return nil
		}

		m.observeBatch(batch)

		if len(batch.Available) == 0 {
			if err := m.wait(ctx, m.cfg.EmptyBatchDelay, taskDone); err != nil {
				return err
			}
			continue
		}

		if err := m.processBatch(ctx, req, batch, taskDone); err != nil {
			return err
		}
	}
}

// pullBatch races the sequence's next batch against completion,
// cancellation and arriving settlements.
func (m *Manager) pullBatch(ctx context.Context, seq discovery.Sequence, taskDone <-chan outcome) (*discovery.Batch, error) {
	if err := m.interrupted(ctx); err != nil {
		return nil, err
	}

	type result struct {
		batch *discovery.Batch
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		b, err := seq.Next(ctx)
		resCh <- result{b, err}
	}()

	for {
		select {
		case <-m.completeCh:
			return nil, errRunDone
		case <-ctx.Done():
			return nil, ErrCanceled
		case out := <-taskDone:
			m.settle(out)
		case res := <-resCh:
			if res.err != nil {
				if ctx.Err() != nil {
					return nil, ErrCanceled
				}
				return nil, fmt.Errorf("discovery: %w", res.err)
			}
			return res.batch, nil
		}
	}
}

// observeBatch folds a batch into the run state: the total estimate grows
// monotonically, invalid ids go straight to excluded and unavailable ids
// to failed, neither of which is ever parsed.
func (m *Manager) observeBatch(batch *discovery.Batch) {
	m.mu.Lock()
	if batch.Total > m.total {
		m.total = batch.Total
	}
	m.mu.Unlock()

	m.logger.Debug("batch pulled",
		"page", batch.Page,
		"available", len(batch.Available),
		"invalid", len(batch.Invalid),
		"unavailable", len(batch.Unavailable),
		"total", batch.Total)
	m.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Page %d: %d available, %d filtered out, %d unavailable (total %d)",
		batch.Page, len(batch.Available), len(batch.Invalid), len(batch.Unavailable), batch.Total)})

	for _, id := range batch.Invalid {
		m.exclude(id)
	}
	for _, id := range batch.Unavailable {
		m.fail(id, "masked by the source")
	}
}

// processBatch walks a batch's available ids in order: drain the wave
// when the budget is full, honor a pending cooldown, parse, filter, and
// dispatch.
func (m *Manager) processBatch(ctx context.Context, req Request, batch *discovery.Batch, taskDone chan outcome) error {
	for i, id := range batch.Available {
		if m.inFlightCount() >= m.cfg.Concurrency {
			if err := m.drain(ctx, taskDone); err != nil {
				return err
			}
		}

		if m.takeCooldown() {
			m.logger.Warn("rate limited", "cooldown", m.cfg.Cooldown)
			m.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Rate limited, pausing for %s", m.cfg.Cooldown)})
			if err := m.wait(ctx, m.cfg.Cooldown, taskDone); err != nil {
				return err
			}
		}

		art, err := m.collab.Parse(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ErrCanceled
			}
			// Parse failures never abort the run.
			m.fail(id, fmt.Sprintf("parse: %v", err))
			continue
		}

		if req.Filter != nil && !req.InlineFilter && !req.Filter.Evaluate(ctx, art) {
			m.exclude(id)
			continue
		}

		atCap := m.dispatch(ctx, art, taskDone)

		if !atCap && i < len(batch.Available)-1 {
			if err := m.wait(ctx, m.cfg.DispatchDelay, taskDone); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch starts one download task and reports whether the budget is now
// full.
func (m *Manager) dispatch(ctx context.Context, art *model.Artwork, taskDone chan<- outcome) bool {
	taskID := uuid.NewString()

	m.mu.Lock()
	m.inFlight[taskID] = art.ID
	atCap := len(m.inFlight) >= m.cfg.Concurrency
	m.mu.Unlock()

	m.logger.Debug("task dispatched", "work", art.ID, "task", taskID)
	m.emit(Event{Kind: EventAdd, WorkID: art.ID, TaskID: taskID, Message: fmt.Sprintf("Queued %d: %s", art.ID, art.Title)})

	go func() {
		workID, err := m.collab.Download(ctx, art, taskID)
		if err != nil {
			workID = art.ID
		} else if m.collab.OnSuccess != nil {
			m.collab.OnSuccess(art, taskID)
		}
		// The buffer holds a full wave, so this never blocks even when
		// the run stopped consuming.
		taskDone <- outcome{taskID: taskID, workID: workID, err: err}
	}()

	return atCap
}

// settle folds one task outcome into the run state. Outcomes landing
// after an abort are ignored.
func (m *Manager) settle(out outcome) {
	m.mu.Lock()
	if _, ok := m.inFlight[out.taskID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.inFlight, out.taskID)

	var ev Event
	if out.err != nil {
		if errors.Is(out.err, ErrRateLimited) {
			m.cooldown = true
		}
		m.failed = append(m.failed, Failure{ID: out.workID, Reason: out.err.Error()})
		ev = Event{Kind: EventFail, WorkID: out.workID, TaskID: out.taskID, Message: fmt.Sprintf("Failed %d: %v", out.workID, out.err)}
	} else {
		m.succeeded = append(m.succeeded, out.workID)
		ev = Event{Kind: EventComplete, WorkID: out.workID, TaskID: out.taskID, Message: fmt.Sprintf("Downloaded %d", out.workID)}
	}
	m.checkCompleteLocked()
	m.mu.Unlock()

	m.emit(ev)
}

// fail records a work as failed without a task having run.
func (m *Manager) fail(id int64, reason string) {
	m.mu.Lock()
	m.failed = append(m.failed, Failure{ID: id, Reason: reason})
	m.checkCompleteLocked()
	m.mu.Unlock()

	m.emit(Event{Kind: EventFail, WorkID: id, Message: fmt.Sprintf("Failed %d: %s", id, reason)})
}

// exclude records a work as filtered out.
func (m *Manager) exclude(id int64) {
	m.mu.Lock()
	m.excluded = append(m.excluded, id)
	m.checkCompleteLocked()
	m.mu.Unlock()
}

// wait sleeps for d while continuing to settle finished tasks, returning
// early when the run completes or is canceled.
func (m *Manager) wait(ctx context.Context, d time.Duration, taskDone <-chan outcome) error {
	if err := m.interrupted(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-m.completeCh:
			return errRunDone
		case <-ctx.Done():
			return ErrCanceled
		case out := <-taskDone:
			m.settle(out)
		case <-timer.C:
			return nil
		}
	}
}

// drain settles outcomes until no tasks are in flight.
func (m *Manager) drain(ctx context.Context, taskDone <-chan outcome) error {
	for m.inFlightCount() > 0 {
		if err := m.interrupted(ctx); err != nil {
			return err
		}
		select {
		case <-m.completeCh:
			return errRunDone
		case <-ctx.Done():
			return ErrCanceled
		case out := <-taskDone:
			m.settle(out)
		}
	}
	return nil
}

// interrupted reports completion or cancellation without blocking,
// preferring completion when both fired.
func (m *Manager) interrupted(ctx context.Context) error {
	select {
	case <-m.completeCh:
		return errRunDone
	default:
	}
	if ctx.Err() != nil {
		return ErrCanceled
	}
	return nil
}

// checkCompleteLocked fires the completion signal once every known
// candidate is accounted for. Caller holds the write lock.
func (m *Manager) checkCompleteLocked() {
	if m.completed || m.total < 0 {
		return
	}
	if len(m.succeeded)+len(m.failed)+len(m.excluded) >= m.total {
		m.completed = true
		close(m.completeCh)
	}
}

// finalizeTotal reconciles the total with the candidates discovery
// actually yielded, firing completion once the last settlement is in.
func (m *Manager) finalizeTotal() {
	m.mu.Lock()
	n := len(m.succeeded) + len(m.failed) + len(m.excluded)
	if m.total != n {
		m.logger.Debug("total reconciled", "reported", m.total, "observed", n)
		m.total = n
	}
	m.checkCompleteLocked()
	m.mu.Unlock()
}

func (m *Manager) finishCompleted() error {
	m.mu.Lock()
	m.phase = PhaseCompleted
	s, f, e := len(m.succeeded), len(m.failed), len(m.excluded)
	m.mu.Unlock()

	m.logger.Info("run complete", "succeeded", s, "failed", f, "excluded", e)
	m.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Run complete: %d downloaded, %d failed, %d excluded", s, f, e)})
	return nil
}

// shutdown stops the sequence, clears the in-flight set and notifies the
// abort callback. Used by both the cancellation and the unexpected-error
// paths.
func (m *Manager) shutdown(seq discovery.Sequence, phase Phase) []string {
	seq.Close()

	m.mu.Lock()
	ids := make([]string, 0, len(m.inFlight))
	for taskID := range m.inFlight {
		ids = append(ids, taskID)
	}
	m.inFlight = make(map[string]int64)
	m.phase = phase
	m.mu.Unlock()

	if m.collab.OnAbort != nil {
		m.collab.OnAbort(ids)
	}
	return ids
}

func (m *Manager) isCompleted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completed
}

func (m *Manager) inFlightCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.inFlight)
}

// takeCooldown consumes a pending rate-limit flag.
func (m *Manager) takeCooldown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cooldown
	m.cooldown = false
	return c
}

func (m *Manager) emit(event Event) {
	if m.collab.OnEvent != nil {
		m.collab.OnEvent(event)
	}
}
