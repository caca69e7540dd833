// Package queue runs slow background jobs one at a time in FIFO order. Jobs of
// every kind share a single queue and a single run slot; a job is identified by
// its kind plus the id of the entity it operates on.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/metrics"
	"github.com/kiranshivaraju/mealtrack/internal/notify"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// Job is one unit of work. Payload is captured by value at enqueue time.
type Job[P any] struct {
	Kind     string
	TargetID string
	Payload  P
}

// Runner executes one job. A returned error (or a panic) fails the job; the
// error text becomes the target's recorded error.
type Runner[P any] func(ctx context.Context, job Job[P]) error

type key struct {
	kind   string
	target string
}

// Engine is a single-consumer, multi-producer FIFO of tagged jobs. At most one
// job runs at a time across all kinds, and a (kind, target id) pair appears at
// most once across the queued and running jobs. Job state is in memory only.
type Engine[P any] struct {
	labels   map[string]string
	run      Runner[P]
	notifier notify.Notifier
	now      func() time.Time

	mu       sync.Mutex
	queued   []key
	payloads map[key]P
	running  key
	busy     bool
	errs     map[key]string
	closed   bool

	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewEngine starts an engine. labels maps each job kind to the prefix of its
// user-facing messages ("Meal analysis"); kinds without a label use the kind.
func NewEngine[P any](labels map[string]string, run Runner[P], notifier notify.Notifier) *Engine[P] {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine[P]{
		labels:   labels,
		run:      run,
		notifier: notifier,
		now:      time.Now,
		payloads: make(map[key]P),
		errs:     make(map[key]string),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go e.loop()
	return e
}

// Enqueue schedules a job for (kind, targetID). If that job is already queued
// or running nothing changes and an informational notification is sent.
// Reports whether a new job was accepted.
func (e *Engine[P]) Enqueue(kind, targetID string, payload P) bool {
	if kind == "" || targetID == "" {
		return false
	}
	k := key{kind: kind, target: targetID}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		slog.Warn("enqueue on closed engine", "kind", kind, "target_id", targetID)
		return false
	}
	if e.activeLocked(k) {
		e.mu.Unlock()
		metrics.JobsDeduplicated.WithLabelValues(kind).Inc()
		e.emit(models.LevelInfo, k, e.label(kind)+" already in progress")
		return false
	}

	delete(e.errs, k)
	e.payloads[k] = payload
	idle := !e.busy && len(e.queued) == 0
	e.queued = append(e.queued, k)
	position := len(e.queued)
	e.setDepthLocked()
	e.mu.Unlock()

	metrics.JobsEnqueued.WithLabelValues(kind).Inc()
	if idle {
		e.emit(models.LevelInfo, k, e.label(kind)+" started")
	} else {
		e.emit(models.LevelInfo, k, fmt.Sprintf("%s queued (position %d)", e.label(kind), position))
	}

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// Active reports whether a job for (kind, targetID) is queued or running.
func (e *Engine[P]) Active(kind, targetID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeLocked(key{kind: kind, target: targetID})
}

func (e *Engine[P]) IsQueued(kind, targetID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Contains(e.queued, key{kind: kind, target: targetID})
}

func (e *Engine[P]) IsRunning(kind, targetID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy && e.running == key{kind: kind, target: targetID}
}

// Error returns the last failure recorded for (kind, targetID).
func (e *Engine[P]) Error(kind, targetID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, ok := e.errs[key{kind: kind, target: targetID}]
	return msg, ok
}

// ClearError forgets the recorded failure for (kind, targetID).
func (e *Engine[P]) ClearError(kind, targetID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.errs, key{kind: kind, target: targetID})
}

// Position is the 1-based place of the job among all queued jobs, 0 if not
// queued.
func (e *Engine[P]) Position(kind, targetID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Index(e.queued, key{kind: kind, target: targetID}) + 1
}

// Len is the number of jobs waiting (not counting the running one).
func (e *Engine[P]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queued)
}

// Status is a point-in-time view of (kind, targetID). Completed jobs are not
// retained, so a target whose last job succeeded reports idle.
func (e *Engine[P]) Status(kind, targetID string) models.JobStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := key{kind: kind, target: targetID}
	st := models.JobStatus{TargetID: targetID, Kind: kind, State: models.JobStateIdle}
	if e.busy && e.running == k {
		st.State = models.JobStateRunning
		return st
	}
	if i := slices.Index(e.queued, k); i >= 0 {
		st.State = models.JobStateQueued
		st.Position = i + 1
		return st
	}
	if msg, ok := e.errs[k]; ok {
		st.State = models.JobStateFailed
		st.Error = msg
	}
	return st
}

// Close ends the session: queued jobs are dropped, the running job's context is
// cancelled, and Close waits for the loop to exit. Safe to call more than once.
func (e *Engine[P]) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		dropped := len(e.queued)
		e.queued = nil
		clear(e.payloads)
		e.setDepthLocked()
		e.mu.Unlock()

		e.cancel()
		<-e.done
		if dropped > 0 {
			slog.Info("queue closed with pending jobs", "dropped", dropped)
		}
	})
}

// loop is the only writer of the run slot.
func (e *Engine[P]) loop() {
	defer close(e.done)
	for {
		job, ok := e.next()
		if !ok {
			select {
			case <-e.wake:
				continue
			case <-e.ctx.Done():
				return
			}
		}
		e.execute(job)
	}
}

func (e *Engine[P]) next() (Job[P], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.busy || len(e.queued) == 0 {
		return Job[P]{}, false
	}
	k := e.queued[0]
	e.queued = e.queued[1:]
	e.running = k
	e.busy = true
	e.setDepthLocked()
	return Job[P]{Kind: k.kind, TargetID: k.target, Payload: e.payloads[k]}, true
}

func (e *Engine[P]) execute(job Job[P]) {
	k := key{kind: job.Kind, target: job.TargetID}
	label := e.label(job.Kind)
	start := e.now()
	slog.Info("job started", "kind", job.Kind, "target_id", job.TargetID)

	err := e.safeRun(job)

	e.mu.Lock()
	delete(e.payloads, k)
	if err != nil {
		e.errs[k] = err.Error()
	}
	e.running = key{}
	e.busy = false
	e.mu.Unlock()

	elapsed := e.now().Sub(start)
	metrics.JobDuration.WithLabelValues(job.Kind).Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobsProcessed.WithLabelValues(job.Kind, string(models.JobStateFailed)).Inc()
		slog.Warn("job failed", "kind", job.Kind, "target_id", job.TargetID, "error", err, "duration_ms", elapsed.Milliseconds())
		e.emit(models.LevelError, k, fmt.Sprintf("%s failed: %v", label, err))
		return
	}
	metrics.JobsProcessed.WithLabelValues(job.Kind, string(models.JobStateCompleted)).Inc()
	slog.Info("job completed", "kind", job.Kind, "target_id", job.TargetID, "duration_ms", elapsed.Milliseconds())
	e.emit(models.LevelSuccess, k, label+" complete")
}

// safeRun converts a runner panic into a job failure.
func (e *Engine[P]) safeRun(job Job[P]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job runner", "kind", job.Kind, "target_id", job.TargetID, "error", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.run(e.ctx, job)
}

func (e *Engine[P]) activeLocked(k key) bool {
	return (e.busy && e.running == k) || slices.Contains(e.queued, k)
}

// setDepthLocked publishes the queue depth per kind. Kinds with a label are
// always reported so a drained kind drops back to zero.
func (e *Engine[P]) setDepthLocked() {
	depth := make(map[string]int, len(e.labels))
	for kind := range e.labels {
		depth[kind] = 0
	}
	for _, k := range e.queued {
		depth[k.kind]++
	}
	for kind, n := range depth {
		metrics.QueueDepth.WithLabelValues(kind).Set(float64(n))
	}
}

func (e *Engine[P]) label(kind string) string {
	if l, ok := e.labels[kind]; ok {
		return l
	}
	return kind
}

func (e *Engine[P]) emit(level models.NotificationLevel, k key, message string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(models.Notification{
		Level:    level,
		Kind:     k.kind,
		TargetID: k.target,
		Message:  message,
		At:       e.now().UTC(),
	})
}
