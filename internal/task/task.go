// Package task owns the download lifecycle: option resolution, metadata
// probing, output path planning, transfer execution with pause/cancel
// control, authorization retry, and partial-artifact cleanup.
package task

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hmehl/vidfetch/internal/fsutil"
	"github.com/hmehl/vidfetch/internal/metadata"
	"github.com/hmehl/vidfetch/internal/planner"
	"github.com/hmehl/vidfetch/internal/provider"
	"github.com/rs/zerolog/log"
)

// ErrCancelled unwinds a provider transfer after a user cancel. It wraps
// provider.ErrAborted, the abort contract of a progress callback, and is
// not reported as a failure.
var ErrCancelled = fmt.Errorf("%w: cancelled by user", provider.ErrAborted)

// Phase is the task lifecycle state.
type Phase int32

const (
	PhasePending Phase = iota
	PhaseResolving
	PhaseDownloading
	PhaseFinished
	PhaseErrored
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "Waiting"
	case PhaseResolving:
		return "Resolving"
	case PhaseDownloading:
		return "Downloading"
	case PhaseFinished:
		return "Finished"
	case PhaseErrored:
		return "Error"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseErrored || p == PhaseCancelled
}

// Request is the input contract for one download.
type Request struct {
	URL            string
	TargetFolder   string
	Kind           planner.OutputKind
	VideoQuality   string // one of planner.VideoQualities; ignored for AudioOnly
	AudioBitrate   string // one of planner.AudioBitrates; ignored for video-only
	ForcedBaseName string // used verbatim as the file stem when non-empty
	Cached         *metadata.Result
	Tuning         planner.Tuning
}

// Events are the notifications a task emits toward the presentation
// layer. Nil fields are skipped.
type Events struct {
	TitleResolved func(title string)
	SizeResolved  func(label string)
	Progress      func(percent float64, status string)
	Finished      func()
	Failed        func(message string)
	Cancelled     func()
}

// Task runs a single transfer. All mutable state is owned by the running
// goroutine except the cooperative pause/cancel flags and the phase, which
// are atomics so the controlling side and the executing side agree.
type Task struct {
	id     string
	req    Request
	prov   provider.Provider
	events Events

	phase        atomic.Int32
	progressBits atomic.Uint64 // math.Float64bits of the current percent
	paused       atomic.Bool
	cancelled    atomic.Bool
	usedFallback atomic.Bool

	// pauseMu/pauseCond park the progress callback while paused; Resume
	// and Cancel broadcast to wake it.
	pauseMu   sync.Mutex
	pauseCond *sync.Cond

	mu         sync.Mutex
	title      string
	sizeLabel  string
	outputPath string
}

// Snapshot is the display-facing view of a task.
type Snapshot struct {
	ID        string
	Title     string
	Phase     Phase
	Progress  float64
	SizeLabel string
}

func New(id string, req Request, prov provider.Provider, events Events) *Task {
	t := &Task{id: id, req: req, prov: prov, events: events}
	t.pauseCond = sync.NewCond(&t.pauseMu)
	t.sizeLabel = metadata.SizeUnknown
	return t
}

func (t *Task) ID() string { return t.id }

func (t *Task) Phase() Phase { return Phase(t.phase.Load()) }

func (t *Task) Progress() float64 {
	return math.Float64frombits(t.progressBits.Load())
}

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:        t.id,
		Title:     t.title,
		Phase:     t.Phase(),
		Progress:  t.Progress(),
		SizeLabel: t.sizeLabel,
	}
}

// Pause suspends progress at the next callback. No-op on terminal tasks.
func (t *Task) Pause() {
	if t.Phase().Terminal() {
		return
	}
	t.pauseMu.Lock()
	t.paused.Store(true)
	t.pauseMu.Unlock()
}

// Resume lifts a pause and wakes the parked callback. No-op on terminal
// tasks.
func (t *Task) Resume() {
	if t.Phase().Terminal() {
		return
	}
	t.pauseMu.Lock()
	t.paused.Store(false)
	t.pauseMu.Unlock()
	t.pauseCond.Broadcast()
}

// Paused reports whether the task is currently pause-flagged.
func (t *Task) Paused() bool { return t.paused.Load() }

// Cancel requests a cooperative abort; it takes effect at the next
// progress callback, not instantaneously. A paused task is woken so the
// cancel is observed without waiting for a resume. No-op on terminal
// tasks.
func (t *Task) Cancel() {
	if t.Phase().Terminal() {
		return
	}
	t.pauseMu.Lock()
	t.cancelled.Store(true)
	t.pauseMu.Unlock()
	t.pauseCond.Broadcast()
}

// Run executes the task to a terminal phase. It blocks and is meant to be
// called once, on its own goroutine.
func (t *Task) Run(ctx context.Context) {
	bundle := planner.Resolve(t.req.Kind, t.req.VideoQuality, t.req.AudioBitrate, t.req.Tuning)

	meta := t.req.Cached
	if meta == nil {
		if !t.transition(PhaseResolving) {
			return
		}
		res, usedFallback, err := metadata.Probe(ctx, t.prov, t.req.URL, bundle)
		if err != nil {
			t.fail(err)
			return
		}
		if usedFallback {
			t.usedFallback.Store(true)
			bundle.Headers = provider.FallbackHeaders()
		}
		meta = res
	}

	title := meta.Title
	if title == "" {
		title = t.req.URL
	}
	t.setTitle(title)
	t.setSizeLabel(meta.SizeLabel)

	if t.req.Kind.NeedsVideo() && !meta.HasVideo && t.req.Cached == nil {
		bundle = planner.RelaxToSingleStream(bundle)
	}

	base := t.req.ForcedBaseName
	if base == "" {
		base = fsutil.Sanitize(title)
	}
	outputPath := fsutil.ResolveUnique(t.req.TargetFolder, base, t.req.Kind.Ext())
	t.setOutputPath(outputPath)
	bundle.OutputPath = outputPath

	if t.cancelled.Load() {
		t.finishCancelled()
		return
	}
	if !t.transition(PhaseDownloading) {
		return
	}
	log.Debug().Str("op", "task/run").Str("id", t.id).
		Str("selector", bundle.FormatSelector).Str("output", outputPath).
		Msg("Starting transfer")

	err := t.transfer(ctx, bundle)
	switch {
	case err == nil:
		t.storeProgress(100)
		if t.transition(PhaseFinished) {
			t.emitProgress(100, PhaseFinished.String())
			if t.events.Finished != nil {
				t.events.Finished()
			}
		}
	case errors.Is(err, ErrCancelled):
		t.finishCancelled()
	default:
		t.fail(err)
	}
}

// transfer runs the provider call, retrying exactly once with fallback
// headers when the failure signals an authorization denial and the
// fallback has not been used yet.
func (t *Task) transfer(ctx context.Context, bundle provider.OptionBundle) error {
	err := t.prov.Transfer(ctx, t.req.URL, bundle, t.onProgress)
	if err == nil || errors.Is(err, ErrCancelled) {
		return err
	}
	if provider.IsAuthDenied(err) && !t.usedFallback.Swap(true) {
		log.Debug().Str("op", "task/transfer").Str("id", t.id).Err(err).
			Msg("Authorization denied, retrying transfer with fallback headers")
		bundle.Headers = provider.FallbackHeaders()
		t.storeProgress(0)
		return t.prov.Transfer(ctx, t.req.URL, bundle, t.onProgress)
	}
	return err
}

// onProgress is invoked by the provider during the transfer. It is the
// only suspension point of a task: it parks while paused and returns
// ErrCancelled so the provider aborts when a cancel was requested.
func (t *Task) onProgress(ev provider.ProgressEvent) error {
	t.pauseMu.Lock()
	for t.paused.Load() && !t.cancelled.Load() {
		t.pauseCond.Wait()
	}
	t.pauseMu.Unlock()
	if t.cancelled.Load() {
		return ErrCancelled
	}
	if t.Phase().Terminal() {
		return nil
	}
	switch ev.Status {
	case provider.StatusFinished:
		t.storeProgress(100)
		t.emitProgress(100, PhaseFinished.String())
	default:
		var pct float64
		if ev.Total > 0 {
			pct = float64(ev.Downloaded) / float64(ev.Total) * 100
		}
		// Progress never moves backwards within one attempt.
		if cur := t.Progress(); pct < cur {
			pct = cur
		}
		t.storeProgress(pct)
		t.emitProgress(pct, PhaseDownloading.String())
	}
	return nil
}

func (t *Task) fail(err error) {
	if !t.transition(PhaseErrored) {
		return
	}
	fsutil.RemovePartials(t.getOutputPath())
	log.Debug().Str("op", "task/fail").Str("id", t.id).Err(err).Msg("Task errored")
	if t.events.Failed != nil {
		t.events.Failed(err.Error())
	}
}

func (t *Task) finishCancelled() {
	if !t.transition(PhaseCancelled) {
		return
	}
	fsutil.RemovePartials(t.getOutputPath())
	if t.events.Cancelled != nil {
		t.events.Cancelled()
	}
}

// transition moves to a new phase unless a terminal phase was reached
// first; whichever terminal transition lands first is final.
func (t *Task) transition(to Phase) bool {
	for {
		cur := Phase(t.phase.Load())
		if cur.Terminal() {
			return false
		}
		if t.phase.CompareAndSwap(int32(cur), int32(to)) {
			return true
		}
	}
}

func (t *Task) storeProgress(pct float64) {
	t.progressBits.Store(math.Float64bits(pct))
}

func (t *Task) emitProgress(pct float64, status string) {
	if t.events.Progress != nil {
		t.events.Progress(pct, status)
	}
}

func (t *Task) setTitle(title string) {
	t.mu.Lock()
	t.title = title
	t.mu.Unlock()
	if t.events.TitleResolved != nil {
		t.events.TitleResolved(title)
	}
}

func (t *Task) setSizeLabel(label string) {
	t.mu.Lock()
	t.sizeLabel = label
	t.mu.Unlock()
	if t.events.SizeResolved != nil {
		t.events.SizeResolved(label)
	}
}

func (t *Task) setOutputPath(path string) {
	t.mu.Lock()
	t.outputPath = path
	t.mu.Unlock()
}

func (t *Task) getOutputPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outputPath
}
