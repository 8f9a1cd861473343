package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/hmehl/vidfetch/internal/provider"
	"github.com/rs/zerolog/log"
)

// ErrInvalidRequest rejects a submission before any task is created.
var ErrInvalidRequest = errors.New("invalid download request")

// RegistryEvents relays task notifications upward with the task id
// attached. Nil fields are skipped; the registry holds no display logic.
type RegistryEvents struct {
	TitleResolved func(id, title string)
	SizeResolved  func(id, label string)
	Progress      func(id string, percent float64, status string)
	Finished      func(id string)
	Failed        func(id, message string)
	Cancelled     func(id string)
}

// Registry tracks the set of running tasks and routes control commands.
// Entries are never removed; terminal tasks simply stop moving.
type Registry struct {
	prov   provider.Provider
	events RegistryEvents

	mu    sync.RWMutex
	tasks map[string]*Task
	order []string
	wg    sync.WaitGroup
}

func NewRegistry(prov provider.Provider, events RegistryEvents) *Registry {
	return &Registry{
		prov:   prov,
		events: events,
		tasks:  make(map[string]*Task),
	}
}

// Submit validates the request, creates a task and starts it on its own
// goroutine. The returned id addresses the task in later commands.
func (r *Registry) Submit(ctx context.Context, req Request) (string, error) {
	if err := validate(&req); err != nil {
		return "", err
	}
	id := uuid.New().String()
	t := New(id, req, r.prov, r.taskEvents(id))

	r.mu.Lock()
	r.tasks[id] = t
	r.order = append(r.order, id)
	r.mu.Unlock()

	log.Debug().Str("op", "task/registry").Str("id", id).Str("url", req.URL).Msg("Task submitted")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t.Run(ctx)
	}()
	return id, nil
}

// Pause suspends the identified task. Unknown or terminal ids are a no-op.
func (r *Registry) Pause(id string) {
	if t := r.get(id); t != nil {
		t.Pause()
	}
}

// Resume lifts a pause. Unknown or terminal ids are a no-op.
func (r *Registry) Resume(id string) {
	if t := r.get(id); t != nil {
		t.Resume()
	}
}

// Cancel requests a cooperative abort. Unknown or terminal ids are a no-op.
func (r *Registry) Cancel(id string) {
	if t := r.get(id); t != nil {
		t.Cancel()
	}
}

// OverallProgress is the arithmetic mean of progress across all tasks not
// in the Cancelled phase, or 0 when no such tasks exist.
func (r *Registry) OverallProgress() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum float64
	var count int
	for _, t := range r.tasks {
		if t.Phase() == PhaseCancelled {
			continue
		}
		sum += t.Progress()
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Snapshots returns display views of all tasks in submission order.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id].Snapshot())
	}
	return out
}

// Wait blocks until every submitted task has reached a terminal phase.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) get(id string) *Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[id]
}

func (r *Registry) taskEvents(id string) Events {
	return Events{
		TitleResolved: func(title string) {
			if r.events.TitleResolved != nil {
				r.events.TitleResolved(id, title)
			}
		},
		SizeResolved: func(label string) {
			if r.events.SizeResolved != nil {
				r.events.SizeResolved(id, label)
			}
		},
		Progress: func(percent float64, status string) {
			if r.events.Progress != nil {
				r.events.Progress(id, percent, status)
			}
		},
		Finished: func() {
			if r.events.Finished != nil {
				r.events.Finished(id)
			}
		},
		Failed: func(message string) {
			if r.events.Failed != nil {
				r.events.Failed(id, message)
			}
		},
		Cancelled: func() {
			if r.events.Cancelled != nil {
				r.events.Cancelled(id)
			}
		},
	}
}

func validate(req *Request) error {
	if req.URL == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidRequest)
	}
	if req.TargetFolder == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("%w: no usable download folder", ErrInvalidRequest)
		}
		req.TargetFolder = home
	}
	if info, err := os.Stat(req.TargetFolder); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: download folder is not a directory", ErrInvalidRequest)
	}
	return nil
}
