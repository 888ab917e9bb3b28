// Package runner tracks the background generation tasks a playbook fans out.
// Tasks are grouped by playbook so deletion can cancel everything still in
// flight for that aggregate without touching its siblings.
package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type group struct {
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
}

type Runner struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	sem    *semaphore.Weighted
	base   context.Context
	cancel context.CancelFunc
	groups map[string]*group
}

// New returns a Runner bounding concurrent tasks to limit. limit <= 0 means
// unbounded.
func New(limit int64) *Runner {
	base, cancel := context.WithCancel(context.Background())
	r := &Runner{
		base:   base,
		cancel: cancel,
		groups: map[string]*group{},
	}
	if limit > 0 {
		r.sem = semaphore.NewWeighted(limit)
	}
	return r
}

// Launch runs task in a goroutine under the playbook's group context. The
// context passed to task is cancelled when the playbook group is cancelled or
// the runner shuts down.
func (r *Runner) Launch(playbookID string, task func(ctx context.Context)) {
	r.mu.Lock()
	g, ok := r.groups[playbookID]
	if !ok {
		ctx, cancel := context.WithCancel(r.base)
		g = &group{ctx: ctx, cancel: cancel}
		r.groups[playbookID] = g
	}
	g.refs++
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(playbookID, g)
		if r.sem != nil {
			if err := r.sem.Acquire(g.ctx, 1); err != nil {
				return
			}
			defer r.sem.Release(1)
		}
		if g.ctx.Err() != nil {
			return
		}
		task(g.ctx)
	}()
}

func (r *Runner) release(playbookID string, g *group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.refs--
	if g.refs == 0 && r.groups[playbookID] == g {
		g.cancel()
		delete(r.groups, playbookID)
	}
}

// Cancel cancels every in-flight task for the playbook. Completions of
// already-running tasks become no-ops through their own guards; this just
// stops them from waiting on the generation backend.
func (r *Runner) Cancel(playbookID string) {
	r.mu.Lock()
	g, ok := r.groups[playbookID]
	if ok {
		delete(r.groups, playbookID)
	}
	r.mu.Unlock()
	if ok {
		g.cancel()
	}
}

// Wait blocks until all launched tasks have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels all tasks and waits for them to return, or gives up when
// ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
