package workflow

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"dubflow/internal/stage"
)

// stageLimits bounds how many items may be inside each stage at once.
type stageLimits struct {
	mu   sync.Mutex
	sems map[stage.Name]*semaphore.Weighted
}

func newStageLimits(limits map[stage.Name]int) *stageLimits {
	sl := &stageLimits{sems: make(map[stage.Name]*semaphore.Weighted, len(limits))}
	for name, n := range limits {
		if n > 0 {
			sl.sems[name] = semaphore.NewWeighted(int64(n))
		}
	}
	return sl
}

// acquire blocks until the stage has capacity. The returned func releases it.
func (sl *stageLimits) acquire(ctx context.Context, name stage.Name) (func(), error) {
	if sl == nil {
		return func() {}, nil
	}
	sl.mu.Lock()
	sem := sl.sems[name]
	sl.mu.Unlock()
	if sem == nil {
		return func() {}, nil
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
