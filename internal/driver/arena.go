package driver

import (
	"sync"

	"github.com/distr1/ccdriver/internal/frontend"
)

// arenaRegistry hands out per-worker IR arenas, lazily created and reused
// across tasks. Go has no thread-local storage, so "per worker thread"
// becomes "checked out for the duration of one task, returned cleared
// afterward".
type arenaRegistry struct {
	newArena func() frontend.IRArena
	pool     sync.Pool
}

func newArenaRegistry(newArena func() frontend.IRArena) *arenaRegistry {
	r := &arenaRegistry{newArena: newArena}
	r.pool.New = func() interface{} { return r.newArena() }
	return r
}

// acquire checks out an arena, creating one if the pool is empty.
func (r *arenaRegistry) acquire() frontend.IRArena {
	return r.pool.Get().(frontend.IRArena)
}

// release clears the arena and returns it to the pool for reuse. Callers
// must not retain a reference to a after calling release.
func (r *arenaRegistry) release(a frontend.IRArena) {
	a.Clear()
	r.pool.Put(a)
}
