package browser

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Fixture is a scoped handle for the DOM nodes one probe invocation creates.
// The in-page library tags every node with the fixture name and removes them
// before returning. Release sweeps the page again for nodes an abandoned
// evaluation left behind.
type Fixture struct {
	Name string

	arena    *Arena
	released bool
}

// Arena allocates fixtures and tracks the ones still live.
type Arena struct {
	mu   sync.Mutex
	live map[string]struct{}
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{live: make(map[string]struct{})}
}

// Acquire returns a fixture whose name is unique for the life of the process.
// kind is a readable prefix such as "reflow".
func (a *Arena) Acquire(kind string) *Fixture {
	name := kind + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")

	a.mu.Lock()
	a.live[name] = struct{}{}
	a.mu.Unlock()

	return &Fixture{Name: name, arena: a}
}

// Live returns the number of fixtures acquired and not yet released.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Release removes any leftover nodes of the fixture from page and returns
// the fixture to the arena. It is safe to call more than once. The sweep
// runs on a context detached from ctx's cancellation so a cancelled probe
// still cleans up.
func (f *Fixture) Release(ctx context.Context, page Page) {
	f.arena.mu.Lock()
	if f.released {
		f.arena.mu.Unlock()
		return
	}
	f.released = true
	delete(f.arena.live, f.Name)
	f.arena.mu.Unlock()

	if page == nil {
		return
	}
	var out struct {
		Removed int `json:"removed"`
	}
	_ = page.Call(context.WithoutCancel(ctx), FnRelease, map[string]string{"fixture": f.Name}, &out) //nolint:errcheck // best effort sweep
}
