package fetcher

import (
	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
)

// Event is delivered to observers after an extension has been acquired and
// recorded in the registry.
type Event struct {
	ID   string
	Info ospackage.PackageInfo
}

// Observer receives Acquired events. It runs on the acquiring goroutine, so
// it should return quickly.
type Observer func(Event)

// Subscribe registers fn for Acquired events and returns a function that
// removes it.
func (f *Fetcher) Subscribe(fn Observer) (unsubscribe func()) {
	f.obsMu.Lock()
	defer f.obsMu.Unlock()

	id := f.nextObserver
	f.nextObserver++
	f.observers[id] = fn

	return func() {
		f.obsMu.Lock()
		delete(f.observers, id)
		f.obsMu.Unlock()
	}
}

func (f *Fetcher) emit(ev Event) {
	f.obsMu.RLock()
	fns := make([]Observer, 0, len(f.observers))
	for _, fn := range f.observers {
		fns = append(fns, fn)
	}
	f.obsMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
