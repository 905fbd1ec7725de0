package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"golang.org/x/sync/errgroup"
)

// UpdateAll runs Update for every registered extension, at most workers at a
// time. A failing extension does not stop the others; it returns the sorted
// IDs that were replaced and the joined errors.
func (f *Fetcher) UpdateAll(ctx context.Context) ([]string, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		updated []string
		errs    []error
	)
	g.SetLimit(f.workers)

	for _, id := range f.available.Keys() {
		g.Go(func() error {
			ok, err := f.Update(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			} else if ok {
				updated = append(updated, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(updated)
	return updated, errors.Join(errs...)
}

// StartAutoUpdate runs UpdateAll every interval until StopAutoUpdate is called.
func (f *Fetcher) StartAutoUpdate(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("auto-update interval must be positive, got %v", interval)
	}

	f.autoMu.Lock()
	defer f.autoMu.Unlock()
	if f.autoCancel != nil {
		return ErrAutoUpdateRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	f.autoCancel = cancel
	f.autoDone = done

	go f.autoUpdateLoop(ctx, interval, done)
	logger.Logger().Infof("auto-update started, interval %s", interval)
	return nil
}

// StopAutoUpdate stops the loop and waits for a running pass to return.
// It is a no-op when the loop is not running.
func (f *Fetcher) StopAutoUpdate() {
	f.autoMu.Lock()
	cancel, done := f.autoCancel, f.autoDone
	f.autoCancel, f.autoDone = nil, nil
	f.autoMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Logger().Info("auto-update stopped")
}

func (f *Fetcher) autoUpdateLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	log := logger.Logger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, err := f.UpdateAll(ctx)
			if err != nil {
				log.Warnf("auto-update pass finished with errors: %v", err)
			}
			if len(updated) > 0 {
				log.Infof("auto-update replaced %d extensions: %v", len(updated), updated)
			}
		}
	}
}
