// Package fetcher coordinates acquiring, tracking and refreshing browser
// extensions. A Fetcher guarantees that an extension is never fetched twice
// concurrently and keeps the registry of acquired extensions consistent with
// the set of acquisitions in flight.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/open-edge-platform/cx-fetcher/internal/manifest"
	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
	"github.com/open-edge-platform/cx-fetcher/internal/provider"
	"github.com/open-edge-platform/cx-fetcher/internal/registry"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/cx-fetcher/internal/version"
	"github.com/prometheus/client_golang/prometheus"
)

// Status tags an extension that is in flight.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusVerifying   Status = "verifying"
	StatusExtracting  Status = "extracting"
	StatusCleaning    Status = "cleaning"
	StatusRemoving    Status = "removing"
)

const defaultWorkers = 4

// Fetcher is the acquisition coordinator. Build one with New at process
// start and share it; tests construct a fresh one per case.
type Fetcher struct {
	downloader provider.Downloader
	storage    provider.Storage
	verifier   provider.Verifier
	workers    int
	registerer prometheus.Registerer

	// mu makes "check in flight, then mark" atomic and orders registry
	// writes after the in-flight mark is dropped.
	mu        sync.Mutex
	inUse     map[string]Status
	available *registry.Registry

	obsMu        sync.RWMutex
	observers    map[uint64]Observer
	nextObserver uint64

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}

	metrics *metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithVerifier adds a verification step between download and extraction.
func WithVerifier(v provider.Verifier) Option {
	return func(f *Fetcher) {
		f.verifier = v
	}
}

// WithWorkers bounds the concurrency of AcquireAll and UpdateAll.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithRegisterer registers the fetcher metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(f *Fetcher) {
		f.registerer = reg
	}
}

// New returns a Fetcher with an empty registry.
func New(downloader provider.Downloader, storage provider.Storage, opts ...Option) *Fetcher {
	f := &Fetcher{
		downloader: downloader,
		storage:    storage,
		workers:    defaultWorkers,
		inUse:      make(map[string]Status),
		available:  registry.New(),
		observers:  make(map[uint64]Observer),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.registerer == nil {
		f.registerer = prometheus.NewRegistry()
	}
	f.metrics = newMetrics(f.registerer)
	return f
}

// Acquire downloads, verifies (when configured), extracts and cleans up the
// extension id, then records it in the registry and notifies observers.
// The in-flight mark is released on every return path.
func (f *Fetcher) Acquire(ctx context.Context, id string) (ospackage.PackageInfo, error) {
	log := logger.Logger()

	if id == "" {
		return ospackage.PackageInfo{}, ErrEmptyID
	}
	if err := ospackage.ValidateID(id); err != nil {
		return ospackage.PackageInfo{}, err
	}
	if err := f.reserve(id, StatusDownloading, false); err != nil {
		f.metrics.acquisitions.WithLabelValues("contended").Inc()
		return ospackage.PackageInfo{}, err
	}

	var (
		downloaded bool
		committed  bool
	)
	defer func() {
		if committed {
			return
		}
		if downloaded {
			// The caller's context may already be done; cleanup still has to run.
			if err := f.downloader.CleanupByID(context.WithoutCancel(ctx), id); err != nil {
				log.Warnf("cleaning up %s after failure: %v", id, err)
			}
		}
		f.release(id)
		f.metrics.acquisitions.WithLabelValues("failure").Inc()
	}()

	log.Infof("acquiring extension %s", id)

	if err := f.advance(ctx, id, StatusDownloading); err != nil {
		return ospackage.PackageInfo{}, err
	}
	artifact, err := f.downloader.DownloadByID(ctx, id)
	if err != nil {
		return ospackage.PackageInfo{}, &StepError{ID: id, Step: StatusDownloading, Err: err}
	}
	downloaded = true
	log.Debugf("downloaded %s to %s", id, artifact)

	if f.verifier != nil {
		if err := f.advance(ctx, id, StatusVerifying); err != nil {
			return ospackage.PackageInfo{}, err
		}
		if err := f.verifier.Verify(ctx, id, artifact); err != nil {
			return ospackage.PackageInfo{}, &StepError{ID: id, Step: StatusVerifying, Err: err}
		}
	}

	if err := f.advance(ctx, id, StatusExtracting); err != nil {
		return ospackage.PackageInfo{}, err
	}
	info, err := f.storage.ExtractExtension(ctx, id, artifact)
	if err != nil {
		return ospackage.PackageInfo{}, &StepError{ID: id, Step: StatusExtracting, Err: err}
	}

	if err := f.advance(ctx, id, StatusCleaning); err != nil {
		return ospackage.PackageInfo{}, err
	}
	// CleanupByID forgets the artifacts even when removing them fails, so it
	// runs at most once.
	downloaded = false
	if err := f.downloader.CleanupByID(ctx, id); err != nil {
		return ospackage.PackageInfo{}, &StepError{ID: id, Step: StatusCleaning, Err: err}
	}

	if info.ID == "" {
		info.ID = id
	}
	f.commit(id, info)
	committed = true
	f.metrics.acquisitions.WithLabelValues("success").Inc()

	log.Infof("acquired extension %s version %s", id, info.Version)
	f.emit(Event{ID: id, Info: info})
	return info, nil
}

// AcquireAll acquires ids with a bounded pool of workers. It returns the
// extensions that were acquired and the joined errors of those that were not.
func (f *Fetcher) AcquireAll(ctx context.Context, ids []string) (map[string]ospackage.PackageInfo, error) {
	log := logger.Logger()

	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]ospackage.PackageInfo, len(unique))
		errs    []error
	)
	jobs := make(chan string, len(unique))

	// start worker goroutines
	for i := 0; i < min(f.workers, len(unique)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				info, err := f.Acquire(ctx, id)

				mu.Lock()
				if err != nil {
					log.Errorf("acquiring %s failed: %v", id, err)
					errs = append(errs, err)
				} else {
					results[id] = info
				}
				mu.Unlock()
			}
		}()
	}

	// enqueue jobs
	for _, id := range unique {
		jobs <- id
	}
	close(jobs)

	wg.Wait()
	return results, errors.Join(errs...)
}

// CheckForUpdate fetches the update manifest recorded for id and reports
// whether it advertises a version greater than the registered one.
func (f *Fetcher) CheckForUpdate(ctx context.Context, id string) (bool, error) {
	info, ok := f.available.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPackage, id)
	}

	newer, err := f.checkForUpdate(ctx, info)
	switch {
	case err != nil:
		f.metrics.updateChecks.WithLabelValues("failure").Inc()
	case newer:
		f.metrics.updateChecks.WithLabelValues("available").Inc()
	default:
		f.metrics.updateChecks.WithLabelValues("current").Inc()
	}
	return newer, err
}

func (f *Fetcher) checkForUpdate(ctx context.Context, info ospackage.PackageInfo) (bool, error) {
	log := logger.Logger()

	payload, err := f.downloader.FetchUpdateManifest(ctx, info.UpdateURL)
	if err != nil {
		return false, fmt.Errorf("fetching update manifest for %s: %w", info.ID, err)
	}
	latest, err := manifest.ExtractVersion(payload, info.ID)
	if err != nil {
		return false, fmt.Errorf("reading update manifest for %s: %w", info.ID, err)
	}
	newer, err := version.IsNewer(latest, info.Version)
	if err != nil {
		return false, fmt.Errorf("comparing versions for %s: %w", info.ID, err)
	}

	log.Debugf("extension %s: installed %s, advertised %s, update=%t", info.ID, info.Version, latest, newer)
	return newer, nil
}

// Update re-acquires id when its update manifest advertises a newer
// version. It reports whether the extension was replaced.
func (f *Fetcher) Update(ctx context.Context, id string) (bool, error) {
	newer, err := f.CheckForUpdate(ctx, id)
	if err != nil || !newer {
		return false, err
	}

	logger.Logger().Infof("updating extension %s", id)
	if _, err := f.Acquire(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the unpacked extension and its registry entry.
func (f *Fetcher) Remove(ctx context.Context, id string) (bool, error) {
	if err := ospackage.ValidateID(id); err != nil {
		return false, err
	}
	if err := f.reserve(id, StatusRemoving, true); err != nil {
		return false, err
	}

	if err := f.storage.RemoveExtension(ctx, id); err != nil {
		f.release(id)
		return false, &StepError{ID: id, Step: StatusRemoving, Err: err}
	}

	f.mu.Lock()
	f.dropInFlight(id)
	f.available.Delete(id)
	f.metrics.registered.Set(float64(f.available.Len()))
	f.mu.Unlock()

	logger.Logger().Infof("removed extension %s", id)
	return true, nil
}

// Rescan replaces the registry with the extensions found on durable
// storage. On error the registry is left as it was.
func (f *Fetcher) Rescan(ctx context.Context) error {
	log := logger.Logger()

	installed, err := f.storage.InstalledExtensions(ctx)
	if err != nil {
		return fmt.Errorf("scanning installed extensions: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.available.Replace(installed); err != nil {
		return fmt.Errorf("repopulating registry: %w", err)
	}
	f.metrics.registered.Set(float64(f.available.Len()))

	log.Infof("found %d installed extensions", len(installed))
	return nil
}

// Available returns a snapshot of the registry.
func (f *Fetcher) Available() map[string]ospackage.PackageInfo {
	return f.available.Snapshot()
}

// Status reports the pipeline step id is in, if it is in flight.
func (f *Fetcher) Status(id string) (Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.inUse[id]
	return s, ok
}

// reserve marks id in flight with status in one critical section. With
// requireRegistered set, ids missing from the registry are rejected.
func (f *Fetcher) reserve(id string, status Status, requireRegistered bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if current, ok := f.inUse[id]; ok {
		return fmt.Errorf("%w: %s (%s)", ErrAlreadyInFlight, id, current)
	}
	if requireRegistered {
		if _, ok := f.available.Get(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPackage, id)
		}
	}
	f.inUse[id] = status
	f.metrics.inFlight.Inc()
	return nil
}

// advance moves id to the next step unless ctx is done.
func (f *Fetcher) advance(ctx context.Context, id string, status Status) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquiring %s before %s: %w", id, status, err)
	}
	f.mu.Lock()
	f.inUse[id] = status
	f.mu.Unlock()
	return nil
}

func (f *Fetcher) release(id string) {
	f.mu.Lock()
	f.dropInFlight(id)
	f.mu.Unlock()
}

// commit drops the in-flight mark and records info in the same critical section.
func (f *Fetcher) commit(id string, info ospackage.PackageInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropInFlight(id)
	if err := f.available.Put(id, info); err != nil {
		logger.Logger().Errorf("recording %s: %v", id, err)
	}
	f.metrics.registered.Set(float64(f.available.Len()))
}

// dropInFlight must be called with mu held.
func (f *Fetcher) dropInFlight(id string) {
	if _, ok := f.inUse[id]; ok {
		delete(f.inUse, id)
		f.metrics.inFlight.Dec()
	}
}
