package provider

import (
	"context"

	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
)

// Downloader fetches artifacts and update manifests. Implementations must
// not retain references to fetcher state; they only see IDs, paths and URLs.
type Downloader interface {
	// DownloadByID fetches the artifact for id and returns its local path.
	DownloadByID(ctx context.Context, id string) (string, error)

	// CleanupByID releases whatever DownloadByID left on disk for id.
	CleanupByID(ctx context.Context, id string) error

	// FetchUpdateManifest returns the raw update manifest served at url.
	FetchUpdateManifest(ctx context.Context, url string) (string, error)
}

// Storage materializes artifacts into installed extensions.
type Storage interface {
	// ExtractExtension unpacks the artifact at artifactPath and returns the
	// metadata read from the unpacked extension.
	ExtractExtension(ctx context.Context, id string, artifactPath string) (ospackage.PackageInfo, error)

	// InstalledExtensions scans durable storage for extensions that are
	// already unpacked.
	InstalledExtensions(ctx context.Context) (map[string]ospackage.PackageInfo, error)

	// RemoveExtension deletes the unpacked extension for id.
	RemoveExtension(ctx context.Context, id string) error
}

// Verifier checks a downloaded artifact before it is extracted.
type Verifier interface {
	Verify(ctx context.Context, id string, artifactPath string) error
}
