package pkgfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/network"
	"github.com/schollz/progressbar/v3"
)

// maxManifestBytes bounds how much of an update manifest is read.
const maxManifestBytes = 1 << 20

// Config controls where and how the Client downloads.
type Config struct {
	CacheDir        string
	URLTemplate     string                   // must contain {id}; {prodversion} is optional
	ProdVersion     string
	FetchSignatures bool                     // also fetch "<artifact URL>.asc"
	Progress        io.Writer                // progress bar output, nil disables it
	Report          *logger.StringListReport // records every fetched URL, may be nil
	HTTPClient      *http.Client             // defaults to network.NewSecureHTTPClient
}

// Client downloads CRX artifacts and update manifests over HTTP.
type Client struct {
	cfg    Config
	client *http.Client

	mu        sync.Mutex
	artifacts map[string][]string
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("cache directory must be set")
	}
	if !strings.Contains(cfg.URLTemplate, "{id}") {
		return nil, fmt.Errorf("download URL template %q has no {id} placeholder", cfg.URLTemplate)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = network.NewSecureHTTPClient(0)
	}
	return &Client{
		cfg:       cfg,
		client:    client,
		artifacts: make(map[string][]string),
	}, nil
}

// DownloadURL expands the URL template for id.
func (c *Client) DownloadURL(id string) string {
	return strings.NewReplacer(
		"{id}", url.QueryEscape(id),
		"{prodversion}", c.cfg.ProdVersion,
	).Replace(c.cfg.URLTemplate)
}

// DownloadByID fetches the CRX for id into the cache directory and returns
// its path. Every call writes a fresh file so stale partial downloads are
// never reused.
func (c *Client) DownloadByID(ctx context.Context, id string) (string, error) {
	log := logger.Logger()

	if err := ospackage.ValidateID(id); err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.cfg.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", c.cfg.CacheDir, err)
	}

	src := c.DownloadURL(id)
	destPath := filepath.Join(c.cfg.CacheDir, fmt.Sprintf("%s-%s.crx", id, uuid.NewString()))

	if err := c.fetchToFile(ctx, src, destPath, id); err != nil {
		return "", err
	}
	c.track(id, destPath)
	log.Debugf("downloaded %s to %s", src, destPath)

	if c.cfg.FetchSignatures {
		sigURL, err := signatureURL(src)
		if err == nil {
			err = c.fetchToFile(ctx, sigURL, destPath+".asc", id+" signature")
		}
		if err != nil {
			_ = c.CleanupByID(ctx, id)
			return "", fmt.Errorf("fetching signature: %w", err)
		}
		c.track(id, destPath+".asc")
	}

	return destPath, nil
}

// CleanupByID removes every file DownloadByID wrote for id.
func (c *Client) CleanupByID(ctx context.Context, id string) error {
	c.mu.Lock()
	paths := c.artifacts[id]
	delete(c.artifacts, id)
	c.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FetchUpdateManifest returns the body served at manifestURL.
func (c *Client) FetchUpdateManifest(ctx context.Context, manifestURL string) (string, error) {
	if manifestURL == "" {
		return "", fmt.Errorf("empty update manifest URL")
	}
	resp, err := c.get(ctx, manifestURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", manifestURL, err)
	}
	c.cfg.Report.Add(manifestURL)
	return string(body), nil
}

func (c *Client) get(ctx context.Context, src string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", src, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: bad status: %s", src, resp.Status)
	}
	return resp, nil
}

func (c *Client) fetchToFile(ctx context.Context, src, destPath, label string) (err error) {
	resp, err := c.get(ctx, src)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(destPath)
		}
	}()

	var w io.Writer = out
	if c.cfg.Progress != nil && resp.ContentLength > 0 {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(c.cfg.Progress),
			progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", label)),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		defer bar.Finish()
		w = io.MultiWriter(out, bar)
	}

	// write body to file
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	c.cfg.Report.Add(src)
	return nil
}

func (c *Client) track(id, path string) {
	c.mu.Lock()
	c.artifacts[id] = append(c.artifacts[id], path)
	c.mu.Unlock()
}

// signatureURL appends ".asc" to the path component of src.
func signatureURL(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", src, err)
	}
	u.Path += ".asc"
	u.RawPath = ""
	return u.String(), nil
}
