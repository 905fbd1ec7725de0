package main

import (
	"context"
	"fmt"
	"io"

	"github.com/open-edge-platform/cx-fetcher/internal/config"
	"github.com/open-edge-platform/cx-fetcher/internal/cxstorage"
	"github.com/open-edge-platform/cx-fetcher/internal/fetcher"
	"github.com/open-edge-platform/cx-fetcher/internal/pkgfetcher"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/network"
	"github.com/open-edge-platform/cx-fetcher/internal/verify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// app bundles the fetcher and everything a command needs around it.
type app struct {
	cfg     *config.GlobalConfig
	fetcher *fetcher.Fetcher
	metrics *prometheus.Registry
	report  *logger.StringListReport
}

// newApp wires the fetcher from the loaded configuration and populates its
// registry from the extensions already on disk.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	log := logger.Logger()

	cfg := globalConfig
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	helpers := config.NewConfigHelpers(cfg)

	cacheDir, err := helpers.CreateCacheDir()
	if err != nil {
		return nil, fmt.Errorf("preparing cache directory: %w", err)
	}
	storageDir, err := helpers.CreateStorageDir()
	if err != nil {
		return nil, fmt.Errorf("preparing storage directory: %w", err)
	}

	var report *logger.StringListReport
	if writeReport {
		report = logger.NewStringListReport(cmd.Name())
	}
	var progress io.Writer
	if cfg.Download.Progress {
		progress = cmd.ErrOrStderr()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	opts := []fetcher.Option{
		fetcher.WithWorkers(helpers.Workers()),
		fetcher.WithRegisterer(reg),
	}

	fetchSignatures := cfg.Download.FetchSignatures
	if cfg.Verify.Keyring != "" {
		v, err := verify.NewGPGVerifier(cfg.Verify.Keyring)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetcher.WithVerifier(v))
		if !fetchSignatures {
			log.Debugf("verify.keyring is set, fetching signatures")
			fetchSignatures = true
		}
	}

	downloader, err := pkgfetcher.New(pkgfetcher.Config{
		CacheDir:        cacheDir,
		URLTemplate:     cfg.Download.URLTemplate,
		ProdVersion:     cfg.Download.ProdVersion,
		FetchSignatures: fetchSignatures,
		Progress:        progress,
		Report:          report,
		HTTPClient:      network.NewSecureHTTPClient(helpers.DownloadTimeout()),
	})
	if err != nil {
		return nil, err
	}
	storage := cxstorage.New(storageDir, cfg.Download.ProdVersion)

	f := fetcher.New(downloader, storage, opts...)
	if err := f.Rescan(ctx); err != nil {
		return nil, err
	}

	return &app{cfg: cfg, fetcher: f, metrics: reg, report: report}, nil
}

// close writes the fetch report, if one was requested.
func (a *app) close() {
	if a.report == nil || len(a.report.Items()) == 0 {
		return
	}
	path, err := a.report.WriteToFile(a.cfg.ReportDir)
	if err != nil {
		logger.Logger().Warnf("writing fetch report: %v", err)
		return
	}
	logger.Logger().Infof("fetch report written to %s", path)
}
