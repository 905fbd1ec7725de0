package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/open-edge-platform/cx-fetcher/internal/config"
	"github.com/open-edge-platform/cx-fetcher/internal/fetcher"
	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const testID = "aapocclcgogkmnckokdopfmhonfmgoek"

func TestResolveRequestedLogLevelPrefersExplicitFlag(t *testing.T) {
	prev := logLevel
	logLevel = "warn"
	t.Cleanup(func() {
		logLevel = prev
	})

	if got := resolveRequestedLogLevel(nil); got != "warn" {
		t.Fatalf("expected explicit log level to win, got %q", got)
	}
}

func TestResolveRequestedLogLevelUsesVerboseFallback(t *testing.T) {
	prev := logLevel
	logLevel = ""
	t.Cleanup(func() {
		logLevel = prev
	})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("verbose", false, "")
	if err := cmd.Flags().Set("verbose", "true"); err != nil {
		t.Fatalf("set verbose: %v", err)
	}

	if got := resolveRequestedLogLevel(cmd); got != "debug" {
		t.Fatalf("expected verbose flag to set debug level, got %q", got)
	}
}

func TestResolveRequestedLogLevelIgnoresUnsetVerbose(t *testing.T) {
	prev := logLevel
	logLevel = ""
	t.Cleanup(func() {
		logLevel = prev
	})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("verbose", false, "")

	if got := resolveRequestedLogLevel(cmd); got != "" {
		t.Fatalf("expected empty when verbose not set, got %q", got)
	}
}

func TestAttachLoggingHooksAddsHookToSubcommand(t *testing.T) {
	root := createRootCommand()
	for _, name := range []string{"fetch", "check", "update", "remove", "list", "watch"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s command: %v", name, err)
		}
		if cmd == nil || cmd.Name() != name {
			t.Fatalf("%s command not found", name)
		}
		if cmd.PersistentPreRunE == nil {
			t.Fatalf("expected logging hook on %s command", name)
		}
	}
}

// extensionServer serves one extension whose advertised and downloadable
// version can be changed by the test.
type extensionServer struct {
	*httptest.Server
	t *testing.T

	mu      sync.Mutex
	version string
}

func newExtensionServer(t *testing.T, version string) *extensionServer {
	t.Helper()
	s := &extensionServer{t: t, version: version}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *extensionServer) setVersion(v string) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

func (s *extensionServer) currentVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *extensionServer) handle(w http.ResponseWriter, r *http.Request) {
	v := s.currentVersion()
	switch r.URL.Path {
	case "/crx/" + testID + ".crx":
		w.Write(s.crx(v))
	case "/update":
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<gupdate xmlns="http://www.google.com/update2/response" protocol="2.0">
  <app appid="%s" status="ok">
    <updatecheck codebase="%s/crx/%s.crx" version="%s" status="ok"/>
  </app>
</gupdate>`, testID, s.URL, testID, v)
	default:
		http.NotFound(w, r)
	}
}

func (s *extensionServer) crx(version string) []byte {
	var payload bytes.Buffer
	zw := zip.NewWriter(&payload)
	files := map[string]string{
		"manifest.json": fmt.Sprintf(`{"name": "Demo", "version": %q, "update_url": %q}`, version, s.URL+"/update"),
		"background.js": "chrome.runtime.onInstalled.addListener(() => {})",
	}
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			s.t.Errorf("creating zip entry: %v", err)
			return nil
		}
		io.WriteString(w, body)
	}
	if err := zw.Close(); err != nil {
		s.t.Errorf("closing zip: %v", err)
		return nil
	}

	var crx bytes.Buffer
	crx.WriteString("Cr24")
	binary.Write(&crx, binary.LittleEndian, uint32(3))
	binary.Write(&crx, binary.LittleEndian, uint32(0))
	crx.Write(payload.Bytes())
	return crx.Bytes()
}

func writeTestConfig(t *testing.T, serverURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`workers: 2
cache_dir: %q
storage_dir: %q
report_dir: %q
logging:
  level: error
download:
  url_template: %q
  timeout: 10s
`, filepath.Join(dir, "cache"), filepath.Join(dir, "extensions"), filepath.Join(dir, "reports"),
		serverURL+"/crx/{id}.crx")

	path := filepath.Join(dir, "cx-fetcher.yml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path, dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func listInstalled(t *testing.T, configPath string) []ospackage.PackageInfo {
	t.Helper()
	out, err := runCLI(t, "--config", configPath, "list", "--format", "json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var list []ospackage.PackageInfo
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decoding list output %q: %v", out, err)
	}
	return list
}

func TestFetchListUpdateRemove(t *testing.T) {
	server := newExtensionServer(t, "1.0")
	configPath, dir := writeTestConfig(t, server.URL)

	out, err := runCLI(t, "--config", configPath, "--report", "fetch", testID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(out, testID) || !strings.Contains(out, "1.0") {
		t.Errorf("unexpected fetch output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "extensions", testID, "manifest.json")); err != nil {
		t.Errorf("expected unpacked extension: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "reports", "fetchurl-fetch.txt")); err != nil {
		t.Errorf("expected fetch report: %v", err)
	}
	cached, _ := os.ReadDir(filepath.Join(dir, "cache"))
	if len(cached) != 0 {
		t.Errorf("expected downloaded artifacts to be cleaned up, found %d", len(cached))
	}

	list := listInstalled(t, configPath)
	if len(list) != 1 || list[0].ID != testID || list[0].Version != "1.0" {
		t.Fatalf("unexpected list %+v", list)
	}

	out, err = runCLI(t, "--config", configPath, "check")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "up to date") {
		t.Errorf("expected up to date, got %q", out)
	}

	server.setVersion("1.1")
	out, err = runCLI(t, "--config", configPath, "check", testID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "update available") {
		t.Errorf("expected update available, got %q", out)
	}

	out, err = runCLI(t, "--config", configPath, "update")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !strings.Contains(out, testID+"\tupdated") {
		t.Errorf("expected %s to be updated, got %q", testID, out)
	}
	if list := listInstalled(t, configPath); len(list) != 1 || list[0].Version != "1.1" {
		t.Fatalf("expected version 1.1 after update, got %+v", list)
	}

	if _, err := runCLI(t, "--config", configPath, "remove", testID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if list := listInstalled(t, configPath); len(list) != 0 {
		t.Errorf("expected no extensions after remove, got %+v", list)
	}

	if _, err := runCLI(t, "--config", configPath, "remove", testID); err == nil {
		t.Error("expected removing an unknown extension to fail")
	}
}

func TestFetchReportsFailures(t *testing.T) {
	server := newExtensionServer(t, "1.0")
	configPath, _ := writeTestConfig(t, server.URL)

	out, err := runCLI(t, "--config", configPath, "fetch", testID, "missing")
	if err == nil {
		t.Fatal("expected an error for the missing extension")
	}
	if !strings.Contains(err.Error(), "fetched 1 of 2") {
		t.Errorf("unexpected error %v", err)
	}
	if !strings.Contains(out, testID) {
		t.Errorf("expected the successful fetch to be printed, got %q", out)
	}
}

func TestListRejectsUnknownFormat(t *testing.T) {
	configPath, _ := writeTestConfig(t, "http://127.0.0.1:1")
	if _, err := runCLI(t, "--config", configPath, "list", "--format", "yaml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("workers: 0\nunknown_key: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "--config", path, "list"); err == nil {
		t.Fatal("expected schema validation to fail")
	}
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	fetcher.New(nil, nil, fetcher.WithRegisterer(reg))

	srv, addr, err := serveMetrics("127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("serveMetrics failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cx_fetcher_registered") {
		t.Errorf("expected fetcher metrics, got %s", body)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	root := createRootCommand()
	flags := root.PersistentFlags()
	if err := flags.Parse([]string{"--storage-dir", "/srv/extensions", "--workers", "8"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	cfg := config.DefaultConfig()
	cacheDir := cfg.CacheDir
	if err := applyFlagOverrides(flags, cfg); err != nil {
		t.Fatalf("applyFlagOverrides failed: %v", err)
	}
	if cfg.StorageDir != "/srv/extensions" {
		t.Errorf("expected storage dir override, got %s", cfg.StorageDir)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Workers)
	}
	if cfg.CacheDir != cacheDir {
		t.Errorf("cache dir should keep its config value, got %s", cfg.CacheDir)
	}

	root = createRootCommand()
	flags = root.PersistentFlags()
	if err := flags.Parse([]string{"--workers", "0"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	if err := applyFlagOverrides(flags, config.DefaultConfig()); err == nil {
		t.Error("expected error for zero workers")
	}
}
