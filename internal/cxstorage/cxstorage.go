package cxstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/cx-fetcher/internal/version"
)

const (
	// DefaultUpdateURL is used for extensions whose manifest has no update_url.
	DefaultUpdateURL = "https://clients2.google.com/service/update2/crx"

	// maxExtractBytes bounds the unpacked size of one extension.
	maxExtractBytes = 512 << 20

	manifestFile = "manifest.json"
)

// createFile opens unpacked files for writing; tests replace it.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// extensionManifest is the subset of manifest.json the store reads.
type extensionManifest struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	UpdateURL string `json:"update_url"`
}

// Store unpacks extensions under Root/<id>.
type Store struct {
	Root        string
	ProdVersion string // browser version sent in update checks
}

// New returns a Store rooted at root.
func New(root, prodVersion string) *Store {
	return &Store{Root: root, ProdVersion: prodVersion}
}

// ExtractExtension unpacks the CRX at artifactPath into Root/<id>, replacing
// any previous version, and returns the metadata from its manifest.json.
func (s *Store) ExtractExtension(ctx context.Context, id string, artifactPath string) (ospackage.PackageInfo, error) {
	log := logger.Logger()

	if err := ospackage.ValidateID(id); err != nil {
		return ospackage.PackageInfo{}, err
	}
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return ospackage.PackageInfo{}, fmt.Errorf("creating storage directory: %w", err)
	}

	staging := filepath.Join(s.Root, "."+id+"-"+uuid.NewString())
	if err := unpack(ctx, artifactPath, staging); err != nil {
		os.RemoveAll(staging)
		return ospackage.PackageInfo{}, err
	}

	dest := filepath.Join(s.Root, id)
	info, err := s.readManifest(staging, id)
	if err != nil {
		os.RemoveAll(staging)
		return ospackage.PackageInfo{}, err
	}

	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(staging)
		return ospackage.PackageInfo{}, fmt.Errorf("removing previous version of %s: %w", id, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		os.RemoveAll(staging)
		return ospackage.PackageInfo{}, fmt.Errorf("installing %s: %w", id, err)
	}
	info.Path = dest

	log.Debugf("unpacked %s %s into %s", id, info.Version, dest)
	return info, nil
}

// InstalledExtensions reads every Root/<id>/manifest.json. Directories with a
// missing or invalid manifest are skipped with a warning.
func (s *Store) InstalledExtensions(ctx context.Context) (map[string]ospackage.PackageInfo, error) {
	log := logger.Logger()

	entries, err := os.ReadDir(s.Root)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]ospackage.PackageInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading storage directory %s: %w", s.Root, err)
	}

	installed := make(map[string]ospackage.PackageInfo, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.Root, e.Name())
		info, err := s.readManifest(dir, e.Name())
		if err != nil {
			log.Warnf("skipping %s: %v", dir, err)
			continue
		}
		info.Path = dir
		installed[e.Name()] = info
	}
	return installed, nil
}

// RemoveExtension deletes Root/<id>.
func (s *Store) RemoveExtension(ctx context.Context, id string) error {
	if err := ospackage.ValidateID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.Root, id)); err != nil {
		return fmt.Errorf("removing %s: %w", id, err)
	}
	return nil
}

func (s *Store) readManifest(dir, id string) (ospackage.PackageInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return ospackage.PackageInfo{}, fmt.Errorf("reading %s: %w", manifestFile, err)
	}
	// Some packers emit a UTF-8 BOM.
	data = []byte(strings.TrimPrefix(string(data), "\ufeff"))

	var m extensionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return ospackage.PackageInfo{}, fmt.Errorf("parsing %s: %w", manifestFile, err)
	}
	if _, err := version.Parse(m.Version); err != nil {
		return ospackage.PackageInfo{}, fmt.Errorf("%s: %w", manifestFile, err)
	}

	base := m.UpdateURL
	if base == "" {
		base = DefaultUpdateURL
	}
	updateURL, err := updateCheckURL(base, id, m.Version, s.ProdVersion)
	if err != nil {
		return ospackage.PackageInfo{}, err
	}

	return ospackage.PackageInfo{
		ID:        id,
		Name:      m.Name,
		Version:   m.Version,
		UpdateURL: updateURL,
	}, nil
}

// updateCheckURL adds the gupdate query for one extension to base.
func updateCheckURL(base, id, ver, prodVersion string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing update_url %q: %w", base, err)
	}
	q := u.Query()
	q.Set("x", "id="+id+"&v="+ver+"&uc")
	q.Set("acceptformat", "crx2,crx3")
	if prodVersion != "" {
		q.Set("prodversion", prodVersion)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func unpack(ctx context.Context, artifactPath, dest string) error {
	f, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	offset, err := zipOffset(f, st.Size())
	if err != nil {
		return fmt.Errorf("%s: %w", artifactPath, err)
	}

	zr, err := zip.NewReader(io.NewSectionReader(f, offset, st.Size()-offset), st.Size()-offset)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("failed to open zip payload: %w", err)
	}

	var budget int64 = maxExtractBytes
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		n, err := extractFile(zf, target, budget)
		if err != nil {
			return err
		}
		budget -= n
	}
	return nil
}

func extractFile(zf *zip.File, target string, budget int64) (n int64, err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, err
	}
	rc, err := zf.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := createFile(target)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to write %s: %w", target, cerr)
		}
	}()

	n, err = io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return n, fmt.Errorf("failed to decompress %s: %w", zf.Name, err)
	}
	if n > budget {
		return n, fmt.Errorf("extension exceeds %d bytes unpacked", int64(maxExtractBytes))
	}
	return n, nil
}

// safeJoin rejects archive entries that would escape dest.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal path in archive: %q", name)
	}
	return filepath.Join(dest, clean), nil
}

