package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// extractedMarker is written inside an extraction directory once every entry
// has been unpacked.
const extractedMarker = ".extracted"

// errUnsafeEntry is returned for archive entries that would land outside the
// extraction directory.
var errUnsafeEntry = errors.New("archive entry escapes extraction directory")

// ExtractResult describes one completed extraction.
type ExtractResult struct {
	Dir   string
	Files int
}

// Extract unpacks archivePath into destDir, preserving relative paths, and
// writes the completion marker last. On failure destDir is removed so that no
// partial content is picked up by conversion.
func Extract(ctx context.Context, archivePath, destDir string) (ExtractResult, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return ExtractResult{}, fmt.Errorf("create extraction dir: %w", err)
	}

	var (
		n   int
		err error
	)
	switch archiveKindOf(archivePath) {
	case archiveZip:
		n, err = extractZip(ctx, archivePath, destDir)
	case archiveGzip, archiveZstd, archiveXz:
		err = extractSingle(archivePath, destDir)
		n = 1
	default:
		err = fmt.Errorf("not an archive: %s", filepath.Base(archivePath))
	}
	if err == nil {
		err = writeMarker(destDir)
	}
	if err != nil {
		_ = os.RemoveAll(destDir)
		return ExtractResult{}, fmt.Errorf("extract %s: %w", filepath.Base(archivePath), err)
	}
	return ExtractResult{Dir: destDir, Files: n}, nil
}

// markerPath returns the completion marker location for an extraction dir.
func markerPath(destDir string) string {
	return filepath.Join(destDir, extractedMarker)
}

func extractZip(ctx context.Context, archivePath, destDir string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close() //nolint:errcheck

	files := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return files, err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			continue
		case !mode.IsRegular():
			return files, fmt.Errorf("%s: unsupported entry type %s", f.Name, mode.Type())
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return files, fmt.Errorf("create dir for %s: %w", f.Name, err)
		}
		rc, err := f.Open()
		if err != nil {
			return files, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		err = writeFile(target, rc)
		_ = rc.Close()
		if err != nil {
			return files, fmt.Errorf("write entry %s: %w", f.Name, err)
		}
		files++
	}
	return files, nil
}

func extractSingle(archivePath, destDir string) error {
	src, err := os.Open(archivePath) //nolint:gosec // path comes from the data directory listing
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck

	var r io.Reader
	switch archiveKindOf(archivePath) {
	case archiveGzip:
		zr, err := gzip.NewReader(src)
		if err != nil {
			return fmt.Errorf("open gzip: %w", err)
		}
		defer zr.Close() //nolint:errcheck
		r = zr
	case archiveZstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return fmt.Errorf("open zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	case archiveXz:
		xr, err := xz.NewReader(src)
		if err != nil {
			return fmt.Errorf("open xz: %w", err)
		}
		r = xr
	}
	return writeFile(filepath.Join(destDir, stem(archivePath)), r)
}

// safeJoin resolves an archive entry name inside destDir, rejecting absolute
// names and any path that climbs out of it.
func safeJoin(destDir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("%w: %s", errUnsafeEntry, name)
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errUnsafeEntry, name)
	}
	return target, nil
}

func writeFile(path string, r io.Reader) error {
	out, err := os.Create(path) //nolint:gosec // path validated by safeJoin
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeMarker(destDir string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(markerPath(destDir), []byte(stamp+"\n"), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}
