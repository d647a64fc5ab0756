package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ancine-dash/internal/config"
	"ancine-dash/internal/domain"
	"ancine-dash/internal/service/ingestion"
)

// Open connects to the object store named by loc.
func Open(ctx context.Context, loc Location, cfg config.StorageConfig) (Bucket, error) {
	switch loc.Scheme {
	case SchemeS3:
		return newS3Bucket(cfg, loc.Bucket), nil
	case SchemeAzure:
		return newAzureBucket(cfg, loc.Bucket)
	case SchemeGCS:
		return newGCSBucket(ctx, cfg, loc.Bucket)
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", loc.Scheme)
	}
}

// Syncer copies source files under a prefix into the data directory. An
// object whose local file already exists is skipped.
type Syncer struct {
	bucket   Bucket
	loc      Location
	dataDir  string
	reserved string
	guard    domain.Guard
	logger   *slog.Logger
}

// NewSyncer creates a Syncer. reserved is a file name that is never
// downloaded, normally the master dataset.
func NewSyncer(bucket Bucket, loc Location, dataDir, reserved string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		bucket:   bucket,
		loc:      loc,
		dataDir:  dataDir,
		reserved: reserved,
		guard:    ingestion.ExistenceGuard{},
		logger:   logger.With("component", "source-sync", "source", loc.String()),
	}
}

// Sync lists the prefix and downloads every new source file. Listing
// failures and cancellation are fatal; a failed download only fails that
// object.
func (s *Syncer) Sync(ctx context.Context) ([]domain.FileResult, error) {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	objects, err := s.bucket.List(ctx, s.loc.Prefix)
	if err != nil {
		return nil, err
	}

	var results []domain.FileResult
	seen := make(map[string]bool)
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		name := path.Base(obj.Key)
		if strings.HasSuffix(obj.Key, "/") || !ingestion.IsSource(name) {
			continue
		}
		local := filepath.Join(s.dataDir, name)
		res := s.syncOne(ctx, obj, name, local, seen)
		if res.Outcome == domain.OutcomeFailed && ctx.Err() != nil {
			return results, ctx.Err()
		}
		seen[name] = true
		results = append(results, res)
		s.log(ctx, res, obj.Size)
	}
	return results, nil
}

func (s *Syncer) syncOne(ctx context.Context, obj Object, name, local string, seen map[string]bool) domain.FileResult {
	switch {
	case name == s.reserved:
		return domain.Skipped(domain.StepSync, obj.Key, local, "reserved for the master dataset")
	case seen[name]:
		return domain.Skipped(domain.StepSync, obj.Key, local, "duplicate file name")
	}
	done, err := s.guard.Done(local)
	if err != nil {
		return domain.Failed(domain.StepSync, obj.Key, local, err)
	}
	if done {
		return domain.Skipped(domain.StepSync, obj.Key, local, "local file exists")
	}
	if err := s.download(ctx, obj.Key, local); err != nil {
		return domain.Failed(domain.StepSync, obj.Key, local, err)
	}
	return domain.Converted(domain.StepSync, obj.Key, local, 0)
}

// download streams key into a partial file and renames it into place.
func (s *Syncer) download(ctx context.Context, key, local string) error {
	body, err := s.bucket.Open(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	partial := local + ".partial"
	f, err := os.Create(partial) //nolint:gosec // local is under the data dir
	if err != nil {
		return fmt.Errorf("create %s: %w", partial, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(partial)
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("close %s: %w", partial, err)
	}
	if err := os.Rename(partial, local); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("rename %s: %w", partial, err)
	}
	return nil
}

func (s *Syncer) log(ctx context.Context, res domain.FileResult, size int64) {
	switch res.Outcome {
	case domain.OutcomeFailed:
		s.logger.WarnContext(ctx, "download failed", "key", res.Input, "error", res.Reason)
	case domain.OutcomeSkipped:
		s.logger.DebugContext(ctx, "skipped", "key", res.Input, "reason", res.Reason)
	default:
		s.logger.InfoContext(ctx, "downloaded", "key", res.Input, "path", res.Output, "bytes", size)
	}
}
