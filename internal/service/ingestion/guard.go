package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"ancine-dash/internal/domain"
)

var _ domain.Guard = ExistenceGuard{}

// ExistenceGuard treats a step as done when its output path exists.
type ExistenceGuard struct{}

// Done reports whether outputPath exists. Any stat error other than
// not-exist is returned so the caller does not redo work blindly.
func (ExistenceGuard) Done(outputPath string) (bool, error) {
	_, err := os.Stat(outputPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", outputPath, err)
	}
}
