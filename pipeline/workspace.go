package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// workspace is a per-request directory under the temp dir. Files created in
// it, and any tracked files outside it, are removed by cleanup.
type workspace struct {
	dir   string
	files []string
}

func newWorkspace(root string) (*workspace, error) {
	dir := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// track marks a file for removal; files inside dir need no tracking
func (w *workspace) track(path string) {
	if rel, err := filepath.Rel(w.dir, path); err == nil && filepath.IsLocal(rel) {
		return
	}
	w.files = append(w.files, path)
}

func (w *workspace) cleanup() error {
	var errs []error
	for _, f := range w.files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(w.dir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
