package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store manages artifact IO for a layout.
type Store struct {
	layout Layout
}

// NewStore builds a store for a layout.
func NewStore(layout Layout) *Store {
	return &Store{layout: layout.withDefaults()}
}

// Layout returns the layout backing the store.
func (s *Store) Layout() Layout {
	return s.layout
}

// Path resolves ref within the store's layout.
func (s *Store) Path(ref ArtifactRef) string {
	return ref.Path(s.layout)
}

// Check inspects the artifact on disk and returns its status.
func (s *Store) Check(ref ArtifactRef) (CheckResult, error) {
	path := ref.Path(s.layout)
	if path == "" {
		err := fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Ref: ref, Path: path, State: StateMissing}, nil
		}
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	if info.IsDir() {
		err := fmt.Errorf("artifact: expected file got directory")
		return CheckResult{Ref: ref, Path: path, State: StateInvalid, Err: err}, nil
	}
	return CheckResult{Ref: ref, Path: path, State: StateReady, Size: info.Size()}, nil
}

// Write persists the artifact contents exactly as given.
func (s *Store) Write(ref ArtifactRef, body []byte) error {
	path := ref.Path(s.layout)
	if path == "" {
		return fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
	}
	return writeFile(path, body)
}

// Read returns the raw artifact contents.
func (s *Store) Read(ref ArtifactRef) ([]byte, error) {
	path := ref.Path(s.layout)
	if path == "" {
		return nil, fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
	}
	return os.ReadFile(path)
}

// WriteOutput stores a task output under the outputs directory. fileName must
// be a bare file name.
func (s *Store) WriteOutput(fileName, body string) error {
	name := strings.TrimSpace(fileName)
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("artifact: invalid output file name %q", fileName)
	}
	return writeFile(filepath.Join(s.layout.OutputsDir, name), []byte(body))
}

// Export writes the sanitized artifact into dir and returns the destination
// path. This backs the "download" action of the presentation layers, which
// hand out the same text they display.
func (s *Store) Export(ref ArtifactRef, dir string) (string, error) {
	data, err := s.Read(ref)
	if err != nil {
		return "", fmt.Errorf("artifact: export %s: %w", ref.ID, err)
	}
	dest := filepath.Join(dir, ref.FileName(s.layout))
	if filepath.Clean(dest) == filepath.Clean(s.Path(ref)) {
		return "", fmt.Errorf("artifact: export %s: destination is the artifact itself", ref.ID)
	}
	if err := writeFile(dest, []byte(Sanitize(string(data)))); err != nil {
		return "", fmt.Errorf("artifact: export %s: %w", ref.ID, err)
	}
	return dest, nil
}

func writeFile(path string, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
