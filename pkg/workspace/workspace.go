package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	wardenerrors "warden/pkg/errors"
)

// ErrNoWorkspace is returned when no workspace root is configured. Every
// filesystem operation requires an externally supplied root; the package
// never guesses one.
var ErrNoWorkspace = wardenerrors.New(wardenerrors.ErrCodeNoWorkspace, "No workspace folder open")

// Workspace performs filesystem operations rooted at a single directory.
// Paths that escape the root are rejected.
type Workspace struct {
	root string
}

// New creates a workspace rooted at root.
func New(root string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, ErrNoWorkspace
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace root: %w", err)
	}
	return &Workspace{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// resolve turns a workspace-relative (or absolute, if inside the root)
// path into an absolute path, rejecting escapes.
func (w *Workspace) resolve(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	var candidate string
	if filepath.IsAbs(raw) {
		candidate = filepath.Clean(raw)
	} else {
		candidate = filepath.Clean(filepath.Join(w.root, raw))
	}

	if !isWithinDir(w.root, candidate) {
		return "", fmt.Errorf("path %q escapes workspace", raw)
	}
	return candidate, nil
}

func isWithinDir(base, candidate string) bool {
	if candidate == base {
		return true
	}
	rel, err := filepath.Rel(base, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Exists reports whether a regular file exists at the path.
func (w *Workspace) Exists(path string) bool {
	abs, err := w.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// Read returns the file contents as a string.
func (w *Workspace) Read(path string) (string, error) {
	abs, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// Write writes content to the path, creating parent directories as needed
// and overwriting any existing file.
func (w *Workspace) Write(path, content string) error {
	abs, err := w.resolve(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(abs); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Delete removes the file at the path. There is no trash or recovery step.
func (w *Workspace) Delete(path string) error {
	abs, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Glob walks the workspace and returns relative paths of files whose base
// name or relative path matches the pattern. Hidden directories (.git and
// friends) are skipped.
func (w *Workspace) Glob(pattern string) ([]string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	var matches []string
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if info.IsDir() {
			if path != w.root && strings.HasPrefix(filepath.Base(path), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if matchesGlob(pattern, rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return matches, nil
}

// matchesGlob matches a relative path against a glob pattern: the base name
// first (so "*.go" finds files anywhere), then the full relative path, with
// "**/" prefixes treated as any-directory.
func matchesGlob(pattern, rel string) bool {
	base := filepath.Base(rel)
	if ok, _ := filepath.Match(pattern, base); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, rel); ok {
		return true
	}
	if trimmed, found := strings.CutPrefix(pattern, "**/"); found {
		if ok, _ := filepath.Match(trimmed, base); ok {
			return true
		}
		if ok, _ := filepath.Match(trimmed, rel); ok {
			return true
		}
	}
	return false
}
