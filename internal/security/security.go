package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvAllowedDirs holds the allow-listed roots, separated by os.PathListSeparator.
const EnvAllowedDirs = "SHOPPERINSIGHTS_ALLOWED_DIRS"

// DefaultExtensions are the clickstream formats the loader reads.
var DefaultExtensions = []string{".csv", ".xlsx", ".xlsm"}

var (
	ErrPathDenied           = errors.New("security: path not allowed")
	ErrUnsupportedExtension = errors.New("security: unsupported file extension")
	ErrNotFound             = errors.New("security: file not found")
)

// Manager confines file access to canonical allow-listed directories.
type Manager struct {
	roots []string
	exts  map[string]struct{}
}

// NewManager canonicalizes every root (absolute, symlinks resolved) and
// rejects entries that are not directories. Empty extensions mean DefaultExtensions.
func NewManager(roots []string, extensions []string) (*Manager, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") || len(e) < 2 {
			return nil, fmt.Errorf("security: invalid extension %q", e)
		}
		exts[e] = struct{}{}
	}

	canonical := make([]string, 0, len(roots))
	for _, d := range roots {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		real, err := resolve(d)
		if err != nil {
			return nil, fmt.Errorf("security: allow-list entry %q: %w", d, err)
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, fmt.Errorf("security: stat %q: %w", real, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("security: allow-list entry is not a directory: %q", real)
		}
		canonical = append(canonical, real)
	}
	return &Manager{roots: canonical, exts: exts}, nil
}

// NewManagerFromEnv reads EnvAllowedDirs. An unset variable yields an empty
// allow-list, which denies every path.
func NewManagerFromEnv() (*Manager, error) {
	var dirs []string
	if list := os.Getenv(EnvAllowedDirs); list != "" {
		dirs = filepath.SplitList(list)
	}
	return NewManager(dirs, nil)
}

// AllowedDirectories returns a copy of the canonical roots.
func (m *Manager) AllowedDirectories() []string {
	out := make([]string, len(m.roots))
	copy(out, m.roots)
	return out
}

// ValidateConfig fails when no root is configured.
func (m *Manager) ValidateConfig() error {
	if len(m.roots) == 0 {
		return fmt.Errorf("security: no allowed directories configured; set %s", EnvAllowedDirs)
	}
	return nil
}

// ValidateOpenPath returns the canonical path of an existing regular file with
// an allowed extension under one of the roots.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrPathDenied
	}
	if err := m.checkExt(input); err != nil {
		return "", err
	}
	real, err := resolve(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, input)
		}
		return "", fmt.Errorf("security: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, input)
	}
	if info.IsDir() || !m.contains(real) {
		return "", fmt.Errorf("%w: %s", ErrPathDenied, input)
	}
	return real, nil
}

// ValidateWritePath checks a file that may not exist yet: its parent directory
// must resolve inside a root and the extension must be allowed.
func (m *Manager) ValidateWritePath(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrPathDenied
	}
	if err := m.checkExt(input); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: %w", err)
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Dir(input))
	}
	out := filepath.Join(dir, filepath.Base(abs))
	if info, err := os.Lstat(out); err == nil && (info.IsDir() || info.Mode()&os.ModeSymlink != 0) {
		return "", fmt.Errorf("%w: %s", ErrPathDenied, input)
	}
	if !m.contains(out) {
		return "", fmt.Errorf("%w: %s", ErrPathDenied, input)
	}
	return out, nil
}

func (m *Manager) checkExt(p string) error {
	ext := strings.ToLower(filepath.Ext(p))
	if _, ok := m.exts[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	return nil
}

// contains reports whether real lies strictly below one of the roots.
func (m *Manager) contains(real string) bool {
	for _, root := range m.roots {
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(real), nil
}
