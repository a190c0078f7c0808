package workspace

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/logfields"
	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// SourceSuffix is appended to the project name for the repo inspection directory.
const SourceSuffix = project.SourceSuffix

// Manager hands out project workspaces below a base directory.
type Manager struct {
	baseDir string
}

// NewManager creates a workspace manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "forgebuild")
	}
	return &Manager{baseDir: baseDir}
}

// BaseDir returns the directory all workspaces live in.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Path returns the build workspace path for a project without touching disk.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.baseDir, name)
}

// SourcePath returns the inspection workspace path for a project.
func (m *Manager) SourcePath(name string) string {
	return filepath.Join(m.baseDir, name+SourceSuffix)
}

// Prepare ensures the base directory exists and removes any previous build
// workspace for name. The returned path does not exist yet; the clone creates it.
func (m *Manager) Prepare(name string) (string, error) {
	return m.prepare(name, m.Path(name))
}

// PrepareSource is Prepare for the sibling inspection directory.
func (m *Manager) PrepareSource(name string) (string, error) {
	return m.prepare(name, m.SourcePath(name))
}

func (m *Manager) prepare(name, path string) (string, error) {
	if err := project.ValidateName(name); err != nil {
		return "", errors.ValidationError("invalid workspace name").
			WithCause(err).
			WithContext("name", name).
			Build()
	}
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return "", errors.FileSystemError("failed to create workspace base directory").
			WithCause(err).
			WithContext("path", m.baseDir).
			Build()
	}
	if err := os.RemoveAll(path); err != nil {
		return "", errors.FileSystemError("failed to remove previous workspace").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	slog.Debug("Prepared workspace", logfields.ProjectName(name), logfields.Path(path))
	return path, nil
}

// Remove deletes the build workspace of a project. Missing directories are not an error.
func (m *Manager) Remove(name string) error {
	if err := os.RemoveAll(m.Path(name)); err != nil {
		return errors.FileSystemError("failed to remove workspace").
			WithCause(err).
			WithContext("path", m.Path(name)).
			Build()
	}
	return nil
}
