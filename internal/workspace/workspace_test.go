package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
)

func TestManager_PrepareCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "repos")
	mgr := NewManager(base)

	path, err := mgr.Prepare("web")
	if err != nil {
		t.Fatalf("Prepare() failed: %v", err)
	}
	if path != filepath.Join(base, "web") {
		t.Errorf("unexpected workspace path: %s", path)
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		t.Fatalf("base directory was not created: %v", err)
	}
}

func TestManager_PrepareRemovesPreviousContents(t *testing.T) {
	base := t.TempDir()
	mgr := NewManager(base)

	stale := filepath.Join(base, "web", "dist")
	if err := os.MkdirAll(stale, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	marker := filepath.Join(stale, "bundle.js")
	if err := os.WriteFile(marker, []byte("old"), 0o600); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	path, err := mgr.Prepare("web")
	if err != nil {
		t.Fatalf("Prepare() failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected previous workspace to be removed, stat err=%v", err)
	}
}

func TestManager_PrepareIsIdempotent(t *testing.T) {
	mgr := NewManager(t.TempDir())
	for range 3 {
		if _, err := mgr.Prepare("web"); err != nil {
			t.Fatalf("Prepare() failed: %v", err)
		}
	}
}

func TestManager_PrepareSourceUsesSiblingDirectory(t *testing.T) {
	base := t.TempDir()
	mgr := NewManager(base)

	build := filepath.Join(base, "web")
	if err := os.MkdirAll(build, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	marker := filepath.Join(build, "in-progress")
	if err := os.WriteFile(marker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	path, err := mgr.PrepareSource("web")
	if err != nil {
		t.Fatalf("PrepareSource() failed: %v", err)
	}
	if path != filepath.Join(base, "web_source") {
		t.Errorf("unexpected source path: %s", path)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("build workspace must be untouched: %v", err)
	}
}

func TestManager_RejectsUnsafeNames(t *testing.T) {
	mgr := NewManager(t.TempDir())
	for _, name := range []string{"", "..", "a/b", "web_source"} {
		_, err := mgr.Prepare(name)
		if !errors.HasCategory(err, errors.CategoryValidation) {
			t.Errorf("Prepare(%q) error = %v, want validation error", name, err)
		}
	}
}

func TestManager_PrepareFailsOnUnwritableBase(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission checks are not enforced")
	}
	parent := t.TempDir()
	if err := os.Chmod(parent, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(parent, 0o750) })

	mgr := NewManager(filepath.Join(parent, "repos"))
	_, err := mgr.Prepare("web")
	if !errors.HasCategory(err, errors.CategoryFileSystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}
