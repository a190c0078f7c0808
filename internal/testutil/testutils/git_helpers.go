package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SetupTestGitRepo initializes a temporary git repository for testing.
// Returns the repository, its worktree, and the absolute path to the temporary directory.
func SetupTestGitRepo(t *testing.T) (*git.Repository, *git.Worktree, string) {
	t.Helper()

	tempDir := t.TempDir()

	repo, err := git.PlainInit(tempDir, false)
	if err != nil {
		t.Fatalf("failed to initialize git repo: %v", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	return repo, w, tempDir
}

// CommitFiles writes files into the worktree and commits them as a single commit.
// Returns the commit hash.
func CommitFiles(t *testing.T, w *git.Worktree, root string, files map[string]string, message string) string {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		// #nosec G306 - build scripts in fixtures must be executable
		if err := os.WriteFile(path, []byte(content), 0o700); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := w.Add(name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

// NewSourceRepo creates a committed repository that can be cloned by local path.
// Returns the repository path and the commit hash.
func NewSourceRepo(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	if len(files) == 0 {
		files = map[string]string{"README.md": "# fixture\n"}
	}
	_, w, dir := SetupTestGitRepo(t)
	hash := CommitFiles(t, w, dir, files, "Initial commit")
	return dir, hash
}
