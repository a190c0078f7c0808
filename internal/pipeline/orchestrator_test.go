package pipeline

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/forgebuild/internal/builder"
	"git.home.luguber.info/inful/forgebuild/internal/events"
	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/git"
	"git.home.luguber.info/inful/forgebuild/internal/project"
	"git.home.luguber.info/inful/forgebuild/internal/store"
	helpers "git.home.luguber.info/inful/forgebuild/internal/testutil/testutils"
	"git.home.luguber.info/inful/forgebuild/internal/workspace"
)

type fixture struct {
	db        *store.DB
	base      string
	orch      *Orchestrator
	publisher *recordingPublisher
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BuildCompleted
	err    error
}

func (p *recordingPublisher) PublishBuildCompleted(_ context.Context, ev events.BuildCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newFixture(t *testing.T, runner builder.Runner, mutate ...func(*Deps)) *fixture {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newFixtureWithDB(t, db, runner, mutate...)
}

func newFixtureWithDB(t *testing.T, db *store.DB, runner builder.Runner, mutate ...func(*Deps)) *fixture {
	t.Helper()
	base := filepath.Join(t.TempDir(), "repos")
	pub := &recordingPublisher{}
	deps := Deps{
		Projects:  db.Projects(),
		Records:   db.Records(),
		Fetcher:   git.NewClient(),
		Runner:    runner,
		Workspace: workspace.NewManager(base),
		Publisher: pub,
		Serialize: true,
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &fixture{db: db, base: base, orch: New(deps), publisher: pub}
}

func (f *fixture) register(t *testing.T, name, repo string) *project.Project {
	t.Helper()
	p := &project.Project{Name: name, SourceRepo: repo}
	require.NoError(t, f.db.Projects().Insert(context.Background(), p))
	return p
}

func (f *fixture) reload(t *testing.T, id string) *project.Project {
	t.Helper()
	p, err := f.db.Projects().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func staticOutput(out string) builder.Runner {
	return builder.FuncRunner(func(context.Context, string) string { return out })
}

func TestBuildByID_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		status    project.Status
		errorLine int
	}{
		{name: "clean build", output: "compiling...\ndone", status: project.StatusSuccess, errorLine: -1},
		{name: "single error", output: "line0\nTypeError: x\nline2", status: project.StatusFailed, errorLine: 1},
		{name: "last match wins", output: "Error: a\nline1\nError: b", status: project.StatusFailed, errorLine: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := helpers.NewSourceRepo(t, nil)
			f := newFixture(t, staticOutput(tt.output))
			p := f.register(t, "site", src)

			rec, err := f.orch.BuildByID(context.Background(), p.ID)
			require.NoError(t, err)
			require.Equal(t, tt.status, rec.Status)
			require.Equal(t, tt.errorLine, rec.ErrorLine)
			require.Equal(t, tt.output, rec.Record)
			require.Equal(t, p.ID, rec.Project)
			require.Empty(t, rec.Operator)

			got := f.reload(t, p.ID)
			require.Equal(t, project.Count(1), got.BuildCount)
			require.Equal(t, tt.status, got.BuildStatus)
			require.NotNil(t, got.LastBuildDate)
			require.GreaterOrEqual(t, got.BuildDuration, int64(0))

			list, err := f.db.Records().ListByProject(context.Background(), p.ID, 10)
			require.NoError(t, err)
			require.Len(t, list, 1)
		})
	}
}

func TestBuildByID_CloneFailureStillRecords(t *testing.T) {
	called := false
	f := newFixture(t, builder.FuncRunner(func(context.Context, string) string {
		called = true
		return "Error: should not run"
	}))
	p := f.register(t, "broken", filepath.Join(t.TempDir(), "no-such-repo"))

	rec, err := f.orch.BuildByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.False(t, called, "build tool must not run without a working copy")
	require.Equal(t, project.StatusFailed, rec.Status)
	require.Equal(t, project.NoErrorLine, rec.ErrorLine)
	require.Empty(t, rec.Record)

	got := f.reload(t, p.ID)
	require.Equal(t, project.Count(1), got.BuildCount)
	require.Equal(t, project.StatusFailed, got.BuildStatus)

	helpers.NewFileAssertions(t, f.base).AssertNotExists("broken")
}

func TestBuildByID_NotFound(t *testing.T) {
	f := newFixture(t, staticOutput(""))

	rec, err := f.orch.BuildByID(context.Background(), "missing")
	require.Nil(t, rec)
	require.True(t, errors.HasCategory(err, errors.CategoryNotFound))
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, f.publisher.events)
}

func TestBuildByID_WorkspaceFailureAborts(t *testing.T) {
	src, _ := helpers.NewSourceRepo(t, nil)
	f := newFixture(t, staticOutput(""))
	p := f.register(t, "site", src)

	// A regular file where the base directory should be makes Prepare fail.
	require.NoError(t, os.WriteFile(f.base, []byte("not a dir"), 0o600))

	_, err := f.orch.BuildByID(context.Background(), p.ID)
	require.True(t, errors.HasCategory(err, errors.CategoryFileSystem), "got %v", err)

	n, err := f.db.Records().CountByProject(context.Background(), p.ID)
	require.NoError(t, err)
	require.Zero(t, n, "aborted attempts write no record")
	require.Equal(t, project.Count(0), f.reload(t, p.ID).BuildCount)
}

type failingRecords struct{}

func (failingRecords) Append(context.Context, *project.BuildRecord) error {
	return stderrors.New("disk I/O error")
}

func TestBuildByID_RecordFailureIsPersistenceError(t *testing.T) {
	src, _ := helpers.NewSourceRepo(t, nil)
	f := newFixture(t, staticOutput("ok"), func(d *Deps) { d.Records = failingRecords{} })
	p := f.register(t, "site", src)

	_, err := f.orch.BuildByID(context.Background(), p.ID)
	require.True(t, errors.HasCategory(err, errors.CategoryPersistence))
	require.Equal(t, project.Count(0), f.reload(t, p.ID).BuildCount, "project is not updated without a record")
}

// failingSave reads through to the real store but cannot write projects.
type failingSave struct {
	*store.ProjectStore
}

func (failingSave) Save(context.Context, *project.Project) error {
	return os.ErrPermission
}

func TestBuildByID_SaveFailureLeavesRecord(t *testing.T) {
	src, _ := helpers.NewSourceRepo(t, nil)
	f := newFixture(t, staticOutput("Error: boom"), func(d *Deps) {
		d.Projects = failingSave{ProjectStore: d.Projects.(*store.ProjectStore)}
	})
	p := f.register(t, "site", src)

	rec, err := f.orch.BuildByID(context.Background(), p.ID)
	require.Nil(t, rec)
	require.True(t, errors.HasCategory(err, errors.CategoryPersistence), "got %v", err)
	require.ErrorIs(t, err, os.ErrPermission)

	// The record is written before the project update and is not rolled back.
	records, err := f.db.Records().ListByProject(context.Background(), p.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, project.StatusFailed, records[0].Status)

	stored := f.reload(t, p.ID)
	require.Equal(t, project.Count(0), stored.BuildCount)
	require.Nil(t, stored.LastBuildDate)
	require.Empty(t, f.publisher.events)
}

func TestBuildByID_PristineWorkspace(t *testing.T) {
	src, _ := helpers.NewSourceRepo(t, map[string]string{"README.md": "# fresh\n"})
	var sawStale, sawReadme bool
	f := newFixture(t, builder.FuncRunner(func(_ context.Context, dir string) string {
		_, err := os.Stat(filepath.Join(dir, "stale.txt"))
		sawStale = err == nil
		_, err = os.Stat(filepath.Join(dir, "README.md"))
		sawReadme = err == nil
		return "done"
	}))
	p := f.register(t, "site", src)

	require.NoError(t, os.MkdirAll(filepath.Join(f.base, "site"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(f.base, "site", "stale.txt"), []byte("old"), 0o600))

	_, err := f.orch.BuildByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.False(t, sawStale, "previous workspace contents must be removed")
	require.True(t, sawReadme)
}

func TestBuildByID_NonNumericBuildCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forgebuild.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src, _ := helpers.NewSourceRepo(t, nil)
	f := newFixtureWithDB(t, db, staticOutput("done"))
	p := f.register(t, "legacy", src)

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE projects SET build_count = 'twelve' WHERE id = ?", p.ID)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = f.orch.BuildByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, project.Count(1), f.reload(t, p.ID).BuildCount)
}

func TestBuildByID_ConcurrentSameProjectSerialized(t *testing.T) {
	src, _ := helpers.NewSourceRepo(t, nil)
	f := newFixture(t, builder.FuncRunner(func(context.Context, string) string {
		time.Sleep(50 * time.Millisecond)
		return "done"
	}))
	p := f.register(t, "site", src)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.BuildByID(context.Background(), p.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, project.Count(2), f.reload(t, p.ID).BuildCount)
	n, err := f.db.Records().CountByProject(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

// localFetcher pretends every clone succeeds without touching disk, so
// unserialized builds of one project do not fight over the workspace.
type localFetcher struct{}

func (localFetcher) Clone(_ context.Context, _, dest string) git.CloneResult {
	return git.CloneResult{Path: dest, Commit: "0000000"}
}

func (localFetcher) LatestCommit(string) (project.CommitInfo, error) {
	return project.CommitInfo{}, nil
}

func TestBuildByID_UnserializedStillRecordsEveryAttempt(t *testing.T) {
	f := newFixture(t, builder.FuncRunner(func(context.Context, string) string {
		time.Sleep(50 * time.Millisecond)
		return "done"
	}), func(d *Deps) {
		d.Serialize = false
		d.Fetcher = localFetcher{}
	})
	p := f.register(t, "site", "https://example.invalid/site.git")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.BuildByID(context.Background(), p.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := f.db.Records().CountByProject(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Without the lock an increment may be lost.
	count := f.reload(t, p.ID).BuildCount
	require.GreaterOrEqual(t, int64(count), int64(1))
	require.LessOrEqual(t, int64(count), int64(2))
	require.Zero(t, f.orch.locks.size())
}

func TestBuildByID_DifferentProjectsRunConcurrently(t *testing.T) {
	srcA, _ := helpers.NewSourceRepo(t, nil)
	srcB, _ := helpers.NewSourceRepo(t, nil)
	bStarted := make(chan struct{})

	f := newFixture(t, builder.FuncRunner(func(_ context.Context, dir string) string {
		if filepath.Base(dir) == "b" {
			close(bStarted)
			return "done"
		}
		select {
		case <-bStarted:
			return "done"
		case <-time.After(5 * time.Second):
			return "Error: builds of different projects were serialized"
		}
	}))
	a := f.register(t, "a", srcA)
	b := f.register(t, "b", srcB)

	var wg sync.WaitGroup
	var recA *project.BuildRecord
	wg.Add(1)
	go func() {
		defer wg.Done()
		recA, _ = f.orch.BuildByID(context.Background(), a.ID)
	}()
	time.Sleep(20 * time.Millisecond)
	_, err := f.orch.BuildByID(context.Background(), b.ID)
	require.NoError(t, err)
	wg.Wait()

	require.NotNil(t, recA)
	require.Equal(t, project.StatusSuccess, recA.Status)
}

func TestBuildByID_OperatorAndEvents(t *testing.T) {
	src, hash := helpers.NewSourceRepo(t, nil)
	f := newFixture(t, staticOutput("Error: x"))
	f.publisher.err = stderrors.New("nats unavailable")
	p := f.register(t, "site", src)

	rec, err := f.orch.BuildByID(WithOperator(context.Background(), "alice"), p.ID)
	require.NoError(t, err, "publish failures do not fail the build")
	require.Equal(t, "alice", rec.Operator)

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	require.Equal(t, rec.ID, ev.BuildID)
	require.Equal(t, p.ID, ev.ProjectID)
	require.Equal(t, project.StatusFailed, ev.Status)
	require.Equal(t, int64(1), ev.BuildCount)
	require.Equal(t, hash, ev.Commit)
}

func TestSourceRepoInfo(t *testing.T) {
	_, w, src := helpers.SetupTestGitRepo(t)
	hash := helpers.CommitFiles(t, w, src, map[string]string{"index.js": "1"}, "Release 1.2\n\ndetails")
	f := newFixture(t, staticOutput(""))
	p := f.register(t, "site", src)

	info, err := f.orch.SourceRepoInfo(context.Background(), p.ID, "", "")
	require.NoError(t, err)
	require.Equal(t, p.ID, info.ID)
	require.Equal(t, "site", info.Name)
	require.Equal(t, src, info.SourceRepo)
	require.Equal(t, "Release 1.2", info.LastCommit.Message)
	require.Equal(t, "Test User", info.LastCommit.Author)
	require.Equal(t, hash, info.LastCommit.Hash)

	helpers.NewFileAssertions(t, f.base).
		AssertDirExists("site_source").
		AssertNotExists("site")

	got := f.reload(t, p.ID)
	require.Equal(t, project.Count(0), got.BuildCount, "repo info does not touch build state")
	require.Nil(t, got.LastBuildDate)
}

func TestSourceRepoInfo_ExplicitValuesAndFailures(t *testing.T) {
	src, _ := helpers.NewSourceRepo(t, nil)
	f := newFixture(t, staticOutput(""))

	info, err := f.orch.SourceRepoInfo(context.Background(), "adhoc", "other", src)
	require.NoError(t, err, "explicit name and repo need no stored project")
	require.Equal(t, "other", info.Name)

	_, err = f.orch.SourceRepoInfo(context.Background(), "missing", "", "")
	require.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	_, err = f.orch.SourceRepoInfo(context.Background(), "x", "gone", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	require.True(t, errors.IsClassified(err))
}

func TestRebuildAll(t *testing.T) {
	good, _ := helpers.NewSourceRepo(t, nil)
	f := newFixture(t, staticOutput("done"))
	f.register(t, "good", good)
	f.register(t, "bad", filepath.Join(t.TempDir(), "missing"))

	sum, err := f.orch.RebuildAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, RebuildSummary{Total: 2, Succeeded: 1, Failed: 1}, sum)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.orch.RebuildAll(ctx)
	require.Error(t, err)
}
