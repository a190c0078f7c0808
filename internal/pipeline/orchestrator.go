package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/forgebuild/internal/builder"
	"git.home.luguber.info/inful/forgebuild/internal/classify"
	"git.home.luguber.info/inful/forgebuild/internal/events"
	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/git"
	"git.home.luguber.info/inful/forgebuild/internal/logfields"
	"git.home.luguber.info/inful/forgebuild/internal/metrics"
	"git.home.luguber.info/inful/forgebuild/internal/observability"
	"git.home.luguber.info/inful/forgebuild/internal/project"
	"git.home.luguber.info/inful/forgebuild/internal/store"
	"git.home.luguber.info/inful/forgebuild/internal/workspace"
)

// ProjectStore loads and persists projects.
type ProjectStore interface {
	Find(ctx context.Context, filter store.Filter) ([]project.Project, error)
	FindByID(ctx context.Context, id string) (*project.Project, error)
	Save(ctx context.Context, p *project.Project) error
}

// RecordStore appends build records.
type RecordStore interface {
	Append(ctx context.Context, r *project.BuildRecord) error
}

// Fetcher obtains working copies of source repositories.
type Fetcher interface {
	Clone(ctx context.Context, url, dest string) git.CloneResult
	LatestCommit(path string) (project.CommitInfo, error)
}

// Deps are the collaborators of an Orchestrator. Recorder, Publisher and Now
// are optional.
type Deps struct {
	Projects   ProjectStore
	Records    RecordStore
	Fetcher    Fetcher
	Runner     builder.Runner
	Classifier *classify.Classifier
	Workspace  *workspace.Manager
	Recorder   metrics.Recorder
	Publisher  events.Publisher
	Now        func() time.Time
	// Serialize builds of the same project. Without it concurrent builds of
	// one project can lose a buildCount increment.
	Serialize bool
}

// Orchestrator runs build attempts.
type Orchestrator struct {
	projects   ProjectStore
	records    RecordStore
	fetcher    Fetcher
	runner     builder.Runner
	classifier *classify.Classifier
	workspace  *workspace.Manager
	recorder   metrics.Recorder
	publisher  events.Publisher
	now        func() time.Time
	serialize  bool
	locks      *keyedMutex
}

// New creates an orchestrator from deps.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		projects:   deps.Projects,
		records:    deps.Records,
		fetcher:    deps.Fetcher,
		runner:     deps.Runner,
		classifier: deps.Classifier,
		workspace:  deps.Workspace,
		recorder:   deps.Recorder,
		publisher:  deps.Publisher,
		now:        deps.Now,
		serialize:  deps.Serialize,
		locks:      newKeyedMutex(),
	}
	if o.classifier == nil {
		o.classifier = classify.New()
	}
	if o.recorder == nil {
		o.recorder = metrics.NoopRecorder{}
	}
	if o.publisher == nil {
		o.publisher = events.NoopPublisher{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Classifier exposes the signature set so configuration reloads can update it.
func (o *Orchestrator) Classifier() *classify.Classifier { return o.classifier }

type operatorKey struct{}

// WithOperator attributes builds started with ctx to operator.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

func operatorFrom(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}

// BuildByID runs one build attempt for the project with the given id and
// returns the appended build record.
//
// Errors are classified: not_found for an unknown id, filesystem when the
// workspace cannot be prepared, persistence when the record or the project
// cannot be written. A clone failure is not an error; it yields a failed record.
func (o *Orchestrator) BuildByID(ctx context.Context, id string) (*project.BuildRecord, error) {
	o.recorder.AddBuildsInFlight(1)
	defer o.recorder.AddBuildsInFlight(-1)

	a := newAttempt(ctx, uuid.NewString(), o.recorder, o.now)

	if o.serialize {
		unlock := o.locks.Lock(id)
		defer unlock()
	}

	// Started
	p, err := o.projects.FindByID(a.ctx, id)
	if err != nil {
		o.recorder.IncBuildOutcome("aborted")
		return nil, a.abort(err)
	}
	a.ctx = observability.WithProject(a.ctx, p.ID, p.Name)

	// Fetching
	if err := a.advance(StageFetching); err != nil {
		return nil, a.abort(err)
	}
	start := o.now()
	dir, err := o.workspace.Prepare(p.Name)
	if err != nil {
		o.recorder.IncBuildOutcome("aborted")
		return nil, a.abort(err)
	}
	clone := o.fetcher.Clone(a.ctx, p.SourceRepo, dir)
	o.recorder.ObserveCloneDuration(clone.Duration, clone.OK())
	o.recorder.IncCloneResult(clone.OK())
	if !clone.OK() {
		observability.WarnContext(a.ctx, "Clone failed, recording failed build",
			logfields.Repository(p.SourceRepo),
			slog.String("kind", string(clone.Err.Kind)),
			logfields.Error(clone.Err))
	}

	// Building
	if err := a.advance(StageBuilding); err != nil {
		return nil, a.abort(err)
	}
	output := ""
	if clone.OK() {
		output = o.runner.Run(a.ctx, dir)
	}

	// Classifying
	if err := a.advance(StageClassifying); err != nil {
		return nil, a.abort(err)
	}
	outcome := o.classifier.Classify(output, clone.OK())
	elapsed := o.now().Sub(start)

	// Recording
	if err := a.advance(StageRecording); err != nil {
		return nil, a.abort(err)
	}
	rec := &project.BuildRecord{
		Record:    output,
		Status:    outcome.Status,
		ErrorLine: outcome.ErrorLine,
		Operator:  operatorFrom(ctx),
		Project:   p.ID,
	}
	if err := o.records.Append(a.ctx, rec); err != nil {
		o.recorder.IncBuildOutcome("aborted")
		return nil, a.abort(asPersistence(err, "append build record"))
	}

	// Updating
	if err := a.advance(StageUpdating); err != nil {
		return nil, a.abort(err)
	}
	p.RecordBuild(o.now(), elapsed, outcome.Status)
	if err := o.projects.Save(a.ctx, p); err != nil {
		o.recorder.IncBuildOutcome("aborted")
		return nil, a.abort(asPersistence(err, "update project"))
	}

	if err := a.advance(StageDone); err != nil {
		return nil, a.abort(err)
	}
	o.recorder.ObserveBuildDuration(elapsed)
	o.recorder.IncBuildOutcome(outcome.Status.String())

	ev := events.BuildCompleted{
		BuildID:    rec.ID,
		ProjectID:  p.ID,
		Project:    p.Name,
		Status:     outcome.Status,
		ErrorLine:  outcome.ErrorLine,
		DurationMS: p.BuildDuration,
		BuildCount: int64(p.BuildCount),
		Commit:     clone.Commit,
	}
	if err := o.publisher.PublishBuildCompleted(a.ctx, ev); err != nil {
		observability.WarnContext(a.ctx, "Failed to publish build event", logfields.Error(err))
	}

	observability.InfoContext(a.ctx, "Build finished",
		logfields.BuildStatus(outcome.Status.String()),
		logfields.ErrorLine(outcome.ErrorLine),
		logfields.DurationMS(float64(elapsed.Milliseconds())),
		slog.Int64("build_count", int64(p.BuildCount)))
	return rec, nil
}

// SourceRepoInfo clones a project's repository into its sibling inspection
// directory and reports the latest commit. Empty name or sourceRepo fall back
// to the stored project. Build state is not touched.
func (o *Orchestrator) SourceRepoInfo(ctx context.Context, id, name, sourceRepo string) (*project.RepoInfo, error) {
	if name == "" || sourceRepo == "" {
		p, err := o.projects.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = p.Name
		}
		if sourceRepo == "" {
			sourceRepo = p.SourceRepo
		}
	}

	unlock := o.locks.Lock(name + workspace.SourceSuffix)
	defer unlock()

	dir, err := o.workspace.PrepareSource(name)
	if err != nil {
		return nil, err
	}
	clone := o.fetcher.Clone(ctx, sourceRepo, dir)
	o.recorder.IncCloneResult(clone.OK())
	if !clone.OK() {
		return nil, git.ClassifyGitError(clone.Err, "clone")
	}

	info := &project.RepoInfo{ID: id, Name: name, SourceRepo: sourceRepo}
	commit, err := o.fetcher.LatestCommit(dir)
	if err != nil {
		slog.Warn("Failed to read latest commit", logfields.ProjectName(name), logfields.Path(dir), logfields.Error(err))
		return info, nil
	}
	info.LastCommit = commit
	return info, nil
}

// RebuildSummary counts the outcomes of RebuildAll.
type RebuildSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    int
}

// RebuildAll builds every registered project in turn. Errors of individual
// attempts are logged and counted; only listing failures and cancellation are
// returned.
func (o *Orchestrator) RebuildAll(ctx context.Context) (RebuildSummary, error) {
	var sum RebuildSummary
	projects, err := o.projects.Find(ctx, store.Filter{})
	if err != nil {
		return sum, err
	}
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Total++
		rec, err := o.BuildByID(ctx, p.ID)
		switch {
		case err != nil:
			sum.Errors++
			slog.Error("Scheduled build failed", logfields.ProjectID(p.ID), logfields.ProjectName(p.Name), logfields.Error(err))
		case rec.Status == project.StatusSuccess:
			sum.Succeeded++
		default:
			sum.Failed++
		}
	}
	slog.Info("Rebuild of all projects finished",
		slog.Int("total", sum.Total),
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("failed", sum.Failed),
		slog.Int("errors", sum.Errors))
	return sum, nil
}

func asPersistence(err error, op string) error {
	if errors.IsClassified(err) {
		return err
	}
	return errors.PersistenceError(op).WithCause(err).Build()
}
