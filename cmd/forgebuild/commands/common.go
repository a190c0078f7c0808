package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/forgebuild/internal/builder"
	"git.home.luguber.info/inful/forgebuild/internal/classify"
	"git.home.luguber.info/inful/forgebuild/internal/config"
	"git.home.luguber.info/inful/forgebuild/internal/events"
	"git.home.luguber.info/inful/forgebuild/internal/git"
	"git.home.luguber.info/inful/forgebuild/internal/metrics"
	"git.home.luguber.info/inful/forgebuild/internal/pipeline"
	"git.home.luguber.info/inful/forgebuild/internal/store"
	"git.home.luguber.info/inful/forgebuild/internal/workspace"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"forgebuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve    ServeCmd    `cmd:"" help:"Serve the build API"`
	Build    BuildCmd    `cmd:"" help:"Build a registered project once"`
	Project  ProjectCmd  `cmd:"" help:"Manage registered projects"`
	RepoInfo RepoInfoCmd `cmd:"" name:"repo-info" help:"Show the latest commit of a project's source repository"`
	Rebuild  RebuildCmd  `cmd:"" help:"Build every registered project once"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once. The logging section
// of the config file is honored when the file can be read; a broken config is
// reported later by the command that loads it.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	logging := config.LoggingConfig{}
	if cfg, err := config.Load(c.Config); err == nil {
		logging = cfg.Logging
	}
	logger := logging.NewLogger(os.Stderr, c.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

// app is the fully wired service graph shared by every command that builds.
type app struct {
	cfg          *config.Config
	db           *store.DB
	orchestrator *pipeline.Orchestrator
	registry     *prom.Registry
	recorder     metrics.Recorder
	publisher    events.Publisher
}

// newApp opens the database and wires the build pipeline described by cfg.
// withMetrics registers Prometheus collectors when the config enables them.
func newApp(cfg *config.Config, withMetrics bool) (*app, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, db: db, recorder: metrics.NoopRecorder{}, publisher: events.NoopPublisher{}}
	if withMetrics && cfg.Metrics.IsEnabled() {
		a.registry = prom.NewRegistry()
		a.recorder = metrics.NewPrometheusRecorder(a.registry)
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			// Builds still run; completion events are simply not published.
			slog.Warn("NATS unavailable, build events disabled", "url", cfg.Events.NATSURL, "error", err)
		} else {
			a.publisher = pub
		}
	}

	a.orchestrator = pipeline.New(pipeline.Deps{
		Projects:   db.Projects(),
		Records:    db.Records(),
		Fetcher:    git.NewClientFromConfig(cfg),
		Runner:     builder.NewInvoker(cfg.Build),
		Classifier: classify.New(cfg.Build.Signatures...),
		Workspace:  workspace.NewManager(cfg.WorkspaceDir()),
		Recorder:   a.recorder,
		Publisher:  a.publisher,
		Serialize:  cfg.Build.SerializeBuilds(),
	})
	return a, nil
}

// Close releases the database and the event connection.
func (a *app) Close() error {
	if err := a.publisher.Close(); err != nil {
		slog.Warn("Failed to close event publisher", "error", err)
	}
	return a.db.Close()
}

// loadApp loads the configuration at path and wires an app from it.
func loadApp(path string, withMetrics bool) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(cfg, withMetrics)
}
