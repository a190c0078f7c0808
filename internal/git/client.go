package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/forgebuild/internal/config"
	"git.home.luguber.info/inful/forgebuild/internal/logfields"
	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// CloneResult is the outcome of a clone. Exactly one of Path or Err is meaningful.
type CloneResult struct {
	Path     string
	Commit   string
	Duration time.Duration
	Err      *CloneError
}

// OK reports whether the clone produced a working copy.
func (r CloneResult) OK() bool { return r.Err == nil }

// Client performs clones with shared credentials and limits.
type Client struct {
	auth         *config.AuthConfig
	timeout      time.Duration
	shallowDepth int
}

// NewClient creates a client without credentials or timeout.
func NewClient() *Client { return &Client{} }

// NewClientFromConfig wires credentials and clone limits from configuration.
func NewClientFromConfig(cfg *config.Config) *Client {
	return &Client{
		auth:         cfg.Git.Auth,
		timeout:      cfg.Build.CloneTimeout,
		shallowDepth: cfg.Build.ShallowDepth,
	}
}

// WithTimeout bounds every clone (fluent helper).
func (c *Client) WithTimeout(d time.Duration) *Client { c.timeout = d; return c }

// Clone clones the default branch of url into dest. dest must not exist.
// A failed clone leaves no partial directory behind.
func (c *Client) Clone(ctx context.Context, url, dest string) CloneResult {
	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	slog.Debug("Cloning repository", logfields.URL(url), logfields.Path(dest))

	opts := &git.CloneOptions{URL: url}
	if c.shallowDepth > 0 {
		opts.Depth = c.shallowDepth
	}
	auth, err := authMethod(c.auth)
	if err != nil {
		return CloneResult{Duration: time.Since(start), Err: &CloneError{URL: url, Kind: KindAuth, Err: err}}
	}
	opts.Auth = auth

	repository, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			slog.Warn("Failed to remove partial clone", logfields.Path(dest), logfields.Error(rmErr))
		}
		return CloneResult{Duration: time.Since(start), Err: classifyCloneError(url, err)}
	}

	res := CloneResult{Path: dest, Duration: time.Since(start)}
	if ref, herr := repository.Head(); herr == nil {
		res.Commit = ref.Hash().String()
		slog.Info("Repository cloned successfully", logfields.URL(url), logfields.Commit(shortHash(res.Commit)), logfields.Path(dest))
	} else {
		slog.Info("Repository cloned successfully", logfields.URL(url), logfields.Path(dest))
	}
	return res
}

// LatestCommit returns the HEAD commit of the working copy at path.
func (c *Client) LatestCommit(path string) (project.CommitInfo, error) {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return project.CommitInfo{}, fmt.Errorf("open repository: %w", err)
	}
	iter, err := repository.Log(&git.LogOptions{})
	if err != nil {
		return project.CommitInfo{}, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	commit, err := iter.Next()
	if err != nil {
		return project.CommitInfo{}, fmt.Errorf("read latest commit: %w", err)
	}
	return project.CommitInfo{
		Message: subject(commit.Message),
		Author:  commit.Author.Name,
		Date:    commit.Author.When,
		Hash:    commit.Hash.String(),
	}, nil
}

func subject(message string) string {
	message = strings.TrimSpace(message)
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimSpace(message[:i])
	}
	return message
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
