package project

import (
	"fmt"
	"strings"
	"time"
)

// NoErrorLine is the ErrorLine sentinel for output without any error signature.
const NoErrorLine = -1

// Project is a registered buildable unit. Name doubles as the workspace
// directory name, so it must be a single path element.
type Project struct {
	ID            string     `json:"_id"`
	Name          string     `json:"name"`
	SourceRepo    string     `json:"sourceRepo"`
	CreateTime    time.Time  `json:"createTime"`
	LastBuildDate *time.Time `json:"lastBuildDate,omitempty"`
	BuildDuration int64      `json:"buildDuration"`
	BuildCount    Count      `json:"buildCount"`
	BuildStatus   Status     `json:"buildStatus"`
}

// Validate checks the fields required for registration.
func (p *Project) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if strings.TrimSpace(p.SourceRepo) == "" {
		return fmt.Errorf("sourceRepo is required")
	}
	return nil
}

// SourceSuffix names the repo inspection directory that sits next to a
// project's build workspace. Project names may not end with it.
const SourceSuffix = "_source"

// ValidateName rejects names that cannot be used as a workspace directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("name is required")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("name %q must not contain path separators", name)
	case strings.HasSuffix(name, SourceSuffix):
		return fmt.Errorf("name %q must not end with %q", name, SourceSuffix)
	}
	return nil
}

// RecordBuild applies the outcome of one build attempt to the aggregate statistics.
func (p *Project) RecordBuild(at time.Time, duration time.Duration, status Status) {
	p.LastBuildDate = &at
	p.BuildDuration = duration.Milliseconds()
	p.BuildCount = p.BuildCount.Inc()
	p.BuildStatus = status
}

// BuildRecord is the append-only log of a single build attempt.
type BuildRecord struct {
	ID         string    `json:"_id,omitempty"`
	Record     string    `json:"record"`
	Status     Status    `json:"status"`
	ErrorLine  int       `json:"errorLine"`
	Operator   string    `json:"operator"`
	Project    string    `json:"project"`
	CreateTime time.Time `json:"createTime"`
}

// CommitInfo describes the latest commit of a source repository.
type CommitInfo struct {
	Message string    `json:"message,omitempty"`
	Author  string    `json:"author,omitempty"`
	Date    time.Time `json:"date,omitzero"`
	Hash    string    `json:"hash,omitempty"`
}

// RepoInfo is returned by the source repo info operation.
type RepoInfo struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	SourceRepo string     `json:"sourceRepo"`
	LastCommit CommitInfo `json:"lastCommit"`
}
