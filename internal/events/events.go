// Package events publishes build lifecycle notifications to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/forgebuild/internal/logfields"
	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// BuildCompleted is emitted after a build attempt has been recorded.
type BuildCompleted struct {
	BuildID    string         `json:"buildId"`
	ProjectID  string         `json:"projectId"`
	Project    string         `json:"project"`
	Status     project.Status `json:"status"`
	ErrorLine  int            `json:"errorLine"`
	DurationMS int64          `json:"durationMs"`
	BuildCount int64          `json:"buildCount"`
	Commit     string         `json:"commit,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Publisher delivers build events. Publishing is best effort; callers log
// failures and carry on.
type Publisher interface {
	PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishBuildCompleted(context.Context, BuildCompleted) error { return nil }
func (NoopPublisher) Close() error                                             { return nil }

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes events as JSON on a core NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to url and publishes on subject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("forgebuild"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher initialized", logfields.URL(url), "subject", subject)
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

// PublishBuildCompleted marshals ev and publishes it.
func (p *NATSPublisher) PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	slog.Debug("Published build event",
		logfields.ProjectID(ev.ProjectID),
		logfields.BuildStatus(ev.Status.String()),
		"subject", p.subject)
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
