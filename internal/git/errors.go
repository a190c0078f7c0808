package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
)

// CloneErrorKind classifies why a clone failed.
type CloneErrorKind string

const (
	KindAuth                CloneErrorKind = "auth"
	KindNotFound            CloneErrorKind = "not_found"
	KindUnsupportedProtocol CloneErrorKind = "unsupported_protocol"
	KindTimeout             CloneErrorKind = "timeout"
	KindNetwork             CloneErrorKind = "network"
	KindUnknown             CloneErrorKind = "unknown"
)

// CloneError carries the diagnostic of a failed clone.
type CloneError struct {
	URL  string
	Kind CloneErrorKind
	Err  error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// classifyCloneError maps go-git failures to a CloneErrorKind using the error
// value where possible and the message text otherwise.
func classifyCloneError(url string, err error) *CloneError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return &CloneError{URL: url, Kind: KindTimeout, Err: err}
	}
	l := strings.ToLower(err.Error())
	kind := KindUnknown
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") ||
		strings.Contains(l, "invalid username or password") || strings.Contains(l, "authorization"):
		kind = KindAuth
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist") ||
		strings.Contains(l, "no such file or directory"):
		kind = KindNotFound
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported") ||
		strings.Contains(l, "invalid url") || strings.Contains(l, "unsupported scheme"):
		kind = KindUnsupportedProtocol
	case strings.Contains(l, "timeout") || strings.Contains(l, "deadline exceeded"):
		kind = KindTimeout
	case strings.Contains(l, "connection refused") || strings.Contains(l, "no such host") ||
		strings.Contains(l, "connection reset") || strings.Contains(l, "remote hung up") ||
		strings.Contains(l, "no route to host"):
		kind = KindNetwork
	}
	return &CloneError{URL: url, Kind: kind, Err: err}
}

// ClassifyGitError translates a git failure into a ClassifiedError for the
// HTTP and CLI adapters.
func ClassifyGitError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.IsClassified(err) {
		return err
	}

	builder := errors.GitError("git " + op + " failed").
		WithCause(err).
		WithContext("op", op)

	var ce *CloneError
	if stderrors.As(err, &ce) {
		builder.WithContext("url", ce.URL).WithContext("kind", string(ce.Kind))
		switch ce.Kind {
		case KindAuth:
			builder.WithCategory(errors.CategoryAuth)
		case KindNetwork, KindTimeout:
			builder.WithCategory(errors.CategoryNetwork)
		case KindUnsupportedProtocol:
			builder.WithCategory(errors.CategoryValidation)
		}
	}
	return builder.Build()
}
