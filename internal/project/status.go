package project

import (
	"fmt"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/normalization"
)

// Status is the outcome of a build attempt. Values are persisted and returned
// over the API as integers.
type Status int

const (
	// StatusPending marks a build that started but has not been classified yet.
	StatusPending Status = 0
	StatusSuccess Status = 1
	StatusFailed  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSuccess || s == StatusFailed
}

var statusNames = normalization.NewEnumNormalizer("build status", map[string]Status{
	"pending": StatusPending, "0": StatusPending,
	"success": StatusSuccess, "1": StatusSuccess,
	"failed": StatusFailed, "2": StatusFailed,
}, StatusPending)

// ParseStatus accepts either the name or the numeric form.
func ParseStatus(raw string) (Status, error) {
	return statusNames.NormalizeWithValidation(raw)
}
