// Package classify turns captured build tool output into a build status and
// the index of the offending line.
package classify

import (
	"strings"
	"sync/atomic"

	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// DefaultSignatures are the substrings that mark a line as an error.
var DefaultSignatures = []string{"JS_Parse_Error", "Error", "TypeError", "Uncaught SyntaxError"}

// Outcome is the result of classifying one build.
type Outcome struct {
	Status    project.Status
	ErrorLine int
	// Matches counts lines containing at least one signature.
	Matches int
}

// Classifier scans output for error signatures. It is safe for concurrent use;
// SetSignatures may be called while builds are being classified.
type Classifier struct {
	signatures atomic.Pointer[[]string]
}

// New creates a classifier. Without signatures it uses DefaultSignatures.
func New(signatures ...string) *Classifier {
	c := &Classifier{}
	c.SetSignatures(signatures)
	return c
}

// SetSignatures replaces the signature set. Empty entries are dropped and an
// empty set restores the defaults.
func (c *Classifier) SetSignatures(signatures []string) {
	set := make([]string, 0, len(signatures))
	for _, s := range signatures {
		if s != "" {
			set = append(set, s)
		}
	}
	if len(set) == 0 {
		set = append(set, DefaultSignatures...)
	}
	c.signatures.Store(&set)
}

// Signatures returns a copy of the active signature set.
func (c *Classifier) Signatures() []string {
	return append([]string(nil), (*c.signatures.Load())...)
}

// Lines splits output into its ordered lines. Empty output has no lines.
func Lines(output string) []string {
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

// Classify determines the status of a build from its output.
//
// The status becomes failed on the first matching line, and ErrorLine is
// overwritten by every match so it ends up at the last matching line.
// A failed clone forces StatusFailed whatever the output says.
func (c *Classifier) Classify(output string, cloneOK bool) Outcome {
	signatures := *c.signatures.Load()
	out := Outcome{Status: project.StatusSuccess, ErrorLine: project.NoErrorLine}

	for i, line := range Lines(output) {
		if !containsAny(line, signatures) {
			continue
		}
		out.Status = project.StatusFailed
		out.ErrorLine = i
		out.Matches++
	}

	if !cloneOK {
		out.Status = project.StatusFailed
	}
	return out
}

func containsAny(line string, signatures []string) bool {
	for _, s := range signatures {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}
