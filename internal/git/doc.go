// Package git wraps go-git for the two repository operations forgebuild needs:
// cloning a project's default branch into a fresh workspace and reading the
// latest commit of a working copy.
//
// Clone failures are returned as values (CloneResult) rather than errors so the
// build pipeline can keep going and record a failed attempt.
package git
