// Package project defines the registered Project, the immutable BuildRecord
// appended for every build attempt, and the build status enum shared by the
// pipeline, the stores and the HTTP API.
package project
