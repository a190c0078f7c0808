// Package builder runs the external build tool inside a project workspace and
// captures its standard output for classification.
package builder
