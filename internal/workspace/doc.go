// Package workspace manages the per-project build directories under a shared
// base directory.
//
// Builds are never incremental: Prepare removes whatever a previous attempt
// left behind so every clone lands in a pristine directory. The read-only
// repository inspection uses a sibling "<name>_source" directory so it never
// touches an in-progress build workspace.
package workspace
