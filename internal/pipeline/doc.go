// Package pipeline sequences a build attempt for one project:
// workspace preparation, clone, build, classification, record append and
// project update.
//
// An attempt moves through the stages
//
//	Started → Fetching → Building → Classifying → Recording → Updating → Done
//
// and ends in Aborted when the project is unknown, the workspace cannot be
// prepared, or persistence fails. A failed clone is not an abort: the attempt
// continues with empty output and a forced failed status so that every
// attempt that reaches Fetching leaves exactly one build record behind.
package pipeline
