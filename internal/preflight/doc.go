// Package preflight provides readiness checks for the external programs,
// services and filesystem paths dubflow depends on.
//
// These checks run in two contexts:
//   - `dubflow run` calls RunAll before starting a batch and refuses to start
//     when a check fails, so a missing tool never surfaces hours into a run.
//   - `dubflow backends` renders the individual results as a status table.
//
// The LLM check only runs when the translation method is LLM or OpenAI.
package preflight
