// Package stage defines the contracts between the pipeline orchestrator and
// the six processing stages: work items, the per-batch parameter snapshot,
// stage results, and the method enumerations used to pick engines.
package stage
