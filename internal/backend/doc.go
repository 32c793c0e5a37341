// Package backend prepares the heavyweight model backends (separation, ASR,
// diarization, TTS) that pipeline stages depend on, at most once per process.
//
// Registry serializes initialization so concurrent batches never load models
// twice, prepares missing backends in parallel, and on any failure releases
// everything and starts over from a clean state.
package backend
