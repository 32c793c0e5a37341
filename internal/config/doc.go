// Package config loads, normalizes, and validates dubflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the OPENAI_API_KEY,
// OPENAI_API_BASE, and MODEL_NAME environment fallbacks used by the LLM
// translator. Params turns a validated Config into the immutable snapshot
// handed to every pipeline run.
package config
