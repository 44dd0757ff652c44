// Package config loads, normalizes, and validates debatelens configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// DEBATELENS_CHUNK_SECONDS or OPENAI_API_KEY. The Config type centralizes every
// knob the pipeline stages and CLI need, so chunking parameters, model
// backends, and aggregation policies are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
