// Package config loads, validates, and normalizes Vigil configuration.
//
// Configuration is a single TOML file (default ~/.config/vigil/config.toml)
// decoded over compiled-in defaults. Validation runs at load time so bad
// segmentation parameters or non-local backend URLs are rejected before any
// run starts.
package config
