// Package config loads, normalizes, and validates quire configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LIBER_USER and KINDLE_EMAILS. Every path the pipeline persists to is derived
// from paths.data_dir unless set explicitly.
//
// Obtain settings through this package once at startup and pass the resulting
// *Config into component constructors.
package config
