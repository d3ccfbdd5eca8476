// SPDX-License-Identifier: MPL-2.0

// Package config loads gex settings using Viper with CUE as the file format.
//
// Settings come, lowest precedence first, from built-in defaults, an optional
// config.cue in the user config directory (or the file named by --config),
// and GEX_* environment variables. A .env file in the working directory is
// loaded into the environment before the lookup. Config files are validated
// against the embedded #Config schema (config_schema.cue).
package config
