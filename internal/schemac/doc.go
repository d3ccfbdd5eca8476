// SPDX-License-Identifier: MPL-2.0

// Package schemac compiles the settings schemas shipped by fetched modules.
//
// The compile command is a POSIX shell snippet run by an embedded interpreter
// with the schema directory as working directory and in $GEX_SCHEMA_DIR.
package schemac
