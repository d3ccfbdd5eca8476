// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the gex command line interface.
//
// The root command downloads a module with its dependencies and runs its
// entry point. Subcommands cover self-update, reference rewriting and
// configuration inspection.
package cmd
