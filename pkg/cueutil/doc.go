// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user data against embedded CUE schemas.
//
// Two documents go through it: the gex.json module manifest (JSON is a CUE
// subset, so each manifest object compiles directly) and the optional
// config.cue file.
//
//	//go:embed manifest_schema.cue
//	var manifestSchema []byte
//
//	if _, err := cueutil.Validate(manifestSchema, raw, "#Manifest",
//	    cueutil.WithFilename("gex.json")); err != nil {
//	    return err
//	}
package cueutil
