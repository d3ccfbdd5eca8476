// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gex-cli/pkg/gexmod"
)

type rewriteParams struct {
	stdout   io.Writer
	defaults gexmod.CoordinateDefaults
	mappings []string
	file     string
	diff     bool
}

// newRewriteCommand creates the `gex rewrite` command, which applies the
// import rewriting used during downloads to a local file.
func newRewriteCommand(flags *globalFlags) *cobra.Command {
	var (
		mappings []string
		diff     bool
	)

	cmd := &cobra.Command{
		Use:   "rewrite --map NAME=OWNER/REPO[/VERSION]... FILE",
		Short: "Rewrite the module imports of a JavaScript file",
		Long: `Rewrite the module imports of a JavaScript file.

Every imports.NAME reference whose NAME is mapped is retargeted to the
module's directory in the cache, exactly as gex does for downloaded files.
The result is printed to stdout; the file itself is not modified.`,
		Example: `  gex rewrite --map util=acme/utilkit main.js
  gex rewrite --map util=acme/utilkit/v1 --diff main.js`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			a, err := loadApp(cmd, flags)
			if err != nil {
				return reportError(cmd.ErrOrStderr(), err, flags.verbose)
			}
			err = runRewrite(rewriteParams{
				stdout:   a.stdout,
				defaults: a.defaults(),
				mappings: mappings,
				file:     args[0],
				diff:     diff,
			})
			if err != nil {
				return reportError(a.stderr, err, a.cfg.UI.Verbose)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&mappings, "map", "m", nil, "map a module name to a coordinate (repeatable)")
	cmd.Flags().BoolVar(&diff, "diff", false, "print a unified diff instead of the rewritten file")
	_ = cmd.MarkFlagRequired("map")

	return cmd
}

func runRewrite(p rewriteParams) error {
	table, err := parseMappings(p.defaults, p.mappings)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(p.file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", p.file, err)
	}

	if !p.diff {
		_, err = io.WriteString(p.stdout, gexmod.Rewrite(table, string(data)))
		return err
	}

	diff, err := gexmod.Diff(table, p.file, string(data))
	if err != nil {
		return fmt.Errorf("diffing %s: %w", p.file, err)
	}
	_, err = io.WriteString(p.stdout, diff)
	return err
}

// parseMappings turns NAME=OWNER/REPO[/VERSION] flags into a rewrite table
// of normalized coordinates.
func parseMappings(defaults gexmod.CoordinateDefaults, mappings []string) (gexmod.RewriteTable, error) {
	table := make(gexmod.RewriteTable, len(mappings))
	for _, m := range mappings {
		name, ref, ok := strings.Cut(m, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid mapping %q: expected NAME=OWNER/REPO[/VERSION]", m)
		}
		coord, err := defaults.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("mapping %q: %w", name, err)
		}
		table[name] = coord.String()
	}
	return table, nil
}
