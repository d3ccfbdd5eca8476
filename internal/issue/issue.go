// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

// DocsURL is the gex project page.
const DocsURL HTTPLink = "https://github.com/Rafostar/gex"

const (
	InvalidCoordinateID Id = iota + 1
	ManifestUnavailableID
	ModuleNotFoundID
	MissingDependencySourceID
	NotRunnableID
	DownloadFailedID
	SchemaCompileFailedID
	ConfigLoadFailedID
	OfflineCacheMissingID
	ScriptFailedID
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is Markdown guidance text.
	MarkdownMsg string

	// HTTPLink is a documentation or reference URL.
	HTTPLink string

	// Issue is a catalog entry.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HTTPLink
		extLinks []HTTPLink
	}
)

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) DocLinks() []HTTPLink { return slices.Clone(i.docLinks) }

func (i *Issue) ExtLinks() []HTTPLink { return slices.Clone(i.extLinks) }

// Markdown returns the guidance text followed by its links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range append(slices.Clone(i.docLinks), i.extLinks...) {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the guidance for a terminal using the glamour style
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	invalidCoordinateIssue = &Issue{
		id: InvalidCoordinateID,
		mdMsg: `
# Invalid module coordinate

Modules are addressed as ` + "`OWNER/REPO[/VERSION]`" + `. Owner, repository and
version may only contain letters, digits and ` + "`. _ + -`" + `.

## Things you can try
~~~
$ gex Rafostar/gex-demo
$ gex acme/widget/1a2b3c4
~~~`,
		docLinks: []HTTPLink{DocsURL},
	}

	manifestUnavailableIssue = &Issue{
		id: ManifestUnavailableID,
		mdMsg: `
# Could not obtain the module manifest

gex reads ` + "`gex.json`" + ` from the root of the repository at the requested
version. The file is missing, is not valid JSON, or does not describe a module.

## Things you can try
- Check the owner, repository and version (branch, tag or commit).
- Make sure ` + "`gex.json`" + ` is committed at that version.
- Validate the manifest: it needs at least a ` + "`name`" + `.`,
		docLinks: []HTTPLink{DocsURL},
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundID,
		mdMsg: `
# Module not found in manifest

The repository's ` + "`gex.json`" + ` is an array of modules and none of them has
the requested name.

## Things you can try
- Omit the module name to use the first module.
- Check the ` + "`name`" + ` fields of the manifest entries.`,
		docLinks: []HTTPLink{DocsURL},
	}

	missingDependencySourceIssue = &Issue{
		id: MissingDependencySourceID,
		mdMsg: `
# Dependency without a source

Every entry under ` + "`dependencies`" + ` needs either a ` + "`repo`" + `
(` + "`owner/repo`" + `) or an explicit ` + "`src`" + ` URL.

~~~json
"dependencies": {
  "util": { "repo": "acme/utilkit", "version": "master" }
}
~~~`,
		docLinks: []HTTPLink{DocsURL},
	}

	notRunnableIssue = &Issue{
		id: NotRunnableID,
		mdMsg: `
# Module has no entry point

The requested module does not declare ` + "`main`" + ` in its manifest, so there is
nothing to run. Libraries are meant to be used as dependencies.

## Things you can try
- Use ` + "`--no-run`" + ` to only download the module.
- Request the application module that depends on it instead.`,
		docLinks: []HTTPLink{DocsURL},
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedID,
		mdMsg: `
# Download failed

A file could not be downloaded after several attempts.

## Things you can try
- Check your network connection and retry.
- Raise ` + "`download.attempts`" + ` or ` + "`download.timeout`" + ` in the configuration.
- Run with ` + "`--offline`" + ` if the module was downloaded before.`,
		docLinks: []HTTPLink{DocsURL},
	}

	schemaCompileFailedIssue = &Issue{
		id: SchemaCompileFailedID,
		mdMsg: `
# Settings schema compilation failed

The module ships GSettings schemas that must be compiled before it runs.

## Things you can try
- Install ` + "`glib-compile-schemas`" + ` (usually part of the GLib development tools).
- Set ` + "`schema.command`" + ` to the command that compiles schemas on your system.`,
		extLinks: []HTTPLink{"https://docs.gtk.org/gio/class.Settings.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedID,
		mdMsg: `
# Failed to load configuration

The configuration file is not valid CUE or does not match the expected schema.

## Things you can try
- Print the effective configuration:
~~~
$ gex config show
~~~
- Remove the offending key, or the file, to fall back to defaults.`,
		docLinks: []HTTPLink{DocsURL},
	}

	offlineCacheMissingIssue = &Issue{
		id: OfflineCacheMissingID,
		mdMsg: `
# Module is not available offline

` + "`--offline`" + ` runs a module from a previous download, but its lock file or
some of its files are missing from the cache.

## Things you can try
- Run once without ` + "`--offline`" + ` to download the module.`,
		docLinks: []HTTPLink{DocsURL},
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedID,
		mdMsg: `
# The module failed while running

The module was downloaded but threw an error. This usually is a problem of
the module itself.

## Things you can try
- Run with ` + "`--verbose`" + ` to see which files were imported.
- Use ` + "`--refresh`" + ` to download the newest files again.`,
		docLinks: []HTTPLink{DocsURL},
	}

	issues = map[Id]*Issue{
		invalidCoordinateIssue.Id():       invalidCoordinateIssue,
		manifestUnavailableIssue.Id():     manifestUnavailableIssue,
		moduleNotFoundIssue.Id():          moduleNotFoundIssue,
		missingDependencySourceIssue.Id(): missingDependencySourceIssue,
		notRunnableIssue.Id():             notRunnableIssue,
		downloadFailedIssue.Id():          downloadFailedIssue,
		schemaCompileFailedIssue.Id():     schemaCompileFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		offlineCacheMissingIssue.Id():     offlineCacheMissingIssue,
		scriptFailedIssue.Id():            scriptFailedIssue,
	}
)

// Values returns every catalog entry.
func Values() []*Issue {
	return maps.Values(issues)
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
