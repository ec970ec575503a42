// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

const (
	ProjectConfigInvalidId Id = iota + 1
	TreeRootMissingId
	MergeConflictId
	AssetImportFailedId
	TranspileFailedId
	OutputWriteFailedId
	ServeSpawnFailedId
	WatcherLimitId
	UnknownCommandId
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is an external reference rendered under "See also".
	HttpLink string

	// Issue is a catalog entry with remediation guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the issue as terminal-styled Markdown using the glamour
// style at stylePath ("dark", "light", "notty", or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	projectConfigInvalidIssue = &Issue{
		id: ProjectConfigInvalidId,
		mdMsg: `
# Invalid project configuration

The project file (driven.cue, driven.toml or driven.yaml) could not be read
or does not match the expected schema.

## Things you can try:
- Check the field named in the error above for typos
- Remove unknown fields; the schema is closed
- Use one of the supported environments: development, test, production

## Example driven.cue:
~~~cue
name:        "my-app"
environment: "development"
output_dir:  "dist"
addons: [
  {name: "charts", path: "addons/charts"},
]
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	treeRootMissingIssue = &Issue{
		id: TreeRootMissingId,
		mdMsg: `
# Missing tree root

The build expects the application directory (app/ by default) to exist.

## Things you can try:
- Run driven from the project root, or pass --cwd
- Point trees.app at the directory holding your application code`,
	}

	mergeConflictIssue = &Issue{
		id: MergeConflictId,
		mdMsg: `
# Conflicting files

Two trees contributed the same file to a merge that does not allow
overwriting, so the build cannot tell which one should win.

## Things you can try:
- Rename one of the files
- Remove the duplicate from the addon or the project
- Reorder the addons list; later addons take precedence where overwriting is allowed`,
	}

	assetImportFailedIssue = &Issue{
		id: AssetImportFailedId,
		mdMsg: `
# Invalid asset import

Imports must name exactly one file with an extension.

## Things you can try:
- Replace glob patterns such as "vendor/*.js" with one import per file
- Import directories through a tree root instead
- Use type "vendor" or "test" for JavaScript files`,
	}

	transpileFailedIssue = &Issue{
		id: TranspileFailedId,
		mdMsg: `
# JavaScript syntax error

A source file could not be transpiled. The file, line and column are
shown above.

## Things you can try:
- Fix the syntax error at the reported position
- The serve loop rebuilds automatically once the file is saved`,
	}

	outputWriteFailedIssue = &Issue{
		id: OutputWriteFailedId,
		mdMsg: `
# Could not write the output directory

## Things you can try:
- Check that the output directory is writable
- Make sure no other process holds files in it open
- Choose a different directory with --output`,
	}

	serveSpawnFailedIssue = &Issue{
		id: ServeSpawnFailedId,
		mdMsg: `
# Could not start the served process

The build succeeded but its entry point could not be started.

## Things you can try:
- Check that the interpreter (node by default) is installed and in your PATH
- Set serve.interpreter in the project file to the command you want to use`,
	}

	watcherLimitIssue = &Issue{
		id: WatcherLimitId,
		mdMsg: `
# File watcher limit reached

The operating system refused to watch more directories.

## Things you can try:
- Raise the inotify limit:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~
- Add large generated directories to serve.ignore`,
	}

	unknownCommandIssue = &Issue{
		id: UnknownCommandId,
		mdMsg: `
# Unknown command

## Available commands:
- "driven build" (alias "b"): build the project once into ./dist
- "driven serve" (alias "s"): rebuild on change and restart the served process`,
	}

	issues = map[Id]*Issue{
		projectConfigInvalidIssue.Id(): projectConfigInvalidIssue,
		treeRootMissingIssue.Id():      treeRootMissingIssue,
		mergeConflictIssue.Id():        mergeConflictIssue,
		assetImportFailedIssue.Id():    assetImportFailedIssue,
		transpileFailedIssue.Id():      transpileFailedIssue,
		outputWriteFailedIssue.Id():    outputWriteFailedIssue,
		serveSpawnFailedIssue.Id():     serveSpawnFailedIssue,
		watcherLimitIssue.Id():         watcherLimitIssue,
		unknownCommandIssue.Id():       unknownCommandIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	vals := maps.Values(issues)
	slices.SortFunc(vals, func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
	return vals
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
