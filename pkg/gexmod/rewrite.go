// SPDX-License-Identifier: MPL-2.0

package gexmod

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/exp/maps"
)

// importsRoot is the identifier fetched sources use to address other modules.
const importsRoot = "imports"

// RewriteTable maps a logical module name to the slash separated path it is
// installed under, relative to the temp root.
type RewriteTable map[string]string

// NewRewriteTable builds the table for one module: its own name, each of its
// dependencies, and every top-level directory or .js file it ships that is
// not already covered. The own name maps to the coordinate root, so it only
// reaches the module's files when dirName equals the manifest name.
func NewRewriteTable(self Coordinate, dirName string, m *Manifest, deps map[string]Coordinate) RewriteTable {
	t := make(RewriteTable, len(deps)+len(m.Files)+1)
	if m.Name != "" {
		t[m.Name] = self.String()
	}
	for name, c := range deps {
		t[name] = c.String()
	}

	modulePath := self.String() + "/" + dirName
	for _, f := range m.SourceFiles() {
		group := topLevelGroup(f)
		if group == "" {
			continue
		}
		if _, ok := t[group]; !ok {
			t[group] = modulePath
		}
	}
	return t
}

// Names returns the table's names in sorted order.
func (t RewriteTable) Names() []string {
	names := maps.Keys(t)
	slices.Sort(names)
	return names
}

func topLevelGroup(file string) string {
	file = strings.TrimPrefix(file, "./")
	if dir, _, ok := strings.Cut(file, "/"); ok {
		return dir
	}
	if name, ok := strings.CutSuffix(file, ".js"); ok {
		return name
	}
	return ""
}

// Rewrite retargets every imports.<name> and imports['<name>'] reference
// whose name is in table to imports['seg1']...['segN'].<name>, where the
// segments are the table path. References inside comments and string
// literals are left alone, as are references already in rewritten form.
func Rewrite(table RewriteTable, src string) string {
	if len(table) == 0 || !strings.Contains(src, importsRoot) {
		return src
	}
	r := &rewriter{table: table, src: src, segs: make(map[string][]string, len(table))}
	for name, path := range table {
		r.segs[name] = strings.Split(path, "/")
	}
	r.out.Grow(len(src) + len(src)/8)
	r.run()
	return r.out.String()
}

// Diff returns a unified diff between src and its rewritten form. An empty
// string means the rewrite changes nothing.
func Diff(table RewriteTable, filename, src string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(src),
		B:        difflib.SplitLines(Rewrite(table, src)),
		FromFile: filename,
		ToFile:   filename + " (rewritten)",
		Context:  3,
	})
}

type (
	rewriter struct {
		table RewriteTable
		segs  map[string][]string
		src   string
		pos   int
		out   strings.Builder

		// braceDepth counts open braces in code; tmplStack holds the depth at
		// which each enclosing template substitution was opened.
		braceDepth int
		tmplStack  []int

		// exprEnd is set when the last token can end an expression, which
		// makes a following '/' a division rather than a regex literal.
		exprEnd bool
	}

	accessor struct {
		key string
		end int
	}
)

func (r *rewriter) run() {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == '/' && r.peek(1) == '/':
			r.copyUntil("\n", false)
		case c == '/' && r.peek(1) == '*':
			r.copyUntil("*/", true)
		case c == '\'' || c == '"':
			r.copyString(c)
			r.exprEnd = true
		case c == '`':
			r.emit(1)
			r.copyTemplate()
		case c == '/':
			if r.exprEnd || !r.copyRegex() {
				r.emit(1)
				r.exprEnd = false
			}
		case isIdentStart(c) || isDigit(c):
			r.word()
		case c == '{':
			r.braceDepth++
			r.emit(1)
			r.exprEnd = false
		case c == '}':
			if n := len(r.tmplStack); n > 0 && r.tmplStack[n-1] == r.braceDepth {
				r.tmplStack = r.tmplStack[:n-1]
				r.emit(1)
				r.copyTemplate()
				continue
			}
			r.braceDepth--
			r.emit(1)
			r.exprEnd = true
		case c == ')' || c == ']':
			r.emit(1)
			r.exprEnd = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			r.emit(1)
		default:
			r.emit(1)
			r.exprEnd = false
		}
	}
}

func (r *rewriter) peek(off int) byte {
	if r.pos+off < len(r.src) {
		return r.src[r.pos+off]
	}
	return 0
}

func (r *rewriter) emit(n int) {
	end := min(r.pos+n, len(r.src))
	r.out.WriteString(r.src[r.pos:end])
	r.pos = end
}

// copyUntil copies through the next occurrence of term, or to the end of input.
func (r *rewriter) copyUntil(term string, inclusive bool) {
	idx := strings.Index(r.src[r.pos+2:], term)
	if idx < 0 {
		r.emit(len(r.src) - r.pos)
		return
	}
	n := 2 + idx
	if inclusive {
		n += len(term)
	}
	r.emit(n)
}

func (r *rewriter) copyString(quote byte) {
	i := r.pos + 1
	for i < len(r.src) {
		switch r.src[i] {
		case '\\':
			i += 2
			continue
		case quote, '\n':
			i++
			r.emit(i - r.pos)
			return
		}
		i++
	}
	r.emit(len(r.src) - r.pos)
}

// copyTemplate copies template text up to the closing backtick or the next
// substitution, which is scanned as code.
func (r *rewriter) copyTemplate() {
	i := r.pos
	for i < len(r.src) {
		switch r.src[i] {
		case '\\':
			i += 2
			continue
		case '`':
			r.emit(i + 1 - r.pos)
			r.exprEnd = true
			return
		case '$':
			if i+1 < len(r.src) && r.src[i+1] == '{' {
				r.emit(i + 2 - r.pos)
				r.tmplStack = append(r.tmplStack, r.braceDepth)
				r.exprEnd = false
				return
			}
		}
		i++
	}
	r.emit(len(r.src) - r.pos)
}

// copyRegex copies a regular expression literal. It reports false when the
// slash does not start one.
func (r *rewriter) copyRegex() bool {
	inClass := false
	for i := r.pos + 1; i < len(r.src); i++ {
		switch r.src[i] {
		case '\\':
			i++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return false
		case '/':
			if inClass {
				continue
			}
			i++
			for i < len(r.src) && isIdentPart(r.src[i]) {
				i++
			}
			r.emit(i - r.pos)
			r.exprEnd = true
			return true
		}
	}
	return false
}

func (r *rewriter) word() {
	start := r.pos
	end := start
	for end < len(r.src) && isIdentPart(r.src[end]) {
		end++
	}
	w := r.src[start:end]

	if w == importsRoot && !r.precededByDot(start) {
		r.pos = end
		r.out.WriteString(w)
		r.rewriteChain()
		r.exprEnd = true
		return
	}

	r.emit(end - start)
	r.exprEnd = !exprKeywords[w]
}

func (r *rewriter) precededByDot(at int) bool {
	for i := at - 1; i >= 0; i-- {
		switch r.src[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '.':
			return true
		default:
			return false
		}
	}
	return false
}

// rewriteChain handles the accessor chain following an imports token.
func (r *rewriter) rewriteChain() {
	chain := r.accessors()
	if len(chain) == 0 {
		return
	}
	end := chain[len(chain)-1].end

	if r.alreadyRewritten(chain) {
		r.emit(end - r.pos)
		return
	}

	first := chain[0]
	segs, ok := r.segs[first.key]
	if !ok {
		r.emit(end - r.pos)
		return
	}

	for _, seg := range segs {
		r.out.WriteString("['" + quoteKey(seg) + "']")
	}
	r.out.WriteString(formatAccessor(first.key))
	r.pos = first.end
	r.emit(end - r.pos)
}

func (r *rewriter) alreadyRewritten(chain []accessor) bool {
	for name, segs := range r.segs {
		if len(chain) <= len(segs) || chain[len(segs)].key != name {
			continue
		}
		match := true
		for i, seg := range segs {
			if chain[i].key != seg {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// accessors parses .name and ['name'] accessors starting at the current position.
func (r *rewriter) accessors() []accessor {
	var chain []accessor
	i := r.pos
	for i < len(r.src) {
		switch r.src[i] {
		case '.':
			j := i + 1
			if j >= len(r.src) || !isIdentStart(r.src[j]) {
				return chain
			}
			for j < len(r.src) && isIdentPart(r.src[j]) {
				j++
			}
			chain = append(chain, accessor{key: r.src[i+1 : j], end: j})
			i = j
		case '[':
			key, j, ok := r.bracketKey(i)
			if !ok {
				return chain
			}
			chain = append(chain, accessor{key: key, end: j})
			i = j
		default:
			return chain
		}
	}
	return chain
}

// bracketKey parses ['key'] or ["key"] at i and returns the decoded key and
// the offset just past the closing bracket.
func (r *rewriter) bracketKey(i int) (string, int, bool) {
	j := skipSpace(r.src, i+1)
	if j >= len(r.src) || (r.src[j] != '\'' && r.src[j] != '"') {
		return "", 0, false
	}
	quote := r.src[j]
	var key strings.Builder
	for j++; j < len(r.src); j++ {
		c := r.src[j]
		if c == '\\' && j+1 < len(r.src) {
			j++
			key.WriteByte(r.src[j])
			continue
		}
		if c == '\n' {
			return "", 0, false
		}
		if c == quote {
			break
		}
		key.WriteByte(c)
	}
	j = skipSpace(r.src, j+1)
	if j >= len(r.src) || r.src[j] != ']' {
		return "", 0, false
	}
	return key.String(), j + 1, true
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func formatAccessor(name string) string {
	if isIdentifier(name) {
		return "." + name
	}
	return "['" + quoteKey(name) + "']"
}

func quoteKey(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// exprKeywords are words after which a '/' starts a regex literal.
var exprKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}
