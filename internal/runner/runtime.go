// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// moduleParam is the wrapper parameter that receives a module's exports object.
const moduleParam = "__gexModule"

// ErrNoEntryPoint is returned when the entry point does not name a .js file.
var ErrNoEntryPoint = errors.New("entry point is not a .js file")

type (
	// Runtime is a JavaScript engine with an imports object backed by a
	// Registry. A Runtime runs one program; it is not safe for concurrent use.
	Runtime struct {
		vm         *goja.Runtime
		registry   Registry
		searchPath []string
		modules    map[string]*goja.Object
		stdout     io.Writer
		stderr     io.Writer
		logger     *log.Logger
		args       []string
		root       *dirImporter
	}

	// Option configures a Runtime.
	Option func(*Runtime)
)

// WithStdout sets where print writes.
func WithStdout(w io.Writer) Option {
	return func(r *Runtime) { r.stdout = w }
}

// WithStderr sets where printerr writes.
func WithStderr(w io.Writer) Option {
	return func(r *Runtime) { r.stderr = w }
}

// WithSearchPath adds directories consulted for top-level names missing
// from the registry.
func WithSearchPath(dirs ...string) Option {
	return func(r *Runtime) { r.searchPath = append(r.searchPath, dirs...) }
}

// WithLogger sets the logger behind the log global.
func WithLogger(l *log.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithArgs sets the ARGV global.
func WithArgs(args ...string) Option {
	return func(r *Runtime) { r.args = args }
}

// New returns a Runtime that resolves top-level imports through registry.
func New(registry Registry, opts ...Option) *Runtime {
	r := &Runtime{
		vm:       goja.New(),
		registry: registry,
		modules:  make(map[string]*goja.Object),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	if r.args == nil {
		r.args = []string{}
	}

	_ = r.vm.Set("print", printTo(r.stdout))
	_ = r.vm.Set("printerr", printTo(r.stderr))
	_ = r.vm.Set("log", func(call goja.FunctionCall) goja.Value {
		r.logger.Info(joinArgs(call))
		return goja.Undefined()
	})
	_ = r.vm.Set("ARGV", r.args)
	imports, root := r.newImporter(true, r.searchPath...)
	r.root = root
	_ = r.vm.Set("imports", imports)
	return r
}

// Run imports the module at entry (a slash separated path below one of the
// registry or search path directories) and calls its main function, if any.
// Cancelling ctx interrupts the script.
func (r *Runtime) Run(ctx context.Context, entry string) error {
	segments, err := entrySegments(entry)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	module, err := r.importPath(segments)
	if err != nil {
		return r.scriptError(ctx, entry, err)
	}

	mainFn, ok := goja.AssertFunction(module.Get("main"))
	if !ok {
		r.logger.Debug("module does not have main function", "entry", entry)
		return nil
	}
	r.logger.Debug("starting main function...", "entry", entry)
	if _, err := mainFn(module); err != nil {
		return r.scriptError(ctx, entry, err)
	}
	return nil
}

// importPath resolves segments from the root of the imports object.
func (r *Runtime) importPath(segments []string) (*goja.Object, error) {
	dir := r.root
	for i, seg := range segments {
		v, sub, err := dir.lookup(seg)
		if err != nil {
			return nil, err
		}
		last := i == len(segments)-1
		if v == nil || (!last && sub == nil) {
			return nil, fmt.Errorf("cannot import %q: %s not found", strings.Join(segments, "/"), strings.Join(segments[:i+1], "/"))
		}
		if last {
			return v.ToObject(r.vm), nil
		}
		dir = sub
	}
	return nil, fmt.Errorf("%w: empty path", ErrNoEntryPoint)
}

// load evaluates the module file once and returns its exports.
func (r *Runtime) load(path string) (*goja.Object, error) {
	if exports, ok := r.modules[path]; ok {
		return exports, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}
	names, err := topLevelNames(path, string(src))
	if err != nil {
		return nil, err
	}

	prog, err := goja.Compile(path, wrapModule(string(src), names), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module %s: %w", path, err)
	}

	exports := r.vm.NewObject()
	r.modules[path] = exports
	r.logger.Debug("importing module", "path", path)

	fnVal, err := r.vm.RunProgram(prog)
	if err != nil {
		delete(r.modules, path)
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		delete(r.modules, path)
		return nil, fmt.Errorf("module %s did not evaluate to a function", path)
	}
	if _, err := fn(goja.Undefined(), exports); err != nil {
		delete(r.modules, path)
		return nil, err
	}
	return exports, nil
}

// wrapModule gives the module its own scope and publishes its top-level
// names as live getters. The source starts on the first line so positions
// in stack traces stay intact.
func wrapModule(src string, names []string) string {
	var b strings.Builder
	b.Grow(len(src) + 64*len(names) + 64)
	b.WriteString("(function(" + moduleParam + ") {")
	b.WriteString(src)
	b.WriteString("\n;Object.defineProperties(" + moduleParam + ", {")
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s: {get: function() { return %s; }, enumerable: true}", name, name)
	}
	b.WriteString("});\n})")
	return b.String()
}

// topLevelNames returns the names declared at the top level of src.
func topLevelNames(filename, src string) ([]string, error) {
	prog, err := parser.ParseFile(nil, filename, src, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse module: %w", err)
	}

	seen := make(map[string]struct{})
	var names []string
	add := func(id *ast.Identifier) {
		if id == nil {
			return
		}
		name := string(id.Name)
		if _, ok := seen[name]; ok || name == moduleParam {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	addBindings := func(list []*ast.Binding) {
		for _, b := range list {
			if id, ok := b.Target.(*ast.Identifier); ok {
				add(id)
			}
		}
	}

	for _, stmt := range prog.Body {
		switch s := stmt.(type) {
		case *ast.VariableStatement:
			addBindings(s.List)
		case *ast.LexicalDeclaration:
			addBindings(s.List)
		case *ast.FunctionDeclaration:
			add(s.Function.Name)
		case *ast.ClassDeclaration:
			add(s.Class.Name)
		}
	}
	return names, nil
}

func entrySegments(entry string) ([]string, error) {
	trimmed, ok := strings.CutSuffix(strings.Trim(entry, "/"), ".js")
	if !ok || trimmed == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoEntryPoint, entry)
	}
	segments := make([]string, 0, strings.Count(trimmed, "/")+1)
	for seg := range strings.SplitSeq(trimmed, "/") {
		if seg == "." || seg == "" {
			continue
		}
		if !validName(seg) {
			return nil, fmt.Errorf("%w: %q", ErrNoEntryPoint, entry)
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoEntryPoint, entry)
	}
	return segments, nil
}

func (r *Runtime) scriptError(ctx context.Context, entry string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		r.vm.ClearInterrupt()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return fmt.Errorf("%s: %s", entry, exc.String())
	}
	return fmt.Errorf("%s: %w", entry, err)
}

func printTo(w io.Writer) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		_, _ = io.WriteString(w, joinArgs(call)+"\n")
		return goja.Undefined()
	}
}

func joinArgs(call goja.FunctionCall) string {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
