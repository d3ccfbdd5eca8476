// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
)

// dirImporter exposes directories as an object: properties resolve to
// subdirectories or .js modules inside them. The root importer additionally
// consults the registry before its directories (the search path).
type dirImporter struct {
	rt      *Runtime
	dirs    []string
	root    bool
	values  map[string]goja.Value
	subdirs map[string]*dirImporter
}

func (r *Runtime) newImporter(root bool, dirs ...string) (*goja.Object, *dirImporter) {
	d := &dirImporter{
		rt:      r,
		dirs:    dirs,
		root:    root,
		values:  make(map[string]goja.Value),
		subdirs: make(map[string]*dirImporter),
	}
	return r.vm.NewDynamicObject(d), d
}

// lookup resolves key. sub is set when key names a directory; v is nil when
// nothing matches.
func (d *dirImporter) lookup(key string) (v goja.Value, sub *dirImporter, err error) {
	if v, ok := d.values[key]; ok {
		return v, d.subdirs[key], nil
	}
	if !validName(key) {
		return nil, nil, nil
	}

	if d.root {
		if dir, ok := d.rt.registry.Lookup(key); ok {
			obj, sub := d.rt.newImporter(false, dir)
			d.remember(key, obj, sub)
			return obj, sub, nil
		}
	}
	for _, dir := range d.dirs {
		if file := filepath.Join(dir, key+".js"); isFile(file) {
			exports, err := d.rt.load(file)
			if err != nil {
				return nil, nil, err
			}
			d.remember(key, exports, nil)
			return exports, nil, nil
		}
		if subdir := filepath.Join(dir, key); isDir(subdir) {
			obj, sub := d.rt.newImporter(false, subdir)
			d.remember(key, obj, sub)
			return obj, sub, nil
		}
	}
	return nil, nil, nil
}

func (d *dirImporter) remember(key string, v goja.Value, sub *dirImporter) {
	d.values[key] = v
	if sub != nil {
		d.subdirs[key] = sub
	}
}

func (d *dirImporter) Get(key string) goja.Value {
	v, _, err := d.lookup(key)
	if err != nil {
		panic(d.rt.vm.NewGoError(err))
	}
	if v == nil {
		return goja.Undefined()
	}
	return v
}

// Set stores a value on the importer. Assigned values shadow modules.
func (d *dirImporter) Set(key string, val goja.Value) bool {
	d.values[key] = val
	delete(d.subdirs, key)
	return true
}

func (d *dirImporter) Has(key string) bool {
	v, _, err := d.lookup(key)
	return err == nil && v != nil
}

func (d *dirImporter) Delete(key string) bool {
	delete(d.values, key)
	delete(d.subdirs, key)
	return true
}

// Keys lists the assigned properties and every importable name.
func (d *dirImporter) Keys() []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(k string) {
		if _, ok := seen[k]; !ok && validName(k) {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range d.values {
		add(k)
	}
	if d.root {
		for _, name := range d.rt.registry.Names() {
			add(name)
		}
	}
	for _, dir := range d.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			switch {
			case e.IsDir():
				add(e.Name())
			case strings.HasSuffix(e.Name(), ".js"):
				add(strings.TrimSuffix(e.Name(), ".js"))
			}
		}
	}
	return keys
}

func validName(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
