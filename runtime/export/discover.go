// Package export lowers a whole application tree into one record bundle.
//
// Discover finds the units to lower, an Exporter lowers them in parallel
// and merges the results in discovery order, and a Sink persists the
// resulting bundle. Watch repeats the export whenever a source changes.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/stellify/stellify/runtime/template"
)

// Kind is a category of source unit.
type Kind string

const (
	Controllers Kind = "controllers"
	Models      Kind = "models"
	Middleware  Kind = "middleware"
	Services    Kind = "services"
	Providers   Kind = "providers"
	Views       Kind = "views"
)

// Kinds lists every kind in export order.
var Kinds = []Kind{Controllers, Models, Middleware, Services, Providers, Views}

// DefaultPaths maps each kind to its conventional directory below the
// application root.
var DefaultPaths = map[Kind]string{
	Controllers: "app/Http/Controllers",
	Models:      "app/Models",
	Middleware:  "app/Http/Middleware",
	Services:    "app/Services",
	Providers:   "app/Providers",
	Views:       "resources/views",
}

const (
	phpExt   = ".php"
	bladeExt = ".blade.php"
)

// ParseKind resolves a kind name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(Kinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown kind %q", name)
}

// Unit is one source file to lower.
type Unit struct {
	Path     string // path as found on disk
	Kind     Kind
	Template bool   // a Blade template rather than a PHP unit
	Name     string // logical view name, templates only
}

// Options selects what Discover returns.
type Options struct {
	Root    string
	Only    []Kind          // empty means every kind
	Paths   map[Kind]string // per-kind overrides of DefaultPaths, relative to Root
	Exclude []string        // a unit whose path contains any of these is skipped
}

func (o Options) dir(k Kind) string {
	if p, ok := o.Paths[k]; ok && p != "" {
		return filepath.Join(o.Root, p)
	}
	return filepath.Join(o.Root, DefaultPaths[k])
}

func (o Options) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, ex := range o.Exclude {
		if ex != "" && strings.Contains(slashed, filepath.ToSlash(ex)) {
			return true
		}
	}
	return false
}

// Discover walks the selected directories and returns their units in a
// stable order: kinds in Kinds order, files lexically within each kind. A
// missing directory contributes nothing.
func Discover(opts Options) ([]Unit, error) {
	kinds := Kinds
	if len(opts.Only) > 0 {
		kinds = slices.DeleteFunc(slices.Clone(Kinds), func(k Kind) bool {
			return !slices.Contains(opts.Only, k)
		})
	}

	var units []Unit
	seen := map[string]bool{}
	for _, k := range kinds {
		dir := opts.dir(k)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir && errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() || seen[path] || opts.excluded(path) {
				return nil
			}
			u, ok := classify(k, dir, path)
			if !ok {
				return nil
			}
			seen[path] = true
			units = append(units, u)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", k, err)
		}
	}
	return units, nil
}

func classify(k Kind, dir, path string) (Unit, bool) {
	if k == Views {
		if !strings.HasSuffix(path, bladeExt) {
			return Unit{}, false
		}
		return Unit{Path: path, Kind: k, Template: true, Name: template.ViewName(dir, path)}, true
	}
	if !strings.HasSuffix(path, phpExt) || strings.HasSuffix(path, bladeExt) {
		return Unit{}, false
	}
	return Unit{Path: path, Kind: k}, true
}
