// Package fonts validates font alias tables and hands them to the canvas
// module's font library.
package fonts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/sync/errgroup"
)

// parseConcurrency bounds how many font files are read at once.
const parseConcurrency = 4

// Registrar receives validated aliases. The canvas host implements it on
// top of its FontLibrary binding.
type Registrar interface {
	Use(alias string, paths []string) error
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(alias string, paths []string) error

// Use implements Registrar.
func (f RegistrarFunc) Use(alias string, paths []string) error {
	return f(alias, paths)
}

// Face is one parsed font file.
type Face struct {
	Path   string
	Family string
	// Fonts is greater than one for collections.
	Fonts int
}

// FontError reports a font file that could not be used for Alias.
type FontError struct {
	Alias string
	Path  string
	Cause error
}

func (e *FontError) Error() string {
	return fmt.Sprintf("font %q for alias %q: %v", e.Path, e.Alias, e.Cause)
}

func (e *FontError) Unwrap() error { return e.Cause }

// Registry holds an alias table with paths relative to a fonts directory.
type Registry struct {
	dir     string
	aliases map[string][]string
	logger  *slog.Logger
}

// NewRegistry creates a Registry. A nil logger discards output.
func NewRegistry(dir string, aliases map[string][]string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{dir: dir, aliases: aliases, logger: logger}
}

// Aliases returns the alias names in sorted order.
func (r *Registry) Aliases() []string {
	names := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve parses every file in the table. Files that fail are left out of
// the result and reported as *FontError values joined into the error.
func (r *Registry) Resolve(ctx context.Context) (map[string][]Face, error) {
	type job struct {
		alias string
		index int
		path  string
	}

	var jobs []job
	faces := make(map[string][]Face, len(r.aliases))
	for _, alias := range r.Aliases() {
		paths := r.aliases[alias]
		faces[alias] = make([]Face, len(paths))
		for i, p := range paths {
			jobs = append(jobs, job{alias: alias, index: i, path: r.abs(p)})
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseConcurrency)

	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			face, err := parseFile(j.path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &FontError{Alias: j.alias, Path: j.path, Cause: err})
				return nil
			}
			faces[j.alias][j.index] = face
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Drop the slots of files that failed.
	for alias, list := range faces {
		kept := list[:0]
		for _, f := range list {
			if f.Path != "" {
				kept = append(kept, f)
			}
		}
		faces[alias] = kept
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return faces, errors.Join(errs...)
}

// Register resolves the table and passes every alias with at least one
// usable file to registrar. Aliases are registered in sorted order.
func (r *Registry) Register(ctx context.Context, registrar Registrar) error {
	faces, err := r.Resolve(ctx)
	if faces == nil {
		return err
	}
	errs := []error{err}

	for _, alias := range r.Aliases() {
		list := faces[alias]
		if len(list) == 0 {
			r.logger.Warn("skipping font alias without usable files", "alias", alias)
			continue
		}
		paths := make([]string, len(list))
		for i, f := range list {
			paths[i] = f.Path
		}
		if useErr := registrar.Use(alias, paths); useErr != nil {
			errs = append(errs, fmt.Errorf("register alias %q: %w", alias, useErr))
			continue
		}
		r.logger.Debug("registered font alias", "alias", alias, "files", len(paths), "family", list[0].Family)
	}
	return errors.Join(errs...)
}

func (r *Registry) abs(p string) string {
	if filepath.IsAbs(p) || r.dir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(r.dir, p)
}

// parseFile validates a font or font collection and reads its family name.
func parseFile(path string) (Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Face{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".ttc" || ext == ".otc" {
		coll, err := sfnt.ParseCollection(data)
		if err != nil {
			return Face{}, fmt.Errorf("parse collection: %w", err)
		}
		if coll.NumFonts() == 0 {
			return Face{}, fmt.Errorf("empty collection")
		}
		first, err := coll.Font(0)
		if err != nil {
			return Face{}, fmt.Errorf("read collection: %w", err)
		}
		return Face{Path: path, Family: familyName(first), Fonts: coll.NumFonts()}, nil
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return Face{}, fmt.Errorf("parse font: %w", err)
	}
	return Face{Path: path, Family: familyName(f), Fonts: 1}, nil
}

func familyName(f *sfnt.Font) string {
	if name, err := f.Name(nil, sfnt.NameIDFamily); err == nil {
		return name
	}
	return ""
}
