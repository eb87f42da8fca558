package hsmgrid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/aretw0/hsmgrid/pkg/registry"
)

// Version is the release of the hsmgrid module.
const Version = "0.1.0"

// extensions lists the definition file extensions accepted per codec.
var extensions = map[string][]string{
	"yaml":    {".yaml", ".yml"},
	"msgpack": {".msgpack", ".mpk"},
}

// Extensions returns the file extensions LoadDir picks up for codecName.
func Extensions(codecName string) []string {
	return append([]string(nil), extensions[codecName]...)
}

// DefinitionFiles lists the definition files in dir readable by the codec
// named codecName, sorted by name. Subdirectories are not visited.
func DefinitionFiles(dir, codecName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.PersistenceIOError{Path: dir, Err: err}
	}

	accepted := extensions[codecName]
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, a := range accepted {
			if ext == a {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir loads every definition file in dir with r's codec and registers
// the machines, then the port links they declare. A file that fails does not
// stop the others; the failures are returned together as a
// *domain.AggregateError alongside the machines that were registered.
func LoadDir(r *registry.Registry, dir string) ([]ports.Machine, error) {
	files, err := DefinitionFiles(dir, r.Codec().Name())
	if err != nil {
		return nil, err
	}

	var errs []error
	var machines []ports.Machine
	for _, path := range files {
		res, err := r.LoadDefinitionFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}
		if err := r.RegisterInstance(res.Machine); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}
		machines = append(machines, res.Machine)
	}
	return machines, linkAll(r, machines, errs)
}

// LoadStore is LoadDir for every definition listed by store.
func LoadStore(ctx context.Context, r *registry.Registry, store ports.DefinitionStore) ([]ports.Machine, error) {
	names, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	var errs []error
	var machines []ports.Machine
	for _, name := range names {
		res, err := r.LoadDefinitionFromStore(ctx, store, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.RegisterInstance(res.Machine); err != nil {
			errs = append(errs, err)
			continue
		}
		machines = append(machines, res.Machine)
	}
	return machines, linkAll(r, machines, errs)
}

func linkAll(r *registry.Registry, machines []ports.Machine, errs []error) error {
	for _, m := range machines {
		r.RegisterDeclaredLinks(m)
	}
	if len(errs) > 0 {
		return &domain.AggregateError{Errors: errs}
	}
	return nil
}
