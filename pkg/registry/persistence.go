package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/hsmgrid/pkg/codec"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// LoadResult is a freshly built, pre-initialized machine together with the
// schema anomalies met while decoding its definition.
type LoadResult struct {
	Machine   ports.Machine
	Anomalies []codec.Anomaly
}

// Codec returns the codec used by save and load.
func (r *Registry) Codec() codec.Codec {
	return r.codec
}

// SaveDefinition serializes m's definition.
func (r *Registry) SaveDefinition(m ports.Machine) ([]byte, error) {
	data, err := r.codec.Encode(m.Definition())
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition of %q: %w", m.Name(), err)
	}
	return data, nil
}

// SaveDefinitionTo writes m's serialized definition to w.
func (r *Registry) SaveDefinitionTo(w io.Writer, m ports.Machine) error {
	data, err := r.SaveDefinition(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return r.ioFailure(m.Name(), err)
	}
	return nil
}

// SaveDefinitionFile writes m's serialized definition to path.
func (r *Registry) SaveDefinitionFile(path string, m ports.Machine) error {
	data, err := r.SaveDefinition(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return r.ioFailure(path, err)
	}
	return nil
}

// LoadDefinition decodes data into a new machine named name and runs its
// PreInit. Unknown elements and attributes are logged as warnings and
// returned as anomalies. The machine is not registered.
func (r *Registry) LoadDefinition(name string, data []byte) (*LoadResult, error) {
	res, err := r.codec.Decode(data, r.warnings(name))
	if err != nil {
		return nil, fmt.Errorf("failed to decode definition of %q: %w", name, err)
	}
	m, err := r.NewMachine(name, res.Definition)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Machine: m, Anomalies: res.Anomalies}, nil
}

// LoadDefinitionString is LoadDefinition for in-memory text.
func (r *Registry) LoadDefinitionString(name, text string) (*LoadResult, error) {
	return r.LoadDefinition(name, []byte(text))
}

// LoadDefinitionFrom reads the whole stream and loads it.
func (r *Registry) LoadDefinitionFrom(name string, src io.Reader) (*LoadResult, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		return nil, r.ioFailure(name, err)
	}
	return r.LoadDefinition(name, buf.Bytes())
}

// LoadDefinitionFile loads path. The machine is named after the file base
// name without its extension.
func (r *Registry) LoadDefinitionFile(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, r.ioFailure(path, err)
	}
	defer f.Close()
	return r.LoadDefinitionFrom(MachineName(path), f)
}

// SaveDefinitionToStore serializes m and saves it under m's name.
func (r *Registry) SaveDefinitionToStore(ctx context.Context, store ports.DefinitionStore, m ports.Machine) error {
	data, err := r.SaveDefinition(m)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, m.Name(), data); err != nil {
		return fmt.Errorf("failed to store definition of %q: %w", m.Name(), err)
	}
	return nil
}

// LoadDefinitionFromStore loads the definition saved under name.
func (r *Registry) LoadDefinitionFromStore(ctx context.Context, store ports.DefinitionStore, name string) (*LoadResult, error) {
	data, err := store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition of %q: %w", name, err)
	}
	return r.LoadDefinition(name, data)
}

// MachineName derives a machine name from a definition file path.
func MachineName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (r *Registry) warnings(machine string) codec.Handlers {
	return codec.Handlers{
		OnUnknownElement: func(name, content string) {
			r.logger.Warn("unknown element in definition", "machine", machine, "element", name)
		},
		OnUnknownAttribute: func(name, value string) {
			r.logger.Warn("unknown attribute in definition", "machine", machine, "attribute", name, "value", value)
		},
	}
}

// ioFailure logs a persistence failure as a warning and wraps it.
func (r *Registry) ioFailure(path string, err error) error {
	r.logger.Warn("definition storage unavailable", "path", path, "err", err)
	return &domain.PersistenceIOError{Path: path, Err: err}
}
