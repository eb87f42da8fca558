package ports

import (
	"context"
)

// DefinitionStore persists encoded machine definitions by machine name.
// The bytes are opaque to the store; encoding belongs to a codec.
type DefinitionStore interface {
	// Save persists the encoded definition for a given machine name.
	Save(ctx context.Context, name string, data []byte) error

	// Load retrieves the encoded definition for a given machine name.
	// Returns domain.ErrDefinitionNotFound if the name does not exist.
	Load(ctx context.Context, name string) ([]byte, error)

	// Delete removes the definition for a given machine name.
	Delete(ctx context.Context, name string) error

	// List returns the names of every stored definition.
	List(ctx context.Context) ([]string, error)
}
