package hsmgrid_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/hsmgrid"
	"github.com/aretw0/hsmgrid/internal/testutils"
	"github.com/aretw0/hsmgrid/pkg/adapters/memory"
	"github.com/aretw0/hsmgrid/pkg/codec"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const starterDoc = `
initial: Idle
ports: [{name: out1}]
states: [{name: Idle}, {name: Sent}]
transitions:
  - {from: Idle, to: Sent, event: go, actions: [{kind: send, port: out1, action: Start}]}
`

const engineDoc = `
initial: Idle
ports: [{name: in1}]
states: [{name: Idle}, {name: Running}]
transitions:
  - {from: Idle, to: Running, event: in1.Start}
links:
  - {from: {machine: Starter, port: out1}, to: {machine: Engine, port: in1}}
`

func ExampleLoadDir() {
	dir, err := os.MkdirTemp("", "hsmgrid-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	_ = os.WriteFile(filepath.Join(dir, "Starter.yaml"), []byte(starterDoc), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "Engine.yaml"), []byte(engineDoc), 0o644)

	r := registry.New()
	r.Listen(domain.Hooks{OnStateChange: func(ev domain.StateChange) {
		fmt.Printf("%s: %s -> %s\n", ev.Machine.Name(), ev.From, ev.To)
	}})

	if _, err := hsmgrid.LoadDir(r, dir); err != nil {
		panic(err)
	}

	starter, _ := r.Lookup("Starter")
	r.Driver().Post(starter, domain.Event{Name: "go"})
	r.Update()
	r.Update()

	// Output:
	// Starter: Idle -> Sent
	// Engine: Idle -> Running
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteDefinition(t, dir, "Starter.yaml", starterDoc)
	testutils.WriteDefinition(t, dir, "Engine.yml", engineDoc)
	testutils.WriteDefinition(t, dir, "notes.txt", "not a machine")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	r := registry.New()
	machines, err := hsmgrid.LoadDir(r, dir)
	require.NoError(t, err)
	require.Len(t, machines, 2)
	assert.Equal(t, "Engine", machines[0].Name())
	assert.Equal(t, "Starter", machines[1].Name())
	assert.Equal(t, 2, r.Len())
	assert.Len(t, r.Links("Engine"), 1)
}

func TestLoadDir_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteDefinition(t, dir, "Starter.yaml", starterDoc)
	testutils.WriteDefinition(t, dir, "Broken.yaml", "initial: Nowhere\nstates: [{name: Idle}]\n")

	r := registry.New()
	machines, err := hsmgrid.LoadDir(r, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownState)
	assert.Contains(t, err.Error(), "Broken.yaml")

	require.Len(t, machines, 1)
	assert.Equal(t, "Starter", machines[0].Name())
	assert.Equal(t, 1, r.Len())
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	_, err := hsmgrid.LoadDir(registry.New(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, domain.ErrPersistenceIO)
}

func TestDefinitionFiles_FollowsCodec(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteDefinition(t, dir, "a.yaml", starterDoc)
	testutils.WriteDefinition(t, dir, "b.msgpack", "")

	files, err := hsmgrid.DefinitionFiles(dir, codec.MsgPack{}.Name())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.msgpack")}, files)
	assert.Equal(t, []string{".msgpack", ".mpk"}, hsmgrid.Extensions("msgpack"))
}

func TestLoadStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, "Starter", []byte(starterDoc)))
	require.NoError(t, store.Save(ctx, "Engine", []byte(engineDoc)))

	r := registry.New()
	machines, err := hsmgrid.LoadStore(ctx, r, store)
	require.NoError(t, err)
	assert.Len(t, machines, 2)

	got := r.ResolveSourcePorts("Engine", "in1")
	require.Len(t, got, 1)
	assert.Equal(t, "Starter.out1", got[0].QualifiedName())
}
