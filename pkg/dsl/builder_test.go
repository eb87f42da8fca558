package dsl

import (
	"testing"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/hsm"
	"github.com/aretw0/hsmgrid/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lamp() *Builder {
	b := New("Off")
	b.Ports("out")
	b.State("Off")
	b.State("On").Initial("Dim").Entry(Call("noop"))
	b.State("Dim").Parent("On")
	b.State("Bright").Parent("On").Exit(Schedule("cool", "1s"))
	b.From("Off").On("toggle").To("On").Do(Send("out", "Lit", 1))
	b.From("Dim").On("press").To("Bright")
	b.From("On").On("toggle").To("Off")
	return b
}

func TestBuilder_Definition(t *testing.T) {
	def, err := lamp().Link("Switch", "out", "Lamp", "in").Meta("owner", "ops").Build()
	require.NoError(t, err)

	assert.Equal(t, "Off", def.Initial)
	assert.Equal(t, []domain.PortDef{{Name: "out"}}, def.Ports)
	require.Len(t, def.States, 4)
	assert.Equal(t, domain.StateDef{Name: "On", Initial: "Dim", Entry: []domain.ActionDef{{Kind: domain.ActionCall, Name: "noop"}}}, def.States[1])
	assert.Equal(t, "On", def.States[3].Parent)
	assert.Equal(t, []domain.ActionDef{{Kind: domain.ActionSend, Port: "out", Action: "Lit", Payload: 1}}, def.Transitions[0].Actions)
	assert.Equal(t, domain.NewPortLink("Switch", "out", "Lamp", "in"), def.Links[0].PortLink())
	assert.Equal(t, "ops", def.Metadata["owner"])
}

func TestBuilder_StateIsReused(t *testing.T) {
	b := New("A")
	first := b.State("A")
	assert.Same(t, first, b.State("A"))

	def := b.MustBuild()
	assert.Len(t, def.States, 1)
}

func TestBuilder_DrivesAnEngine(t *testing.T) {
	r := registry.New(registry.WithMachineOptions(
		hsm.WithAction("noop", func(*hsm.Machine, domain.Event, any) error { return nil }),
	))
	built, err := r.NewMachine("Lamp", lamp().MustBuild())
	require.NoError(t, err)
	m := built.(*hsm.Machine)

	m.Dispatch(domain.Event{Name: "toggle"})
	assert.Equal(t, []string{"On", "Dim"}, m.Configuration())

	m.Dispatch(domain.Event{Name: "press"})
	assert.Equal(t, "Bright", m.State())
}

func TestBuilder_Invalid(t *testing.T) {
	b := New("Nowhere")
	b.State("Idle")
	b.From("Idle").On("go").To("Missing")

	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownState)
	assert.Len(t, domain.ValidationErrors(err), 2)

	assert.Panics(t, func() { b.MustBuild() })
}
