package registry_test

import (
	"testing"

	"github.com/aretw0/hsmgrid/internal/testutils"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterDistinctAndDuplicate(t *testing.T) {
	r := registry.New()

	first := testutils.NewFakeMachine("n1")
	require.NoError(t, r.RegisterInstance(first))
	require.NoError(t, r.RegisterInstance(testutils.NewFakeMachine("n2")))

	err := r.RegisterInstance(testutils.NewFakeMachine("n1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	var dup *domain.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "n1", dup.Name)

	got, ok := r.Lookup("n1")
	require.True(t, ok)
	assert.Same(t, first, got, "a failed registration leaves the map unchanged")
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_BridgeFollowsRegistration(t *testing.T) {
	r := registry.New()

	var relayed []string
	r.Listen(domain.Hooks{OnStateChange: func(ev domain.StateChange) { relayed = append(relayed, ev.To) }})

	m := testutils.NewFakeMachine("A")
	m.EmitStateChange("x", "before")

	require.NoError(t, r.RegisterInstance(m))
	m.EmitStateChange("x", "during")

	assert.True(t, r.UnregisterInstance(m))
	m.EmitStateChange("x", "after")

	assert.Equal(t, []string{"during"}, relayed)
	assert.False(t, r.Bridge().IsSubscribed("A"))
}

func TestRegistry_UnregisterUnknownIsIgnored(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.RegisterInstance(testutils.NewFakeMachine("A")))

	assert.False(t, r.UnregisterInstance(testutils.NewFakeMachine("B")))
	assert.False(t, r.UnregisterInstance(testutils.NewFakeMachine("A")), "same name, different instance")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ResolveEmpty(t *testing.T) {
	r := registry.New()
	assert.Empty(t, r.ResolveSourcePorts("B", "in1"))

	// A machine named like the port exists but lacks the counterpart port.
	require.NoError(t, r.RegisterInstance(testutils.NewFakeMachine("in1", "other")))
	assert.Empty(t, r.ResolveSourcePorts("B", "in1"))
}

func TestRegistry_ResolveExplicitLink(t *testing.T) {
	r := registry.New()
	a := testutils.NewFakeMachine("A", "out1")
	b := testutils.NewFakeMachine("B", "in1")
	require.NoError(t, r.RegisterInstance(a))
	require.NoError(t, r.RegisterInstance(b))

	r.RegisterPortLink(domain.NewPortLink("A", "out1", "B", "in1"))

	got := r.ResolveSourcePorts("B", "in1")
	require.Len(t, got, 1)
	assert.Same(t, a.Port("out1"), got[0])
	assert.Equal(t, "A.out1", got[0].QualifiedName())
}

func TestRegistry_ResolveSkipsMissingEndpointsAndKeepsDuplicates(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.RegisterInstance(testutils.NewFakeMachine("A", "out1")))

	r.RegisterPortLink(domain.NewPortLink("A", "out1", "B", "in1"))
	r.RegisterPortLink(domain.NewPortLink("A", "out1", "B", "in1"))
	r.RegisterPortLink(domain.NewPortLink("A", "missing", "B", "in1"))
	r.RegisterPortLink(domain.NewPortLink("Ghost", "out1", "B", "in1"))

	got := r.ResolveSourcePorts("B", "in1")
	assert.Len(t, got, 2)
	assert.Len(t, r.Links("B"), 4)
}

func TestRegistry_ConventionFallback(t *testing.T) {
	r := registry.New()
	air := testutils.NewFakeMachine("Air", "FuelMixture")
	fuel := testutils.NewFakeMachine("FuelMixture", "Air")
	require.NoError(t, r.RegisterInstance(air))
	require.NoError(t, r.RegisterInstance(fuel))

	got := r.ResolveSourcePorts("FuelMixture", "Air")
	require.Len(t, got, 1)
	assert.Equal(t, "Air.FuelMixture", got[0].QualifiedName())
}

func TestRegistry_FallbackOnlyWithoutAnyLink(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.RegisterInstance(testutils.NewFakeMachine("Air", "FuelMixture")))
	require.NoError(t, r.RegisterInstance(testutils.NewFakeMachine("FuelMixture", "Air", "Spark")))
	require.NoError(t, r.RegisterInstance(testutils.NewFakeMachine("Coil", "out")))

	// A link for another port of the destination disables the convention.
	r.RegisterPortLink(domain.NewPortLink("Coil", "out", "FuelMixture", "Spark"))

	assert.Empty(t, r.ResolveSourcePorts("FuelMixture", "Air"))
	assert.Len(t, r.ResolveSourcePorts("FuelMixture", "Spark"), 1)
}

func TestRegistry_RegisterDeclaredLinks(t *testing.T) {
	r := registry.New()
	m := testutils.NewFakeMachine("B", "in1")
	m.Definition().Links = []domain.LinkDef{
		{From: domain.LinkEnd{Machine: "A", Port: "out1"}, To: domain.LinkEnd{Machine: "B", Port: "in1"}},
	}

	assert.Equal(t, 1, r.RegisterDeclaredLinks(m))
	assert.Equal(t, []domain.PortLink{domain.NewPortLink("A", "out1", "B", "in1")}, r.Links("B"))
}

func TestRegistry_BroadcastReachesEveryMemberOnce(t *testing.T) {
	r := registry.New()
	a := testutils.NewFakeMachine("A")
	b := testutils.NewFakeMachine("B")
	gone := testutils.NewFakeMachine("Gone")
	for _, m := range []*testutils.FakeMachine{a, gone, b} {
		require.NoError(t, r.RegisterInstance(m))
	}
	r.UnregisterInstance(gone)

	r.BroadcastPortAction("A.out1", "Start", 7)

	assert.Equal(t, []testutils.PortAction{{Source: "A.out1", Action: "Start", Payload: 7}}, a.Actions)
	assert.Len(t, b.Actions, 1)
	assert.Empty(t, gone.Actions)
}

// sideEffectMachine runs onSend after recording a broadcast.
type sideEffectMachine struct {
	*testutils.FakeMachine
	onSend func()
}

func (m *sideEffectMachine) SendPortAction(source, action string, payload any) {
	m.FakeMachine.SendPortAction(source, action, payload)
	m.onSend()
}

func TestRegistry_BroadcastSkipsMachinesRemovedMidway(t *testing.T) {
	r := registry.New()
	b := testutils.NewFakeMachine("B")
	a := &sideEffectMachine{
		FakeMachine: testutils.NewFakeMachine("A"),
		onSend:      func() { r.UnregisterInstance(b) },
	}
	require.NoError(t, r.RegisterInstance(a))
	require.NoError(t, r.RegisterInstance(b))

	r.BroadcastPortAction("x", "y", nil)
	assert.Len(t, a.Actions, 1)
	assert.Empty(t, b.Actions)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UpdateIdle(t *testing.T) {
	r := registry.New()
	assert.NotPanics(t, func() { assert.Zero(t, r.Update()) })
	assert.Equal(t, registry.DefaultUpdateInterval, r.UpdateInterval())
}

func TestRegistry_UpdateDeliversOnlyToRegistered(t *testing.T) {
	r := registry.New()
	in := testutils.NewFakeMachine("in")
	out := testutils.NewFakeMachine("out")
	require.NoError(t, r.RegisterInstance(in))

	r.Driver().Post(in, domain.Event{Name: "e"})
	r.Driver().Post(out, domain.Event{Name: "e"})

	assert.Equal(t, 1, r.Update())
	assert.Len(t, in.Dispatched, 1)
	assert.Empty(t, out.Dispatched)
}

func TestRegistry_CloseDetachesBridge(t *testing.T) {
	r := registry.New()

	relayed := 0
	r.Listen(domain.Hooks{OnStateChange: func(domain.StateChange) { relayed++ }})

	before := testutils.NewFakeMachine("before")
	require.NoError(t, r.RegisterInstance(before))
	r.Close()
	assert.False(t, r.Bridge().IsSubscribed("before"))

	after := testutils.NewFakeMachine("after")
	require.NoError(t, r.RegisterInstance(after))
	after.EmitStateChange("a", "b")

	assert.False(t, r.Bridge().IsSubscribed("after"))
	assert.Zero(t, after.Subscribers())
	assert.Zero(t, relayed)
	assert.Equal(t, 2, r.Len(), "membership is unaffected")
}
