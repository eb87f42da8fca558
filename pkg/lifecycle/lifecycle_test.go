package lifecycle_test

import (
	"errors"
	"testing"

	"github.com/aretw0/hsmgrid/internal/testutils"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/lifecycle"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedChange struct {
	name   string
	change domain.LifecycleChangeType
	member bool // membership as seen during the notification
}

func TestManager_NotifiesSynchronously(t *testing.T) {
	mgr := lifecycle.NewManager()

	var seen []recordedChange
	mgr.Subscribe(lifecycle.ListenerFunc(func(m *lifecycle.Manager, inst ports.Machine, change domain.LifecycleChangeType) bool {
		seen = append(seen, recordedChange{name: inst.Name(), change: change, member: m.IsRegistered(inst.Name())})
		return true
	}))

	a := testutils.NewFakeMachine("A")
	require.NoError(t, mgr.Register(a))
	require.Len(t, seen, 1, "Added must be delivered before Register returns")

	assert.True(t, mgr.Unregister(a))
	require.Len(t, seen, 2)

	// Added after insertion, Removed before deletion.
	assert.Equal(t, recordedChange{"A", domain.LifecycleAdded, true}, seen[0])
	assert.Equal(t, recordedChange{"A", domain.LifecycleRemoved, true}, seen[1])
	assert.False(t, mgr.IsRegistered("A"))
}

func TestManager_DuplicateAndUnknown(t *testing.T) {
	mgr := lifecycle.NewManager()
	notified := 0
	mgr.Subscribe(lifecycle.ListenerFunc(func(*lifecycle.Manager, ports.Machine, domain.LifecycleChangeType) bool {
		notified++
		return true
	}))

	require.NoError(t, mgr.Register(testutils.NewFakeMachine("A")))
	err := mgr.Register(testutils.NewFakeMachine("A"))
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	assert.Equal(t, 1, notified)

	assert.False(t, mgr.Unregister(testutils.NewFakeMachine("A")), "a different instance with the same name is not a member")
	assert.False(t, mgr.Unregister(testutils.NewFakeMachine("B")))
	assert.Equal(t, 1, notified)
	assert.Equal(t, 1, mgr.Len())
}

func TestManager_ListenerResultDoesNotSuppressOthers(t *testing.T) {
	mgr := lifecycle.NewManager()
	var order []string
	mgr.Subscribe(lifecycle.ListenerFunc(func(*lifecycle.Manager, ports.Machine, domain.LifecycleChangeType) bool {
		order = append(order, "first")
		return false
	}))
	cancel := mgr.Subscribe(lifecycle.ListenerFunc(func(*lifecycle.Manager, ports.Machine, domain.LifecycleChangeType) bool {
		order = append(order, "second")
		return true
	}))

	require.NoError(t, mgr.Register(testutils.NewFakeMachine("A")))
	assert.Equal(t, []string{"first", "second"}, order)

	cancel()
	require.NoError(t, mgr.Register(testutils.NewFakeMachine("B")))
	assert.Equal(t, []string{"first", "second", "first"}, order)
}

func TestManager_MembersInRegistrationOrder(t *testing.T) {
	mgr := lifecycle.NewManager()
	for _, n := range []string{"C", "A", "B"} {
		require.NoError(t, mgr.Register(testutils.NewFakeMachine(n)))
	}
	a, ok := mgr.Lookup("A")
	require.True(t, ok)
	mgr.Unregister(a)

	var names []string
	for _, m := range mgr.Members() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"C", "B"}, names)
}

func newWiredBridge(opts ...lifecycle.BridgeOption) (*lifecycle.Manager, *lifecycle.Bridge) {
	mgr := lifecycle.NewManager()
	bridge := lifecycle.NewBridge(opts...)
	mgr.Subscribe(bridge)
	return mgr, bridge
}

func TestBridge_SubscriptionMirrorsMembership(t *testing.T) {
	mgr, bridge := newWiredBridge()

	var relayed []string
	bridge.Listen(domain.Hooks{
		OnStateChange: func(ev domain.StateChange) { relayed = append(relayed, ev.To) },
	})

	m := testutils.NewFakeMachine("A")

	m.EmitStateChange("Idle", "before")
	assert.Empty(t, relayed)
	assert.False(t, bridge.IsSubscribed("A"))

	require.NoError(t, mgr.Register(m))
	assert.True(t, bridge.IsSubscribed("A"))
	assert.Equal(t, 3, m.Subscribers())

	m.EmitStateChange("Idle", "during")
	assert.Equal(t, []string{"during"}, relayed)

	mgr.Unregister(m)
	assert.False(t, bridge.IsSubscribed("A"))
	assert.Zero(t, m.Subscribers())

	m.EmitStateChange("Idle", "after")
	assert.Equal(t, []string{"during"}, relayed)
}

func TestBridge_RelaysAllKinds(t *testing.T) {
	mgr, bridge := newWiredBridge()

	var got []string
	bridge.Listen(domain.Hooks{
		OnStateChange: func(ev domain.StateChange) { got = append(got, "change:"+ev.Machine.Name()) },
		OnUnhandledTransition: func(ev domain.UnhandledTransition) {
			got = append(got, "unhandled:"+ev.State+":"+ev.Event.Name)
		},
		OnDispatchException: func(ev domain.DispatchException) {
			got = append(got, "exception:"+ev.Err.Error()+":"+ev.State)
		},
	})
	// A second listener with only one hook set.
	bridge.Listen(domain.Hooks{
		OnDispatchException: func(ev domain.DispatchException) { got = append(got, "second") },
	})

	m := testutils.NewFakeMachine("A")
	require.NoError(t, mgr.Register(m))

	m.EmitStateChange("Idle", "On")
	m.EmitUnhandled("On", "Kick")
	m.EmitException(errors.New("boom"), "On", "Kick")

	assert.Equal(t, []string{"change:A", "unhandled:On:Kick", "exception:boom:On", "second"}, got)
}

// countingPolicy suppresses state changes but still sees every one of them.
type countingPolicy struct {
	lifecycle.AllowAll
	stateChanges int
}

func (p *countingPolicy) OnStateChange(domain.StateChange) bool {
	p.stateChanges++
	return p.stateChanges%2 == 1
}

func TestBridge_PolicyFiltersButAlwaysRuns(t *testing.T) {
	policy := &countingPolicy{}
	mgr, bridge := newWiredBridge(lifecycle.WithPolicy(policy))

	relayed := 0
	bridge.Listen(domain.Hooks{OnStateChange: func(domain.StateChange) { relayed++ }})

	m := testutils.NewFakeMachine("A")
	require.NoError(t, mgr.Register(m))
	for i := 0; i < 4; i++ {
		m.EmitStateChange("x", "y")
	}

	assert.Equal(t, 4, policy.stateChanges)
	assert.Equal(t, 2, relayed)
}

type vetoPolicy struct{ lifecycle.AllowAll }

func (vetoPolicy) OnLifecycleChange(m ports.Machine, change domain.LifecycleChangeType) bool {
	return m.Name() != "ignored"
}

func TestBridge_PolicyCanDeclineLifecycleChange(t *testing.T) {
	mgr, bridge := newWiredBridge(lifecycle.WithPolicy(vetoPolicy{}))

	ignored := testutils.NewFakeMachine("ignored")
	watched := testutils.NewFakeMachine("watched")
	require.NoError(t, mgr.Register(ignored))
	require.NoError(t, mgr.Register(watched))

	assert.True(t, mgr.IsRegistered("ignored"), "membership is unaffected by a bridge decision")
	assert.Equal(t, []string{"watched"}, bridge.Subscribed())
	assert.Zero(t, ignored.Subscribers())
}

type keepPolicy struct{ lifecycle.AllowAll }

func (keepPolicy) OnLifecycleChange(_ ports.Machine, change domain.LifecycleChangeType) bool {
	return change != domain.LifecycleRemoved
}

func TestBridge_RemovalTearsDownDespitePolicy(t *testing.T) {
	mgr, bridge := newWiredBridge(lifecycle.WithPolicy(keepPolicy{}))

	relayed := 0
	bridge.Listen(domain.Hooks{OnStateChange: func(domain.StateChange) { relayed++ }})

	m := testutils.NewFakeMachine("A")
	require.NoError(t, mgr.Register(m))
	require.True(t, bridge.IsSubscribed("A"))

	require.True(t, mgr.Unregister(m))
	m.EmitStateChange("a", "b")

	assert.False(t, bridge.IsSubscribed("A"))
	assert.Zero(t, m.Subscribers())
	assert.Zero(t, relayed)
}

func TestBridge_PanickingListenerIsContained(t *testing.T) {
	mgr, bridge := newWiredBridge()

	after := 0
	bridge.Listen(domain.Hooks{OnStateChange: func(domain.StateChange) { panic("listener bug") }})
	bridge.Listen(domain.Hooks{OnStateChange: func(domain.StateChange) { after++ }})

	m := testutils.NewFakeMachine("A")
	require.NoError(t, mgr.Register(m))

	assert.NotPanics(t, func() { m.EmitStateChange("a", "b") })
	assert.Equal(t, 1, after)
}

func TestBridge_ListenCancelAndClose(t *testing.T) {
	mgr, bridge := newWiredBridge()

	count := 0
	cancel := bridge.Listen(domain.Hooks{OnStateChange: func(domain.StateChange) { count++ }})

	m := testutils.NewFakeMachine("A")
	require.NoError(t, mgr.Register(m))
	m.EmitStateChange("a", "b")
	cancel()
	m.EmitStateChange("b", "c")
	assert.Equal(t, 1, count)

	bridge.Close()
	assert.Empty(t, bridge.Subscribed())
	assert.Zero(t, m.Subscribers())
}
