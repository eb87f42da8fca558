package http

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/hsmgrid/internal/testutils"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamManager_FilterAndCancel(t *testing.T) {
	sm := NewStreamManager()
	all, cancelAll := sm.Subscribe("")
	onlyB, cancelB := sm.Subscribe("B")
	assert.Equal(t, 2, sm.Len())

	hooks := sm.Hooks()
	hooks.OnUnhandledTransition(domain.UnhandledTransition{
		Machine: testutils.NewFakeMachine("A"),
		State:   "Idle",
		Event:   domain.Event{Name: "poke"},
	})
	hooks.OnDispatchException(domain.DispatchException{
		Machine: testutils.NewFakeMachine("B"),
		Err:     errors.New("boom"),
		State:   "Idle",
		Event:   domain.Event{Name: "go"},
	})

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(<-all), &n))
	assert.Equal(t, "unhandled_transition", n.Type)
	require.NoError(t, json.Unmarshal([]byte(<-all), &n))
	assert.Equal(t, "dispatch_exception", n.Type)

	require.NoError(t, json.Unmarshal([]byte(<-onlyB), &n))
	assert.Equal(t, "B", n.Machine)
	assert.Equal(t, "boom", n.Error)
	assert.Empty(t, onlyB)

	cancelB()
	cancelB()
	cancelAll()
	assert.Zero(t, sm.Len())
}

func TestStreamManager_DropsForSlowSubscribers(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("")
	defer cancel()

	for i := 0; i < cap(ch)+5; i++ {
		sm.Broadcast(Notification{Type: "state_change", Machine: "A"})
	}
	assert.Len(t, ch, cap(ch))
}

func TestStreamManager_NilDispatchError(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("")
	defer cancel()

	assert.NotPanics(t, func() {
		sm.Hooks().OnDispatchException(domain.DispatchException{
			Machine: testutils.NewFakeMachine("A"),
			State:   "Idle",
			Event:   domain.Event{Name: "go"},
		})
	})

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(<-ch), &n))
	assert.Equal(t, "dispatch_exception", n.Type)
	assert.Empty(t, n.Error)
}

func TestStreamManager_LifecycleNotifications(t *testing.T) {
	h := newGrid(t)
	s := NewServer(h)
	ch, cancel := s.streams.Subscribe("Pump")
	defer cancel()

	pump := testutils.NewFakeMachine("Pump")
	require.NoError(t, h.Do(func(r *registry.Registry) error {
		if err := r.RegisterInstance(pump); err != nil {
			return err
		}
		r.UnregisterInstance(pump)
		return nil
	}))

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(<-ch), &n))
	assert.Equal(t, Notification{Type: "added", Machine: "Pump"}, n)
	require.NoError(t, json.Unmarshal([]byte(<-ch), &n))
	assert.Equal(t, Notification{Type: "removed", Machine: "Pump"}, n)

	s.Close()
	require.NoError(t, h.Do(func(r *registry.Registry) error {
		return r.RegisterInstance(pump)
	}))
	assert.Empty(t, ch, "a closed server no longer relays lifecycle changes")
}
