package http

import (
	"encoding/json"
	"sync"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/lifecycle"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// Notification is the JSON form of a machine notification on the stream.
type Notification struct {
	Type    string `json:"type"`
	Machine string `json:"machine"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	State   string `json:"state,omitempty"`
	Event   string `json:"event,omitempty"`
	Error   string `json:"error,omitempty"`
}

var _ lifecycle.Listener = (*StreamManager)(nil)

// StreamManager fans notifications out to stream subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]string // channel -> machine filter, "" for all
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]string),
	}
}

// Subscribe returns a channel receiving the notifications of machine, or of
// every machine when machine is empty.
func (sm *StreamManager) Subscribe(machine string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = machine

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Len returns the number of live subscribers.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast delivers n to every matching subscriber. Slow subscribers lose
// the message instead of blocking the caller.
func (sm *StreamManager) Broadcast(n Notification) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if len(sm.subscribers) == 0 {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	msg := string(data)

	for ch, filter := range sm.subscribers {
		if filter != "" && filter != n.Machine {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// Hooks adapts the manager to aggregate machine notifications.
func (sm *StreamManager) Hooks() domain.Hooks {
	return domain.Hooks{
		OnStateChange: func(ev domain.StateChange) {
			sm.Broadcast(Notification{
				Type:    "state_change",
				Machine: ev.Machine.Name(),
				From:    ev.From,
				To:      ev.To,
				Event:   ev.Event.Name,
			})
		},
		OnUnhandledTransition: func(ev domain.UnhandledTransition) {
			sm.Broadcast(Notification{
				Type:    "unhandled_transition",
				Machine: ev.Machine.Name(),
				State:   ev.State,
				Event:   ev.Event.Name,
			})
		},
		OnDispatchException: func(ev domain.DispatchException) {
			n := Notification{
				Type:    "dispatch_exception",
				Machine: ev.Machine.Name(),
				State:   ev.State,
				Event:   ev.Event.Name,
			}
			if ev.Err != nil {
				n.Error = ev.Err.Error()
			}
			sm.Broadcast(n)
		},
	}
}

// OnLifecycleChange streams machines joining and leaving the grid as
// "added" and "removed" notifications.
func (sm *StreamManager) OnLifecycleChange(_ *lifecycle.Manager, m ports.Machine, change domain.LifecycleChangeType) bool {
	sm.Broadcast(Notification{Type: change.String(), Machine: m.Name()})
	return true
}
