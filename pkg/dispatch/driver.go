// Package dispatch provides the tick-driven event driver polled by the registry.
//
// Events are either queued for the next poll (Post) or scheduled for a point
// in time measured by the driver's clock (PostAfter). A poll delivers only the
// work that was pending when it started, so a machine that keeps posting to
// itself cannot make a single poll run forever.
package dispatch

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/hsmgrid/internal/logging"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/lifecycle"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// Clock returns the current time.
type Clock func() time.Time

type entry struct {
	target ports.Target
	event  domain.Event
	due    time.Time
	seq    uint64
}

// Driver is a single-threaded event queue with timers.
type Driver struct {
	now    Clock
	queue  []entry
	timers []entry // ordered by due, then seq
	seq    uint64

	// active is nil until the driver tracks a lifecycle manager; from then on
	// only its members receive events.
	active map[string]bool

	logger *slog.Logger
}

var _ ports.EventDriver = (*Driver)(nil)

// Option configures the Driver.
type Option func(*Driver)

// WithClock replaces time.Now, mostly for tests.
func WithClock(c Clock) Option {
	return func(d *Driver) {
		d.now = c
	}
}

// WithLogger sets the logger used to report contained target panics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// New creates an empty driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Track restricts delivery to members of mgr and drops the pending events of
// machines as they are removed.
func (d *Driver) Track(mgr *lifecycle.Manager) ports.CancelFunc {
	d.active = make(map[string]bool, mgr.Len())
	for _, m := range mgr.Members() {
		d.active[m.Name()] = true
	}
	cancel := mgr.Subscribe(d)
	return func() {
		cancel()
		d.active = nil
	}
}

// OnLifecycleChange keeps the delivery set in step with the tracked manager.
func (d *Driver) OnLifecycleChange(_ *lifecycle.Manager, m ports.Machine, change domain.LifecycleChangeType) bool {
	if d.active == nil {
		return false
	}
	switch change {
	case domain.LifecycleAdded:
		d.active[m.Name()] = true
	case domain.LifecycleRemoved:
		delete(d.active, m.Name())
		d.purge(m.Name())
	default:
		return false
	}
	return true
}

// Post queues ev for target; it is delivered by the next Poll.
func (d *Driver) Post(target ports.Target, ev domain.Event) {
	d.seq++
	d.queue = append(d.queue, entry{target: target, event: ev, seq: d.seq})
}

// PostAfter delivers ev to target on the first Poll at or after now+delay.
// A non-positive delay behaves like Post.
func (d *Driver) PostAfter(target ports.Target, ev domain.Event, delay time.Duration) {
	if delay <= 0 {
		d.Post(target, ev)
		return
	}
	d.seq++
	e := entry{target: target, event: ev, due: d.now().Add(delay), seq: d.seq}
	i := sort.Search(len(d.timers), func(i int) bool {
		return d.timers[i].due.After(e.due)
	})
	d.timers = append(d.timers, entry{})
	copy(d.timers[i+1:], d.timers[i:])
	d.timers[i] = e
}

// Pending returns the number of queued and scheduled events.
func (d *Driver) Pending() int {
	return len(d.queue) + len(d.timers)
}

// Poll delivers every queued event, then every timer that is due, in order.
// Events posted while polling wait for the next Poll.
func (d *Driver) Poll() int {
	if len(d.queue) == 0 && len(d.timers) == 0 {
		return 0
	}

	now := d.now()
	batch := d.queue
	d.queue = nil

	due := 0
	for due < len(d.timers) && !d.timers[due].due.After(now) {
		due++
	}
	batch = append(batch, d.timers[:due]...)
	d.timers = append([]entry(nil), d.timers[due:]...)

	delivered := 0
	for _, e := range batch {
		// A target may be removed by an earlier delivery in the same batch.
		if !d.deliverable(e.target) {
			continue
		}
		d.deliver(e)
		delivered++
	}
	return delivered
}

func (d *Driver) deliverable(t ports.Target) bool {
	if d.active == nil {
		return true
	}
	return d.active[t.Name()]
}

// deliver isolates a target's failure from the rest of the batch.
func (d *Driver) deliver(e entry) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event target panicked",
				"machine", e.target.Name(),
				"event", e.event.Name,
				"err", fmt.Sprint(r),
			)
		}
	}()
	e.target.Dispatch(e.event)
}

func (d *Driver) purge(name string) {
	keep := func(list []entry) []entry {
		out := list[:0]
		for _, e := range list {
			if e.target.Name() != name {
				out = append(out, e)
			}
		}
		return out
	}
	d.queue = keep(d.queue)
	d.timers = keep(d.timers)
}
