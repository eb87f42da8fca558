package hsm

import "github.com/aretw0/hsmgrid/pkg/domain"

// state is a node of the compiled state tree.
type state struct {
	name        string
	def         domain.StateDef
	parent      *state
	initial     *state
	transitions map[string]domain.TransitionDef // by event, first declaration wins
}

// buildStates compiles a validated definition into a linked tree.
func buildStates(def *domain.Definition) map[string]*state {
	states := make(map[string]*state, len(def.States))
	for _, sd := range def.States {
		states[sd.Name] = &state{
			name:        sd.Name,
			def:         sd,
			transitions: make(map[string]domain.TransitionDef),
		}
	}
	for _, s := range states {
		if s.def.Parent != "" {
			s.parent = states[s.def.Parent]
		}
		if s.def.Initial != "" {
			s.initial = states[s.def.Initial]
		}
	}
	for _, t := range def.Transitions {
		s := states[t.From]
		if _, exists := s.transitions[t.Event]; !exists {
			s.transitions[t.Event] = t
		}
	}
	return states
}

// drill follows initial children down to a leaf.
func (s *state) drill() *state {
	for s.initial != nil {
		s = s.initial
	}
	return s
}

// contains reports whether other is s or one of its descendants.
func (s *state) contains(other *state) bool {
	for n := other; n != nil; n = n.parent {
		if n == s {
			return true
		}
	}
	return false
}

// lookup finds the transition for event, starting at the leaf and bubbling
// up through its ancestors. It returns the state declaring the transition.
func lookup(leaf *state, event string) (*state, domain.TransitionDef, bool) {
	for s := leaf; s != nil; s = s.parent {
		if t, ok := s.transitions[event]; ok {
			return s, t, true
		}
	}
	return nil, domain.TransitionDef{}, false
}

// domainOf returns the innermost state that strictly contains both source
// and target, or nil for the root. Transitions are external: the source is
// always exited, even when it is the target or one of its ancestors.
func domainOf(source, target *state) *state {
	for a := source.parent; a != nil; a = a.parent {
		if a != target && a.contains(target) {
			return a
		}
	}
	return nil
}

// path computes the states to exit (innermost first) and to enter
// (outermost first) when moving from leaf to target through source.
func path(leaf, source, target *state) (exits, entries []*state, next *state) {
	lca := domainOf(source, target)

	for s := leaf; s != lca; s = s.parent {
		exits = append(exits, s)
	}
	for s := target; s != lca; s = s.parent {
		entries = append([]*state{s}, entries...)
	}
	next = target
	for next.initial != nil {
		next = next.initial
		entries = append(entries, next)
	}
	return exits, entries, next
}
