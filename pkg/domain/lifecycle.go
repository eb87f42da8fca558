package domain

// LifecycleChangeType tells whether a machine joined or left a lifecycle manager.
type LifecycleChangeType int

const (
	LifecycleAdded LifecycleChangeType = iota + 1
	LifecycleRemoved
)

func (t LifecycleChangeType) String() string {
	switch t {
	case LifecycleAdded:
		return "added"
	case LifecycleRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
