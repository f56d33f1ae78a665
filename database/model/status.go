package model

// Status is the lifecycle state of a DesignRequest.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// transitions is the complete workflow. Statuses without an entry are terminal.
var transitions = map[Status][]Status{
	StatusNew: {StatusInProgress, StatusCompleted},
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusNew, StatusInProgress, StatusCompleted}
}

// ParseStatus returns the status named by s. Only canonical tokens are accepted.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses() {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Targets returns the statuses reachable from s.
func (s Status) Targets() []Status {
	return transitions[s]
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether the request can still be triaged or withdrawn by its owner.
func (s Status) IsOpen() bool {
	return len(transitions[s]) > 0
}

// LabelKey is the translation key of the human-readable status label.
func (s Status) LabelKey() string {
	return "status." + string(s)
}
