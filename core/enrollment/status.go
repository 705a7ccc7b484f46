package enrollment

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDropped   Status = "DROPPED"
	StatusSuspended Status = "SUSPENDED"
	StatusExpired   Status = "EXPIRED"
)

var (
	AllStatuses = []Status{StatusActive, StatusCompleted, StatusDropped, StatusSuspended, StatusExpired}

	// permitted edges; COMPLETED is terminal
	transitions = map[Status][]Status{
		StatusActive:    {StatusCompleted, StatusDropped, StatusSuspended},
		StatusDropped:   {StatusActive},
		StatusSuspended: {StatusActive, StatusDropped},
		StatusExpired:   {StatusActive},
		StatusCompleted: {},
	}
)

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, st := range transitions[s] {
		if st == to {
			return true
		}
	}
	return false
}

// AcceptsProgress reports whether lesson completions may be recorded (COMPLETED allows review mode).
func (s Status) AcceptsProgress() bool {
	return s == StatusActive || s == StatusCompleted
}

// ValidateTransition fails with an InvalidTransition error naming both states when from -> to is not an edge.
func ValidateTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return NewInvalidTransitionError(from, to)
	}
	return nil
}
