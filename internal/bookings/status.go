package bookings

// Status is the lifecycle state of a booking. PENDING is the only state a
// booking is created in; CANCELLED and EXPIRED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
	StatusExpired:   {},
}

// IsValid checks if the booking status is valid
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// HistoryAction tags a booking audit log entry.
type HistoryAction string

const (
	ActionCreated   HistoryAction = "CREATED"
	ActionConfirmed HistoryAction = "CONFIRMED"
	ActionCancelled HistoryAction = "CANCELLED"
	ActionExpired   HistoryAction = "EXPIRED"
	ActionModified  HistoryAction = "MODIFIED"
)
