package models

// Operation is a lifecycle request against a session.
type Operation string

const (
	OpPause    Operation = "pause"
	OpResume   Operation = "resume"
	OpComplete Operation = "complete"
	OpCancel   Operation = "cancel"
)

// transitions lists, per operation, the statuses it may be applied from and
// the status it leads to. Complete is deliberately not allowed from PAUSED.
var transitions = map[Operation]struct {
	from []SessionStatus
	to   SessionStatus
}{
	OpPause:    {from: []SessionStatus{StatusInProgress}, to: StatusPaused},
	OpResume:   {from: []SessionStatus{StatusPaused}, to: StatusInProgress},
	OpComplete: {from: []SessionStatus{StatusInProgress}, to: StatusCompleted},
	OpCancel:   {from: []SessionStatus{StatusInProgress, StatusPaused}, to: StatusCancelled},
}

// NextStatus returns the status op leads to from the current status, and
// false when the transition is not allowed.
func NextStatus(from SessionStatus, op Operation) (SessionStatus, bool) {
	t, ok := transitions[op]
	if !ok {
		return "", false
	}
	for _, s := range t.from {
		if s == from {
			return t.to, true
		}
	}
	return "", false
}
