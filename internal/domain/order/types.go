package order

type Status string

const (
	StatusPending       Status = "pending"
	StatusFinalizing    Status = "finalizing"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusExpired       Status = "expired"
	StatusDeclined      Status = "declined"
	StatusRefundPending Status = "refund_pending"
	StatusRefunded      Status = "refunded"
	StatusRefundFailed  Status = "refund_failed"
)

// transitions lists every legal edge of the order state machine. A self edge on
// finalizing lets the capture holder persist capture details while keeping the claim.
var transitions = map[Status][]Status{
	StatusPending:       {StatusFinalizing, StatusDeclined, StatusFailed, StatusExpired},
	StatusFinalizing:    {StatusFinalizing, StatusCompleted, StatusDeclined, StatusExpired, StatusFailed, StatusPending, StatusRefundPending},
	StatusRefundPending: {StatusRefunded, StatusRefundFailed},
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusFinalizing, StatusCompleted, StatusFailed, StatusExpired,
		StatusDeclined, StatusRefundPending, StatusRefunded, StatusRefundFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}
