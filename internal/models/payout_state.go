package models

// PayoutState is the lifecycle state of a payout. Transitions not listed in
// the transition table are rejected.
type PayoutState string

const (
	PayoutTriggered        PayoutState = "triggered"
	PayoutValidating       PayoutState = "validating"
	PayoutAmountComputed   PayoutState = "amount_computed"
	PayoutInitiated        PayoutState = "initiated"
	PayoutInProgress       PayoutState = "in_progress"
	PayoutConfirmed        PayoutState = "confirmed"
	PayoutDelayedEscalated PayoutState = "delayed_escalated"
	PayoutFailed           PayoutState = "failed"
	PayoutCompensated      PayoutState = "compensated"
	PayoutCancelled        PayoutState = "cancelled"
)

// payoutTransitions is the full transition table. A failed payout stays
// queryable until an operator closes it; closure itself is not a transition.
var payoutTransitions = map[PayoutState][]PayoutState{
	PayoutTriggered:  {PayoutValidating, PayoutCancelled},
	PayoutValidating: {PayoutAmountComputed, PayoutCancelled},
	// Initiation can fail before a transfer ever leaves: no payment route,
	// a permanent operator rejection, or an exhausted retry budget.
	PayoutAmountComputed: {PayoutInitiated, PayoutFailed, PayoutCancelled},
	PayoutInitiated:      {PayoutInProgress, PayoutDelayedEscalated, PayoutFailed, PayoutCancelled},
	PayoutInProgress:     {PayoutConfirmed, PayoutDelayedEscalated, PayoutFailed, PayoutCancelled},
	// Late confirmation re-enters the normal path; permanent failure exits it.
	PayoutDelayedEscalated: {PayoutInProgress, PayoutConfirmed, PayoutFailed, PayoutCancelled},
	// Compensation may still be owed on a failed payout before closure.
	PayoutFailed:      {PayoutCompensated},
	PayoutConfirmed:   {},
	PayoutCompensated: {},
	PayoutCancelled:   {},
}

// CanTransition reports whether from -> to is a legal payout transition.
func CanTransition(from, to PayoutState) bool {
	for _, next := range payoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further transitions.
func (s PayoutState) IsTerminal() bool {
	return len(payoutTransitions[s]) == 0
}

// IsOpen reports whether the payout still occupies the (policy, hazard) slot.
// Failed payouts keep the slot until explicit operator closure so a real
// failure cannot be masked by a duplicate auto-trigger.
func (s PayoutState) IsOpen() bool {
	switch s {
	case PayoutConfirmed, PayoutCompensated, PayoutCancelled:
		return false
	default:
		return true
	}
}

func IsValidPayoutState(s PayoutState) bool {
	_, ok := payoutTransitions[s]
	return ok
}
