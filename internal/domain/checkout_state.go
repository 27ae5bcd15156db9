package domain

type CheckoutState string

const (
	CheckoutStateIdle         CheckoutState = "IDLE"
	CheckoutStateSummaryShown CheckoutState = "SUMMARY_SHOWN"
	CheckoutStateFormShown    CheckoutState = "FORM_SHOWN"
	CheckoutStateSubmitting   CheckoutState = "SUBMITTING"
	CheckoutStateSucceeded    CheckoutState = "SUCCEEDED"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSucceeded
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

// A failed submission is not a separate state: it moves the checkout
// back to FORM_SHOWN, which is why SUBMITTING lists it as a target.
var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:         {CheckoutStateSummaryShown},
	CheckoutStateSummaryShown: {CheckoutStateFormShown},
	CheckoutStateFormShown:    {CheckoutStateSubmitting},
	CheckoutStateSubmitting:   {CheckoutStateSucceeded, CheckoutStateFormShown},
	CheckoutStateSucceeded:    {},
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, allowed := range checkoutTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
