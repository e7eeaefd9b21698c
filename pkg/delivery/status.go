package delivery

// Trigger drives a status transition.
type Trigger string

const (
	TriggerDispatch  Trigger = "dispatch"   // render ok, transport invoked
	TriggerSucceed   Trigger = "succeed"    // transport reported success
	TriggerFail      Trigger = "fail"       // transport reported failure
	TriggerRenderErr Trigger = "render_err" // rendering failed
	TriggerRetry     Trigger = "retry"      // retry sweep with remaining budget
)

// transitions is the delivery state machine, indexed [from][trigger].
// delivered has no outgoing edges.
var transitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerDispatch:  StatusSent,
		TriggerRenderErr: StatusFailed,
	},
	StatusSent: {
		TriggerSucceed: StatusDelivered,
		TriggerFail:    StatusFailed,
	},
	StatusFailed: {
		TriggerRetry: StatusPending,
	},
}

// Next returns the status reached from from on trigger.
func Next(from Status, trigger Trigger) (Status, error) {
	to, ok := transitions[from][trigger]
	if !ok {
		return from, &TransitionError{From: from, Trigger: trigger}
	}
	return to, nil
}

// apply moves n along trigger. A retry needs budget left; a render error
// zeroes the budget.
func apply(n *Notification, trigger Trigger) error {
	to, err := Next(n.Status, trigger)
	if err != nil {
		return err
	}
	if trigger == TriggerRetry && n.RetryCount >= n.MaxRetries {
		return &TransitionError{From: n.Status, Trigger: trigger}
	}
	if trigger == TriggerRenderErr {
		n.MaxRetries = 0
	}
	n.Status = to
	return nil
}
