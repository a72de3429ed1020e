package points

import "github.com/dukerupert/praisepoints/internal/model"

// Action is an event applied to a purchase.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Transition returns the state a purchase moves to when action is applied.
// Only PENDING purchases accept actions; every terminal state is final.
func Transition(from model.PurchaseStatus, action Action) (model.PurchaseStatus, error) {
	if from != model.PurchasePending {
		return from, errorf(CodeNotPending, "purchase is %s, not PENDING", from)
	}
	switch action {
	case ActionApprove:
		return model.PurchaseApproved, nil
	case ActionReject, ActionCancel:
		return model.PurchaseRejected, nil
	}
	return from, errorf(CodeInvalidInput, "unknown action %q", action)
}

// decider reports who closes a purchase with the given action.
func (a Action) decider() model.Decider {
	if a == ActionCancel {
		return model.DecidedByChild
	}
	return model.DecidedByParent
}

func (a Action) past() string {
	switch a {
	case ActionApprove:
		return "approved"
	case ActionReject:
		return "rejected"
	case ActionCancel:
		return "cancelled"
	}
	return string(a)
}
