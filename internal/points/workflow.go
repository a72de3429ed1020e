package points

import (
	"context"
	"fmt"

	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

// Workflow applies purchase transitions and their point side effects inside
// a transaction the caller owns. The caller also holds the child's lock.
type Workflow struct {
	tracker *Tracker
	ledger  *Ledger
}

func NewWorkflow(tracker *Tracker, ledger *Ledger) *Workflow {
	return &Workflow{tracker: tracker, ledger: ledger}
}

// Request reserves the reward's current cost and opens a PENDING purchase.
func (w *Workflow) Request(ctx context.Context, tx store.DBTX, child *model.Child, reward *model.Reward) (*model.Purchase, error) {
	if reward.OwnerID != child.OwnerID {
		return nil, errorf(CodeAccessDenied, "reward %d is not offered to child %d", reward.ID, child.ID)
	}
	if !reward.Active {
		return nil, errorf(CodeRewardInactive, "reward %q is not active", reward.Name)
	}
	if err := w.tracker.Reserve(ctx, tx, child.ID, reward.RequiredPoints); err != nil {
		return nil, err
	}
	return store.NewPurchaseStore(tx).Create(ctx, child.ID, reward.ID, reward.RequiredPoints)
}

// Decide closes a PENDING purchase. Approval releases the reservation and
// spends the captured cost; rejection and cancellation only release it.
func (w *Workflow) Decide(ctx context.Context, tx store.DBTX, p *model.Purchase, action Action) (*model.Purchase, error) {
	next, err := Transition(p.Status, action)
	if err != nil {
		return nil, err
	}

	ps := store.NewPurchaseStore(tx)
	ok, err := ps.Transition(ctx, p.ID, next, action.decider())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorf(CodeNotPending, "purchase %d was already decided", p.ID)
	}

	// Release first: total may not drop below reserved at any statement.
	if err := w.tracker.Release(ctx, tx, p.ChildID, p.Cost); err != nil {
		return nil, err
	}
	if next == model.PurchaseApproved {
		if _, err := w.ledger.RecordSpend(ctx, tx, p.ChildID, p.Cost, "purchase:"+p.RewardName, p.ID); err != nil {
			return nil, err
		}
	}

	updated, err := ps.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("purchase %d vanished during %s", p.ID, action)
	}
	return updated, nil
}
