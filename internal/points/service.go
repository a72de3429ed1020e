package points

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/metrics"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

// ErrOutOfBalance is returned by Audit when stored counters disagree with the
// ledger or the open purchases.
var ErrOutOfBalance = errors.New("balance out of sync")

// Notifier is told about committed changes so connected dashboards of the
// owning parent can refresh.
type Notifier interface {
	Notify(ownerID int64, entity, action string, id int64, extra map[string]any)
}

type Options struct {
	LockTimeout time.Duration
	Notifier    Notifier
	Logger      *slog.Logger
}

// Service is the entry point for every point and purchase operation. Each
// mutation holds the per-child lock for its whole transaction.
type Service struct {
	db       *sql.DB
	locks    *KeyedLocker
	tracker  *Tracker
	ledger   *Ledger
	workflow *Workflow
	notifier Notifier
	logger   *slog.Logger
}

func NewService(db *sql.DB, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "points")

	tracker := NewTracker(logger)
	ledger := NewLedger(tracker)
	return &Service{
		db:       db,
		locks:    NewKeyedLocker(opts.LockTimeout),
		tracker:  tracker,
		ledger:   ledger,
		workflow: NewWorkflow(tracker, ledger),
		notifier: opts.Notifier,
		logger:   logger,
	}
}

// History is one page of a child's ledger.
type History struct {
	Entries []model.LedgerEntry `json:"entries"`
	Total   int                 `json:"total"`
}

// AwardPoints credits amount to every listed child in one transaction. Either
// all children are credited or none are.
func (s *Service) AwardPoints(ctx context.Context, caller auth.Caller, childIDs []int64, amount int, reason, message string) ([]model.LedgerEntry, error) {
	if !caller.IsParent() {
		return nil, errorf(CodeAccessDenied, "only parents can award points")
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(childIDs) == 0 {
		return nil, errorf(CodeInvalidInput, "no children selected")
	}
	for _, id := range childIDs {
		if _, err := s.authorizeChild(ctx, caller, id); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locks.LockAll(ctx, childIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var entries []model.LedgerEntry
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		entries = entries[:0]
		for _, id := range uniq(childIDs) {
			e, err := s.ledger.RecordEarn(ctx, tx, id, amount, reason, message)
			if err != nil {
				return err
			}
			entries = append(entries, *e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		metrics.RecordEarn(e.Amount)
		s.notify(caller.OwnerID, "points", "awarded", e.ID, map[string]any{"child_id": e.ChildID, "amount": e.Amount})
	}
	s.logger.Info("points awarded", "owner_id", caller.OwnerID, "children", len(entries), "amount", amount)
	return entries, nil
}

// Child loads a child the caller is allowed to see.
func (s *Service) Child(ctx context.Context, caller auth.Caller, childID int64) (*model.Child, error) {
	return s.authorizeChild(ctx, caller, childID)
}

func (s *Service) GetBalance(ctx context.Context, caller auth.Caller, childID int64) (model.Balance, error) {
	if _, err := s.authorizeChild(ctx, caller, childID); err != nil {
		return model.Balance{}, err
	}
	return s.tracker.Balance(ctx, s.db, childID)
}

func (s *Service) GetHistory(ctx context.Context, caller auth.Caller, childID int64, page Page) (*History, error) {
	if page.Limit < 0 || page.Offset < 0 {
		return nil, errorf(CodeInvalidInput, "page out of range")
	}
	if _, err := s.authorizeChild(ctx, caller, childID); err != nil {
		return nil, err
	}
	entries, total, err := s.ledger.History(ctx, s.db, childID, page)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	return &History{Entries: entries, Total: total}, nil
}

// RequestPurchase reserves the reward's cost for the child and opens a
// PENDING purchase. Parents may request on behalf of their own children.
func (s *Service) RequestPurchase(ctx context.Context, caller auth.Caller, childID, rewardID int64) (*model.Purchase, error) {
	p, err := s.requestPurchase(ctx, caller, childID, rewardID)
	metrics.RecordTransition("request", result(err))
	if err != nil {
		return nil, err
	}
	s.notify(caller.OwnerID, "purchase", "requested", p.ID, map[string]any{"child_id": p.ChildID})
	return p, nil
}

func (s *Service) requestPurchase(ctx context.Context, caller auth.Caller, childID, rewardID int64) (*model.Purchase, error) {
	if _, err := s.authorizeChild(ctx, caller, childID); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, childID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var p *model.Purchase
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		child, err := store.NewChildStore(tx).GetByID(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			return errorf(CodeNotFound, "child %d not found", childID)
		}
		reward, err := store.NewRewardStore(tx).GetByID(ctx, rewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			return errorf(CodeNotFound, "reward %d not found", rewardID)
		}
		p, err = s.workflow.Request(ctx, tx, child, reward)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ApprovePurchase(ctx context.Context, caller auth.Caller, purchaseID int64) (*model.Purchase, error) {
	if !caller.IsParent() {
		return nil, errorf(CodeAccessDenied, "only parents can approve purchases")
	}
	return s.decide(ctx, caller, purchaseID, ActionApprove)
}

func (s *Service) RejectPurchase(ctx context.Context, caller auth.Caller, purchaseID int64) (*model.Purchase, error) {
	if !caller.IsParent() {
		return nil, errorf(CodeAccessDenied, "only parents can reject purchases")
	}
	return s.decide(ctx, caller, purchaseID, ActionReject)
}

// CancelPurchase lets a child withdraw one of its own pending requests.
func (s *Service) CancelPurchase(ctx context.Context, caller auth.Caller, childID, purchaseID int64) (*model.Purchase, error) {
	if !caller.IsChild() || caller.ChildID != childID {
		return nil, errorf(CodeAccessDenied, "only the requesting child can cancel")
	}
	p, err := store.NewPurchaseStore(s.db).GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errorf(CodeNotFound, "purchase %d not found", purchaseID)
	}
	if p.ChildID != childID {
		return nil, errorf(CodeAccessDenied, "purchase %d belongs to another child", purchaseID)
	}
	return s.decide(ctx, caller, purchaseID, ActionCancel)
}

func (s *Service) decide(ctx context.Context, caller auth.Caller, purchaseID int64, action Action) (*model.Purchase, error) {
	p, err := s.decidePurchase(ctx, caller, purchaseID, action)
	metrics.RecordTransition(string(action), result(err))
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			s.logger.Error("inconsistent balance while deciding purchase",
				"purchase_id", purchaseID, "action", action, "error", err)
		}
		return nil, err
	}
	if p.Status == model.PurchaseApproved {
		metrics.RecordSpend(p.Cost)
	}
	s.notify(caller.OwnerID, "purchase", action.past(), p.ID, map[string]any{"child_id": p.ChildID, "status": p.Status})
	s.logger.Info("purchase decided", "purchase_id", p.ID, "child_id", p.ChildID, "status", p.Status, "decided_by", p.DecidedBy)
	return p, nil
}

func (s *Service) decidePurchase(ctx context.Context, caller auth.Caller, purchaseID int64, action Action) (*model.Purchase, error) {
	p, err := store.NewPurchaseStore(s.db).GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errorf(CodeNotFound, "purchase %d not found", purchaseID)
	}
	if _, err := s.authorizeChild(ctx, caller, p.ChildID); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, p.ChildID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var decided *model.Purchase
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := store.NewPurchaseStore(tx).GetByID(ctx, purchaseID)
		if err != nil {
			return err
		}
		if current == nil {
			return errorf(CodeNotFound, "purchase %d not found", purchaseID)
		}
		decided, err = s.workflow.Decide(ctx, tx, current, action)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// DeleteChild removes a child and its history. It holds the child's lock so
// no purchase can be requested mid-delete, and refuses while any purchase is
// still PENDING.
func (s *Service) DeleteChild(ctx context.Context, caller auth.Caller, childID int64) error {
	if !caller.IsParent() {
		return errorf(CodeAccessDenied, "only parents can delete children")
	}
	if _, err := s.authorizeChild(ctx, caller, childID); err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, childID)
	if err != nil {
		return err
	}
	defer unlock()

	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := store.NewChildStore(tx).Delete(ctx, childID)
		if err != nil {
			return err
		}
		if !ok {
			return errorf(CodeConflict, "child %d has pending purchases", childID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("child deleted", "owner_id", caller.OwnerID, "child_id", childID)
	return nil
}

// ListPurchases returns purchases visible to the caller. A child always sees
// only its own.
func (s *Service) ListPurchases(ctx context.Context, caller auth.Caller, f store.PurchaseFilter) ([]model.Purchase, error) {
	switch {
	case caller.IsChild():
		f.ChildID = caller.ChildID
	case caller.IsParent():
	default:
		return nil, ErrAccessDenied
	}
	purchases, err := store.NewPurchaseStore(s.db).ListByOwner(ctx, caller.OwnerID, f)
	if err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}
	return purchases, nil
}

// Audit checks a child's stored counters against the ledger and the open
// purchases. A non-nil error means the books disagree.
func (s *Service) Audit(ctx context.Context, caller auth.Caller, childID int64) error {
	if _, err := s.authorizeChild(ctx, caller, childID); err != nil {
		return err
	}
	b, err := s.tracker.Balance(ctx, s.db, childID)
	if err != nil {
		return err
	}
	earned, spent, err := store.NewLedgerStore(s.db).Sums(ctx, childID)
	if err != nil {
		return err
	}
	pending, _, err := store.NewPurchaseStore(s.db).SumPending(ctx, childID)
	if err != nil {
		return err
	}

	switch {
	case b.Reserved < 0 || b.Reserved > b.Total:
		return fmt.Errorf("%w: reserved %d outside [0, %d]", ErrOutOfBalance, b.Reserved, b.Total)
	case b.Total != earned-spent:
		return fmt.Errorf("%w: total %d, ledger says %d", ErrOutOfBalance, b.Total, earned-spent)
	case b.Reserved != pending:
		return fmt.Errorf("%w: reserved %d, pending purchases hold %d", ErrOutOfBalance, b.Reserved, pending)
	}
	return nil
}

// authorizeChild loads the child and checks the caller may act on it.
func (s *Service) authorizeChild(ctx context.Context, caller auth.Caller, childID int64) (*model.Child, error) {
	child, err := store.NewChildStore(s.db).GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, errorf(CodeNotFound, "child %d not found", childID)
	}
	switch {
	case caller.IsParent() && child.OwnerID == caller.OwnerID:
		return child, nil
	case caller.IsChild() && caller.ChildID == child.ID:
		return child, nil
	}
	return nil, errorf(CodeAccessDenied, "no access to child %d", childID)
}

func (s *Service) notify(ownerID int64, entity, action string, id int64, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ownerID, entity, action, id, extra)
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

func uniq(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
