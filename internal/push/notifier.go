package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Notifier pushes new purchase requests to the owning parent's browsers.
// Delivery runs in the background; other events are ignored.
type Notifier struct {
	sender    Sender
	subs      *store.PushStore
	purchases *store.PurchaseStore
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewNotifier(sender Sender, subs *store.PushStore, purchases *store.PurchaseStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		subs:      subs,
		purchases: purchases,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

func (n *Notifier) Notify(ownerID int64, entity, action string, id int64, extra map[string]any) {
	if entity != "purchase" || action != "requested" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		n.deliver(ctx, ownerID, id)
	}()
}

// Wait blocks until queued deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, ownerID, purchaseID int64) {
	p, err := n.purchases.GetByID(ctx, purchaseID)
	if err != nil || p == nil {
		n.logger.Warn("push: purchase lookup", "purchase_id", purchaseID, "error", err)
		return
	}
	subs, err := n.subs.ListByOwner(ctx, ownerID)
	if err != nil {
		n.logger.Error("push: list subscriptions", "owner_id", ownerID, "error", err)
		return
	}

	payload := Payload{
		Title: "New reward request",
		Body:  fmt.Sprintf("%s would like %s for %d points", p.ChildName, p.RewardName, p.Cost),
		URL:   "/purchases?status=PENDING",
		Tag:   fmt.Sprintf("purchase-%d", p.ID),
	}
	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				n.logger.Error("push: drop expired subscription", "id", sub.ID, "error", err)
			}
		default:
			n.logger.Warn("push: send", "id", sub.ID, "error", err)
		}
	}
}
