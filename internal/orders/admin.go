package orders

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// OrderService: baca order + workflow status oleh admin.
type OrderService struct {
	Stores  Stores
	Tx      TxManager
	Events  EventSink
	Images  ImageURL
	Log     log.FieldLogger
	Service string
}

func NewOrderService(stores Stores, tx TxManager, events EventSink, images ImageURL, logger log.FieldLogger, service string) *OrderService {
	if events == nil {
		events = nopSink{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &OrderService{Stores: stores, Tx: tx, Events: events, Images: images, Log: logger, Service: service}
}

// ListOrders returns every order for admins and only the caller's own otherwise.
func (s *OrderService) ListOrders(ctx context.Context, p Principal) ([]Order, error) {
	var userID int64
	if !p.IsAdmin() {
		userID = p.UserID
	}
	out, err := s.Stores.Orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	for i := range out {
		s.resolveImages(&out[i])
	}
	return out, nil
}

func (s *OrderService) GetOrder(ctx context.Context, p Principal, id int64) (*Order, error) {
	o, err := s.Stores.Orders.GetOrderWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && o.UserID != p.UserID {
		return nil, ErrForbidden
	}
	s.resolveImages(o)
	return o, nil
}

// UpdateOrderStatus applies an admin status change. Read and write of the
// status share one transaction (row locked in SQL stores).
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, invalidInput("invalid status")
	}
	var from Status
	err := s.Tx.WithTransaction(ctx, func(ctx context.Context, tx Stores) error {
		o, err := tx.Orders.GetOrderWithItems(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if !CanTransition(from, to) {
			return &Error{Kind: KindInvalidTransition, Msg: "cannot move order from " + string(from) + " to " + string(to)}
		}
		return tx.Orders.UpdateStatus(ctx, id, to)
	})
	if err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(err, "update order status")
	}

	s.Log.WithFields(log.Fields{"order_id": id, "from": from, "to": to}).Info("order status changed")
	s.Events.Emit(ctx, TopicOrderStatusChanged, NewEnvelope(ctx, EventOrderStatusChanged, s.Service, id,
		OrderStatusChangedPayload{OrderID: id, From: from, To: to}))

	o, err := s.Stores.Orders.GetOrderWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolveImages(o)
	return o, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	ok, err := s.Stores.Orders.DeleteOrder(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete order")
	}
	if !ok {
		return NotFound("order")
	}
	s.Log.WithField("order_id", id).Info("order deleted")
	return nil
}

func (s *OrderService) resolveImages(o *Order) {
	for i := range o.Items {
		o.Items[i].Image = s.Images.Resolve(o.Items[i].Image)
	}
}
