package orders

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// PlacementService mengubah isi keranjang user menjadi order secara atomik.
type PlacementService struct {
	Stores  Stores
	Tx      TxManager
	Events  EventSink
	Images  ImageURL
	Log     log.FieldLogger
	Service string // nama producer di envelope event
}

func NewPlacementService(stores Stores, tx TxManager, events EventSink, images ImageURL, logger log.FieldLogger, service string) *PlacementService {
	if events == nil {
		events = nopSink{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &PlacementService{Stores: stores, Tx: tx, Events: events, Images: images, Log: logger, Service: service}
}

// PlaceOrder validates the cart of userID against current stock, then inside a
// single transaction inserts the order and its items, decrements stock with a
// guarded update and removes the ordered lines from the cart. It returns
// EMPTY_CART, INSUFFICIENT_STOCK or ORDER_COMMIT_FAILED (also when the cart cannot
// be read); on any of them nothing is persisted.
func (s *PlacementService) PlaceOrder(ctx context.Context, userID int64) (*Order, error) {
	lines, err := s.Stores.Carts.ListLinesWithProductInfo(ctx, userID)
	if err != nil {
		s.Log.WithError(err).WithField("user_id", userID).Error("load cart failed")
		return nil, commitFailed(errors.Wrap(err, "load cart"))
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	total, err := priceCart(lines)
	if err != nil {
		s.Log.WithFields(log.Fields{"user_id": userID, "product_id": productOf(err)}).Warn("order rejected: insufficient stock")
		return nil, err
	}

	// urutkan by product_id supaya urutan lock baris products selalu sama antar transaksi
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	var orderID int64
	err = s.Tx.WithTransaction(ctx, func(ctx context.Context, tx Stores) error {
		id, err := tx.Orders.InsertOrder(ctx, NewOrder{UserID: userID, TotalPrice: total, Status: StatusPending})
		if err != nil {
			return errors.Wrap(err, "insert order")
		}
		for _, l := range lines {
			if _, err := tx.Orders.InsertOrderItem(ctx, NewOrderItem{
				OrderID:   id,
				ProductID: l.ProductID,
				Price:     l.Price,
				Quantity:  l.Quantity,
			}); err != nil {
				return errors.Wrapf(err, "insert item for product %d", l.ProductID)
			}
			n, err := tx.Products.DecrementStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return errors.Wrapf(err, "decrement stock for product %d", l.ProductID)
			}
			if n != 1 {
				return &StockConflictError{ProductID: l.ProductID, Quantity: l.Quantity}
			}
		}
		// hanya baris yang ikut di-order; baris yang ditambah setelah snapshot tetap di keranjang
		if err := tx.Carts.DeleteLines(ctx, userID, productIDs(lines)); err != nil {
			return errors.Wrap(err, "clear ordered cart lines")
		}
		orderID = id
		return nil
	})
	if err != nil {
		s.Log.WithError(err).WithField("user_id", userID).Error("order commit failed, rolled back")
		return nil, commitFailed(err)
	}

	order, err := s.Stores.Orders.GetOrderWithItems(ctx, orderID)
	if err != nil {
		// order sudah committed; kembalikan versi yang kita tahu tanpa enrichment
		s.Log.WithError(err).WithField("order_id", orderID).Warn("reload placed order")
		order = assembleOrder(orderID, userID, total, lines)
	}
	for i := range order.Items {
		order.Items[i].Image = s.Images.Resolve(order.Items[i].Image)
	}

	s.Log.WithFields(log.Fields{
		"order_id": orderID,
		"user_id":  userID,
		"total":    total.StringFixed(2),
		"items":    len(lines),
	}).Info("order placed")

	s.Events.Emit(ctx, TopicOrderPlaced, NewEnvelope(ctx, EventOrderPlaced, s.Service, orderID, OrderPlacedPayload{
		OrderID:    orderID,
		UserID:     userID,
		Items:      toItemPrices(lines),
		TotalPrice: total,
	}))
	return order, nil
}

// priceCart checks every line against the stock snapshot and sums price × qty.
// It stops at the first line that asks for more than is available.
func priceCart(lines []CartLine) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity > l.Stock {
			return decimal.Zero, insufficientStock(l)
		}
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total, nil
}

func assembleOrder(orderID, userID int64, total decimal.Decimal, lines []CartLine) *Order {
	o := &Order{ID: orderID, UserID: userID, TotalPrice: total, Status: StatusPending}
	for _, l := range lines {
		o.Items = append(o.Items, OrderItem{
			OrderID:   orderID,
			ProductID: l.ProductID,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Title:     l.Title,
			Image:     l.Image,
		})
	}
	return o
}

func productIDs(lines []CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

func toItemPrices(lines []CartLine) []ItemPrice {
	out := make([]ItemPrice, 0, len(lines))
	for _, l := range lines {
		out = append(out, ItemPrice{ProductID: l.ProductID, Qty: l.Quantity, Price: l.Price})
	}
	return out
}

func productOf(err error) int64 {
	var e *Error
	if errors.As(err, &e) {
		return e.ProductID
	}
	return 0
}
