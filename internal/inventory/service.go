package inventory

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

// Deduper: implementasi produksi adalah redisx.Dedup.
type Deduper interface {
	First(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// StockReader is the slice of orders.ProductCatalog the watcher needs.
type StockReader interface {
	StockLevels(ctx context.Context, ids []int64) (map[int64]int, error)
}

// Service mendengarkan order.placed dan menerbitkan product.stock.low untuk
// setiap produk di order yang stoknya sudah <= Threshold.
type Service struct {
	Stock       StockReader
	Dedup       Deduper
	Events      orders.EventSink
	Threshold   int
	ServiceName string
	Log         log.FieldLogger
}

// HandleOrderPlaced: dipasang sebagai handler consumer. Error dikembalikan
// hanya untuk kegagalan yang layak diulang; pesan rusak di-skip.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.WithError(err).WithField("offset", m.Offset).Warn("skip undecodable message")
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}
	l := s.Log.WithFields(log.Fields{"event_id": env.EventID, "trace_id": env.TraceID})

	// 2) dedup via Redis (pakai event_id)
	first, err := s.Dedup.First(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		l.Debug("duplicate event ignored")
		return nil
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		l.WithError(err).Warn("skip bad payload")
		return nil
	}

	if err := s.check(orders.WithTraceID(ctx, env.TraceID), p); err != nil {
		// lepas tanda dedup supaya retry consumer (atau redelivery setelah restart) diproses ulang
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			l.WithError(ferr).Warn("dedup forget")
		}
		return err
	}
	return nil
}

func (s *Service) check(ctx context.Context, p orders.OrderPlacedPayload) error {
	ids := make([]int64, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ProductID)
	}
	if len(ids) == 0 {
		return nil
	}
	levels, err := s.Stock.StockLevels(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "read stock levels")
	}
	for _, id := range ids {
		stock, ok := levels[id]
		if !ok || stock > s.Threshold {
			continue
		}
		s.Log.WithFields(log.Fields{"product_id": id, "stock": stock, "order_id": p.OrderID}).Info("stock low")
		s.Events.Emit(ctx, orders.TopicStockLow, orders.NewEnvelope(ctx, orders.EventStockLow, s.ServiceName, p.OrderID,
			orders.StockLowPayload{ProductID: id, Stock: stock, Threshold: s.Threshold, OrderID: p.OrderID}))
	}
	return nil
}
