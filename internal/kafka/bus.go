package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// Bus routes envelopes to one Producer per topic. It is the orders.EventSink
// used in production.
type Bus struct {
	producers map[string]*Producer
	log       log.FieldLogger
}

var _ orders.EventSink = (*Bus)(nil)

func NewBus(brokers []string, topics []string, buf int, logger log.FieldLogger) *Bus {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ps := make(map[string]*Producer, len(topics))
	for _, t := range topics {
		ps[t] = NewProducer(brokers, t, buf, logger)
	}
	return &Bus{producers: ps, log: logger}
}

func newBus(producers map[string]*Producer, logger log.FieldLogger) *Bus {
	return &Bus{producers: producers, log: logger}
}

func (b *Bus) Start(ctx context.Context) {
	for _, p := range b.producers {
		p.Start(ctx)
	}
}

// Emit marshals env and publishes it keyed by the correlation id (order id), so
// events of one order stay on one partition.
func (b *Bus) Emit(_ context.Context, topic string, env orders.Envelope) {
	p, ok := b.producers[topic]
	if !ok {
		b.log.WithFields(log.Fields{"topic": topic, "event_type": env.EventType}).Warn("no producer for topic, event dropped")
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		b.log.WithError(err).WithField("event_id", env.EventID).Error("marshal envelope")
		return
	}
	p.Publish([]byte(env.CorrelationID), value,
		kafka.Header{Key: HeaderEventType, Value: []byte(env.EventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

// Close stops every producer and waits for their flush.
func (b *Bus) Close() {
	for _, p := range b.producers {
		p.Close()
	}
	for _, p := range b.producers {
		p.WaitClosed()
	}
}
