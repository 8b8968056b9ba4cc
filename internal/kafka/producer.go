package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// messageWriter adalah subset *kafka.Writer yang dipakai Producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in an inbox channel and writes them from a single
// goroutine. Publish never blocks: when the inbox is full the message is dropped
// and logged.
type Producer struct {
	w      messageWriter
	topic  string
	log    log.FieldLogger
	inbox  chan kafka.Message
	doneCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, logger log.FieldLogger) *Producer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("topic", topic)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  true, // error dilaporkan lewat Completion
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.WithError(err).WithField("count", len(msgs)).Error("kafka write failed")
			}
		},
	}
	return newProducer(w, topic, buf, logger)
}

func newProducer(w messageWriter, topic string, buf int, logger log.FieldLogger) *Producer {
	if buf <= 0 {
		buf = 1024
	}
	return &Producer{
		w:      w,
		topic:  topic,
		log:    logger,
		inbox:  make(chan kafka.Message, buf),
		doneCh: make(chan struct{}),
	}
}

// Start runs the write loop until ctx is cancelled or Close is called. Pesan
// yang masih di inbox tetap di-flush sebelum writer ditutup.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.doneCh)
		for {
			select {
			case <-ctx.Done():
				p.Close()
				for m := range p.inbox {
					p.write(m)
				}
				p.closeWriter()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.WithError(err).WithField("key", string(m.Key)).Error("publish failed")
	}
}

func (p *Producer) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.log.WithError(err).Warn("close kafka writer")
	}
}

// Publish enqueues a message; false kalau producer sudah ditutup atau inbox penuh.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.WithField("key", string(key)).Warn("publish after close, dropped")
		return false
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return true
	default:
		p.log.WithField("key", string(key)).Warn("producer inbox full, dropped")
		return false
	}
}

// Close stops accepting messages; the loop flushes what is left and exits.
// Aman dipanggil berkali-kali.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the write loop has exited.
func (p *Producer) WaitClosed() { <-p.doneCh }
