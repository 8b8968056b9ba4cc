package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     log.FieldLogger

	// backoff retry handler: mulai dari minBackoff, dobel tiap gagal, maksimal maxBackoff
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, logger log.FieldLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if logger == nil {
		logger = log.StandardLogger()
	}
	return newConsumer(r, workers, logger.WithFields(log.Fields{"group": group, "topic": topic}))
}

func newConsumer(r messageReader, workers int, logger log.FieldLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: logger, minBackoff: 200 * time.Millisecond, maxBackoff: 10 * time.Second}
}

// Start fetches until ctx is done. Messages are routed to a worker by partition,
// so one partition is handled (and committed) strictly in offset order. A failed
// message is retried with backoff until it succeeds; later offsets of the same
// partition wait behind it, since a group commit acknowledges everything below it.
// Returns nil on shutdown.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer func() {
		if err := c.r.Close(); err != nil {
			c.log.WithError(err).Warn("close reader")
		}
	}()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			wl := c.log.WithField("worker", id)
			for m := range jobs {
				// sudah shutdown: sisa antrian tidak diproses & tidak di-commit
				if ctx.Err() != nil {
					continue
				}
				if !c.handle(ctx, wl, h, m) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					wl.WithError(err).WithFields(log.Fields{"partition": m.Partition, "offset": m.Offset}).Error("commit offset")
				}
			}
		}(i, lanes[i])
	}
	defer wg.Wait()
	defer func() {
		for _, l := range lanes {
			close(l)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case lanes[m.Partition%len(lanes)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it returns nil. False means ctx ended first and m must
// not be committed.
func (c *Consumer) handle(ctx context.Context, wl log.FieldLogger, h Handler, m kafka.Message) bool {
	wait := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		wl.WithError(err).WithFields(log.Fields{
			"partition": m.Partition,
			"offset":    m.Offset,
			"attempt":   attempt,
			"retry_in":  wait,
		}).Error("handle message")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		wait *= 2
		if wait > c.maxBackoff {
			wait = c.maxBackoff
		}
	}
}
