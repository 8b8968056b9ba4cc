package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-storefront.git/internal/config"
	"github.com/ariefcatur/go-storefront.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/logx"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/redisx"
	"github.com/ariefcatur/go-storefront.git/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	service := cfg.ServiceName + "-inventory"
	logger := logx.New(cfg.LogLevel, cfg.LogFormat).WithField("service", service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB (read-only: level stok); migrasi urusan api
	cfg.AutoMigrate = false
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("db")
	}
	defer backend.Close()

	// Redis untuk dedup event
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.WithError(err).Fatal("redis")
	}

	// Producer: product.stock.low
	bus := kafkax.NewBus(cfg.KafkaBrokers, []string{orders.TopicStockLow}, 1024, logger)
	bus.Start(ctx)

	svc := &inventory.Service{
		Stock:       backend.Stores.Products,
		Dedup:       redisx.NewDedup(rdb, "inventory"),
		Events:      bus,
		Threshold:   cfg.LowStockThreshold,
		ServiceName: service,
		Log:         logger,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderPlaced, cfg.InventoryWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.WithFields(log.Fields{
			"group":     cfg.InventoryGroup,
			"topic":     orders.TopicOrderPlaced,
			"workers":   cfg.InventoryWorkers,
			"threshold": cfg.LowStockThreshold,
		}).Info("inventory consumer started")
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			logger.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer...")
	cancel()
	<-done
	bus.Close()
}
