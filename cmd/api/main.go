package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/config"
	"github.com/ariefcatur/go-storefront.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/logx"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/redisx"
	"github.com/ariefcatur/go-storefront.git/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "storefront-api",
		Usage: "cart, checkout and order administration HTTP API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrateCmd,
			},
			{
				Name:  "token",
				Usage: "mint a bearer token (operator use)",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user-id", Required: true},
					&cli.StringFlag{Name: "role", Value: string(orders.RoleUser), Usage: "USER or ADMIN"},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (default JWT_TTL)"},
				},
				Action: tokenCmd,
			},
			{
				Name:  "create-admin",
				Usage: "create an ADMIN account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "name", Value: "Administrator"},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
				},
				Action: createAdminCmd,
			},
		},
		DefaultCommand: "serve",
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront-api failed")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logx.New(cfg.LogLevel, cfg.LogFormat).WithField("service", cfg.ServiceName)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// DB
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer backend.Close()

	// Redis (opsional: tanpa redis, idempotency replay & cache order mati)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	var (
		idem  httpx.Idempotency
		cache httpx.OrderCache
	)
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.WithError(err).Warn("redis unavailable, idempotency and order cache disabled")
	} else {
		idem = redisx.NewIdempotency(rdb)
		cache = redisx.NewOrderCache(rdb)
	}

	// Kafka
	bus := kafkax.NewBus(cfg.KafkaBrokers, orders.Topics, 1024, logger)
	bus.Start(ctx)

	images := orders.ImageURL{Base: cfg.ImageBaseURL}
	h := &httpx.Handler{
		Products:  orders.NewProductService(backend.Stores, backend.Tx, images, logger),
		Cart:      orders.NewCartService(backend.Stores, images),
		Placement: orders.NewPlacementService(backend.Stores, backend.Tx, bus, images, logger, cfg.ServiceName),
		Orders:    orders.NewOrderService(backend.Stores, backend.Tx, bus, images, logger, cfg.ServiceName),
		Accounts:  orders.NewAccountService(backend.Stores, logger),
		Idem:      idem,
		Cache:     cache,
		Secret:    cfg.JWTSecret,
		TokenTTL:  cfg.JWTTTL,
		Log:       logger,
	}
	router := httpx.NewRouter(logger, backend.Ping)
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.WithField("signal", s.String()).Info("shutting down...")
	case err := <-errCh:
		logger.WithError(err).Error("listen failed")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	bus.Close() // flush event yang tersisa
	return nil
}

func migrateCmd(*cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logx.New(cfg.LogLevel, cfg.LogFormat)
	if err := storage.Migrate(cfg); err != nil {
		return err
	}
	logger.WithField("driver", cfg.StoreDriver).Info("migrations applied")
	return nil
}

func tokenCmd(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	role := orders.Role(c.String("role"))
	if role != orders.RoleUser && role != orders.RoleAdmin {
		return errors.Errorf("role must be USER or ADMIN, got %q", role)
	}
	ttl := c.Duration("ttl")
	if ttl == 0 {
		ttl = cfg.JWTTTL
	}
	tok, err := auth.Issue(cfg.JWTSecret, c.Int64("user-id"), role, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, tok)
	return err
}

func createAdminCmd(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logx.New(cfg.LogLevel, cfg.LogFormat)
	backend, err := storage.Open(c.Context, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer backend.Close()

	u, err := orders.NewAccountService(backend.Stores, logger).CreateAdmin(c.Context, orders.Registration{
		Name:     c.String("name"),
		Email:    c.String("email"),
		Password: c.String("password"),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "admin %d created (%s)\n", u.ID, u.Email)
	return err
}
