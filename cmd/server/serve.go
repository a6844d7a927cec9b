package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/cartify/internal/config"
	"github.com/Skotchmaster/cartify/internal/httpserver"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/pkg/db"
	"github.com/Skotchmaster/cartify/pkg/events"
	"github.com/Skotchmaster/cartify/pkg/idempotency"
	"github.com/Skotchmaster/cartify/pkg/logging"
	"github.com/Skotchmaster/cartify/pkg/metrics"
	"github.com/Skotchmaster/cartify/pkg/search"
)

var (
	autoMigrate bool
	reindex     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "migrate the schema before serving")
	serveCmd.Flags().BoolVar(&reindex, "reindex", false, "push every product into the search index on start")
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(log)
	ctx = logging.IntoContext(ctx, log)

	gdb, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Warn("db close error", "error", err)
		}
	}()

	r := repo.New(gdb)
	if autoMigrate {
		if err := r.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		pub = kp
		log.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("kafka close error", "error", err)
		}
	}()

	var idem idempotency.Store = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		rdb, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
		idem = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
		log.Info("redis idempotency store enabled", "addr", cfg.RedisAddr)
	}

	var index search.Index
	if cfg.ESURL != "" {
		es, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword, Index: cfg.ESIndex})
		if err != nil {
			return err
		}
		index = search.NewESIndex(es, cfg.ESIndex)
		log.Info("elasticsearch search enabled", "index", cfg.ESIndex)
	}

	m := metrics.New(cfg.ServiceName)

	users := &service.UserService{Repo: r, JWTSecret: cfg.JWTAccessSecret, AccessTTL: cfg.AccessTokenTTL}
	catalog := &service.CatalogService{Repo: r, Events: pub, Index: index}
	engine := service.NewCheckoutEngine(r, cfg.Checkout)
	engine.Idem = idem
	engine.Events = pub
	engine.Metrics = m

	if reindex && index != nil {
		n, err := catalog.Reindex(ctx)
		if err != nil {
			return err
		}
		log.Info("search index rebuilt", "documents", n)
	}

	e := httpserver.NewServer(log, m, cfg.CORSOrigins)
	httpserver.Register(e, &httpserver.Deps{
		Auth:      &httpserver.AuthHTTP{Svc: users},
		Cart:      &httpserver.CartHTTP{Svc: &service.CartService{Repo: r, Events: pub}, Users: users},
		Checkout:  &httpserver.CheckoutHTTP{Engine: engine, Users: users},
		Orders:    &httpserver.OrderHTTP{Svc: &service.OrderService{Repo: r, Events: pub}, Users: users},
		Catalog:   &httpserver.CatalogHTTP{Svc: catalog},
		Health:    &httpserver.HealthHTTP{DB: gdb},
		JWTSecret: cfg.JWTAccessSecret,
		Metrics:   m,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}
