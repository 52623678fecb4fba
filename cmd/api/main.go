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

	"github.com/ariefcatur/go-realtime-pos/internal/config"
	"github.com/ariefcatur/go-realtime-pos/internal/engine"
	"github.com/ariefcatur/go-realtime-pos/internal/httpx"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/locks"
	"github.com/ariefcatur/go-realtime-pos/internal/logging"
	"github.com/ariefcatur/go-realtime-pos/internal/memstore"
	"github.com/ariefcatur/go-realtime-pos/internal/notify"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/postgres"
	"github.com/ariefcatur/go-realtime-pos/internal/rabbitmq"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type store interface {
	engine.Store
	httpx.ProductLister
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "action", "shutdown", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []httpx.Check

	// Store
	var st store
	switch cfg.Store {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		st = &orders.Repo{DB: db}
		checks = append(checks, httpx.Check{Name: "postgres", Ping: db.Ping})
	default:
		log.Warn("using in-memory store, data is lost on restart", "action", "store_memory")
		st = memstore.New()
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	var cache engine.ViewCache
	if err := redisx.Ping(ctx, rdb); err != nil {
		if cfg.LockBackend == "redis" {
			return fmt.Errorf("redis: %w", err)
		}
		log.Warn("redis unavailable, order view cache disabled", "action", "redis_unavailable", "error", err)
	} else {
		cache = &redisx.ViewCache{RDB: rdb}
		checks = append(checks, httpx.Check{Name: "redis", Ping: func(ctx context.Context) error { return redisx.Ping(ctx, rdb) }})
	}

	var locker locks.Locker = locks.NewLocal(cfg.LockWait)
	if cfg.LockBackend == "redis" {
		locker = redisx.NewLocker(rdb, cfg.LockWait, cfg.LockTTL, log)
	}

	// Kafka producers outlive the request context so queued messages are flushed on shutdown.
	pctx, pcancel := context.WithCancel(context.Background())
	defer pcancel()
	events := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	events.Start(pctx)

	sink, closeSink, err := notificationSink(pctx, cfg, log, &checks)
	if err != nil {
		return err
	}
	emitter := notify.NewEmitter(sink, cfg.NotifyBuffer, 5*time.Second, log)

	svc := engine.New(st, locker, engine.Config{
		ServiceName:    cfg.ServiceName,
		DefaultTaxRate: cfg.DefaultTaxRate,
		StockPolicy:    cfg.StockPolicy,
	},
		engine.WithNotifier(emitter),
		engine.WithEvents(events),
		engine.WithViewCache(cache),
		engine.WithLogger(log),
	)

	router := httpx.NewRouter(log, checks...)
	oh := &httpx.OrdersHandler{Engine: svc, Products: st, Log: log}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "action", "http_listen", "addr", cfg.HTTPAddr, "store", cfg.Store, "lock_backend", cfg.LockBackend, "notify_sink", cfg.NotifySink)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "action", "shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()

	// drain in dependency order: notifications may still go to kafka
	emitter.Close()
	closeSink()
	events.Close()
	events.WaitClosed()
	return err
}

func notificationSink(ctx context.Context, cfg config.Config, log *slog.Logger, checks *[]httpx.Check) (notify.Sink, func(), error) {
	switch cfg.NotifySink {
	case "kafka":
		p := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotifications, 256, log)
		p.Start(ctx)
		return notify.KafkaSink{Producer: p, Service: cfg.ServiceName}, func() {
			p.Close()
			p.WaitClosed()
		}, nil
	case "amqp":
		mq, err := rabbitmq.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		*checks = append(*checks, httpx.Check{Name: "rabbitmq", Ping: func(context.Context) error { return mq.Ping() }})
		return notify.AMQPSink{Client: mq, Source: cfg.ServiceName}, mq.Close, nil
	default:
		return notify.LogSink{Log: log}, func() {}, nil
	}
}
