package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-realtime-pos/internal/config"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logging"
	"github.com/ariefcatur/go-realtime-pos/internal/notify"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/rabbitmq"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/joho/godotenv"
)

// notifier relays staff notifications from Kafka to the display fanout exchange.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logging.New(cfg.ServiceName+"-notifier", cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("notifier stopped", "action", "shutdown", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	mq, err := rabbitmq.Dial(cfg.AMQPURL)
	if err != nil {
		return err
	}
	defer mq.Close()

	relay := &notify.Relay{
		Dedup: &redisx.Deduper{RDB: rdb, Service: cfg.ServiceName + "-notifier"},
		Sink:  notify.AMQPSink{Client: mq, Source: cfg.ServiceName},
		Log:   log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicNotifications, cfg.NotifierWorkers, log)
	log.Info("notifier consumer started", "action", "consumer_start",
		"group", cfg.NotifierGroup, "topic", orders.TopicNotifications, "workers", cfg.NotifierWorkers)
	if err := cons.Start(ctx, relay.Handle); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	log.Info("notifier consumer drained", "action", "shutdown")
	return nil
}
