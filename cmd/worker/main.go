package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/config"
	kafkax "github.com/improveclean/cleaning-site/internal/kafka"
	"github.com/improveclean/cleaning-site/internal/logger"
	"github.com/improveclean/cleaning-site/internal/mailer"
	redisx "github.com/improveclean/cleaning-site/internal/redis"
	mailerService "github.com/improveclean/cleaning-site/internal/service/mailer"
	notifyService "github.com/improveclean/cleaning-site/internal/service/notify"
	"github.com/improveclean/cleaning-site/internal/store"
	storeUsers "github.com/improveclean/cleaning-site/internal/store/users"
	"github.com/improveclean/cleaning-site/internal/worker"
)

const (
	consumerGroup = "improveclean-notifier"
	deliveryTTL   = 7 * 24 * time.Hour
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Env, "worker")
	defer func() { _ = log.Sync() }()
	log.Info("worker starting", zap.String("topic", cfg.KafkaTopic), zap.Int("max_workers", cfg.MaxWorkers))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.PostgresURL, int32(cfg.MaxDBConnections))
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.NewClient(cfg.RedisAddr)
	defer rdb.Close()

	usersRepo := storeUsers.NewUsersRepository(db, log)

	// Create mailer service
	sender := &mailer.SMTPSender{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}
	mailerSvc := mailerService.NewMailerService(log, sender, cfg.Location())

	notifySvc := notifyService.NewNotifyService(log, usersRepo, mailerSvc, redisx.NewDeliveries(rdb, deliveryTTL))

	// Create Kafka consumer and producer
	consumer := kafkax.NewConsumer(log, cfg.Brokers(), consumerGroup, cfg.KafkaTopic)
	defer consumer.Close()
	dlq := kafkax.NewProducer(log, cfg.Brokers(), cfg.KafkaTopic+".dlq")
	defer dlq.Close()

	d := worker.NewDispatcher(log, notifySvc, consumer, dlq, cfg.MaxWorkers)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("dispatcher stopped", zap.Error(err))
	}
	log.Info("worker stopped")
}
