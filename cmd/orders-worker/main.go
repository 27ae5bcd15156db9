package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Zyrax101/ThreadHeaven/internal/order"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// orders-worker drains the submitted-orders topic into Postgres. It is
// only needed when the storefront publishes order events to Kafka.
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.Info("orders-worker starting...")

	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	dbPort, err := strconv.Atoi(getEnv("POSTGRES_PORT", "5432"))
	if err != nil {
		log.WithError(err).Fatal("invalid POSTGRES_PORT")
	}

	cred := &order.Credentials{
		Host:              getEnv("POSTGRES_HOST", "localhost"),
		Port:              dbPort,
		User:              getEnv("POSTGRES_USER", "postgres"),
		Password:          getEnv("POSTGRES_PASSWORD", "postgres"),
		DBName:            getEnv("POSTGRES_DB", "threadheaven"),
		MigrationsDirPath: getEnv("ORDERS_MIGRATIONS", "migrations/orders"),
	}

	repo, err := order.NewPostgresRepository(cred)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer repo.Close()

	if err := repo.RunMigrations(cred); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	log.Info("database migrations completed")

	consumer := order.NewConsumer(repo, log, brokers...)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("consumer did not stop in time")
	}

	log.Info("orders-worker exited")
}
