package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Zyrax101/ThreadHeaven/internal/cart"
	"github.com/Zyrax101/ThreadHeaven/internal/catalog"
	"github.com/Zyrax101/ThreadHeaven/internal/checkout"
	"github.com/Zyrax101/ThreadHeaven/internal/geo"
	h "github.com/Zyrax101/ThreadHeaven/internal/http"
	"github.com/Zyrax101/ThreadHeaven/internal/order"
	"github.com/Zyrax101/ThreadHeaven/internal/store"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDB       string

	CatalogURL        string
	CatalogAPIKey     string
	CatalogDBPath     string
	CatalogMigrations string

	OrdersURL       string
	OrdersAPIKey    string
	PostgresHost    string
	PostgresPort    int
	PostgresUser    string
	PostgresPass    string
	PostgresDB      string
	OrderMigrations string

	KafkaBrokers []string
	GeoURL       string
	PaymentURL   string
}

func loadConfig() *Config {
	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		StoreBackend:  getEnv("STORE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "threadheaven"),

		CatalogURL:        getEnv("CATALOG_URL", ""),
		CatalogAPIKey:     getEnv("CATALOG_API_KEY", ""),
		CatalogDBPath:     getEnv("CATALOG_DB_PATH", "storefront.db"),
		CatalogMigrations: getEnv("CATALOG_MIGRATIONS", "migrations/catalog"),

		OrdersURL:       getEnv("ORDERS_URL", ""),
		OrdersAPIKey:    getEnv("ORDERS_API_KEY", ""),
		PostgresHost:    getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:    getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:    getEnv("POSTGRES_USER", "postgres"),
		PostgresPass:    getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:      getEnv("POSTGRES_DB", "threadheaven"),
		OrderMigrations: getEnv("ORDERS_MIGRATIONS", "migrations/orders"),

		KafkaBrokers: brokers,
		GeoURL:       getEnv("GEO_URL", "https://photon.komoot.io"),
		PaymentURL:   getEnv("PAYMENT_URL", "https://pay.threadheaven.example/session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	st, closeStore, err := newStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize blob store")
	}
	defer closeStore()

	cat, closeCatalog, writer, err := newCatalog(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize catalog")
	}
	defer closeCatalog()

	sink, closeSink, err := newSink(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize order sink")
	}
	defer closeSink()

	var publisher order.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := order.NewKafkaPublisher(cfg.KafkaBrokers...)
		defer kp.Close()
		publisher = kp
		log.WithField("brokers", cfg.KafkaBrokers).Info("kafka order events enabled")
	}

	carts := cart.NewManager(st, log)
	defer carts.Close()

	registry := checkout.NewRegistry(func(sessionID string) *checkout.Orchestrator {
		return checkout.New(checkout.Config{
			Ledger:         carts.Ledger(context.Background(), sessionID),
			Sink:           sink,
			Publisher:      publisher,
			Store:          st,
			PendingKey:     "pending-order:" + sessionID,
			PaymentBaseURL: cfg.PaymentURL,
			Logger:         log,
		})
	})
	defer registry.Close()

	suggesters := geo.NewPool(
		geo.NewPhotonLookup(cfg.GeoURL, &http.Client{Timeout: cfg.RequestTimeout}),
		geo.DefaultQuietPeriod,
	)
	defer suggesters.Close()

	var admin *h.AdminHandler
	if writer != nil {
		admin = h.NewAdminHandler(writer, cfg.RequestTimeout)
	}

	router := h.NewRouter(h.RouterConfig{
		Products: h.NewProductHandler(cat, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(carts, cat, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(registry, cfg.RequestTimeout),
		Geo:      h.NewGeoHandler(suggesters),
		Admin:    admin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}

func newStore(cfg *Config, log *logrus.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, nil, err
		}
		log.WithField("addr", cfg.RedisAddr).Info("using redis blob store")
		return store.NewRedisStore(client), func() { client.Close() }, nil
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := store.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("database", cfg.MongoDB).Info("using mongodb blob store")
		return store.NewMongoStore(db), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			db.Client().Disconnect(ctx)
		}, nil
	default:
		log.Info("using in-memory blob store, carts will not survive a restart")
		return store.NewMemoryStore(), func() {}, nil
	}
}

// newCatalog picks the product source: a remote catalog service when
// CATALOG_URL is set, otherwise the local sqlite repository. Either way
// the result is wrapped so a catalog outage degrades to the built-in
// collection instead of an empty shop window.
func newCatalog(cfg *Config, log *logrus.Logger) (catalog.Catalog, func(), h.ProductWriter, error) {
	if cfg.CatalogURL != "" {
		remote := catalog.NewRemoteCatalog(cfg.CatalogURL, cfg.CatalogAPIKey, cfg.RequestTimeout)
		log.WithField("url", cfg.CatalogURL).Info("using remote catalog")
		return catalog.NewFallback(remote, log), func() {}, nil, nil
	}

	repo, err := catalog.NewSQLiteRepository(cfg.CatalogDBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := repo.RunMigrations(cfg.CatalogMigrations); err != nil {
		repo.Close()
		return nil, nil, nil, err
	}
	log.WithField("path", cfg.CatalogDBPath).Info("using local sqlite catalog")
	return catalog.NewFallback(repo, log), func() { repo.Close() }, repo, nil
}

// newSink picks where accepted orders go: a remote orders service when
// ORDERS_URL is set, otherwise the local Postgres repository.
func newSink(cfg *Config) (order.Sink, func(), error) {
	if cfg.OrdersURL != "" {
		return order.NewRESTSink(cfg.OrdersURL, cfg.OrdersAPIKey, cfg.RequestTimeout), func() {}, nil
	}

	cred := &order.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPass,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.OrderMigrations,
	}
	repo, err := order.NewPostgresRepository(cred)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.RunMigrations(cred); err != nil {
		repo.Close()
		return nil, nil, err
	}
	return repo, func() { repo.Close() }, nil
}
