package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fjod/redclaw/internal/auth"
	"github.com/fjod/redclaw/internal/cache"
	"github.com/fjod/redclaw/internal/cartstore"
	"github.com/fjod/redclaw/internal/catalog"
	"github.com/fjod/redclaw/internal/config"
	"github.com/fjod/redclaw/internal/consumer"
	"github.com/fjod/redclaw/internal/gateway"
	apihttp "github.com/fjod/redclaw/internal/http"
	"github.com/fjod/redclaw/internal/notify"
	"github.com/fjod/redclaw/internal/publisher"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/internal/service"
	"github.com/fjod/redclaw/internal/store"
	"github.com/fjod/redclaw/pkg/logger"
)

const (
	cartClearerGroup = "storefront-cart-clearer"
	notifierGroup    = "storefront-notifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	installPropagators()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
	log.Info("storefront stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.L()
	log.Info("storefront starting...")

	// Postgres: users, addresses, coupons, orders, outbox, payment attempts
	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		SSLMode:           cfg.Postgres.SSLMode,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed")

	// Catalog
	products, err := catalog.NewRepository(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		return fmt.Errorf("run catalog migrations: %w", err)
	}

	// Stock holds start from the catalog's on-hand stock
	holds := store.NewMemoryStore(cfg.HoldTTL)
	defer holds.Close()
	levels, err := products.StockLevels(ctx)
	if err != nil {
		return fmt.Errorf("load stock levels: %w", err)
	}
	for _, l := range levels {
		holds.SetStock(l.ProductID, l.OnHand)
	}
	log.Info("stock holds initialized", zap.Int("products", len(levels)))

	// Carts
	mongoDB, err := cartstore.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(dctx); err != nil {
			log.Warn("failed to disconnect from MongoDB", zap.Error(err))
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	// Services
	rzp := gateway.NewRazorpayClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	})
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Orders:    repo,
		Addresses: repo,
		Coupons:   repo,
		Users:     repo,
		Attempts:  repo,
		Catalog:   products,
		Holds:     holds,
		Gateway:   rzp,
		Locker:    cache.NewRedisLocker(redisClient, cfg.Redis.LockTTL),
	})
	orderService := service.NewOrderService(repo, products)
	addressService := service.NewAddressService(repo)
	cartService := service.NewCartService(cartstore.NewMongoRepository(mongoDB), cache.NewRedisCache(redisClient, cfg.Redis.CartTTL), products)
	couponService := service.NewCouponService(repo)
	productService := service.NewProductService(products)

	tokens := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	tokenStore := cache.NewRedisTokenStore(redisClient)
	refresher := auth.NewRefresher(tokens, tokenStore, repo)

	// Event pipeline
	poller := publisher.NewOutboxPoller(repo, checkoutService, publisher.Config{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		EventTick:    cfg.Kafka.EventTick,
		RecoveryTick: cfg.Kafka.RecoveryTick,
	})
	defer poller.Close()

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     strconv.Itoa(cfg.SMTP.Port),
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	accounts, err := auth.NewAccounts(tokens, tokenStore, tokenStore, repo, mailer, auth.AccountsConfig{
		VerifyWindow: cfg.Auth.VerifyWindow,
	})
	if err != nil {
		return err
	}
	cartClearer := consumer.NewConsumer(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cartClearerGroup,
	}, consumer.NewClearCartHandler(cartService))
	defer cartClearer.Close()
	notifier := consumer.NewConsumer(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: notifierGroup,
	}, consumer.NewNotificationHandler(repo, mailer))
	defer notifier.Close()

	sweeper := auth.NewSweeper(repo, cfg.Auth.SweepInterval)

	// HTTP API
	timeout := cfg.HTTP.RequestTimeout
	authHandler := apihttp.NewAuthHandler(refresher, accounts, apihttp.CookieConfig{
		AccessTTL:  tokens.AccessTTL(),
		RefreshTTL: tokens.RefreshTTL(),
		Secure:     cfg.HTTP.SecureCookies,
	}, timeout)
	router := apihttp.NewRouter(apihttp.Handlers{
		Checkout:  apihttp.NewCheckoutHandler(checkoutService, timeout),
		Orders:    apihttp.NewOrdersHandler(orderService, timeout),
		Addresses: apihttp.NewAddressHandler(addressService, timeout),
		Cart:      apihttp.NewCartHandler(cartService, timeout),
		Coupons:   apihttp.NewCouponHandler(couponService, timeout),
		Auth:      authHandler,
		Products:  apihttp.NewProductHandler(productService, timeout),
	}, apihttp.RouterConfig{
		Tokens:         tokens,
		Limiter:        apihttp.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
		RequestTimeout: timeout + time.Second,
	})
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health endpoint
	lis, err := net.Listen("tcp", cfg.HTTP.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTP.GRPCHealthAddr, err)
	}
	grpcServer, healthServer := newHealthServer()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP API listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("gRPC health listening", zap.String("addr", cfg.HTTP.GRPCHealthAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error { poller.Run(gctx); return nil })
	g.Go(func() error { cartClearer.Run(gctx); return nil })
	g.Go(func() error { notifier.Run(gctx); return nil })
	g.Go(func() error { sweeper.Run(gctx); return nil })

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down storefront...")
		healthServer.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error("http server forced to shutdown", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

// installPropagators lets traceparent flow from inbound requests through to
// gateway calls.
func installPropagators() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// newHealthServer builds the traced gRPC server that serves health checks.
func newHealthServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	return grpcServer, healthServer
}
