package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/cart"
	"github.com/JUNGLI-STORE/jungli-store/internal/catalog"
	"github.com/JUNGLI-STORE/jungli-store/internal/checkout"
	"github.com/JUNGLI-STORE/jungli-store/internal/config"
	httpapi "github.com/JUNGLI-STORE/jungli-store/internal/http"
	"github.com/JUNGLI-STORE/jungli-store/internal/media"
	"github.com/JUNGLI-STORE/jungli-store/internal/payment"
	"github.com/JUNGLI-STORE/jungli-store/internal/publisher"
	"github.com/JUNGLI-STORE/jungli-store/internal/repository/orders"
	"github.com/JUNGLI-STORE/jungli-store/internal/repository/products"
	"github.com/JUNGLI-STORE/jungli-store/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const healthProbeInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	l.Info("storefront starting", zap.String("environment", cfg.Environment))
	if len(cfg.Auth.SessionKey) == 0 {
		// sessions will not survive a restart
		l.Warn("SESSION_KEY not set, generating an ephemeral key")
		cfg.Auth.SessionKey = make([]byte, 32)
		if _, err := rand.Read(cfg.Auth.SessionKey); err != nil {
			l.Fatal("Failed to generate session key", zap.Error(err))
		}
	}
	var wg sync.WaitGroup

	// Orders (postgres)
	creds := &orders.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		SSLMode:           cfg.Postgres.SSLMode,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}
	orderRepo, err := orders.NewRepository(creds)
	if err != nil {
		l.Fatal("Failed to connect to orders database", zap.Error(err))
	}
	defer orderRepo.Close()

	if err := orderRepo.RunMigrations(creds); err != nil {
		l.Fatal("Failed to run orders migrations", zap.Error(err))
	}

	// Catalog (sqlite)
	productRepo, err := products.NewRepository(cfg.SQLite.Path)
	if err != nil {
		l.Fatal("Failed to open catalog database", zap.Error(err))
	}
	defer productRepo.Close()

	if err := productRepo.RunMigrations(cfg.SQLite.MigrationsDirPath); err != nil {
		l.Fatal("Failed to run catalog migrations", zap.Error(err))
	}
	l.Info("Database migrations completed")

	// Redis backs carts and magic links
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		l.Fatal("Failed to connect to redis", zap.Error(err))
	}
	pingCancel()

	// Media (mongo gridfs)
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoDB, err := media.ConnectMongoDB(mongoCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	mongoCancel()
	if err != nil {
		l.Fatal("Failed to connect to mongodb", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			l.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}()
	mediaStore := media.NewGridFSStore(mongoDB, cfg.Mongo.Bucket, l)

	// Payment gateway
	var (
		gateway payment.Gateway
		charger httpapi.SandboxCharger
	)
	if cfg.UseSandboxGateway() {
		l.Warn("RAZORPAY_KEY_ID not set, using sandbox payment gateway")
		sandbox := payment.NewSandbox("", payment.RandomStatus{})
		gateway = sandbox
		charger = sandbox
	} else {
		gateway = payment.NewRazorpayClient(payment.RazorpayConfig{
			BaseURL:   cfg.Razorpay.BaseURL,
			KeyID:     cfg.Razorpay.KeyID,
			KeySecret: cfg.Razorpay.KeySecret,
			Timeout:   cfg.Timeouts.Gateway,
		}, l)
	}

	// Auth
	guard := auth.NewGuard(auth.NewAllowList(cfg.Auth.AdminEmails))
	sessionAuth := auth.NewSessionAuth(
		auth.NewCookieStore(cfg.Auth.SessionKey, cfg.Auth.CookieSecure),
		rdb,
		auth.NewLogMailer(l),
		guard,
		auth.SessionConfig{BaseURL: cfg.Auth.BaseURL, MagicLinkTTL: cfg.Auth.MagicLinkTTL},
		l,
	)

	// Domain services
	carts := cart.NewSessions(cart.NewRedisCache(rdb), l)
	catalogService := catalog.NewService(orderRepo, productRepo, mediaStore, l)

	branding := checkout.DefaultBranding()
	branding.StoreName = cfg.Razorpay.StoreName
	branding.Image = cfg.Razorpay.LogoURL
	branding.ThemeColor = cfg.Razorpay.Theme

	checkoutService := checkout.NewService(
		carts,
		guard,
		guard,
		checkout.NewPaymentHandler(gateway, cfg.Timeouts.Gateway),
		checkout.NewOrderHandler(catalogService, cfg.Timeouts.Request),
		branding,
		l,
	)
	defer checkoutService.Close()

	// Outbox publisher
	writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	poller := publisher.NewOutboxPoller(orderRepo, writer, l)
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollerCtx)
	}()

	// Idle carts and checkouts fall out of memory; carts come back from redis.
	evictCtx, evictCancel := context.WithCancel(context.Background())
	wg.Add(2)
	go func() {
		defer wg.Done()
		carts.EvictIdle(evictCtx, cfg.Timeouts.SessionIdle)
	}()
	go func() {
		defer wg.Done()
		checkoutService.EvictIdle(evictCtx, cfg.Timeouts.SessionIdle)
	}()

	limiterCtx, limiterCancel := context.WithCancel(context.Background())
	defer limiterCancel()

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Logger:           l,
		RequestTimeout:   cfg.Timeouts.Request,
		MaxBodySize:      cfg.HTTP.MaxRequestBodySize,
		TrustProxy:       cfg.HTTP.TrustProxy,
		Session:          sessionAuth.Middleware,
		Guard:            guard,
		MagicLinkLimiter: httpapi.NewRateLimiter(limiterCtx, time.Minute),
		Cart:             httpapi.NewCartHandler(carts, catalogService, cfg.Timeouts.Request, l),
		Checkout:         httpapi.NewCheckoutHandler(checkoutService, charger, cfg.Timeouts.Request, l),
		Products:         httpapi.NewProductHandler(catalogService, cfg.Timeouts.Request, l),
		Orders:           httpapi.NewOrdersHandler(catalogService, guard, cfg.Timeouts.Request, l),
		Admin:            httpapi.NewAdminHandler(catalogService, cfg.HTTP.MaxUploadSize, cfg.Timeouts.Request, l),
		Media:            httpapi.NewMediaHandler(mediaStore, l),
		Auth:             httpapi.NewAuthHandler(sessionAuth, guard, l),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info("HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("server error", zap.Error(err))
		}
	}()

	// Ops gRPC server: health and reflection
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPC.Port))
	if err != nil {
		l.Fatal("Failed to listen", zap.Error(err))
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	go func() {
		l.Info("gRPC ops server listening", zap.String("port", cfg.GRPC.Port))
		if err := grpcServer.Serve(lis); err != nil {
			l.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	probeCtx, probeCancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		probeDependencies(probeCtx, healthServer, l, orderRepo, productRepo, rdb)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down storefront...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	pollerCancel()
	probeCancel()
	evictCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		l.Info("Background workers stopped cleanly")
	case <-shutdownCtx.Done():
		l.Warn("Background workers didn't stop in time")
	}

	if err := poller.Close(); err != nil {
		l.Warn("kafka writer close failed", zap.Error(err))
	}
	l.Info("storefront stopped")
}

type pinger interface {
	Ping(ctx context.Context) error
}

// probeDependencies flips the overall gRPC health status whenever one of the
// backing stores stops answering.
func probeDependencies(ctx context.Context, hs *health.Server, l *zap.Logger, orderRepo, productRepo pinger, rdb *redis.Client) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	check := func() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err := orderRepo.Ping(pctx); err != nil {
			l.Warn("orders database unhealthy", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if err := productRepo.Ping(pctx); err != nil {
			l.Warn("catalog database unhealthy", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if err := rdb.Ping(pctx).Err(); err != nil {
			l.Warn("redis unhealthy", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
