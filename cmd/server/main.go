package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/rent-market/internal/adapter/clock"
	"github.com/rl1809/rent-market/internal/adapter/handler"
	"github.com/rl1809/rent-market/internal/adapter/handler/pb"
	"github.com/rl1809/rent-market/internal/adapter/messaging"
	"github.com/rl1809/rent-market/internal/adapter/storage"
	"github.com/rl1809/rent-market/internal/config"
	"github.com/rl1809/rent-market/internal/core/service"
	"github.com/rl1809/rent-market/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, _ := cfg.Market.Location()
	cutoff, _ := cfg.Market.Cutoff()

	// Initialize database
	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, storage.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, loc)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database", zap.String("driver", db.Driver()))

	// Initialize Redis
	var cache port.CacheRepository
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		redisAdapter := storage.NewRedisAdapter(rdb)
		if err := redisAdapter.Ping(ctx); err != nil {
			log.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			cache = redisAdapter
			log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Initialize RabbitMQ
	var events port.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mq := messaging.NewRabbitMQClient(messaging.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RetryCount: cfg.RabbitMQ.RetryCount,
			RetryDelay: cfg.RabbitMQ.RetryDelay,
		}, log)
		if err := mq.Connect(); err != nil {
			log.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			defer mq.Close()
			events = messaging.NewPublisher(mq, cfg.RabbitMQ.Exchange, log)
		}
	}

	market, err := service.NewMarket(service.Deps{
		DB:     db,
		Cache:  cache,
		Events: events,
		Clock:  clock.NewSystem(loc),
		Log:    log,
	}, service.BookingPolicy{SameDayCutoff: cutoff, Precheck: cfg.Market.BookingPrecheck})
	if err != nil {
		return err
	}

	auth := handler.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryAuthInterceptor(auth)))
	pb.RegisterMarketServiceServer(grpcServer, handler.NewGRPCHandler(market, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	app := handler.NewHTTPHandler(market, cache, auth, log, cfg.RequestTimeout).NewApp()

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	healthServer.Shutdown()

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")
	return nil
}
