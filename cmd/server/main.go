package main // Entry point package

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/booking"
    "github.com/iliyamo/train-seat-reservation/internal/config"
    "github.com/iliyamo/train-seat-reservation/internal/database"
    "github.com/iliyamo/train-seat-reservation/internal/handler"
    "github.com/iliyamo/train-seat-reservation/internal/middleware"
    "github.com/iliyamo/train-seat-reservation/internal/payment"
    "github.com/iliyamo/train-seat-reservation/internal/queue"
    "github.com/iliyamo/train-seat-reservation/internal/repository"
    "github.com/iliyamo/train-seat-reservation/internal/router"
    queuepublisher "github.com/iliyamo/train-seat-reservation/internal/service"
)

func main() {
    // Load .env if present; real deployments set the environment directly.
    _ = godotenv.Load()

    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database connection failed: %v", err)
    }
    defer db.Close()

    window := time.Duration(cfg.PaymentWindowMin) * time.Minute
    store := repository.NewMySQLStore(db, window)

    // The mock provider approves every charge unless told otherwise;
    // swapping in a real provider is a one-line change here.
    provider := payment.NewMockProvider()

    svc := booking.NewService(store, provider,
        booking.PublisherFunc(queuepublisher.PublishTicketStatus))

    // Background consumer writes ticket lifecycle events to logs/ticket.log.
    go func() {
        if err := queue.StartTicketConsumer(); err != nil {
            log.Printf("ticket consumer stopped: %v", err)
        }
    }()

    // Background reclamation of lapsed pending tickets.
    if cfg.SweepIntervalMin > 0 {
        go booking.RunSweeper(context.Background(), store,
            time.Duration(cfg.SweepIntervalMin)*time.Minute)
    }

    // Redis backs the rate limiter and the browse cache. A nil client
    // disables both middlewares; the API itself does not need Redis.
    rdb := config.NewRedisClient()
    limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    browseCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterPublic(e, handler.NewPublicHandler(store), browseCache, limiter)
    router.RegisterPassenger(e, handler.NewTicketHandler(svc), cfg.JWTSecret, limiter)
    router.RegisterOperator(e, handler.NewOperatorHandler(svc), cfg.JWTSecret)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
