package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/chat"
	"github.com/iliyamo/prode-predictions/internal/config"
	"github.com/iliyamo/prode-predictions/internal/database"
	"github.com/iliyamo/prode-predictions/internal/football"
	"github.com/iliyamo/prode-predictions/internal/handler"
	"github.com/iliyamo/prode-predictions/internal/logging"
	"github.com/iliyamo/prode-predictions/internal/middleware"
	"github.com/iliyamo/prode-predictions/internal/queue"
	"github.com/iliyamo/prode-predictions/internal/repository"
	"github.com/iliyamo/prode-predictions/internal/router"
	"github.com/iliyamo/prode-predictions/internal/scheduler"
	"github.com/iliyamo/prode-predictions/internal/service"
)

const tokenCleanupInterval = 6 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config depends on APP_ENV, so fall back to a plain one
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log := logging.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbOpts := database.Options{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName}
	if cfg.DBAutoMigrate {
		if err := database.MigrateUp(dbOpts); err != nil {
			return err
		}
		log.Info("migrations applied")
	}
	db, err := database.Open(dbOpts)
	if err != nil {
		return err
	}
	defer db.Close()

	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()
	footballCfg := config.LoadFootballConfig()
	chatCfg := config.LoadChatConfig()
	queueCfg := config.LoadQueueConfig()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable; cache and rate limit disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if queueCfg.Enabled {
		publisher = queue.NewAMQPPublisher(queueCfg.URL, log)
		consumer := queue.NewAuditConsumer(queueCfg.URL, queueCfg.LogDir, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	purger := middleware.NewRedisCachePurger(cacheCfg, rdb)
	provider := football.NewClient(football.ClientConfig{
		BaseURL:    footballCfg.BaseURL,
		APIKey:     footballCfg.APIKey,
		Timezone:   footballCfg.Timezone,
		Timeout:    footballCfg.Timeout,
		MaxRetries: 2,
		Logger:     log,
	})

	// ---- services ----
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	predictionSvc := service.NewPredictionService(db, log)
	matchSvc := service.NewMatchService(db, publisher, purger, log)
	syncSvc := service.NewFixtureSync(db, provider, publisher, purger, log)
	rankingSvc := service.NewRankingService(db, log)
	userSvc := service.NewUserService(users, purger, log)

	sched, err := scheduler.New(log)
	if err != nil {
		return err
	}
	if footballCfg.Enabled() && footballCfg.SyncInterval > 0 {
		req := service.SyncRequest{Leagues: footballCfg.Leagues, Season: footballCfg.Season}
		if err := sched.AddFixtureSync(syncSvc, req, footballCfg.SyncInterval); err != nil {
			return err
		}
	}
	if err := sched.AddTokenCleanup(tokens, tokenCleanupInterval); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	hub := chat.NewHub(chatCfg, log)
	go hub.Run(ctx)

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	limiter := middleware.NewTokenBucket(rlCfg, rdb, log)
	cache := middleware.NewRedisCache(cacheCfg, rdb, log)

	predictionH := handler.NewPredictionHandler(predictionSvc, log)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, purger, log), cfg.JWTSecret, limiter)
	router.RegisterPlayer(e, predictionH, handler.NewRankingHandler(rankingSvc, log), cfg.JWTSecret, limiter, cache)
	router.RegisterAdmin(e,
		handler.NewAdminMatchHandler(matchSvc, syncSvc, footballCfg, log),
		handler.NewAdminUserHandler(userSvc, log),
		predictionH, cfg.JWTSecret)
	router.RegisterChat(e, handler.NewChatHandler(hub, cfg.JWTSecret, log))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
