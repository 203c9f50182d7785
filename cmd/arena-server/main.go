package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcfg "github.com/kapu/chess-arena-go/internal/config"
	"github.com/kapu/chess-arena-go/internal/boardimg"
	"github.com/kapu/chess-arena-go/internal/coordinator"
	"github.com/kapu/chess-arena-go/internal/httpapi"
	"github.com/kapu/chess-arena-go/internal/msgcat"
	"github.com/kapu/chess-arena-go/internal/obslog"
	"github.com/kapu/chess-arena-go/internal/registry"
	"github.com/kapu/chess-arena-go/internal/request"
	"github.com/kapu/chess-arena-go/internal/session"
	"github.com/kapu/chess-arena-go/internal/upstream"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis url", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("redis ping", zap.Error(err))
	}

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		logger.Fatal("message catalog", zap.Error(err))
	}

	var repo *session.Repository
	var archiver session.Archiver
	if cfg.DatabaseURL != "" {
		repo, err = session.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		archiver = repo
	} else {
		logger.Warn("no DATABASE_URL set, completed games will not be archived")
	}

	reg := registry.New(logger)
	store := session.NewStore(
		session.Options{MoveTime: time.Duration(cfg.MoveTimeSec) * time.Second},
		session.NewRulesValidator(),
		reg, archiver, cat, logger,
	)

	var coord *coordinator.Coordinator
	broker := request.NewBroker(request.NewStore(rdb), reg, func(white, black, gameID string) error {
		return coord.StartSession(white, black, gameID)
	}, cat, logger)

	coord = coordinator.New(reg, store, broker,
		upstream.NewIdentityClient(cfg.IdentityBaseURL),
		upstream.NewAnalysisClient(cfg.AnalysisBaseURL),
		cat, logger,
		coordinator.Options{AllowedOrigins: cfg.AllowedOrigins},
	)

	api := httpapi.New(store, broker, reg, boardimg.NewRenderer(), logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.SetupRoutes(api, coord),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	reg.CloseAll()
	store.Close()
	if repo != nil {
		_ = repo.Close()
	}
	_ = rdb.Close()
}
