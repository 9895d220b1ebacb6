package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"personal-assistant-api/internal/config"
	"personal-assistant-api/internal/gemini"
	"personal-assistant-api/internal/handler"
	"personal-assistant-api/internal/mail"
	"personal-assistant-api/internal/meeting"
	"personal-assistant-api/internal/middleware"
	"personal-assistant-api/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// database
	pool, err := pgxpool.New(context.Background(), cfg.DB.URL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	logger.Info("connected to postgres")

	// run migrations
	if migration, err := os.ReadFile(cfg.DB.MigrationFile); err != nil {
		logger.Warn("migration file not found, skipping", zap.Error(err))
	} else if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
		logger.Warn("migration", zap.Error(err))
	} else {
		logger.Info("migration applied")
	}

	st := store.New(pool)

	var opts []gemini.Option
	if cfg.Gemini.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	llm, err := gemini.NewClient(cfg.Gemini.APIKey, opts...)
	if err != nil {
		logger.Fatal("gemini client", zap.Error(err))
	}

	extractor, err := meeting.NewExtractor(llm, cfg.Gemini.Model, logger)
	if err != nil {
		logger.Fatal("extractor", zap.Error(err))
	}
	chatAgent, err := meeting.NewAgent(st, extractor, logger)
	if err != nil {
		logger.Fatal("meeting agent", zap.Error(err))
	}
	mailAgent, err := mail.NewAgent(llm, cfg.Gemini.Model, logger)
	if err != nil {
		logger.Fatal("mail agent", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error),
			)
			return nil
		},
	}))

	rl := middleware.NewRateLimiter(5, 10)
	h := handler.New(st, chatAgent, mailAgent, cfg.Auth.JWTSecret, logger)
	h.Register(e, rl)

	go func() {
		logger.Info("http listening", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
