package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/yourusername/study-planner/internal/handler"
	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/internal/repository"
	"github.com/yourusername/study-planner/internal/service"
	"github.com/yourusername/study-planner/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "timestamp"

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	zap.S().Info("logger initialized")

	if err := godotenv.Load(); err != nil {
		zap.S().Debug("load .env file", zap.Error(err))
	}

	telegramToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	postgresHost := os.Getenv("POSTGRES_HOST")
	postgresPort := os.Getenv("POSTGRES_PORT")
	postgresUser := os.Getenv("POSTGRES_USER")
	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	postgresDB := os.Getenv("POSTGRES_DB")

	if telegramToken == "" {
		zap.S().Fatal("missing TELEGRAM_BOT_TOKEN")
	}

	// Postgres is optional: without it the planner runs on seed data and
	// keeps everything in memory for the session.
	var repo models.Repository
	if postgresHost != "" {
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			postgresHost, postgresPort, postgresUser, postgresPassword, postgresDB)

		pg, err := repository.NewDB(dsn, 10, 20)
		if err != nil {
			zap.S().Error("connect to PostgreSQL", zap.Error(err), zap.String("host", postgresHost))
			os.Exit(1)
		}
		defer pg.Close()

		if err = pg.Up("migrations"); err != nil {
			zap.S().Error("run migrations", zap.Error(err))
			os.Exit(1)
		}
		repo = pg
	} else {
		zap.S().Warn("POSTGRES_HOST not set, running without persistence")
	}

	svc := service.NewService(store.New(), repo, time.Now)
	if err := svc.LoadState(context.Background()); err != nil {
		zap.S().Error("load state", zap.Error(err))
		os.Exit(1)
	}

	bot, err := handler.NewTelegramHandler(telegramToken, svc)
	if err != nil {
		zap.S().Error("create telegram handler", zap.Error(err))
		os.Exit(1)
	}

	bot.Start()
}
