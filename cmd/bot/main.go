package main

import (
	"context"
	"os"
	"time"

	"attendance-bot/internal/attendance"
	"attendance-bot/internal/bot"
	"attendance-bot/internal/config"
	"attendance-bot/internal/database"
	"attendance-bot/internal/directory"
	"attendance-bot/internal/handlers"
	"attendance-bot/internal/health"
	"attendance-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	connectRetries = 3
	connectDelay   = 5 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	zapLogger, err := logger.New(&cfg.Logger, logger.DefaultServiceName)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	db, err := database.New(cfg.Database)
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	zap.L().Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}

	api, err := connectTelegram(cfg.BotToken)
	if err != nil {
		zap.L().Fatal("Failed to connect to Telegram", zap.Error(err))
	}
	zap.L().Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	b := bot.New(api)
	b.Directory = directory.NewService(db, cfg.OwnerID, b)
	b.Attendance = attendance.NewService(db, b.Directory)

	healthServer := health.NewServer(cfg.HealthAddr, db)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			zap.L().Error("Health server stopped", zap.Error(err))
		}
	}()

	zap.L().Info("Bot started successfully")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	for update := range updates {
		go handlers.HandleUpdate(b, update)
	}
}

// connectTelegram retries the initial getMe handshake so a bot restarted
// during a short network outage comes up on its own.
func connectTelegram(token string) (*tgbotapi.BotAPI, error) {
	var api *tgbotapi.BotAPI

	backoff := retry.WithMaxRetries(connectRetries, retry.NewConstant(connectDelay))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		var err error
		api, err = tgbotapi.NewBotAPI(token)
		if err != nil {
			zap.L().Warn("Telegram connect failed, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return api, nil
}
