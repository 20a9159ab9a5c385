// Package main запускает реферального бота и административный HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/bot"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/config"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/handler"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/middleware"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/notify"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/repository"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/service"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/subscription"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/telegram"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := config.LoadDotEnv(".env"); err != nil {
		sugar.Fatalw("dotenv error", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.BotToken == "" {
		sugar.Fatal("bot token is required (BOT_TOKEN or -t)")
	}

	repo, err := openRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	settings, err := config.NewSettings(cfg)
	if err != nil {
		sugar.Fatalw("settings initialization error", "error", err.Error())
	}

	api, err := telegram.NewAPI(cfg.BotToken, cfg.TelegramTimeout)
	if err != nil {
		sugar.Fatalw("telegram initialization error", "error", err.Error())
	}

	outbox, err := notify.OpenOutbox(cfg.OutboxPath)
	if err != nil {
		sugar.Fatalw("outbox initialization error", "error", err.Error())
	}
	defer outbox.Close()

	checker := subscription.NewChecker(subscription.NewTelegramOracle(api), settings, cfg.OracleTimeout, logger)

	svc := service.NewService(repo, settings, checker, outbox, logger)
	defer svc.Close()

	dispatcher := notify.NewDispatcher(outbox, notify.NewTelegramSender(api), logger)
	b := bot.New(api, svc, api.Self.UserName, logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.APISecret, settings.IsAdmin)
	if cfg.APISecret == "" {
		sugar.Warn("API_SECRET is empty, admin HTTP API will reject every token")
	}
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Приём обновлений Telegram
	g.Go(func() error {
		sugar.Infow("starting bot", "username", api.Self.UserName)
		return b.Run(ctx)
	})

	// Доставка уведомлений из очереди
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	// Периодическая проверка подписок
	g.Go(func() error {
		return svc.RunSubscriptionSweep(ctx, cfg.SweepInterval)
	})

	g.Go(func() error {
		sugar.Infow("starting admin api", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func openRepository(uri string) (service.Repository, error) {
	if strings.HasPrefix(uri, "postgres") {
		return repository.NewPostgresRepository(uri)
	}
	return repository.NewSQLiteRepository(repository.PathFromURI(uri))
}
