// Package main печатает токен администратора для HTTP API бота.
// Идентификатор берётся из ADMIN_ID или флага -admin, ключ подписи из API_SECRET.
package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/config"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/middleware"
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
	if cfg.APISecret == "" {
		sugar.Fatal("API_SECRET is required")
	}
	if cfg.AdminID == 0 {
		sugar.Fatal("admin id is required (ADMIN_ID or -admin)")
	}

	auth := middleware.NewAuthMiddleware(cfg.APISecret, nil)
	fmt.Println(auth.Token(cfg.AdminID))
}
