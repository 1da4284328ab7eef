package main

import (
	"context"
	"log"

	"github.com/klass-lk/postboard/internal/bootstrap"
	"github.com/klass-lk/postboard/internal/config"
	"github.com/klass-lk/postboard/internal/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	flush, err := logging.Install(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer flush()

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialise application", zap.Error(err))
	}

	if err := app.Run(); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
	}
}
