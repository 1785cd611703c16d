package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multiroom-chat/internal/bootstrap"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	bootstrap.SetupLogger(cfg)

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize application")
	}

	// 在独立 goroutine 中监听退出信号
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		logrus.WithField("signal", sig.String()).Info("Received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		app.Shutdown(ctx)
	}()

	if err := app.Start(); err != nil {
		logrus.WithError(err).Fatal("Application exited with error")
	}
	logrus.Info("Server stopped")
}
