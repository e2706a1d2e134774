package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/app"
	"github.com/sean-rowe/best-bike-day/internal/version"
)

func main() {
	application, err := app.New()

	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	logger := application.Logger()
	logger.Info("starting best bike day service", zap.String("version", version.Get().String()))

	if err := application.Start(context.Background()); err != nil {
		logger.Error("failed to start application", zap.Error(err))
		application.Stop()
		os.Exit(1)
	}

	application.WaitForShutdown()
	application.Stop()
}
