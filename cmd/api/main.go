package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"docvault/internal/logging"
)

// @title			docvault API
// @version		1.0
// @description	Document and image upload service.
// @BasePath		/
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		logging.L().Error("command failed", "error", err.Error())
		stop()
		os.Exit(1)
	}
}
