package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetctl/masterctl/internal/app"
	"github.com/fleetctl/masterctl/internal/platform/envutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("Failed to initialize controller: %v\n", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Printf("Failed to start controller: %v\n", err)
		os.Exit(1)
	}

	port := envutil.Int("PORT", 8080)
	addr := fmt.Sprintf(":%d", port)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Controller listening on %s\n", addr)
		errCh <- a.Server.Run(addr)
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, draining...")
	case err := <-errCh:
		if err != nil {
			fmt.Printf("Server exited: %v\n", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Stop(shutdownCtx); err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
	}
}
