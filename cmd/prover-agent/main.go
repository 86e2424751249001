package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/proverclient/internal/config"
	"github.com/example/proverclient/internal/observability"
	"github.com/example/proverclient/internal/resources"
	"github.com/example/proverclient/internal/supervisor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()

	shutdownTracing, err := observability.InitTracingFromEnv("prover-agent")
	if err != nil {
		log.Printf("tracing init failed, continuing without it: %v", err)
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	sup := supervisor.New(cfg, nil)
	go logEvents(sup)

	if err := sup.Run(ctx); err != nil {
		if errors.Is(err, resources.ErrInsufficientResources) {
			log.Printf("fatal: %v", err)
			os.Exit(1)
		}
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}

	if ctx.Err() != nil {
		os.Exit(2)
	}
}

func logEvents(sup *supervisor.Supervisor) {
	sub := sup.Events().Subscribe()
	defer sub.Close()
	for {
		ev, ok := sub.Next(context.Background())
		if !ok {
			return
		}
		log.Println(ev.String())
	}
}
