package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docflow/docflow/backend/go-services/internal/config"
	"github.com/docflow/docflow/backend/go-services/internal/generator"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
)

func main() {
	cfg, err := config.LoadGeneratorConfig()
	if err != nil {
		logger.Fatalf("failed to load generator config: %v", err)
	}
	flag.StringVar(&cfg.ServiceURL, "url", cfg.ServiceURL, "base URL of the docflow service")
	flag.IntVar(&cfg.Count, "count", cfg.Count, "number of documents to create")
	flag.StringVar(&cfg.Initiator, "initiator", cfg.Initiator, "author of the generated documents")
	flag.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "X-Client-ID sent with every request")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	flag.Parse()

	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid generator settings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := generator.New(generator.Config{
		ServiceURL: cfg.ServiceURL,
		Count:      cfg.Count,
		Author:     cfg.Initiator,
		ClientID:   cfg.ClientID,
	}, &http.Client{Timeout: cfg.Timeout})
	sum := g.Run(ctx)
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
