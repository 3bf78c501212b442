// Command submit publishes document ids on the submission subject so a
// running worker or server picks them up.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kirillkom/document-enrichment/internal/config"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/resilience"
	"github.com/kirillkom/document-enrichment/internal/observability/logging"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "overall publish timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-timeout 10s] <document-id>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.NATSURL == "" {
		fmt.Fprintln(os.Stderr, "NATS_URL is not set")
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("submit", cfg.LogLevel)

	noRetryConnect := false
	transport, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		RetryOnFailedConnect: &noRetryConnect,
		ResilienceExecutor:   resilience.NewExecutor(resilience.StorageConfig()),
		Logger:               logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failed := 0
	for _, id := range flag.Args() {
		if err := transport.PublishSubmission(ctx, id); err != nil {
			logger.Error("publish_submission_failed", "document_id", id, "error", err)
			failed++
			continue
		}
		logger.Info("submission_published", "document_id", id)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
