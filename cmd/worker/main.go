// Command worker runs the long-lived queue consumer (C4): one message at
// a time, fetch -> scan -> persist -> acknowledge, until terminated.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rawblock/sentryscan/internal/blobstore"
	"github.com/rawblock/sentryscan/internal/queue"
	"github.com/rawblock/sentryscan/internal/store"
	"github.com/rawblock/sentryscan/internal/worker"
)

// workerPoolConns is the bounded connection pool size for the worker
// process, per spec.md §5 ("~10 for the worker").
const workerPoolConns = 10

func main() {
	log.Println("Starting sentryscan worker...")

	dbURL := requireEnv("DATABASE_URL")
	dbStore, err := store.Connect(context.Background(), dbURL, workerPoolConns)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to database: %v", err)
	}
	defer dbStore.Close()

	region := getEnvOrDefault("AWS_REGION", "us-east-1")
	blobClient, err := blobstore.NewClient(context.Background(), region)
	if err != nil {
		log.Fatalf("FATAL: failed to configure S3 client: %v", err)
	}

	queueURL := requireEnv("SQS_QUEUE_URL")
	queueClient, err := queue.NewClient(context.Background(), region, queueURL)
	if err != nil {
		log.Fatalf("FATAL: failed to configure SQS client: %v", err)
	}

	w := worker.New(queueClient, blobClient, dbStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Worker running, long-polling for messages")
	w.Run(ctx)
	log.Println("Worker shut down cleanly")
}

func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
