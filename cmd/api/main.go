// Command api runs the HTTP front door: CreateScan, GetJob, ListFindings,
// DeleteJob, health, and the live job-creation stream.
package main

import (
	"context"
	"log"
	"os"

	"github.com/rawblock/sentryscan/internal/api"
	"github.com/rawblock/sentryscan/internal/blobstore"
	"github.com/rawblock/sentryscan/internal/ingest"
	"github.com/rawblock/sentryscan/internal/queue"
	"github.com/rawblock/sentryscan/internal/store"
)

// apiPoolConns is the bounded connection pool size for the API process,
// per spec.md §5 ("~5 for the ingestor/API").
const apiPoolConns = 5

func main() {
	log.Println("Starting sentryscan API...")

	dbURL := requireEnv("DATABASE_URL")
	dbStore, err := store.Connect(context.Background(), dbURL, apiPoolConns)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to database: %v", err)
	}
	defer dbStore.Close()

	if err := dbStore.InitSchema(context.Background()); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

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

	ingestor := ingest.New(blobClient, dbStore, queueClient)

	wsHub := api.NewHub()
	go wsHub.Run()

	r := api.SetupRouter(dbStore, ingestor, wsHub)

	port := getEnvOrDefault("PORT", "8080")
	log.Printf("API listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("FATAL: server exited: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not
// set, preventing the binary from starting with missing configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
