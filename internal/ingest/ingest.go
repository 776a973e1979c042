// Package ingest implements the synchronous scan-request handler (C5):
// create a job, enumerate a bucket, write unit-of-work rows, and publish
// queue messages, per spec.md §4.5.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/sentryscan/internal/blobstore"
	"github.com/rawblock/sentryscan/pkg/models"
)

// ErrInvalidRequest is returned when bucket is empty.
var ErrInvalidRequest = errors.New("ingest: bucket is required")

// publishBatchSize mirrors the queue package's SQS batch cap so the
// ingestor can buffer exactly one batch's worth of listed keys at a time.
const publishBatchSize = 10

// lister is the subset of blobstore.Client the ingestor depends on.
type lister interface {
	List(ctx context.Context, bucket, prefix string, fn func(blobstore.ListedObject) error) error
}

// jobStore is the subset of store.PostgresStore the ingestor depends on.
type jobStore interface {
	CreateJob(ctx context.Context, jobID, bucket, prefix string, now time.Time) error
	UpsertObject(ctx context.Context, jobID, bucket, key, entityTag string, now time.Time) error
}

// publisher is the subset of queue.Client the ingestor depends on.
type publisher interface {
	Publish(ctx context.Context, msgs []models.QueueMessage) (sent int, err error)
}

// Result is the outcome of a scan request.
type Result struct {
	JobID         string
	ObjectCount   int
	EnqueuedCount int
}

// Ingestor wires the blob lister, job store, and queue publisher together.
type Ingestor struct {
	blobs    lister
	store    jobStore
	queue    publisher
	newJobID func() string
	now      func() time.Time
}

// New builds an Ingestor from the concrete infrastructure clients.
func New(blobs lister, store jobStore, queue publisher) *Ingestor {
	return &Ingestor{
		blobs:    blobs,
		store:    store,
		queue:    queue,
		newJobID: func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

// Scan executes spec.md §4.5's algorithm synchronously on the caller's
// goroutine: create the job, page through the bucket listing, upsert
// job_object rows, and publish queue messages in batches of 10.
func (ig *Ingestor) Scan(ctx context.Context, bucket, prefix string) (Result, error) {
	if bucket == "" {
		return Result{}, ErrInvalidRequest
	}

	jobID := ig.newJobID()
	now := ig.now()
	if err := ig.store.CreateJob(ctx, jobID, bucket, prefix, now); err != nil {
		return Result{}, fmt.Errorf("create job: %w", err)
	}

	var (
		objectCount   int
		enqueuedCount int
		pending       []models.QueueMessage
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		sent, err := ig.queue.Publish(ctx, pending)
		if err != nil {
			return fmt.Errorf("publish batch: %w", err)
		}
		enqueuedCount += sent
		pending = pending[:0]
		return nil
	}

	err := ig.blobs.List(ctx, bucket, prefix, func(obj blobstore.ListedObject) error {
		objectCount++
		if err := ig.store.UpsertObject(ctx, jobID, bucket, obj.Key, obj.EntityTag, ig.now()); err != nil {
			return fmt.Errorf("upsert object %s: %w", obj.Key, err)
		}
		pending = append(pending, models.QueueMessage{JobID: jobID, Bucket: bucket, Key: obj.Key, EntityTag: obj.EntityTag})
		if len(pending) >= publishBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("enumerate bucket: %w", err)
	}
	if err := flush(); err != nil {
		return Result{}, err
	}

	return Result{JobID: jobID, ObjectCount: objectCount, EnqueuedCount: enqueuedCount}, nil
}
