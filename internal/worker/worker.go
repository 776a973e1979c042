// Package worker implements the long-lived queue consumer (C4): the
// per-message state machine described in spec.md §4.4, wired around the
// blobstore, detectors, and store packages.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/sentryscan/internal/blobstore"
	"github.com/rawblock/sentryscan/internal/detectors"
	"github.com/rawblock/sentryscan/internal/queue"
	"github.com/rawblock/sentryscan/internal/store"
	"github.com/rawblock/sentryscan/pkg/models"
)

// unsupportedTypeNote is recorded on job_objects whose key suffix the
// scanner cannot decode (spec.md §4.4 step 4).
const unsupportedTypeNote = "Unsupported file type - skipped"

// shutdownGrace bounds how long Run waits for an in-flight message to
// finish once its context is cancelled (spec.md §5).
const shutdownGrace = 2 * time.Second

// receiveErrorBackoff bounds the sleep between Receive retries on a
// transport failure, the one error-backoff suspension point spec.md §5
// calls for beyond network I/O itself.
const receiveErrorBackoff = 5 * time.Second

// receiver is the subset of queue.Client the worker loop depends on.
type receiver interface {
	Receive(ctx context.Context) (*queue.ReceivedMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// fetcher is the subset of blobstore.Client the worker loop depends on.
type fetcher interface {
	Fetch(ctx context.Context, bucket, key string) (content, entityTag string, err error)
}

// objectStore is the subset of store.PostgresStore the worker loop
// depends on.
type objectStore interface {
	SetObjectStatus(ctx context.Context, jobID, bucket, key, entityTag string, status models.ObjectStatus, lastError string, now time.Time) error
	InsertFindings(ctx context.Context, findings []models.Finding, now time.Time) (int, error)
}

// Worker owns one queue consumer and processes messages one at a time.
type Worker struct {
	queue  receiver
	blobs  fetcher
	store  objectStore
	scan   func(text, jobID, bucket, key, entityTag string) []models.Finding
	now    func() time.Time
}

// New builds a Worker from the concrete infrastructure clients.
func New(q *queue.Client, b *blobstore.Client, s *store.PostgresStore) *Worker {
	return &Worker{
		queue: q,
		blobs: b,
		store: s,
		scan:  detectors.Scan,
		now:   time.Now,
	}
}

// Run long-polls the queue until ctx is cancelled, processing one message
// at a time per spec.md §4.4. On cancellation it finishes any in-flight
// message within shutdownGrace and returns.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[Worker] shutdown signal received, draining in-flight work")
			return
		default:
		}

		rm, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Worker] receive failed: %v, backing off %s", err, receiveErrorBackoff)
			select {
			case <-time.After(receiveErrorBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if rm == nil {
			continue
		}

		// procCtx is detached from ctx's cancellation: a shutdown signal on
		// ctx cancels it only after shutdownGrace, so the in-flight message
		// gets its grace window instead of being cut off instantly.
		procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		stopGrace := context.AfterFunc(ctx, func() {
			time.AfterFunc(shutdownGrace, cancel)
		})
		w.process(procCtx, rm)
		stopGrace()
		cancel()
	}
}

// process implements the per-message state machine. It never panics on a
// single bad message: every failure is logged and either acknowledged
// (poison/terminal) or left for redelivery (transport).
func (w *Worker) process(ctx context.Context, rm *queue.ReceivedMessage) {
	if rm.ParseError != nil {
		log.Printf("[Worker] poison message dropped: %v", rm.ParseError)
		w.ack(ctx, rm.ReceiptHandle)
		return
	}

	msg := rm.Message
	now := w.now()

	if err := w.store.SetObjectStatus(ctx, msg.JobID, msg.Bucket, msg.Key, msg.EntityTag, models.StatusProcessing, "", now); err != nil {
		log.Printf("[Worker] mark processing failed for %s/%s: %v", msg.Bucket, msg.Key, err)
	}

	if !blobstore.IsSupported(msg.Key) {
		if err := w.store.SetObjectStatus(ctx, msg.JobID, msg.Bucket, msg.Key, msg.EntityTag, models.StatusSucceeded, unsupportedTypeNote, w.now()); err != nil {
			log.Printf("[Worker] mark unsupported-skip failed for %s/%s: %v", msg.Bucket, msg.Key, err)
		}
		w.ack(ctx, rm.ReceiptHandle)
		return
	}

	content, fetchedTag, err := w.blobs.Fetch(ctx, msg.Bucket, msg.Key)
	if err != nil {
		// No resolved tag exists yet at this point, so the status write
		// falls back to whatever tag the message carried.
		w.failWithoutAck(ctx, msg, msg.EntityTag, err)
		return
	}

	entityTag := msg.EntityTag
	if entityTag == "" {
		entityTag = fetchedTag
	}

	findings := w.scan(content, msg.JobID, msg.Bucket, msg.Key, entityTag)

	if len(findings) > 0 {
		if _, err := w.store.InsertFindings(ctx, findings, w.now()); err != nil {
			w.failWithoutAck(ctx, msg, entityTag, err)
			return
		}
	}

	if err := w.store.SetObjectStatus(ctx, msg.JobID, msg.Bucket, msg.Key, entityTag, models.StatusSucceeded, "", w.now()); err != nil {
		log.Printf("[Worker] mark success failed for %s/%s: %v", msg.Bucket, msg.Key, err)
	}

	w.ack(ctx, rm.ReceiptHandle)
}

// failWithoutAck records a Transport-class failure against entityTag — the
// resolved tag per spec.md §4.4 step 6, not necessarily msg.EntityTag — and
// deliberately leaves the message unacknowledged so the queue redelivers it
// after the visibility timeout expires.
func (w *Worker) failWithoutAck(ctx context.Context, msg models.QueueMessage, entityTag string, cause error) {
	log.Printf("[Worker] fetch/scan/persist failed for %s/%s, leaving for redelivery: %v", msg.Bucket, msg.Key, cause)
	if err := w.store.SetObjectStatus(ctx, msg.JobID, msg.Bucket, msg.Key, entityTag, models.StatusFailed, errString(cause), w.now()); err != nil {
		log.Printf("[Worker] mark failed failed for %s/%s: %v", msg.Bucket, msg.Key, err)
	}
}

func (w *Worker) ack(ctx context.Context, receiptHandle string) {
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		log.Printf("[Worker] ack failed: %v", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
