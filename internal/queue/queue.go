// Package queue wraps the AWS SQS SDK: publishing unit-of-work messages in
// batches for the ingestor, and the long-poll receive/delete cycle for the
// worker. Delivery semantics (at-least-once, visibility timeouts, a
// dead-letter sibling) are provided by SQS itself; this package only
// shapes the calls.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/rawblock/sentryscan/pkg/models"
)

// maxBatchSize is the SQS-imposed and spec-mandated cap on a single publish
// batch (spec.md §4.5 step 5, §6).
const maxBatchSize = 10

// ReceiveWaitSeconds and VisibilityTimeoutSeconds implement the long-poll
// contract of spec.md §4.4 step 1.
const (
	ReceiveWaitSeconds       = 20
	VisibilityTimeoutSeconds = 300
)

// sqsAPI is the narrow slice of the SDK client this package calls,
// extracted so tests can supply a fake instead of a live SQS connection.
type sqsAPI interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Client wraps an SQS client bound to one queue URL.
type Client struct {
	sqs      sqsAPI
	queueURL string
}

// NewClient builds a Client from the ambient AWS configuration.
func NewClient(ctx context.Context, region, queueURL string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	log.Printf("[Queue] SQS client configured for %s", queueURL)
	return &Client{sqs: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

// Publish sends msgs in batches of up to maxBatchSize, tolerating and
// logging per-entry failures, and returns the count the queue reported as
// successfully enqueued.
func (c *Client) Publish(ctx context.Context, msgs []models.QueueMessage) (sent int, err error) {
	for start := 0; start < len(msgs); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		batch := msgs[start:end]

		entries := make([]types.SendMessageBatchRequestEntry, 0, len(batch))
		for i, m := range batch {
			body, err := json.Marshal(m)
			if err != nil {
				log.Printf("[Queue] failed to marshal message for %s/%s: %v", m.Bucket, m.Key, err)
				continue
			}
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(fmt.Sprintf("%d", i)),
				MessageBody: aws.String(string(body)),
			})
		}
		if len(entries) == 0 {
			continue
		}

		out, err := c.sqs.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(c.queueURL),
			Entries:  entries,
		})
		if err != nil {
			log.Printf("[Queue] batch publish failed: %v", err)
			continue
		}
		sent += len(out.Successful)
		for _, f := range out.Failed {
			log.Printf("[Queue] entry %s failed to enqueue: %s", aws.ToString(f.Id), aws.ToString(f.Message))
		}
	}
	return sent, nil
}

// ReceivedMessage pairs a decoded unit-of-work message with the SQS receipt
// handle needed to delete it.
type ReceivedMessage struct {
	Message       models.QueueMessage
	ReceiptHandle string
	// ParseError is set when the message body could not be decoded into a
	// QueueMessage or required fields were missing. Parse failures are
	// poison messages: the worker must ack (delete) and drop them.
	ParseError error
}

// Receive long-polls for up to one message, per spec.md §4.4 step 1. A nil
// result with nil error means no message was available within the wait.
func (c *Client) Receive(ctx context.Context) (*ReceivedMessage, error) {
	out, err := c.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     ReceiveWaitSeconds,
		VisibilityTimeout:   VisibilityTimeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	raw := out.Messages[0]
	rm := &ReceivedMessage{ReceiptHandle: aws.ToString(raw.ReceiptHandle)}

	var m models.QueueMessage
	if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &m); err != nil {
		rm.ParseError = fmt.Errorf("decode message body: %w", err)
		return rm, nil
	}
	if m.JobID == "" || m.Bucket == "" || m.Key == "" {
		rm.ParseError = fmt.Errorf("message missing required fields: %+v", m)
		return rm, nil
	}
	rm.Message = m
	return rm, nil
}

// Delete acknowledges a message, removing it from the queue.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
