package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/rawblock/sentryscan/pkg/models"
)

type fakeSQS struct {
	sendBatches  [][]types.SendMessageBatchRequestEntry
	sendFailures int
	receiveBody  string
	receiveEmpty bool
	deletedHandles []string
}

func (f *fakeSQS) SendMessageBatch(_ context.Context, params *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	f.sendBatches = append(f.sendBatches, params.Entries)
	out := &sqs.SendMessageBatchOutput{}
	for i, e := range params.Entries {
		if i < f.sendFailures {
			out.Failed = append(out.Failed, types.BatchResultErrorEntry{Id: e.Id, Message: aws.String("boom")})
			continue
		}
		out.Successful = append(out.Successful, types.SendMessageBatchResultEntry{Id: e.Id})
	}
	return out, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.receiveEmpty {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	return &sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			{Body: aws.String(f.receiveBody), ReceiptHandle: aws.String("handle-1")},
		},
	}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deletedHandles = append(f.deletedHandles, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestPublishBatchesAtTen(t *testing.T) {
	fake := &fakeSQS{}
	c := &Client{sqs: fake, queueURL: "q"}

	msgs := make([]models.QueueMessage, 25)
	for i := range msgs {
		msgs[i] = models.QueueMessage{JobID: "j", Bucket: "b", Key: "k"}
	}

	sent, err := c.Publish(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if sent != 25 {
		t.Errorf("sent = %d, want 25", sent)
	}
	if len(fake.sendBatches) != 3 {
		t.Fatalf("expected 3 batches (10,10,5), got %d", len(fake.sendBatches))
	}
	for i, b := range fake.sendBatches {
		wantLen := 10
		if i == 2 {
			wantLen = 5
		}
		if len(b) != wantLen {
			t.Errorf("batch %d size = %d, want %d", i, len(b), wantLen)
		}
	}
}

func TestPublishTracksPartialFailures(t *testing.T) {
	fake := &fakeSQS{sendFailures: 2}
	c := &Client{sqs: fake, queueURL: "q"}

	sent, err := c.Publish(context.Background(), []models.QueueMessage{
		{JobID: "j", Bucket: "b", Key: "k1"},
		{JobID: "j", Bucket: "b", Key: "k2"},
		{JobID: "j", Bucket: "b", Key: "k3"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1 (one tolerated failure pair)", sent)
	}
}

func TestReceiveDecodesValidMessage(t *testing.T) {
	body, _ := json.Marshal(models.QueueMessage{JobID: "j1", Bucket: "b1", Key: "k1", EntityTag: "e1"})
	fake := &fakeSQS{receiveBody: string(body)}
	c := &Client{sqs: fake, queueURL: "q"}

	rm, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if rm == nil {
		t.Fatal("expected a message")
	}
	if rm.ParseError != nil {
		t.Fatalf("unexpected parse error: %v", rm.ParseError)
	}
	if rm.Message.Bucket != "b1" || rm.Message.Key != "k1" {
		t.Errorf("message = %+v", rm.Message)
	}
}

func TestReceiveFlagsMissingFieldsAsPoison(t *testing.T) {
	body, _ := json.Marshal(models.QueueMessage{JobID: "", Bucket: "b1", Key: "k1"})
	fake := &fakeSQS{receiveBody: string(body)}
	c := &Client{sqs: fake, queueURL: "q"}

	rm, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if rm.ParseError == nil {
		t.Fatal("expected a parse error for missing job_id")
	}
}

func TestReceiveFlagsMalformedJSONAsPoison(t *testing.T) {
	fake := &fakeSQS{receiveBody: "not json"}
	c := &Client{sqs: fake, queueURL: "q"}

	rm, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if rm.ParseError == nil {
		t.Fatal("expected a parse error for malformed body")
	}
}

func TestReceiveEmptyReturnsNil(t *testing.T) {
	fake := &fakeSQS{receiveEmpty: true}
	c := &Client{sqs: fake, queueURL: "q"}

	rm, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if rm != nil {
		t.Fatalf("expected nil, got %+v", rm)
	}
}

func TestDeletePassesReceiptHandle(t *testing.T) {
	fake := &fakeSQS{}
	c := &Client{sqs: fake, queueURL: "q"}

	if err := c.Delete(context.Background(), "h1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fake.deletedHandles) != 1 || fake.deletedHandles[0] != "h1" {
		t.Errorf("deletedHandles = %v", fake.deletedHandles)
	}
}
