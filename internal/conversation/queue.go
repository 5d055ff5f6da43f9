package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// Queue carries encoded message jobs between the API and the worker.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one received job body with its delete handle. Attempts
// counts deliveries when the queue tracks them and is zero otherwise.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	Attempts      int
}

// MessageJob is one inbound patient message waiting for the worker.
type MessageJob struct {
	ID          string    `json:"id"`
	Contact     string    `json:"contact"`
	ClinicianID string    `json:"clinician_id"`
	Message     string    `json:"message"`
	ReceivedAt  time.Time `json:"received_at"`
}

func (j MessageJob) validate() error {
	switch {
	case strings.TrimSpace(j.Contact) == "":
		return fmt.Errorf("conversation: job %s has no contact", j.ID)
	case strings.TrimSpace(j.ClinicianID) == "":
		return fmt.Errorf("conversation: job %s has no clinician", j.ID)
	}
	return nil
}

func encodeJob(job MessageJob) (MessageJob, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return MessageJob{}, "", fmt.Errorf("conversation: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (MessageJob, error) {
	var job MessageJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return MessageJob{}, fmt.Errorf("conversation: failed to decode job: %w", err)
	}
	return job, job.validate()
}

const clinicianAttribute = "clinician_id"

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue carries message jobs over SQS (or LocalStack). On a FIFO queue each
// patient's conversation is its own message group, so one patient's messages
// reach the worker in the order they arrived.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	fifo     bool
}

func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("conversation: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("conversation: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

// Send enqueues an encoded job. Bodies that do not decode as a job are still
// sent, without routing attributes, and dropped by the worker.
func (q *SQSQueue) Send(ctx context.Context, body string) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	var job MessageJob
	if err := json.Unmarshal([]byte(body), &job); err == nil && job.ClinicianID != "" {
		in.MessageAttributes = map[string]types.MessageAttributeValue{
			clinicianAttribute: {DataType: aws.String("String"), StringValue: aws.String(job.ClinicianID)},
		}
		if q.fifo && job.ID != "" {
			in.MessageGroupId = aws.String(SessionKey(job.ClinicianID, job.Contact))
			in.MessageDeduplicationId = aws.String(job.ID)
		}
	}
	if q.fifo && in.MessageGroupId == nil {
		in.MessageGroupId = aws.String("unrouted")
		in.MessageDeduplicationId = aws.String(uuid.NewString())
	}

	if _, err := q.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("conversation: send job to SQS: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(q.queueURL),
		MaxNumberOfMessages:         int32(maxMessages),
		WaitTimeSeconds:             int32(waitSeconds),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: receive jobs from SQS: %w", err)
	}
	messages := make([]QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		attempts, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		messages = append(messages, QueueMessage{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Attempts:      attempts,
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("conversation: delete SQS job: %w", err)
	}
	return nil
}
