package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Publisher enqueues inbound messages for the conversation worker.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue validates and publishes job, returning it with ID and ReceivedAt set.
func (p *Publisher) Enqueue(ctx context.Context, job MessageJob) (MessageJob, error) {
	if err := job.validate(); err != nil {
		return MessageJob{}, err
	}
	job, body, err := encodeJob(job)
	if err != nil {
		return MessageJob{}, err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return MessageJob{}, fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}
	p.logger.Debug("conversation job enqueued", "job_id", job.ID, "clinician_id", job.ClinicianID)
	return job, nil
}
