package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// TurnHandler processes one inbound message. *Engine satisfies it.
type TurnHandler interface {
	Handle(ctx context.Context, contact, clinicianID, text string) (Turn, error)
}

// Worker consumes message jobs from the queue, runs them through the engine
// and hands the replies to a ReplyMessenger.
type Worker struct {
	handler   TurnHandler
	queue     Queue
	messenger ReplyMessenger
	logger    *logging.Logger
	metrics   *metrics.ConversationMetrics

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	turnTimeout      time.Duration
	metrics          *metrics.ConversationMetrics
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	defaultTurnTimeout   = 30 * time.Second
	maxReceiveBackoff    = 5 * time.Second
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait, capped at the SQS maximum.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithTurnTimeout bounds a single job, phrasing included.
func WithTurnTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.turnTimeout = d
		}
	}
}

func WithWorkerMetrics(m *metrics.ConversationMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

func NewWorker(handler TurnHandler, queue Queue, messenger ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("conversation: turn handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if messenger == nil {
		messenger = NewLogMessenger(logger)
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		turnTimeout:      defaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		handler:   handler,
		queue:     queue,
		messenger: messenger,
		logger:    logger,
		metrics:   cfg.metrics,
		cfg:       cfg,
	}
}

// Start launches the consumer goroutines; they stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until every consumer goroutine has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxReceiveBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg QueueMessage) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		// Unparseable jobs would otherwise be redelivered forever.
		w.logger.Error("dropping malformed conversation job", "error", err, "message_id", msg.ID)
		w.metrics.ObserveJob("malformed")
		w.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}
	log := w.logger.With("job_id", job.ID, "clinician_id", job.ClinicianID)
	if msg.Attempts > 1 {
		log = log.With("attempts", msg.Attempts)
		log.Warn("conversation job redelivered")
	}

	turnCtx, cancel := context.WithTimeout(ctx, w.cfg.turnTimeout)
	turn, err := w.handler.Handle(turnCtx, job.Contact, job.ClinicianID, job.Message)
	cancel()
	status := "processed"
	if err != nil {
		log.Error("conversation job failed", "error", err)
		status = "failed"
	}

	if turn.Reply != "" {
		sendErr := w.messenger.SendReply(ctx, OutboundReply{
			JobID:       job.ID,
			ClinicianID: job.ClinicianID,
			To:          job.Contact,
			Body:        turn.Reply,
			State:       turn.State,
		})
		if sendErr != nil {
			log.Error("failed to deliver reply", "error", sendErr)
			status = "delivery_failed"
		}
	}

	w.metrics.ObserveJob(status)
	w.deleteMessage(ctx, msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
