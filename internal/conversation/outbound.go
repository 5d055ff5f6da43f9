package conversation

import (
	"context"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// ReplyMessenger delivers replies to the patient's channel.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply is a reply ready for delivery.
type OutboundReply struct {
	JobID       string
	ClinicianID string
	To          string
	Body        string
	State       State
}

// LogMessenger records replies in the log instead of delivering them. Channel
// delivery lives outside this service.
type LogMessenger struct {
	logger *logging.Logger
}

func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) SendReply(_ context.Context, reply OutboundReply) error {
	m.logger.Info("outbound reply",
		"job_id", reply.JobID,
		"clinician_id", reply.ClinicianID,
		"to", reply.To,
		"state", reply.State,
		"body", reply.Body,
	)
	return nil
}
