// Package notify surfaces human-readable messages from the core. The core
// only ever calls through this interface with a finished message string;
// rendering is the subscriber's concern.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"warden/pkg/bus"
	"warden/pkg/logging"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Subject prefixes for bus-published notifications.
const (
	SubjectPrefix = "warden.notify."
	// SubjectOperator carries operator-log entries (search results,
	// diffs, substitutions) independent of the main execution summary.
	SubjectOperator = "warden.operator.log"
)

// Event is one notification as published on the bus.
type Event struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier surfaces messages to humans.
type Notifier interface {
	Info(ctx context.Context, agentID, message string)
	Warn(ctx context.Context, agentID, message string)
	Error(ctx context.Context, agentID, message string)
	// Operator records an operator-log entry: detail visible to whoever
	// is watching the session, separate from the execution summary.
	Operator(ctx context.Context, agentID, message string)
}

// BusNotifier publishes notifications on a message bus and mirrors them
// into the structured log.
type BusNotifier struct {
	bus    bus.MessageBus
	logger *logging.Logger
}

// NewBusNotifier creates a notifier. Either collaborator may be nil.
func NewBusNotifier(b bus.MessageBus, logger *logging.Logger) *BusNotifier {
	return &BusNotifier{bus: b, logger: logger}
}

func (n *BusNotifier) Info(ctx context.Context, agentID, message string) {
	n.publish(ctx, SubjectPrefix+"info", agentID, SeverityInfo, message)
	n.logger.Info(logging.CategorySession, "notify", agentID, message, nil)
}

func (n *BusNotifier) Warn(ctx context.Context, agentID, message string) {
	n.publish(ctx, SubjectPrefix+"warn", agentID, SeverityWarn, message)
	n.logger.Warn(logging.CategorySession, "notify", agentID, message, nil)
}

func (n *BusNotifier) Error(ctx context.Context, agentID, message string) {
	n.publish(ctx, SubjectPrefix+"error", agentID, SeverityError, message)
	n.logger.Error(logging.CategorySession, "notify", agentID, message, nil)
}

func (n *BusNotifier) Operator(ctx context.Context, agentID, message string) {
	n.publish(ctx, SubjectOperator, agentID, SeverityInfo, message)
	n.logger.Info(logging.CategoryExecutor, "operator_log", agentID, message, nil)
}

func (n *BusNotifier) publish(ctx context.Context, subject, agentID string, severity Severity, message string) {
	if n.bus == nil {
		return
	}
	event := Event{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	// Delivery failures are logged, never propagated: notifications are
	// advisory.
	if err := n.bus.Publish(ctx, subject, data); err != nil {
		n.logger.Warn(logging.CategorySession, "notify_publish_failed", agentID, err.Error(), nil)
	}
}
