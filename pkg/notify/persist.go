package notify

import (
	"context"
	"encoding/json"

	"warden/pkg/bus"
	"warden/pkg/logging"
)

// OperatorStore persists operator-log entries. *storage.Store satisfies
// it.
type OperatorStore interface {
	AppendEvent(ctx context.Context, agentID, category, message, details string) error
}

// PersistOperatorLog subscribes to the operator-log subject and appends
// every entry to the store, keyed by agent. The raw event JSON rides
// along in the details column. Write failures are logged and dropped;
// the operator log is advisory, it never blocks execution.
func PersistOperatorLog(ctx context.Context, b bus.MessageBus, store OperatorStore, logger *logging.Logger) (bus.Subscription, error) {
	return b.Subscribe(ctx, SubjectOperator, func(msg *bus.Message) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn(logging.CategoryStorage, "operator_event_malformed", "", err.Error(), nil)
			return
		}
		if err := store.AppendEvent(context.Background(), ev.AgentID, "operator", ev.Message, string(msg.Data)); err != nil {
			logger.Warn(logging.CategoryStorage, "operator_event_persist_failed", ev.AgentID, err.Error(), nil)
		}
	})
}
