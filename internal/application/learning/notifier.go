package learning

import (
	"context"
	"fmt"
	"sync"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
)

type namedSubscriber struct {
	name string
	sub  business.ChangeSubscriber
}

// ChangeNotifier fans significant change events out to registered
// subscribers in registration order. Delivery is best effort: a subscriber
// that fails or panics is logged and the remaining subscribers still run.
type ChangeNotifier struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
	logger      logging.Logger
	metrics     MetricsRecorder
}

// NewChangeNotifier creates a notifier with no subscribers.
func NewChangeNotifier(logger logging.Logger, metrics MetricsRecorder) *ChangeNotifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	return &ChangeNotifier{logger: logger.Named("change_notifier"), metrics: metrics}
}

// Subscribe registers sub under name. Names only label logs and metrics.
func (n *ChangeNotifier) Subscribe(name string, sub business.ChangeSubscriber) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribers = append(n.subscribers, namedSubscriber{name: name, sub: sub})
}

// SubscriberCount returns the number of registered subscribers.
func (n *ChangeNotifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// Publish delivers event to every subscriber. It never returns an error.
func (n *ChangeNotifier) Publish(ctx context.Context, event *business.SignificantChangeEvent) {
	if event == nil {
		return
	}
	n.mu.RLock()
	subs := make([]namedSubscriber, len(n.subscribers))
	copy(subs, n.subscribers)
	n.mu.RUnlock()

	for _, s := range subs {
		if err := n.deliver(ctx, s, event); err != nil {
			n.metrics.IncNotificationFailure(s.name)
			n.logger.Warn("significant change subscriber failed",
				logging.String("subscriber", s.name),
				logging.String("business_id", event.BusinessID),
				logging.String("event_id", event.EventID()),
				logging.Err(err))
		}
	}
}

func (n *ChangeNotifier) deliver(ctx context.Context, s namedSubscriber, event *business.SignificantChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return s.sub.OnSignificantChange(ctx, event)
}
