package settlement

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
)

// notifier delivers the status updates of one transaction in order. Progress
// never goes backwards and nothing is delivered after the terminal update.
type notifier struct {
	id       uuid.UUID
	observer entities.StatusObserver
	logger   *zap.Logger

	mu       sync.Mutex
	progress int
	terminal bool
}

func newNotifier(id uuid.UUID, observer entities.StatusObserver, logger *zap.Logger) *notifier {
	return &notifier{id: id, observer: observer, logger: logger}
}

// resumeNotifier continues delivery for a record already at progress
func resumeNotifier(id uuid.UUID, progress int, observer entities.StatusObserver, logger *zap.Logger) *notifier {
	n := newNotifier(id, observer, logger)
	n.progress = progress
	return n
}

func (n *notifier) notify(update entities.TipStatusUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.terminal {
		return
	}
	if update.Progress < n.progress {
		update.Progress = n.progress
	}
	n.progress = update.Progress
	n.terminal = update.IsTerminal()

	update.TransactionID = n.id
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	if n.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Status observer panicked",
				zap.String("transaction_id", n.id.String()),
				zap.Any("panic", r))
		}
	}()
	n.observer(update)
}

func (n *notifier) isTerminal() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.terminal
}
