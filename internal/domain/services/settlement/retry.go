package settlement

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/domain/errors"
)

// Retry re-runs a FAILED tip under a new transaction id linked back through
// RetryOf. The failed record is left untouched. Every attempt descending from
// the same first request is one lineage, and a lineage has at most one live
// attempt and is never settled twice.
func (s *Service) Retry(ctx context.Context, id uuid.UUID, observer entities.StatusObserver) (*entities.SendResult, error) {
	original, err := s.ledger.Get(id)
	if err != nil {
		return nil, err
	}
	if original.Status != entities.TipStatusFailed {
		return nil, errors.NotRetryableError(id.String(), string(original.Status))
	}

	root := lineageRoot(id, retryLinks(s.ledger.List()))

	if !s.beginRetry(root) {
		return nil, errors.RetryInProgressError(id.String())
	}
	defer s.endRetry(root)

	// Re-read under the lineage lock so attempts started by a racing retry are seen
	records := s.ledger.List()
	links := retryLinks(records)
	for _, attempt := range records {
		if attempt.ID == id || lineageRoot(attempt.ID, links) != root {
			continue
		}
		switch {
		case attempt.Status.IsPending():
			return nil, errors.RetryInProgressError(id.String())
		case attempt.Status == entities.TipStatusCompleted:
			return nil, errors.AlreadySettledError(id.String(), attempt.ID.String())
		}
	}

	s.metrics.RecordRetry()
	s.logger.Info("Retrying failed tip",
		zap.String("transaction_id", id.String()),
		zap.String("lineage_root", root.String()),
		zap.String("previous_error", original.Error))

	retryOf := id
	return s.send(ctx, original.Request(), &retryOf, observer)
}

// lineageRoot follows RetryOf links back to the first attempt
func lineageRoot(id uuid.UUID, links map[uuid.UUID]*uuid.UUID) uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	for {
		if _, loop := seen[id]; loop {
			return id
		}
		seen[id] = struct{}{}
		parent, ok := links[id]
		if !ok || parent == nil {
			return id
		}
		id = *parent
	}
}

func retryLinks(records []*entities.TipTransaction) map[uuid.UUID]*uuid.UUID {
	links := make(map[uuid.UUID]*uuid.UUID, len(records))
	for _, record := range records {
		links[record.ID] = record.RetryOf
	}
	return links
}

func (s *Service) beginRetry(root uuid.UUID) bool {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	if _, busy := s.retrying[root]; busy {
		return false
	}
	s.retrying[root] = struct{}{}
	return true
}

func (s *Service) endRetry(root uuid.UUID) {
	s.retryMu.Lock()
	delete(s.retrying, root)
	s.retryMu.Unlock()
}
