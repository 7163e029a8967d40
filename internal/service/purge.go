package service

import (
	"context"

	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/rs/zerolog/log"
)

// PurgeService removes registrations orphaned by an interrupted or raced
// cascading delete. Registrations of resources deleted without cascade are
// left alone.
type PurgeService struct {
	store repository.Store
}

// NewPurgeService constructs a PurgeService.
func NewPurgeService(store repository.Store) *PurgeService {
	return &PurgeService{store: store}
}

// PurgeOrphans deletes orphaned registrations one batch at a time until none
// remain and returns how many were removed.
func (s *PurgeService) PurgeOrphans(ctx context.Context) (int, error) {
	var total int
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		ids, err := s.store.ListOrphanedRegistrationIDs(ctx, s.store.BatchLimit())
		if err != nil {
			return total, wrap("list orphaned registrations", err)
		}
		if len(ids) == 0 {
			break
		}

		n, err := s.store.DeleteRegistrations(ctx, ids)
		total += n
		if err != nil {
			return total, wrap("purge orphaned registrations", err)
		}
		if n == 0 {
			// Someone else removed this batch first; the next pass sees fresh state.
			break
		}
	}

	if total > 0 {
		log.Info().Int("removed", total).Msg("orphaned registrations purged")
	}
	return total, nil
}
