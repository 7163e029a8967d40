package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ResourceService manages events, courses and products.
type ResourceService struct {
	store repository.Store
	cache ResourceCache
}

// NewResourceService constructs a ResourceService. cache may be nil.
func NewResourceService(store repository.Store, cache ResourceCache) *ResourceService {
	return &ResourceService{store: store, cache: cacheOrNoop(cache)}
}

// DeleteResult summarises a resource deletion.
type DeleteResult struct {
	ResourceID           string `json:"resourceId"`
	RemovedRegistrations int    `json:"removedRegistrations"`
}

// Create validates the request and stores a new resource with a zero counter.
func (s *ResourceService) Create(ctx context.Context, req model.CreateResourceRequest) (*model.Resource, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	price, seats, err := normalizePricing(req.Kind, req.PricingType, req.Price, req.TotalSeats)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &model.Resource{
		ID:          uuid.New().String(),
		Kind:        req.Kind,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		PricingType: req.PricingType,
		Price:       price,
		TotalSeats:  seats,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateResource(ctx, r); err != nil {
		return nil, wrap("create resource", err)
	}

	log.Info().Str("resource_id", r.ID).Str("kind", string(r.Kind)).Msg("resource created")
	return r, nil
}

// normalizePricing enforces the per-kind rules: only events have seats and
// only paid resources carry a price.
func normalizePricing(kind model.ResourceKind, pricing model.PricingType, price *float64, seats *int) (*float64, *int, error) {
	if kind == model.KindEvent && seats == nil {
		return nil, nil, invalidf("totalSeats is required for events")
	}
	if kind != model.KindEvent && seats != nil {
		return nil, nil, invalidf("totalSeats only applies to events")
	}
	if pricing == model.PricingPaid && price == nil {
		return nil, nil, invalidf("price is required for paid resources")
	}
	if pricing == model.PricingFree {
		price = nil
	}
	return price, seats, nil
}

// Get returns a resource by id, serving from the cache when possible.
func (s *ResourceService) Get(ctx context.Context, id string) (*model.Resource, error) {
	if id == "" {
		return nil, invalidf("resource id is required")
	}
	if r, err := s.cache.GetResource(ctx, id); err == nil {
		return r, nil
	}
	gen, genErr := s.cache.Generation(ctx, id)

	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, wrap("get resource", err)
	}
	if genErr != nil {
		return r, nil
	}
	if err := s.cache.SetResource(ctx, r, gen); err != nil {
		log.Debug().Err(err).Str("resource_id", id).Msg("cache fill skipped")
	}
	return r, nil
}

// List returns resources, hiding soft-deleted ones unless asked.
func (s *ResourceService) List(ctx context.Context, filter model.ResourceFilter) ([]model.Resource, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, invalidf("unknown resource kind %q", filter.Kind)
	}
	resources, err := s.store.ListResources(ctx, filter)
	if err != nil {
		return nil, wrap("list resources", err)
	}
	return resources, nil
}

// Update edits a live resource. Seats can never drop below the number of
// approved registrations, and the counter itself is not editable.
func (s *ResourceService) Update(ctx context.Context, id string, req model.UpdateResourceRequest) (*model.Resource, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var updated *model.Resource
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		r, err := tx.GetResourceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.IsDeleted {
			return repository.ErrNotFound
		}

		price, seats, err := normalizePricing(r.Kind, req.PricingType, req.Price, req.TotalSeats)
		if err != nil {
			return err
		}
		if seats != nil && *seats < r.RegisteredCount {
			return invalidf("totalSeats %d is below the %d approved registrations", *seats, r.RegisteredCount)
		}

		r.Title = req.Title
		r.Description = strings.TrimSpace(req.Description)
		r.PricingType = req.PricingType
		r.Price = price
		r.TotalSeats = seats
		r.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateResource(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, wrap("update resource", err)
	}

	invalidate(ctx, s.cache, id)
	return updated, nil
}

// Delete soft-deletes a resource. With cascade, its registrations are removed
// first in batches no larger than the store's limit.
//
// The two steps are not one transaction. Registrations that land between them
// sit under a resource flagged for purge and are swept by PurgeService.
func (s *ResourceService) Delete(ctx context.Context, id string, cascade bool) (*DeleteResult, error) {
	if _, err := s.store.GetResource(ctx, id); err != nil {
		return nil, wrap("delete resource", err)
	}

	result := &DeleteResult{ResourceID: id}
	if cascade {
		ids, err := s.store.ListRegistrationIDs(ctx, id)
		if err != nil {
			return nil, wrap("delete resource", err)
		}
		for chunk := range slices.Chunk(ids, s.store.BatchLimit()) {
			n, err := s.store.DeleteRegistrations(ctx, chunk)
			result.RemovedRegistrations += n
			if err != nil {
				return result, wrap("delete registrations", err)
			}
		}
	}

	if err := s.store.SoftDeleteResource(ctx, id, cascade); err != nil {
		return result, wrap("soft delete resource", err)
	}
	invalidate(ctx, s.cache, id)

	log.Info().
		Str("resource_id", id).
		Bool("cascade", cascade).
		Int("removed_registrations", result.RemovedRegistrations).
		Msg("resource deleted")
	return result, nil
}

// activeResource loads a resource and hides soft-deleted ones.
func (s *ResourceService) activeResource(ctx context.Context, id string) (*model.Resource, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.IsDeleted {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

// Exists reports whether a live resource with id exists.
func (s *ResourceService) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.activeResource(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
