package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
)

// MemoryStore is an in-process Store for ephemeral environments and tests.
// Transactions are serialized by a single mutex and their writes are staged,
// so a failing transaction function leaves no trace.
type MemoryStore struct {
	mu            sync.Mutex
	batchLimit    int
	resources     map[string]model.Resource
	registrations map[string]model.Registration
	notifications map[string][]model.Notification
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore. A non-positive batchLimit
// selects DefaultBatchLimit.
func NewMemoryStore(batchLimit int) *MemoryStore {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	return &MemoryStore{
		batchLimit:    batchLimit,
		resources:     make(map[string]model.Resource),
		registrations: make(map[string]model.Registration),
		notifications: make(map[string][]model.Notification),
	}
}

// BatchLimit returns the per-batch item limit.
func (s *MemoryStore) BatchLimit() int { return s.batchLimit }

// Close is a no-op.
func (s *MemoryStore) Close() {}

// WithinTx runs fn while holding the store lock. fn must only use tx.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:         s,
		resources:     make(map[string]model.Resource),
		registrations: make(map[string]model.Registration),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, r := range tx.resources {
		s.resources[id] = r
	}
	for id, reg := range tx.registrations {
		s.registrations[id] = reg
	}
	for _, n := range tx.notifications {
		s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	}
	return nil
}

// CreateResource inserts a new resource.
func (s *MemoryStore) CreateResource(_ context.Context, r *model.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[r.ID]; ok {
		return fmt.Errorf("insert resource: id %s already exists", r.ID)
	}
	s.resources[r.ID] = cloneResource(*r)
	return nil
}

// GetResource returns a single resource, deleted or not, or ErrNotFound.
func (s *MemoryStore) GetResource(_ context.Context, id string) (*model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	r = cloneResource(r)
	return &r, nil
}

// ListResources returns resources ordered by creation time descending.
func (s *MemoryStore) ListResources(_ context.Context, filter model.ResourceFilter) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Resource
	for _, r := range s.resources {
		if r.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		out = append(out, cloneResource(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SoftDeleteResource flags the resource deleted.
func (s *MemoryStore) SoftDeleteResource(_ context.Context, id string, purgeRegistrations bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[id]
	if !ok {
		return ErrNotFound
	}
	r.IsDeleted = true
	r.PurgeRegistrations = r.PurgeRegistrations || purgeRegistrations
	r.UpdatedAt = time.Now().UTC()
	s.resources[id] = r
	return nil
}

// GetRegistration returns a single registration or ErrNotFound.
func (s *MemoryStore) GetRegistration(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	reg = cloneRegistration(reg)
	return &reg, nil
}

// FindRegistration looks up the registration a user holds for a resource.
func (s *MemoryStore) FindRegistration(_ context.Context, userID, resourceID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg, ok := s.findByUser(userID, resourceID); ok {
		reg = cloneRegistration(reg)
		return &reg, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) findByUser(userID, resourceID string) (model.Registration, bool) {
	for _, reg := range s.registrations {
		if reg.UserID != nil && *reg.UserID == userID && reg.Ref().ID == resourceID {
			return reg, true
		}
	}
	return model.Registration{}, false
}

// ListRegistrations returns registrations matching filter, newest first.
func (s *MemoryStore) ListRegistrations(_ context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []model.Registration
	for _, reg := range s.registrations {
		ref := reg.Ref()
		switch {
		case filter.ResourceID != "" && ref.ID != filter.ResourceID:
			continue
		case filter.Kind != "" && ref.Kind != filter.Kind:
			continue
		case filter.Status != "" && reg.Status != filter.Status:
			continue
		case filter.UserID != "" && (reg.UserID == nil || *reg.UserID != filter.UserID):
			continue
		case q != "" && !matchesSearch(reg, q):
			continue
		}
		out = append(out, cloneRegistration(reg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func matchesSearch(reg model.Registration, q string) bool {
	fields := []string{reg.Name, reg.Email}
	if reg.Phone != nil {
		fields = append(fields, *reg.Phone)
	}
	if reg.TrxID != nil {
		fields = append(fields, *reg.TrxID)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// ListRegistrationIDs returns the ids of every registration pointing at resourceID.
func (s *MemoryStore) ListRegistrationIDs(_ context.Context, resourceID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, reg := range s.registrations {
		if reg.Ref().ID == resourceID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ListOrphanedRegistrationIDs returns up to limit registrations whose
// resource is gone or was soft deleted with purge requested.
func (s *MemoryStore) ListOrphanedRegistrationIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, reg := range s.registrations {
		r, ok := s.resources[reg.Ref().ID]
		if !ok || (r.IsDeleted && r.PurgeRegistrations) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// DeleteRegistration removes one registration.
func (s *MemoryStore) DeleteRegistration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registrations[id]; !ok {
		return ErrNotFound
	}
	delete(s.registrations, id)
	return nil
}

// DeleteRegistrations removes ids as one batch. Missing ids are skipped.
func (s *MemoryStore) DeleteRegistrations(_ context.Context, ids []string) (int, error) {
	if len(ids) > s.batchLimit {
		return 0, fmt.Errorf("%w: %d items, limit %d", ErrBatchTooLarge, len(ids), s.batchLimit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int
	for _, id := range ids {
		if _, ok := s.registrations[id]; ok {
			delete(s.registrations, id)
			deleted++
		}
	}
	return deleted, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *MemoryStore) ListNotifications(_ context.Context, userID string) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.notifications[userID])
	slices.Reverse(out)
	return out, nil
}

// MarkNotificationRead sets the read flag on one of the user's notifications.
func (s *MemoryStore) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications[userID] {
		if s.notifications[userID][i].ID == id {
			s.notifications[userID][i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

// memoryTx reads through its staged writes to the committed state.
type memoryTx struct {
	store         *MemoryStore
	resources     map[string]model.Resource
	registrations map[string]model.Registration
	notifications []model.Notification
}

func (t *memoryTx) resource(id string) (model.Resource, bool) {
	if r, ok := t.resources[id]; ok {
		return r, true
	}
	r, ok := t.store.resources[id]
	return r, ok
}

func (t *memoryTx) registration(id string) (model.Registration, bool) {
	if reg, ok := t.registrations[id]; ok {
		return reg, true
	}
	reg, ok := t.store.registrations[id]
	return reg, ok
}

func (t *memoryTx) GetResourceForUpdate(_ context.Context, id string) (*model.Resource, error) {
	r, ok := t.resource(id)
	if !ok {
		return nil, ErrNotFound
	}
	r = cloneResource(r)
	return &r, nil
}

func (t *memoryTx) UpdateResource(_ context.Context, r *model.Resource) error {
	cur, ok := t.resource(r.ID)
	if !ok {
		return ErrNotFound
	}
	cur.Title = r.Title
	cur.Description = r.Description
	cur.PricingType = r.PricingType
	cur.Price = r.Price
	cur.TotalSeats = r.TotalSeats
	cur.UpdatedAt = r.UpdatedAt
	t.resources[r.ID] = cloneResource(cur)
	return nil
}

func (t *memoryTx) SetRegisteredCount(_ context.Context, resourceID string, count int) error {
	cur, ok := t.resource(resourceID)
	if !ok {
		return ErrNotFound
	}
	if cur.TotalSeats != nil && count > *cur.TotalSeats {
		return fmt.Errorf("update registered_count: %d exceeds %d seats", count, *cur.TotalSeats)
	}
	cur.RegisteredCount = count
	cur.UpdatedAt = time.Now().UTC()
	t.resources[resourceID] = cur
	return nil
}

func (t *memoryTx) GetRegistrationForUpdate(_ context.Context, id string) (*model.Registration, error) {
	reg, ok := t.registration(id)
	if !ok {
		return nil, ErrNotFound
	}
	reg = cloneRegistration(reg)
	return &reg, nil
}

func (t *memoryTx) InsertRegistration(_ context.Context, reg *model.Registration) error {
	if _, ok := t.registration(reg.ID); ok {
		return ErrDuplicateRegistration
	}
	if reg.UserID != nil {
		resourceID := reg.Ref().ID
		if _, ok := t.store.findByUser(*reg.UserID, resourceID); ok {
			return ErrDuplicateRegistration
		}
		for _, staged := range t.registrations {
			if staged.UserID != nil && *staged.UserID == *reg.UserID && staged.Ref().ID == resourceID {
				return ErrDuplicateRegistration
			}
		}
	}
	t.registrations[reg.ID] = cloneRegistration(*reg)
	return nil
}

func (t *memoryTx) SetRegistrationStatus(_ context.Context, id string, status model.RegistrationStatus) error {
	reg, ok := t.registration(id)
	if !ok {
		return ErrNotFound
	}
	reg = cloneRegistration(reg)
	reg.Status = status
	t.registrations[id] = reg
	return nil
}

func (t *memoryTx) SetCompletedLessons(_ context.Context, id string, lessonIDs []string) error {
	reg, ok := t.registration(id)
	if !ok {
		return ErrNotFound
	}
	reg = cloneRegistration(reg)
	reg.CompletedLessonIDs = slices.Clone(lessonIDs)
	t.registrations[id] = reg
	return nil
}

func (t *memoryTx) InsertNotification(_ context.Context, n *model.Notification) error {
	t.notifications = append(t.notifications, *n)
	return nil
}

func cloneResource(r model.Resource) model.Resource {
	if r.Price != nil {
		p := *r.Price
		r.Price = &p
	}
	if r.TotalSeats != nil {
		n := *r.TotalSeats
		r.TotalSeats = &n
	}
	return r
}

func cloneRegistration(reg model.Registration) model.Registration {
	reg.CompletedLessonIDs = slices.Clone(reg.CompletedLessonIDs)
	return reg
}
