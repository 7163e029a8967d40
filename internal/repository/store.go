// Package repository implements persistence for resources, the registration
// ledger and notifications. Two backends satisfy Store: PostgresStore (pgx,
// no ORM) and MemoryStore for ephemeral environments and tests.
package repository

import (
	"context"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
)

// DefaultBatchLimit is the largest number of items one batched write may carry.
const DefaultBatchLimit = 500

// Tx is the view a transaction function gets. Reads lock the row until the
// transaction ends, so a read followed by a derived write is one atomic unit.
type Tx interface {
	GetResourceForUpdate(ctx context.Context, id string) (*model.Resource, error)
	// UpdateResource writes the editable fields. It never touches the counter.
	UpdateResource(ctx context.Context, r *model.Resource) error
	SetRegisteredCount(ctx context.Context, resourceID string, count int) error

	GetRegistrationForUpdate(ctx context.Context, id string) (*model.Registration, error)
	// InsertRegistration fails with ErrDuplicateRegistration when the id or
	// the (user, resource) pair is already taken.
	InsertRegistration(ctx context.Context, reg *model.Registration) error
	SetRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error
	SetCompletedLessons(ctx context.Context, id string, lessonIDs []string) error

	InsertNotification(ctx context.Context, n *model.Notification) error
}

// Store is the persistence contract the services depend on.
type Store interface {
	// WithinTx runs fn in one transaction with row locks. The whole function is
	// retried on deadlocks and write conflicts; a non-nil error from fn rolls
	// everything back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	BatchLimit() int

	CreateResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListResources(ctx context.Context, filter model.ResourceFilter) ([]model.Resource, error)
	SoftDeleteResource(ctx context.Context, id string, purgeRegistrations bool) error

	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	FindRegistration(ctx context.Context, userID, resourceID string) (*model.Registration, error)
	ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error)
	ListRegistrationIDs(ctx context.Context, resourceID string) ([]string, error)
	// ListOrphanedRegistrationIDs returns registrations whose resource is gone
	// or was soft deleted with its registrations marked for purge.
	ListOrphanedRegistrationIDs(ctx context.Context, limit int) ([]string, error)
	DeleteRegistration(ctx context.Context, id string) error
	// DeleteRegistrations removes ids in one batched write of at most BatchLimit items.
	DeleteRegistrations(ctx context.Context, ids []string) (int, error)

	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error

	Close()
}
