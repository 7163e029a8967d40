package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id                  TEXT PRIMARY KEY,
		kind                TEXT NOT NULL CHECK (kind IN ('event', 'course', 'product')),
		title               TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		pricing_type        TEXT NOT NULL CHECK (pricing_type IN ('free', 'paid')),
		price               DOUBLE PRECISION,
		total_seats         INTEGER CHECK (total_seats IS NULL OR total_seats > 0),
		registered_count    INTEGER NOT NULL DEFAULT 0 CHECK (registered_count >= 0),
		is_deleted          BOOLEAN NOT NULL DEFAULT FALSE,
		purge_registrations BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		CONSTRAINT resources_seats_check CHECK (total_seats IS NULL OR registered_count <= total_seats)
	)`,
	`CREATE INDEX IF NOT EXISTS resources_kind_idx ON resources (kind, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS registrations (
		id                   TEXT PRIMARY KEY,
		event_id             TEXT,
		course_id            TEXT,
		product_id           TEXT,
		user_id              TEXT,
		name                 TEXT NOT NULL,
		email                TEXT NOT NULL,
		phone                TEXT,
		trx_id               TEXT,
		screenshot_url       TEXT,
		payment_method       TEXT,
		additional_info      TEXT,
		status               TEXT NOT NULL CHECK (status IN ('pending', 'approved')),
		registered_at        TIMESTAMPTZ NOT NULL,
		completed_lesson_ids TEXT[],
		CONSTRAINT registrations_one_resource CHECK (num_nonnulls(event_id, course_id, product_id) = 1)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS registrations_user_resource_key
		ON registrations (user_id, (COALESCE(event_id, course_id, product_id)))
		WHERE user_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS registrations_event_idx ON registrations (event_id) WHERE event_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS registrations_course_idx ON registrations (course_id) WHERE course_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS registrations_product_idx ON registrations (product_id) WHERE product_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS registrations_status_idx ON registrations (status, registered_at DESC)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		link       TEXT,
		read       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC)`,
}

// Migrate creates the tables and indexes the store relies on.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
