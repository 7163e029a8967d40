package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgreSQL error codes the store reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

const (
	resourceColumns = `id, kind, title, description, pricing_type, price, total_seats,
		registered_count, is_deleted, purge_registrations, created_at, updated_at`

	registrationColumns = `id, event_id, course_id, product_id, user_id, name, email, phone,
		trx_id, screenshot_url, payment_method, additional_info, status, registered_at,
		completed_lesson_ids`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresOptions tunes transaction retries and batching.
type PostgresOptions struct {
	// TxMaxAttempts bounds how many times a conflicting transaction is run.
	TxMaxAttempts int
	BatchLimit    int
}

// PostgresStore implements Store on PostgreSQL using pgx directly.
type PostgresStore struct {
	db          *pgxpool.Pool
	maxAttempts int
	batchLimit  int
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool, opts PostgresOptions) *PostgresStore {
	if opts.TxMaxAttempts <= 0 {
		opts.TxMaxAttempts = 5
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = DefaultBatchLimit
	}
	return &PostgresStore{db: db, maxAttempts: opts.TxMaxAttempts, batchLimit: opts.BatchLimit}
}

// BatchLimit returns the per-batch item limit.
func (s *PostgresStore) BatchLimit() int { return s.batchLimit }

// Close releases the pool.
func (s *PostgresStore) Close() { s.db.Close() }

// WithinTx runs fn inside a READ COMMITTED transaction.
//
// Rows read through Tx are locked with SELECT ... FOR UPDATE, so two requests
// racing for the last seat queue on the resource row and the waiter reads the
// committed count once the lock is released. Two inserts racing on the same
// user are stopped by registrations_user_resource_key. A deadlock (40P01) or
// serialization failure (40001) reruns the whole function.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// backoff grows exponentially from 10ms, capped at 500ms, with jitter.
func backoff(attempt int) time.Duration {
	d := 10 * time.Millisecond << (attempt - 1)
	if d > 500*time.Millisecond {
		d = 500 * time.Millisecond
	}
	return d/2 + rand.N(d/2+1)
}

// ─── Resources ───────────────────────────────────────────────────────────────

// CreateResource inserts a new resource.
func (s *PostgresStore) CreateResource(ctx context.Context, r *model.Resource) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, string(r.Kind), r.Title, r.Description, string(r.PricingType), r.Price, r.TotalSeats,
		r.RegisteredCount, r.IsDeleted, r.PurgeRegistrations, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

// GetResource returns a single resource, deleted or not, or ErrNotFound.
func (s *PostgresStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	r, err := scanResource(s.db.QueryRow(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return r, nil
}

// ListResources returns resources ordered by creation time descending.
func (s *PostgresStore) ListResources(ctx context.Context, filter model.ResourceFilter) ([]model.Resource, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.IncludeDeleted {
		conds = append(conds, "NOT is_deleted")
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+resourceColumns+` FROM resources`+where(conds)+` ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, *r)
	}
	return resources, rows.Err()
}

// SoftDeleteResource flags the resource deleted. Once a resource has been
// marked for registration purge it stays marked.
func (s *PostgresStore) SoftDeleteResource(ctx context.Context, id string, purgeRegistrations bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE resources
		 SET is_deleted = TRUE, purge_registrations = purge_registrations OR $2, updated_at = $3
		 WHERE id = $1`,
		id, purgeRegistrations, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("soft delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Registrations ───────────────────────────────────────────────────────────

// GetRegistration returns a single registration or ErrNotFound.
func (s *PostgresStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// FindRegistration looks up the registration a user holds for a resource.
func (s *PostgresStore) FindRegistration(ctx context.Context, userID, resourceID string) (*model.Registration, error) {
	reg, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE user_id = $1 AND (event_id = $2 OR course_id = $2 OR product_id = $2)
		 LIMIT 1`,
		userID, resourceID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

// ListRegistrations returns registrations matching filter, newest first.
func (s *PostgresStore) ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ResourceID != "" {
		add("(event_id = $%[1]d OR course_id = $%[1]d OR product_id = $%[1]d)", filter.ResourceID)
	}
	switch filter.Kind {
	case model.KindEvent:
		conds = append(conds, "event_id IS NOT NULL")
	case model.KindCourse:
		conds = append(conds, "course_id IS NOT NULL")
	case model.KindProduct:
		conds = append(conds, "product_id IS NOT NULL")
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		add("(name ILIKE $%[1]d OR email ILIKE $%[1]d OR phone ILIKE $%[1]d OR trx_id ILIKE $%[1]d)",
			"%"+escapeLike(q)+"%")
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations`+where(conds)+` ORDER BY registered_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// ListRegistrationIDs returns the ids of every registration pointing at resourceID.
func (s *PostgresStore) ListRegistrationIDs(ctx context.Context, resourceID string) ([]string, error) {
	return s.collectIDs(ctx,
		`SELECT id FROM registrations
		 WHERE event_id = $1 OR course_id = $1 OR product_id = $1
		 ORDER BY registered_at`,
		resourceID,
	)
}

// ListOrphanedRegistrationIDs returns up to limit registrations left behind
// by an interrupted cascade or a resource that no longer exists.
func (s *PostgresStore) ListOrphanedRegistrationIDs(ctx context.Context, limit int) ([]string, error) {
	return s.collectIDs(ctx,
		`SELECT g.id FROM registrations g
		 LEFT JOIN resources r ON r.id = COALESCE(g.event_id, g.course_id, g.product_id)
		 WHERE r.id IS NULL OR (r.is_deleted AND r.purge_registrations)
		 ORDER BY g.registered_at
		 LIMIT $1`,
		limit,
	)
}

func (s *PostgresStore) collectIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list registration ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan registration ids: %w", err)
	}
	return ids, nil
}

// DeleteRegistration removes one registration.
func (s *PostgresStore) DeleteRegistration(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRegistrations queues one DELETE per id and sends them as a single
// pgx batch inside a transaction. Missing ids are skipped.
func (s *PostgresStore) DeleteRegistrations(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) > s.batchLimit {
		return 0, fmt.Errorf("%w: %d items, limit %d", ErrBatchTooLarge, len(ids), s.batchLimit)
	}

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`DELETE FROM registrations WHERE id = $1`, id)
	}

	var deleted int
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		deleted = 0
		br := tx.SendBatch(ctx, batch)
		for range ids {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return err
			}
			deleted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("batch delete registrations: %w", err)
	}
	return deleted, nil
}

// ─── Notifications ───────────────────────────────────────────────────────────

// ListNotifications returns a user's notifications, newest first.
func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, title, message, link, read, created_at
		 FROM notifications WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead sets the read flag on one of the user's notifications.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Transaction view ────────────────────────────────────────────────────────

type pgTx struct {
	q querier
}

func (t *pgTx) GetResourceForUpdate(ctx context.Context, id string) (*model.Resource, error) {
	r, err := scanResource(t.q.QueryRow(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock resource row: %w", err)
	}
	return r, nil
}

func (t *pgTx) UpdateResource(ctx context.Context, r *model.Resource) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE resources
		 SET title = $2, description = $3, pricing_type = $4, price = $5, total_seats = $6, updated_at = $7
		 WHERE id = $1`,
		r.ID, r.Title, r.Description, string(r.PricingType), r.Price, r.TotalSeats, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetRegisteredCount(ctx context.Context, resourceID string, count int) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE resources SET registered_count = $2, updated_at = $3 WHERE id = $1`,
		resourceID, count, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update registered_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) GetRegistrationForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := scanRegistration(t.q.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock registration row: %w", err)
	}
	return reg, nil
}

func (t *pgTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		reg.ID, reg.EventID, reg.CourseID, reg.ProductID, reg.UserID, reg.Name, reg.Email, reg.Phone,
		reg.TrxID, reg.ScreenshotURL, reg.PaymentMethod, reg.AdditionalInfo, string(reg.Status),
		reg.RegisteredAt, reg.CompletedLessonIDs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (t *pgTx) SetRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error {
	tag, err := t.q.Exec(ctx, `UPDATE registrations SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetCompletedLessons(ctx context.Context, id string, lessonIDs []string) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE registrations SET completed_lesson_ids = $2 WHERE id = $1`, id, lessonIDs)
	if err != nil {
		return fmt.Errorf("update completed lessons: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertNotification(ctx context.Context, n *model.Notification) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO notifications (id, user_id, title, message, link, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Title, n.Message, n.Link, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ─── Scanning helpers ────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*model.Resource, error) {
	var (
		r             model.Resource
		kind, pricing string
	)
	err := row.Scan(&r.ID, &kind, &r.Title, &r.Description, &pricing, &r.Price, &r.TotalSeats,
		&r.RegisteredCount, &r.IsDeleted, &r.PurgeRegistrations, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Kind = model.ResourceKind(kind)
	r.PricingType = model.PricingType(pricing)
	return &r, nil
}

func scanRegistration(row rowScanner) (*model.Registration, error) {
	var (
		reg    model.Registration
		status string
	)
	err := row.Scan(&reg.ID, &reg.EventID, &reg.CourseID, &reg.ProductID, &reg.UserID, &reg.Name,
		&reg.Email, &reg.Phone, &reg.TrxID, &reg.ScreenshotURL, &reg.PaymentMethod,
		&reg.AdditionalInfo, &status, &reg.RegisteredAt, &reg.CompletedLessonIDs)
	if err != nil {
		return nil, err
	}
	reg.Status = model.RegistrationStatus(status)
	return &reg, nil
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
