package postgres

import (
	"context"
	"errors"
	"fmt"

	"survey-public-api/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const webhookColumns = `id, owner_id, url, events, active, secret_enc, created_at, updated_at`

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

func eventsToText(events []domain.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func scanWebhook(row pgx.Row) (domain.WebhookSubscription, error) {
	var (
		s      domain.WebhookSubscription
		events []string
	)
	err := row.Scan(&s.ID, &s.OwnerID, &s.URL, &events, &s.Active, &s.SecretEnc, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.Events = make([]domain.EventType, len(events))
	for i, e := range events {
		s.Events[i] = domain.EventType(e)
	}
	return s, nil
}

// Create inserts a subscription. Events are stored as TEXT[].
func (r *WebhookRepo) Create(ctx context.Context, s *domain.WebhookSubscription) error {
	query := `INSERT INTO webhook_subscriptions (` + webhookColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.OwnerID, s.URL, eventsToText(s.Events), s.Active, s.SecretEnc, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook subscription: %w", err)
	}
	return nil
}

// GetByID fetches a subscription by its UUID.
func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions WHERE id = $1`
	s, err := scanWebhook(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook subscription by id: %w", err)
	}
	return &s, nil
}

// ListByOwner returns one page of an owner's subscriptions, newest first.
func (r *WebhookRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.WebhookSubscription, int64, error) {
	subs, total, err := countAndList(ctx, r.pool,
		`SELECT COUNT(*) FROM webhook_subscriptions WHERE owner_id = $1`,
		`SELECT `+webhookColumns+` FROM webhook_subscriptions WHERE owner_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		func(rows pgx.Rows) (domain.WebhookSubscription, error) { return scanWebhook(rows) },
		[]any{ownerID}, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list webhook subscriptions: %w", err)
	}
	return subs, total, nil
}

// ListActiveForEvent returns the owner's active subscriptions that selected eventType.
func (r *WebhookRepo) ListActiveForEvent(ctx context.Context, ownerID string, eventType domain.EventType) ([]domain.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions
		WHERE owner_id = $1 AND active AND $2 = ANY(events)`

	rows, err := r.pool.Query(ctx, query, ownerID, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("list active webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.WebhookSubscription
	for rows.Next() {
		s, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Delete removes a subscription. Its delivery records cascade.
func (r *WebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete webhook subscription: %w", err)
	}
	return nil
}

// DeliveryRepo implements ports.DeliveryRepository. Records are append-only.
type DeliveryRepo struct {
	pool Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(pool Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

const deliveryColumns = `id, webhook_id, payload_id, event_type, success, status_code, error, attempts, attempted_at`

// Create appends a delivery record.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.DeliveryRecord) error {
	query := `INSERT INTO webhook_deliveries (` + deliveryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		d.ID, d.WebhookID, d.PayloadID, string(d.EventType), d.Success, d.StatusCode, d.Error, d.Attempts, d.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// ListByWebhook returns one page of a subscription's delivery log, newest first.
func (r *DeliveryRepo) ListByWebhook(ctx context.Context, webhookID uuid.UUID, limit, offset int) ([]domain.DeliveryRecord, int64, error) {
	records, total, err := countAndList(ctx, r.pool,
		`SELECT COUNT(*) FROM webhook_deliveries WHERE webhook_id = $1`,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE webhook_id = $1 ORDER BY attempted_at DESC, id DESC LIMIT $2 OFFSET $3`,
		func(rows pgx.Rows) (domain.DeliveryRecord, error) {
			var (
				d         domain.DeliveryRecord
				eventType string
			)
			err := rows.Scan(&d.ID, &d.WebhookID, &d.PayloadID, &eventType, &d.Success, &d.StatusCode, &d.Error, &d.Attempts, &d.AttemptedAt)
			d.EventType = domain.EventType(eventType)
			return d, err
		},
		[]any{webhookID}, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list webhook deliveries: %w", err)
	}
	return records, total, nil
}
