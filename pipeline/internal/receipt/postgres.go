package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelbridge/pixelbridge/common/database"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/metrics"
)

// PostgresRepository implements receipt and claim persistence on
// PostgreSQL. It also serves as the durable fallback for the replay
// guard via InsertClaim.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// InsertClaim records a dedup claim for (shopID, eventType, nonce).
// Returns (false, nil) when a non-expired claim already exists; an
// expired claim is taken over in place. Claims outlive process
// restarts, which is the whole point of the durable path.
func (r *PostgresRepository) InsertClaim(ctx context.Context, shopID, eventType, nonce string, expiresAt time.Time) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	insert := `
		INSERT INTO dedup_claims (shop_id, event_type, nonce, claimed_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
	`

	_, err := r.pool.Exec(ctx, insert, shopID, eventType, nonce, expiresAt)
	if err == nil {
		return true, nil
	}

	// Check for unique constraint violation (23505)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false, fmt.Errorf("failed to insert claim: %w", err)
	}

	// A claim exists; it only blocks us while unexpired.
	takeover := `
		UPDATE dedup_claims
		SET claimed_at = NOW(), expires_at = $4
		WHERE shop_id = $1 AND event_type = $2 AND nonce = $3 AND expires_at <= NOW()
	`

	tag, err := r.pool.Exec(ctx, takeover, shopID, eventType, nonce, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to take over expired claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpiredClaims removes claims past their expiry. Run it
// periodically to keep the table bounded.
func (r *PostgresRepository) DeleteExpiredClaims(ctx context.Context) (int64, error) {
	ctx, cancel := database.BulkContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM dedup_claims WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertReceipt inserts or refreshes the receipt for the receipt's
// (ShopID, EventID, EventType) key. On conflict the mutable fields are
// updated; CreatedAt and the sent-platforms list are preserved, since
// only MarkSent may grow the latter.
func (r *PostgresRepository) UpsertReceipt(ctx context.Context, rec *Receipt) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO receipts (
			shop_id, event_id, event_type, order_key, alt_key,
			checkout_token, trust_level, trust_reason, value, currency,
			payload, sent_platforms, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (shop_id, event_id, event_type) DO UPDATE SET
			order_key = EXCLUDED.order_key,
			alt_key = EXCLUDED.alt_key,
			checkout_token = EXCLUDED.checkout_token,
			trust_level = EXCLUDED.trust_level,
			trust_reason = EXCLUDED.trust_reason,
			value = EXCLUDED.value,
			currency = EXCLUDED.currency,
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`

	sent := rec.SentPlatforms
	if sent == nil {
		sent = []string{}
	}

	_, err := r.pool.Exec(ctx, query,
		rec.ShopID, rec.EventID, rec.EventType, rec.OrderKey, rec.AltKey,
		rec.CheckoutToken, rec.TrustLevel, rec.TrustReason, rec.Value, rec.Currency,
		rec.Payload, sent,
	)
	if err != nil {
		metrics.ReceiptUpserts.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to upsert receipt: %w", err)
	}

	metrics.ReceiptUpserts.WithLabelValues("ok").Inc()
	return nil
}

// FindReceipt retrieves a receipt by its full key.
func (r *PostgresRepository) FindReceipt(ctx context.Context, shopID, eventID, eventType string) (*Receipt, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT shop_id, event_id, event_type, order_key, alt_key,
			checkout_token, trust_level, trust_reason, value, currency,
			payload, sent_platforms, created_at, updated_at
		FROM receipts
		WHERE shop_id = $1 AND event_id = $2 AND event_type = $3
	`

	rec := &Receipt{}
	err := r.pool.QueryRow(ctx, query, shopID, eventID, eventType).Scan(
		&rec.ShopID, &rec.EventID, &rec.EventType, &rec.OrderKey, &rec.AltKey,
		&rec.CheckoutToken, &rec.TrustLevel, &rec.TrustReason, &rec.Value, &rec.Currency,
		&rec.Payload, &rec.SentPlatforms, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return rec, nil
}

// FindOrderSnapshot retrieves the most recent receipt matching either
// match key for a shop. Webhook-side trust verification uses this to
// recover the pixel-side checkout token for the same purchase.
func (r *PostgresRepository) FindOrderSnapshot(ctx context.Context, shopID, matchKey string) (*Receipt, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT shop_id, event_id, event_type, order_key, alt_key,
			checkout_token, trust_level, trust_reason, value, currency,
			payload, sent_platforms, created_at, updated_at
		FROM receipts
		WHERE shop_id = $1 AND (order_key = $2 OR alt_key = $2)
		ORDER BY updated_at DESC
		LIMIT 1
	`

	rec := &Receipt{}
	err := r.pool.QueryRow(ctx, query, shopID, matchKey).Scan(
		&rec.ShopID, &rec.EventID, &rec.EventType, &rec.OrderKey, &rec.AltKey,
		&rec.CheckoutToken, &rec.TrustLevel, &rec.TrustReason, &rec.Value, &rec.Currency,
		&rec.Payload, &rec.SentPlatforms, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to get order snapshot: %w", err)
	}

	return rec, nil
}

// MarkSent appends a platform to the receipt's sent list, once.
func (r *PostgresRepository) MarkSent(ctx context.Context, shopID, eventID, eventType, platform string) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE receipts
		SET sent_platforms = array_append(sent_platforms, $4), updated_at = NOW()
		WHERE shop_id = $1 AND event_id = $2 AND event_type = $3
		  AND NOT ($4 = ANY(sent_platforms))
	`

	_, err := r.pool.Exec(ctx, query, shopID, eventID, eventType, platform)
	if err != nil {
		return fmt.Errorf("failed to mark receipt sent: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
