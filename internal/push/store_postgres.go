package push

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	upsertQuery = `INSERT INTO delivery_push_subscriptions (delivery_boy_id, endpoint, p256dh, auth, is_active, updated_at)
VALUES ($1, $2, $3, $4, TRUE, NOW())
ON CONFLICT (delivery_boy_id) DO UPDATE
SET endpoint = EXCLUDED.endpoint, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, is_active = TRUE, updated_at = NOW()`

	selectActiveQuery = `SELECT delivery_boy_id, endpoint, p256dh, auth, is_active, updated_at FROM delivery_push_subscriptions WHERE delivery_boy_id = $1 AND is_active = TRUE`

	deactivateQuery = `UPDATE delivery_push_subscriptions SET is_active = FALSE, updated_at = NOW() WHERE delivery_boy_id = $1`

	schemaQuery = `CREATE TABLE IF NOT EXISTS delivery_push_subscriptions (
	id SERIAL PRIMARY KEY,
	delivery_boy_id BIGINT NOT NULL UNIQUE,
	endpoint TEXT NOT NULL,
	p256dh TEXT NOT NULL,
	auth TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

// PostgresStore stores subscriptions in delivery_push_subscriptions with an
// optional read-through Redis cache of active records.
type PostgresStore struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewPostgresStore builds the store. cache may be nil.
func NewPostgresStore(db *sql.DB, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *PostgresStore {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &PostgresStore{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.ForComponent(log, "push-store"),
	}
}

// EnsureSchema creates the subscriptions table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaQuery); err != nil {
		return apperrors.NewQueryExecutionFailedError("ensure_push_schema", err)
	}
	return nil
}

func cacheKey(actorID int64) string {
	return "push:sub:" + strconv.FormatInt(actorID, 10)
}

func (s *PostgresStore) Save(ctx context.Context, actorID int64, sub models.PushSubscription) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery, actorID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth); err != nil {
		return apperrors.NewQueryExecutionFailedError("upsert_push_subscription", err)
	}
	s.invalidate(ctx, actorID)
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, actorID int64) (*models.PushSubscriptionRecord, error) {
	key := cacheKey(actorID)
	if s.cache != nil {
		val, err := s.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			var rec models.PushSubscriptionRecord
			if err := json.Unmarshal([]byte(val), &rec); err == nil {
				return &rec, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("subscription cache read failed", map[string]interface{}{"actorId": actorID, "error": apperrors.NewCacheFailedError("get", err)})
		}
	}

	var rec models.PushSubscriptionRecord
	err := s.db.QueryRowContext(ctx, selectActiveQuery, actorID).Scan(
		&rec.DeliveryBoyID, &rec.Endpoint, &rec.P256dh, &rec.Auth, &rec.IsActive, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, apperrors.NewQueryExecutionFailedError("select_push_subscription", err)
	}

	if s.cache != nil {
		data, _ := json.Marshal(rec)
		if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			s.logger.Debug("subscription cache write failed", map[string]interface{}{"actorId": actorID, "error": err})
		}
	}
	return &rec, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, actorID int64) error {
	if _, err := s.db.ExecContext(ctx, deactivateQuery, actorID); err != nil {
		return apperrors.NewQueryExecutionFailedError("deactivate_push_subscription", err)
	}
	s.invalidate(ctx, actorID)
	return nil
}

func (s *PostgresStore) invalidate(ctx context.Context, actorID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(actorID)).Err(); err != nil {
		s.logger.Warn("subscription cache invalidation failed", map[string]interface{}{
			"actorId": actorID,
			"error":   apperrors.NewCacheFailedError("del", err),
		})
	}
}
