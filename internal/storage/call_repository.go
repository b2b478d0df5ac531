package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

// GenerationCallRepository persists one row per provider invocation.
type GenerationCallRepository interface {
	Create(ctx context.Context, call *model.GenerationCall) error
	Count(ctx context.Context) (int64, error)
	StatsByProvider(ctx context.Context) ([]model.ProviderStats, error)
	Recent(ctx context.Context, limit int) ([]model.GenerationCall, error)
}

type sqliteGenerationCallRepository struct {
	db *sqlx.DB
}

// NewGenerationCallRepository creates a SQLite-backed GenerationCallRepository.
func NewGenerationCallRepository(db *sqlx.DB) GenerationCallRepository {
	return &sqliteGenerationCallRepository{db: db}
}

func (r *sqliteGenerationCallRepository) Create(ctx context.Context, call *model.GenerationCall) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO generation_calls (request_id, provider, model, strategy, success, duration_ms, error_message, created_at)
		VALUES (:request_id, :provider, :model, :strategy, :success, :duration_ms, :error_message, :created_at)
	`, call)
	if err != nil {
		return fmt.Errorf("creating generation call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteGenerationCallRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM generation_calls"); err != nil {
		return 0, fmt.Errorf("counting generation calls: %w", err)
	}
	return count, nil
}

func (r *sqliteGenerationCallRepository) StatsByProvider(ctx context.Context) ([]model.ProviderStats, error) {
	stats := []model.ProviderStats{}
	err := r.db.SelectContext(ctx, &stats, `
		SELECT provider,
		       COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS succeeded,
		       COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) AS failed
		FROM generation_calls
		GROUP BY provider
		ORDER BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("aggregating generation calls: %w", err)
	}
	return stats, nil
}

// Recent returns the newest calls first.
func (r *sqliteGenerationCallRepository) Recent(ctx context.Context, limit int) ([]model.GenerationCall, error) {
	calls := []model.GenerationCall{}
	err := r.db.SelectContext(ctx, &calls,
		"SELECT * FROM generation_calls ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing generation calls: %w", err)
	}
	return calls, nil
}
