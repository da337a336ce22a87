package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const itemColumns = `
	id, conversation_id, user_id, message, status, priority, position,
	depends_on, scheduled_for, retry_count, max_retries, context_snapshot,
	user_message_id, assistant_message_id, error_message, last_error,
	started_at, completed_at, execution_time_ms, created_at, updated_at`

func (s *pgStore) CreateItem(ctx context.Context, item *domain.QueueItem) error {
	snapshot, err := marshalSnapshot(item.ContextSnapshot)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO queue_items
			(id, conversation_id, user_id, message, status, priority, position,
			 depends_on, scheduled_for, retry_count, max_retries, context_snapshot,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		item.ID, item.ConversationID, item.UserID, item.Message, item.Status,
		item.Priority, item.Position, item.DependsOn, item.ScheduledFor,
		item.RetryCount, item.MaxRetries, snapshot, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (s *pgStore) CreateItems(ctx context.Context, items []*domain.QueueItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, item := range items {
		snapshot, err := marshalSnapshot(item.ContextSnapshot)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO queue_items
				(id, conversation_id, user_id, message, status, priority, position,
				 depends_on, scheduled_for, retry_count, max_retries, context_snapshot,
				 created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			item.ID, item.ConversationID, item.UserID, item.Message, item.Status,
			item.Priority, item.Position, item.DependsOn, item.ScheduledFor,
			item.RetryCount, item.MaxRetries, snapshot, item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert bulk queue item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

func (s *pgStore) GetItem(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE id = $1`, id)

	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return item, err
}

func (s *pgStore) ListItems(ctx context.Context, conversationID string) ([]*domain.QueueItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM queue_items
		 WHERE conversation_id = $1
		 ORDER BY position ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *pgStore) CountItems(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM queue_items WHERE conversation_id = $1`,
		conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count queue items: %w", err)
	}
	return count, nil
}

func (s *pgStore) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'processing', started_at = $1, updated_at = NOW()
		WHERE id = $2`, startedAt, id)
	return err
}

func (s *pgStore) MarkCompleted(ctx context.Context, id string, completedAt time.Time, executionMs int64, userMessageID, assistantMessageID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'completed', completed_at = $1, execution_time_ms = $2,
		    user_message_id = $3, assistant_message_id = $4, updated_at = NOW()
		WHERE id = $5`, completedAt, executionMs, userMessageID, assistantMessageID, id)
	return err
}

func (s *pgStore) MarkFailed(ctx context.Context, id string, errMsg string, retryCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'failed', completed_at = NOW(), error_message = $1,
		    last_error = $1, retry_count = $2, updated_at = NOW()
		WHERE id = $3`, errMsg, retryCount, id)
	return err
}

func (s *pgStore) RequeueForRetry(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'pending', started_at = NULL, completed_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'failed'`, id)
	return err
}

func (s *pgStore) CancelItem(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (s *pgStore) UpdatePosition(ctx context.Context, id string, position int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items SET position = $1, updated_at = NOW()
		WHERE id = $2`, position, id)
	return err
}

func (s *pgStore) SwapPositions(ctx context.Context, idA string, posA int, idB string, posB int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE queue_items SET position = $1, updated_at = NOW() WHERE id = $2`,
		posA, idA); err != nil {
		return fmt.Errorf("swap position of %s: %w", idA, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE queue_items SET position = $1, updated_at = NOW() WHERE id = $2`,
		posB, idB); err != nil {
		return fmt.Errorf("swap position of %s: %w", idB, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

func (s *pgStore) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM queue_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *pgStore) DeleteCompleted(ctx context.Context, conversationID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM queue_items
		WHERE conversation_id = $1 AND status = 'completed'`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("delete completed items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *pgStore) FindDueScheduled(ctx context.Context) ([]*domain.QueueItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM queue_items
		 WHERE status = 'pending'
		   AND scheduled_for IS NOT NULL
		   AND scheduled_for <= NOW()
		 LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("find due scheduled: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *pgStore) GetConfig(ctx context.Context, conversationID string) (*domain.QueueConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT conversation_id, user_id, auto_execute, concurrent_limit,
		       retry_on_error, max_retries, pause_on_error, pause_on_feedback,
		       notify_on_complete, created_at, updated_at
		FROM queue_configs WHERE conversation_id = $1`, conversationID)

	var cfg domain.QueueConfig
	err := row.Scan(
		&cfg.ConversationID, &cfg.UserID, &cfg.AutoExecute, &cfg.ConcurrentLimit,
		&cfg.RetryOnError, &cfg.MaxRetries, &cfg.PauseOnError, &cfg.PauseOnFeedback,
		&cfg.NotifyOnComplete, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue config: %w", err)
	}
	return &cfg, nil
}

func (s *pgStore) CreateConfig(ctx context.Context, cfg *domain.QueueConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_configs
			(conversation_id, user_id, auto_execute, concurrent_limit,
			 retry_on_error, max_retries, pause_on_error, pause_on_feedback,
			 notify_on_complete, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		cfg.ConversationID, cfg.UserID, cfg.AutoExecute, cfg.ConcurrentLimit,
		cfg.RetryOnError, cfg.MaxRetries, cfg.PauseOnError, cfg.PauseOnFeedback,
		cfg.NotifyOnComplete, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue config: %w", err)
	}
	return nil
}

func (s *pgStore) UpdateConfig(ctx context.Context, cfg *domain.QueueConfig) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_configs
		SET auto_execute = $1, concurrent_limit = $2, retry_on_error = $3,
		    max_retries = $4, pause_on_error = $5, pause_on_feedback = $6,
		    notify_on_complete = $7, updated_at = $8
		WHERE conversation_id = $9`,
		cfg.AutoExecute, cfg.ConcurrentLimit, cfg.RetryOnError, cfg.MaxRetries,
		cfg.PauseOnError, cfg.PauseOnFeedback, cfg.NotifyOnComplete,
		cfg.UpdatedAt, cfg.ConversationID,
	)
	return err
}

func (s *pgStore) SetAutoExecute(ctx context.Context, conversationID string, enabled bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_configs SET auto_execute = $1, updated_at = NOW()
		WHERE conversation_id = $2`, enabled, conversationID)
	return err
}

// ---- helpers ----

func marshalSnapshot(snapshot *domain.ContextSnapshot) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	b, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal context snapshot: %w", err)
	}
	return b, nil
}

// scanItem reads a single queue item row from any pgx row type.
func scanItem(row pgx.Row) (*domain.QueueItem, error) {
	var (
		item     domain.QueueItem
		snapshot []byte
	)
	err := row.Scan(
		&item.ID, &item.ConversationID, &item.UserID, &item.Message,
		&item.Status, &item.Priority, &item.Position,
		&item.DependsOn, &item.ScheduledFor,
		&item.RetryCount, &item.MaxRetries, &snapshot,
		&item.UserMessageID, &item.AssistantMessageID,
		&item.ErrorMessage, &item.LastError,
		&item.StartedAt, &item.CompletedAt, &item.ExecutionTimeMs,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		var cs domain.ContextSnapshot
		if err := json.Unmarshal(snapshot, &cs); err != nil {
			return nil, fmt.Errorf("unmarshal context snapshot: %w", err)
		}
		item.ContextSnapshot = &cs
	}
	return &item, nil
}

func scanItems(rows pgx.Rows) ([]*domain.QueueItem, error) {
	var result []*domain.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
