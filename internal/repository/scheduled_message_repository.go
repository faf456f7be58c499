package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
	"github.com/unclebandit/message-scheduler/internal/model"
)

// DueMessageStore is the work queue as the dispatcher sees it.
type DueMessageStore interface {
	ListDue(ctx context.Context, now time.Time) ([]*model.ScheduledMessage, error)
	NextPendingDueAt(ctx context.Context) (*time.Time, error)
	MarkSent(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, diagnostic string) (bool, error)
}

// ScheduledMessageRepositoryInterface is the full work queue.
type ScheduledMessageRepositoryInterface interface {
	DueMessageStore
	Create(ctx context.Context, msg *model.ScheduledMessage) error
	GetByID(ctx context.Context, id string) (*model.ScheduledMessage, error)
	ListByConversation(ctx context.Context, conversationID int64, tenantID string) ([]*model.ScheduledMessage, error)
	UpdatePending(ctx context.Context, id string, content *string, scheduledAt *time.Time) (*model.ScheduledMessage, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
}

type ScheduledMessageRepository struct {
	DB *sqlx.DB
}

const messageColumns = `id, tenant_id, conversation_id, content, attachment_url, scheduled_at, status, error_log, created_at, updated_at`

// ====================== CRUD ======================

func (r *ScheduledMessageRepository) Create(ctx context.Context, msg *model.ScheduledMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = model.StatusPending
	}
	query := `
        INSERT INTO scheduled_messages
        (id, tenant_id, conversation_id, content, attachment_url, scheduled_at, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err := r.DB.QueryRowxContext(ctx, query,
		msg.ID, msg.TenantID, msg.ConversationID, msg.Content, msg.AttachmentURL, msg.ScheduledAt.UTC(), msg.Status,
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
	return errors.Wrap(err, "insert scheduled message")
}

func (r *ScheduledMessageRepository) GetByID(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	var msg model.ScheduledMessage
	err := r.DB.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM scheduled_messages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewScheduledMessageNotFound(id)
		}
		return nil, errors.Wrapf(err, "get scheduled message %s", id)
	}
	return &msg, nil
}

// ListByConversation returns messages for a conversation, earliest first. An
// empty tenantID matches every tenant.
func (r *ScheduledMessageRepository) ListByConversation(ctx context.Context, conversationID int64, tenantID string) ([]*model.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE conversation_id = $1`
	args := []interface{}{conversationID}
	if tenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args)+1)
		args = append(args, tenantID)
	}
	query += " ORDER BY scheduled_at ASC"

	msgs := []*model.ScheduledMessage{}
	if err := r.DB.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, errors.Wrapf(err, "list scheduled messages for conversation %d", conversationID)
	}
	return msgs, nil
}

// UpdatePending edits content and/or due time of a message still PENDING.
func (r *ScheduledMessageRepository) UpdatePending(ctx context.Context, id string, content *string, scheduledAt *time.Time) (*model.ScheduledMessage, error) {
	var at interface{}
	if scheduledAt != nil {
		at = scheduledAt.UTC()
	}
	query := `
        UPDATE scheduled_messages
        SET content = COALESCE($1, content),
            scheduled_at = COALESCE($2, scheduled_at),
            updated_at = NOW()
        WHERE id = $3 AND status = 'PENDING'
        RETURNING ` + messageColumns
	var msg model.ScheduledMessage
	err := r.DB.GetContext(ctx, &msg, query, content, at, id)
	if err == nil {
		return &msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(err, "update scheduled message %s", id)
	}

	// Nothing updated: either the row is gone or it is no longer PENDING.
	existing, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, appErrors.NewNotPending(id, string(existing.Status))
}

func (r *ScheduledMessageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM scheduled_messages WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete scheduled message %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return appErrors.NewScheduledMessageNotFound(id)
	}
	return nil
}

func (r *ScheduledMessageRepository) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM scheduled_messages GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "count scheduled messages")
	}
	defer rows.Close()

	stats := map[model.Status]int{model.StatusPending: 0, model.StatusSent: 0, model.StatusFailed: 0}
	for rows.Next() {
		var status model.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "scan status count")
		}
		stats[status] = count
	}
	return stats, errors.Wrap(rows.Err(), "iterate status counts")
}

// ====================== Dispatcher ======================

// ListDue selects every PENDING message due at or before now in one query,
// which gives the cycle a consistent snapshot.
func (r *ScheduledMessageRepository) ListDue(ctx context.Context, now time.Time) ([]*model.ScheduledMessage, error) {
	query := `
        SELECT ` + messageColumns + `
        FROM scheduled_messages
        WHERE status = 'PENDING' AND scheduled_at <= $1
        ORDER BY scheduled_at ASC
    `
	msgs := []*model.ScheduledMessage{}
	if err := r.DB.SelectContext(ctx, &msgs, query, now.UTC()); err != nil {
		return nil, errors.Wrap(err, "list due scheduled messages")
	}
	return msgs, nil
}

// NextPendingDueAt returns the earliest due time among PENDING messages, or
// nil when there are none.
func (r *ScheduledMessageRepository) NextPendingDueAt(ctx context.Context) (*time.Time, error) {
	var next sql.NullTime
	err := r.DB.QueryRowContext(ctx, `SELECT MIN(scheduled_at) FROM scheduled_messages WHERE status = 'PENDING'`).Scan(&next)
	if err != nil {
		return nil, errors.Wrap(err, "next pending due time")
	}
	if !next.Valid {
		return nil, nil
	}
	return &next.Time, nil
}

// MarkSent moves a PENDING message to SENT and clears its diagnostic. It
// reports false when the row was deleted or already terminal.
func (r *ScheduledMessageRepository) MarkSent(ctx context.Context, id string) (bool, error) {
	return r.markTerminal(ctx, id, model.StatusSent, nil)
}

// MarkFailed moves a PENDING message to FAILED with a diagnostic.
func (r *ScheduledMessageRepository) MarkFailed(ctx context.Context, id, diagnostic string) (bool, error) {
	return r.markTerminal(ctx, id, model.StatusFailed, &diagnostic)
}

func (r *ScheduledMessageRepository) markTerminal(ctx context.Context, id string, status model.Status, diagnostic *string) (bool, error) {
	query := `
        UPDATE scheduled_messages
        SET status = $1, error_log = $2, updated_at = NOW()
        WHERE id = $3 AND status = 'PENDING'
    `
	res, err := r.DB.ExecContext(ctx, query, status, diagnostic, id)
	if err != nil {
		return false, appErrors.NewTransport(fmt.Sprintf("mark scheduled message %s %s", id, status), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

var _ ScheduledMessageRepositoryInterface = (*ScheduledMessageRepository)(nil)
