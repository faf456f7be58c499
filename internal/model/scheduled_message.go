// internal/model/scheduled_message.go
package model

import "time"

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

type ScheduledMessage struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenantId"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	Content        string    `db:"content" json:"content"`
	AttachmentURL  *string   `db:"attachment_url" json:"attachmentUrl,omitempty"`
	ScheduledAt    time.Time `db:"scheduled_at" json:"scheduledAt"`
	Status         Status    `db:"status" json:"status"`
	ErrorLog       *string   `db:"error_log" json:"errorLog,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// HasAttachment is true when an attachment reference is set and non-empty.
func (m *ScheduledMessage) HasAttachment() bool {
	return m.AttachmentURL != nil && *m.AttachmentURL != ""
}

// Due reports whether the message is PENDING and its time has come.
func (m *ScheduledMessage) Due(now time.Time) bool {
	return m.Status == StatusPending && !m.ScheduledAt.After(now)
}

// DispatchEvent is published after the dispatcher writes a terminal status.
type DispatchEvent struct {
	MessageID      string    `json:"messageId"`
	TenantID       string    `json:"tenantId"`
	ConversationID int64     `json:"conversationId"`
	Status         Status    `json:"status"`
	ErrorLog       string    `json:"errorLog,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}
