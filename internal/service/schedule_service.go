// internal/service/schedule_service.go
package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
	"github.com/unclebandit/message-scheduler/internal/logging"
	"github.com/unclebandit/message-scheduler/internal/model"
	"github.com/unclebandit/message-scheduler/internal/repository"
)

// ScheduleService is the write side of the work queue: it onboards tenants
// and creates, edits, lists and deletes scheduled messages.
type ScheduleService struct {
	TenantRepo  repository.TenantRepositoryInterface
	MessageRepo repository.ScheduledMessageRepositoryInterface
	Logger      *zap.Logger
}

type CreateScheduleInput struct {
	Content        string
	ScheduledAt    time.Time
	ConversationID int64
	AttachmentURL  string
	Tenant         model.TenantCredentials
}

type UpdateScheduleInput struct {
	Content     *string
	ScheduledAt *time.Time
}

func (s *ScheduleService) logger() *zap.Logger {
	return logging.OrNop(s.Logger)
}

// CreateSchedule upserts the tenant from the caller's credentials and queues
// a PENDING message for it.
func (s *ScheduleService) CreateSchedule(ctx context.Context, in CreateScheduleInput) (*model.ScheduledMessage, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	tenant, err := s.TenantRepo.Upsert(ctx, in.Tenant)
	if err != nil {
		return nil, errors.Wrap(err, "onboard tenant")
	}

	msg := &model.ScheduledMessage{
		TenantID:       tenant.ID,
		ConversationID: in.ConversationID,
		Content:        in.Content,
		ScheduledAt:    in.ScheduledAt.UTC(),
		Status:         model.StatusPending,
	}
	if in.AttachmentURL != "" {
		attachmentURL := in.AttachmentURL
		msg.AttachmentURL = &attachmentURL
	}
	if err := s.MessageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.logger().Info("scheduled message created",
		zap.String("message_id", msg.ID),
		zap.String("tenant_id", tenant.ID),
		zap.Int64("conversation_id", msg.ConversationID),
		zap.Time("scheduled_at", msg.ScheduledAt),
	)
	return msg, nil
}

func validateCreate(in CreateScheduleInput) error {
	if strings.TrimSpace(in.Content) == "" {
		return appErrors.NewValidation("message", "is required")
	}
	if in.ScheduledAt.IsZero() {
		return appErrors.NewValidation("scheduledAt", "is required")
	}
	if in.ConversationID <= 0 {
		return appErrors.NewValidation("conversationId", "must be a positive number")
	}
	if strings.TrimSpace(in.Tenant.AccessToken) == "" {
		return appErrors.NewValidation("token", "is required")
	}
	if in.Tenant.AccountID <= 0 {
		return appErrors.NewValidation("accountId", "must be a positive number")
	}
	if _, err := model.NormalizeEndpointURL(in.Tenant.EndpointURL); err != nil {
		return appErrors.NewValidation("chatwootUrl", err.Error())
	}
	if in.AttachmentURL != "" {
		u, err := url.Parse(in.AttachmentURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return appErrors.NewValidation("attachmentUrl", "must be an absolute http(s) URL")
		}
	}
	return nil
}

// ListByConversation returns a conversation's messages ordered by due time.
// When endpointURL is set only that tenant's messages are returned.
func (s *ScheduleService) ListByConversation(ctx context.Context, conversationID int64, endpointURL string) ([]*model.ScheduledMessage, error) {
	if conversationID <= 0 {
		return nil, appErrors.NewValidation("conversationId", "must be a positive number")
	}

	tenantID := ""
	if endpointURL != "" {
		if _, err := model.NormalizeEndpointURL(endpointURL); err != nil {
			return nil, appErrors.NewValidation("chatwootUrl", err.Error())
		}
		tenant, err := s.TenantRepo.FindByEndpoint(ctx, endpointURL)
		if err != nil {
			return nil, err
		}
		if tenant == nil {
			return []*model.ScheduledMessage{}, nil
		}
		tenantID = tenant.ID
	}
	return s.MessageRepo.ListByConversation(ctx, conversationID, tenantID)
}

// UpdateSchedule edits content and/or due time of a PENDING message.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id string, in UpdateScheduleInput) (*model.ScheduledMessage, error) {
	if in.Content == nil && in.ScheduledAt == nil {
		return nil, appErrors.NewValidation("body", "nothing to update")
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return nil, appErrors.NewValidation("message", "cannot be empty")
	}
	if in.ScheduledAt != nil && in.ScheduledAt.IsZero() {
		return nil, appErrors.NewValidation("scheduledAt", "is invalid")
	}

	msg, err := s.MessageRepo.UpdatePending(ctx, id, in.Content, in.ScheduledAt)
	if err != nil {
		return nil, err
	}
	s.logger().Info("scheduled message updated", zap.String("message_id", id))
	return msg, nil
}

func (s *ScheduleService) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.MessageRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger().Info("scheduled message deleted", zap.String("message_id", id))
	return nil
}

// Stats counts messages per status, plus a "total".
func (s *ScheduleService) Stats(ctx context.Context) (map[string]int, error) {
	counts, err := s.MessageRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats := map[string]int{
		"total":   0,
		"pending": 0,
		"sent":    0,
		"failed":  0,
	}
	for status, n := range counts {
		stats[strings.ToLower(string(status))] = n
		stats["total"] += n
	}
	return stats, nil
}
