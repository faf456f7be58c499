package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/attachment"
	"github.com/unclebandit/message-scheduler/internal/chatwoot"
	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
	"github.com/unclebandit/message-scheduler/internal/logging"
	"github.com/unclebandit/message-scheduler/internal/model"
	"github.com/unclebandit/message-scheduler/internal/queue"
	"github.com/unclebandit/message-scheduler/internal/repository"
)

const DefaultMaxErrorLength = 1000

// AttachmentFetcher resolves an attachment URL into file content.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, url string) (*attachment.File, error)
}

// MessageSender performs the single delivery call for a message.
type MessageSender interface {
	Send(ctx context.Context, tenant *model.Tenant, conversationID int64, payload chatwoot.Payload) error
}

// CycleReport summarises one dispatch cycle.
type CycleReport struct {
	Found   int
	Sent    int
	Failed  int
	Skipped int
}

// Dispatcher delivers due scheduled messages and records their terminal
// status. A message gets exactly one attempt.
type Dispatcher struct {
	Messages repository.DueMessageStore
	Tenants  repository.TenantFinder
	Fetcher  AttachmentFetcher
	Sender   MessageSender
	Events   queue.Publisher

	Logger         *zap.Logger
	Now            func() time.Time
	MaxErrorLength int
}

func NewDispatcher(messages repository.DueMessageStore, tenants repository.TenantFinder, fetcher AttachmentFetcher, sender MessageSender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Messages:       messages,
		Tenants:        tenants,
		Fetcher:        fetcher,
		Sender:         sender,
		Logger:         logging.OrNop(logger),
		Now:            time.Now,
		MaxErrorLength: DefaultMaxErrorLength,
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Dispatcher) logger() *zap.Logger {
	return logging.OrNop(d.Logger)
}

// RunCycle attempts every message that is PENDING and due at now. Delivery
// failures are recorded per message; only a failure to write a status
// aborts the cycle.
func (d *Dispatcher) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	var report CycleReport

	due, err := d.Messages.ListDue(ctx, now)
	if err != nil {
		return report, errors.Wrap(err, "select due messages")
	}
	report.Found = len(due)

	if len(due) == 0 {
		d.logIdle(ctx, now)
		return report, nil
	}
	d.logger().Info("found scheduled messages to send", zap.Int("count", len(due)))

	for _, msg := range due {
		status, err := d.DispatchOne(ctx, msg)
		if err != nil {
			return report, err
		}
		switch status {
		case model.StatusSent:
			report.Sent++
		case model.StatusFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	d.logger().Info("dispatch cycle finished",
		zap.Int("found", report.Found),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// logIdle tells "nothing pending" apart from "pending, not due yet".
func (d *Dispatcher) logIdle(ctx context.Context, now time.Time) {
	next, err := d.Messages.NextPendingDueAt(ctx)
	switch {
	case err != nil:
		d.logger().Debug("next due lookup failed", zap.Error(err))
	case next == nil:
		d.logger().Debug("no pending scheduled messages")
	default:
		d.logger().Debug("no scheduled messages due yet",
			zap.Time("next_due_at", *next), zap.Duration("next_due_in", next.Sub(now)))
	}
}

// DispatchOne delivers a single message and writes SENT or FAILED. The
// returned status is PENDING when the row changed underneath us (deleted or
// already terminal) and nothing was written. The error is non-nil only when
// the status write itself failed.
func (d *Dispatcher) DispatchOne(ctx context.Context, msg *model.ScheduledMessage) (model.Status, error) {
	log := d.logger().With(
		zap.String("message_id", msg.ID),
		zap.String("tenant_id", msg.TenantID),
		zap.Int64("conversation_id", msg.ConversationID),
	)
	log.Info("sending scheduled message")

	var (
		status     model.Status
		diagnostic string
		updated    bool
		err        error
	)
	if deliverErr := d.deliver(ctx, msg); deliverErr != nil {
		status = model.StatusFailed
		diagnostic = appErrors.Truncate(deliverErr.Error(), d.maxErrorLength())
		log.Warn("failed to send scheduled message", zap.Error(deliverErr))
		updated, err = d.Messages.MarkFailed(ctx, msg.ID, diagnostic)
	} else {
		status = model.StatusSent
		updated, err = d.Messages.MarkSent(ctx, msg.ID)
	}
	if err != nil {
		log.Error("failed to record status", zap.String("status", string(status)), zap.Error(err))
		return model.StatusPending, errors.Wrapf(err, "record %s for message %s", status, msg.ID)
	}
	if !updated {
		log.Warn("message changed during dispatch, status not recorded", zap.String("status", string(status)))
		return model.StatusPending, nil
	}
	if status == model.StatusSent {
		log.Info("scheduled message sent")
	}

	d.publish(log, model.DispatchEvent{
		MessageID:      msg.ID,
		TenantID:       msg.TenantID,
		ConversationID: msg.ConversationID,
		Status:         status,
		ErrorLog:       diagnostic,
		OccurredAt:     d.now(),
	})
	return status, nil
}

// deliver runs tenant resolution, attachment fetch and the delivery call.
// Any failure, including a panic, comes back as an error.
func (d *Dispatcher) deliver(ctx context.Context, msg *model.ScheduledMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	tenant, err := d.Tenants.FindByID(ctx, msg.TenantID)
	if err != nil {
		return appErrors.NewTransport("resolve tenant", err)
	}
	if tenant == nil {
		return appErrors.NewTenantResolution(msg.TenantID)
	}

	var file *attachment.File
	if msg.HasAttachment() {
		if d.Fetcher == nil {
			return appErrors.NewAttachmentFetch(*msg.AttachmentURL, errors.New("no attachment fetcher configured"))
		}
		file, err = d.Fetcher.Fetch(ctx, *msg.AttachmentURL)
		if err != nil {
			return err
		}
	}

	return d.Sender.Send(ctx, tenant, msg.ConversationID, chatwoot.NewPayload(msg.Content, file))
}

func (d *Dispatcher) publish(log *zap.Logger, ev model.DispatchEvent) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(queue.TopicDispatched, ev); err != nil {
		log.Warn("failed to publish dispatch event", zap.Error(err))
	}
}

func (d *Dispatcher) maxErrorLength() int {
	if d.MaxErrorLength <= 0 {
		return DefaultMaxErrorLength
	}
	return d.MaxErrorLength
}
