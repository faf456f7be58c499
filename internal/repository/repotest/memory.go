// Package repotest holds in-memory repositories for tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
	"github.com/unclebandit/message-scheduler/internal/model"
	"github.com/unclebandit/message-scheduler/internal/repository"
)

// Tenants stores tenants by id.
type Tenants struct {
	mu      sync.Mutex
	rows    map[string]*model.Tenant
	Lookups int
	// Err, when set, fails FindByID and FindByEndpoint.
	Err error
}

func NewTenants(tenants ...*model.Tenant) *Tenants {
	t := &Tenants{rows: map[string]*model.Tenant{}}
	for _, tn := range tenants {
		t.rows[tn.ID] = tn
	}
	return t
}

func (t *Tenants) FindByID(_ context.Context, id string) (*model.Tenant, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Lookups++
	if t.Err != nil {
		return nil, t.Err
	}
	tn, ok := t.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *tn
	return &cp, nil
}

func (t *Tenants) FindByEndpoint(_ context.Context, endpointURL string) (*model.Tenant, error) {
	key, err := model.NormalizeEndpointURL(endpointURL)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return nil, t.Err
	}
	for _, tn := range t.rows {
		if tn.EndpointURL == key {
			cp := *tn
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *Tenants) Upsert(_ context.Context, creds model.TenantCredentials) (*model.Tenant, error) {
	key, err := model.NormalizeEndpointURL(creds.EndpointURL)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for _, tn := range t.rows {
		if tn.EndpointURL == key {
			tn.AccessToken = creds.AccessToken
			tn.ClientID = creds.ClientID
			tn.UID = creds.UID
			tn.AccountID = creds.AccountID
			tn.UpdatedAt = now
			cp := *tn
			return &cp, nil
		}
	}
	tn := &model.Tenant{
		ID:          uuid.NewString(),
		EndpointURL: key,
		AccessToken: creds.AccessToken,
		ClientID:    creds.ClientID,
		UID:         creds.UID,
		AccountID:   creds.AccountID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.rows[tn.ID] = tn
	cp := *tn
	return &cp, nil
}

func (t *Tenants) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Messages is a work queue kept in a map.
type Messages struct {
	mu   sync.Mutex
	rows map[string]*model.ScheduledMessage

	// WriteErr, when set, fails MarkSent and MarkFailed.
	WriteErr error
	// BeforeMark runs before each terminal write, outside the lock.
	BeforeMark func(id string)
}

func NewMessages(msgs ...*model.ScheduledMessage) *Messages {
	m := &Messages{rows: map[string]*model.ScheduledMessage{}}
	for _, msg := range msgs {
		m.rows[msg.ID] = msg
	}
	return m
}

// Get returns a copy of the stored row, or nil.
func (m *Messages) Get(id string) *model.ScheduledMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.rows[id]
	if !ok {
		return nil
	}
	return clone(msg)
}

func (m *Messages) Put(msg *model.ScheduledMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[msg.ID] = clone(msg)
}

func (m *Messages) Create(_ context.Context, msg *model.ScheduledMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = model.StatusPending
	}
	now := time.Now()
	msg.CreatedAt, msg.UpdatedAt = now, now
	m.rows[msg.ID] = clone(msg)
	return nil
}

func (m *Messages) GetByID(_ context.Context, id string) (*model.ScheduledMessage, error) {
	if msg := m.Get(id); msg != nil {
		return msg, nil
	}
	return nil, appErrors.NewScheduledMessageNotFound(id)
}

func (m *Messages) ListByConversation(_ context.Context, conversationID int64, tenantID string) ([]*model.ScheduledMessage, error) {
	return m.filter(func(msg *model.ScheduledMessage) bool {
		return msg.ConversationID == conversationID && (tenantID == "" || msg.TenantID == tenantID)
	}), nil
}

func (m *Messages) UpdatePending(_ context.Context, id string, content *string, scheduledAt *time.Time) (*model.ScheduledMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.rows[id]
	if !ok {
		return nil, appErrors.NewScheduledMessageNotFound(id)
	}
	if msg.Status != model.StatusPending {
		return nil, appErrors.NewNotPending(id, string(msg.Status))
	}
	if content != nil {
		msg.Content = *content
	}
	if scheduledAt != nil {
		msg.ScheduledAt = scheduledAt.UTC()
	}
	msg.UpdatedAt = time.Now()
	return clone(msg), nil
}

func (m *Messages) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return appErrors.NewScheduledMessageNotFound(id)
	}
	delete(m.rows, id)
	return nil
}

func (m *Messages) CountByStatus(_ context.Context) (map[model.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.Status]int{model.StatusPending: 0, model.StatusSent: 0, model.StatusFailed: 0}
	for _, msg := range m.rows {
		out[msg.Status]++
	}
	return out, nil
}

func (m *Messages) ListDue(_ context.Context, now time.Time) ([]*model.ScheduledMessage, error) {
	return m.filter(func(msg *model.ScheduledMessage) bool { return msg.Due(now) }), nil
}

func (m *Messages) NextPendingDueAt(_ context.Context) (*time.Time, error) {
	pending := m.filter(func(msg *model.ScheduledMessage) bool { return msg.Status == model.StatusPending })
	if len(pending) == 0 {
		return nil, nil
	}
	next := pending[0].ScheduledAt
	return &next, nil
}

func (m *Messages) MarkSent(_ context.Context, id string) (bool, error) {
	return m.mark(id, model.StatusSent, nil)
}

func (m *Messages) MarkFailed(_ context.Context, id, diagnostic string) (bool, error) {
	return m.mark(id, model.StatusFailed, &diagnostic)
}

func (m *Messages) mark(id string, status model.Status, diagnostic *string) (bool, error) {
	if m.BeforeMark != nil {
		m.BeforeMark(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return false, m.WriteErr
	}
	msg, ok := m.rows[id]
	if !ok || msg.Status != model.StatusPending {
		return false, nil
	}
	msg.Status = status
	msg.ErrorLog = diagnostic
	msg.UpdatedAt = time.Now()
	return true, nil
}

// filter returns copies ordered by due time.
func (m *Messages) filter(keep func(*model.ScheduledMessage) bool) []*model.ScheduledMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.ScheduledMessage{}
	for _, msg := range m.rows {
		if keep(msg) {
			out = append(out, clone(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func clone(msg *model.ScheduledMessage) *model.ScheduledMessage {
	cp := *msg
	if msg.AttachmentURL != nil {
		v := *msg.AttachmentURL
		cp.AttachmentURL = &v
	}
	if msg.ErrorLog != nil {
		v := *msg.ErrorLog
		cp.ErrorLog = &v
	}
	return &cp
}

var (
	_ repository.TenantRepositoryInterface           = (*Tenants)(nil)
	_ repository.ScheduledMessageRepositoryInterface = (*Messages)(nil)
)
