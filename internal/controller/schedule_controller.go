// internal/controller/schedule_controller.go
package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
	"github.com/unclebandit/message-scheduler/internal/logging"
	"github.com/unclebandit/message-scheduler/internal/model"
	"github.com/unclebandit/message-scheduler/internal/service"
)

type ScheduleController struct {
	ScheduleService *service.ScheduleService
	Logger          *zap.Logger
}

// Register mounts the scheduling routes under /api/schedule.
func (c *ScheduleController) Register(r chi.Router) {
	r.Route("/api/schedule", func(r chi.Router) {
		r.Post("/", c.CreateSchedule)
		r.Get("/", c.ListSchedules)
		r.Patch("/{id}", c.UpdateSchedule)
		r.Delete("/{id}", c.DeleteSchedule)
	})
}

// flexInt accepts a JSON number or a numeric string; the host page sends
// ids both ways.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
		if len(b) == 0 {
			*f = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func (c *ScheduleController) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message        string  `json:"message"`
		ScheduledAt    string  `json:"scheduledAt"`
		ConversationID flexInt `json:"conversationId"`
		AccountID      flexInt `json:"accountId"`
		ChatwootURL    string  `json:"chatwootUrl"`
		Token          string  `json:"token"`
		Client         string  `json:"client"`
		UID            string  `json:"uid"`
		AttachmentURL  string  `json:"attachmentUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if body.Message == "" || body.ScheduledAt == "" || body.ConversationID == 0 || body.ChatwootURL == "" || body.Token == "" {
		writeError(w, http.StatusBadRequest, "incomplete payload: message, scheduledAt, conversationId, chatwootUrl and token are required")
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "scheduledAt must be an RFC3339 timestamp")
		return
	}

	msg, err := c.ScheduleService.CreateSchedule(r.Context(), service.CreateScheduleInput{
		Content:        body.Message,
		ScheduledAt:    scheduledAt,
		ConversationID: int64(body.ConversationID),
		AttachmentURL:  strings.TrimSpace(body.AttachmentURL),
		Tenant: model.TenantCredentials{
			EndpointURL: body.ChatwootURL,
			AccessToken: body.Token,
			ClientID:    body.Client,
			UID:         body.UID,
			AccountID:   int64(body.AccountID),
		},
	})
	if err != nil {
		c.fail(w, "create schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": msg})
}

func (c *ScheduleController) ListSchedules(w http.ResponseWriter, r *http.Request) {
	conversationID, err := strconv.ParseInt(r.URL.Query().Get("conversationId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	msgs, err := c.ScheduleService.ListByConversation(r.Context(), conversationID, r.URL.Query().Get("chatwootUrl"))
	if err != nil {
		c.fail(w, "list schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": msgs})
}

func (c *ScheduleController) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Message     *string `json:"message"`
		ScheduledAt *string `json:"scheduledAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	in := service.UpdateScheduleInput{Content: body.Message}
	if body.ScheduledAt != nil && *body.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, *body.ScheduledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scheduledAt must be an RFC3339 timestamp")
			return
		}
		in.ScheduledAt = &t
	}

	msg, err := c.ScheduleService.UpdateSchedule(r.Context(), id, in)
	if err != nil {
		c.fail(w, "update schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": msg})
}

func (c *ScheduleController) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.ScheduleService.DeleteSchedule(r.Context(), id); err != nil {
		c.fail(w, "delete schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Deleted"})
}

// fail maps service errors onto status codes. Unknown errors are logged and
// hidden behind a generic 500.
func (c *ScheduleController) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case appErrors.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case appErrors.IsNotPending(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.OrNop(c.Logger).Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
