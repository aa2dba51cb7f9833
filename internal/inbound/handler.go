// Package inbound receives practice email replies from the mail provider's
// inbound webhook and applies them to the directory.
package inbound

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/mailparse"
	"github.com/nextvisit/practice-availability/internal/notify"
	"github.com/nextvisit/practice-availability/internal/observability/metrics"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

// Reply is the webhook payload posted by the mail provider for each reply.
type Reply struct {
	From    string            `json:"from"`
	Subject string            `json:"subject"`
	Text    string            `json:"text"`
	Headers map[string]string `json:"headers"`
}

type replyResponse struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

// Handler processes inbound reply webhooks.
type Handler struct {
	repo    directory.Repository
	parser  *mailparse.Parser
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewHandler creates an inbound webhook handler. metrics may be nil.
func NewHandler(repo directory.Repository, parser *mailparse.Parser, m *metrics.Metrics, logger *logging.Logger) *Handler {
	if parser == nil {
		parser = mailparse.New()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:    repo,
		parser:  parser,
		metrics: m,
		logger:  logger.WithComponent("inbound"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleReply handles POST /webhook/email-reply. Unroutable payloads are a
// 400; a routable reply for a practice that no longer exists is acknowledged
// with 200 so the provider does not retry it forever.
func (h *Handler) HandleReply(w http.ResponseWriter, r *http.Request) {
	var reply Reply
	if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	practiceID, specialtyCode, err := routing(reply)
	if err != nil {
		h.metrics.ObserveInbound("unroutable", "rejected")
		h.logger.Warn("inbound reply has no routing information", "from", reply.From)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := h.parser.ParseAt(reply.Text, h.now())
	outcome := string(result.Outcome)

	practice, err := h.repo.GetPractice(r.Context(), practiceID)
	if err != nil {
		if errors.Is(err, directory.ErrPracticeNotFound) {
			h.metrics.ObserveInbound(outcome, "ignored")
			h.logger.Warn("inbound reply for unknown practice", "practice_id", practiceID)
			writeReply(w, replyResponse{Status: "ignored", Outcome: outcome})
			return
		}
		h.metrics.ObserveInbound(outcome, "error")
		h.logger.Error("loading practice for inbound reply", "practice_id", practiceID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.apply(r, practice, specialtyCode, result); err != nil {
		if errors.Is(err, directory.ErrSpecialtyNotFound) {
			// An unknown code is unprocessable, not transient. Acknowledge it
			// so the provider does not retry the same reply forever.
			h.metrics.ObserveInbound(outcome, "ignored")
			h.logger.Warn("inbound reply for unknown specialty, skipping update",
				"practice_id", practiceID, "specialty", specialtyCode)
			h.appendLog(r, practiceID, reply.Text)
			writeReply(w, replyResponse{Status: "ignored", Outcome: outcome})
			return
		}
		h.metrics.ObserveInbound(outcome, "error")
		h.logger.Error("applying inbound reply", "practice_id", practiceID, "outcome", outcome, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.appendLog(r, practiceID, reply.Text)
	h.metrics.ObserveInbound(outcome, "ok")
	h.logger.Info("inbound reply processed",
		"practice_id", practiceID,
		"specialty", specialtyCode,
		"outcome", outcome,
	)
	writeReply(w, replyResponse{Status: "ok", Outcome: outcome})
}

func (h *Handler) apply(r *http.Request, practice *directory.Practice, specialtyCode string, result mailparse.Result) error {
	ctx := r.Context()

	switch result.Outcome {
	case mailparse.OutcomeUnsubscribe:
		return h.repo.Unsubscribe(ctx, practice.ID)

	case mailparse.OutcomeAvailability, mailparse.OutcomeNone:
		specialty, err := h.repo.GetSpecialtyByCode(ctx, specialtyCode)
		if err != nil {
			return err
		}
		_, err = h.repo.UpsertAvailability(ctx, practice.ID, specialty.ID, result.NextAvailable)
		return err

	default:
		// Unknown intent still gets logged for manual follow-up.
		return nil
	}
}

func (h *Handler) appendLog(r *http.Request, practiceID int64, content string) {
	now := h.now()
	entry := &directory.EmailLog{
		ID:              uuid.NewString(),
		PracticeID:      practiceID,
		EmailType:       directory.EmailTypeReplyReceived,
		ResponseContent: content,
		ReceivedAt:      &now,
		CreatedAt:       now,
	}
	if err := h.repo.AppendEmailLog(r.Context(), entry); err != nil {
		h.logger.Error("appending reply email log failed", "practice_id", practiceID, "error", err)
	}
}

// routing resolves the practice and specialty a reply belongs to, preferring
// the echoed headers and falling back to the labeled lines in the quoted
// body.
func routing(reply Reply) (int64, string, error) {
	practiceID, haveID := headerPracticeID(reply.Headers)
	if !haveID {
		practiceID, haveID = mailparse.ExtractPracticeID(reply.Text)
	}

	specialtyCode := reply.Headers[notify.HeaderSpecialtyCode]
	if specialtyCode == "" {
		specialtyCode, _ = mailparse.ExtractSpecialtyCode(reply.Text)
	}

	if !haveID || specialtyCode == "" {
		return 0, "", mailparse.ErrNoRouting
	}
	return practiceID, specialtyCode, nil
}

func headerPracticeID(headers map[string]string) (int64, bool) {
	raw := headers[notify.HeaderPracticeID]
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func writeReply(w http.ResponseWriter, resp replyResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
