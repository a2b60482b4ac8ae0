package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/fastprodman/rewardsledger/internal/services/campaign"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
	"github.com/fastprodman/rewardsledger/internal/services/moderation"
	"github.com/fastprodman/rewardsledger/internal/services/referral"
)

// ActorHeader names the account performing moderation actions.
const ActorHeader = "X-Actor-ID"

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Services are the components the HTTP API drives.
type Services struct {
	Ledger     *ledger.Ledger
	Moderation *moderation.Workflow
	Referrals  *referral.Engine
	Campaigns  *campaign.Scheduler
}

// HandlerProvider exposes Services as HTTP handlers.
type HandlerProvider struct {
	svc    Services
	logger *slog.Logger
}

func NewHandler(svc Services, logger *slog.Logger) *HandlerProvider {
	if logger == nil {
		logger = slog.Default()
	}

	return &HandlerProvider{svc: svc, logger: logger}
}

// --- Helpers ---

func (h *HandlerProvider) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		// Headers are already out; nothing left to tell the client.
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *HandlerProvider) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error to a response. Client errors echo the message;
// anything unexpected is logged and hidden.
func (h *HandlerProvider) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, status, "internal error")

		return
	}

	h.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidKind),
		errors.Is(err, ledger.ErrInvalidRequest),
		errors.Is(err, moderation.ErrInvalidRequest),
		errors.Is(err, referral.ErrInvalidRequest),
		errors.Is(err, referral.ErrSelfReferral),
		errors.Is(err, campaign.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, moderation.ErrItemNotFound),
		errors.Is(err, referral.ErrReferralNotFound),
		errors.Is(err, campaign.ErrCampaignNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, moderation.ErrInvalidTransition),
		errors.Is(err, referral.ErrInvalidTransition),
		errors.Is(err, referral.ErrDuplicateReferral),
		errors.Is(err, campaign.ErrUsageLimitExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object from the body, rejecting unknown
// fields. An empty body is accepted only when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}

			return fmt.Errorf("empty body: %w", errBadRequest)
		}

		return fmt.Errorf("invalid JSON: %w", errBadRequest)
	}

	return nil
}

// parseLimit reads ?limit=, returning def when absent.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q: %w", raw, errBadRequest)
	}

	return n, nil
}

func actorFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}
