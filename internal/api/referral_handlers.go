package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/rewardsledger/internal/infra/metrics"
	"github.com/fastprodman/rewardsledger/internal/services/referral"
)

const defaultTopReferrers = 10

type attributeRequest struct {
	ReferrerID string `json:"referrerId"`
	ReferredID string `json:"referredId"`
}

// AttributeHandler handles POST /referrals
func (h *HandlerProvider) AttributeHandler(w http.ResponseWriter, r *http.Request) {
	var req attributeRequest

	err := decodeJSON(w, r, &req, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ref, err := h.svc.Referrals.Attribute(req.ReferrerID, req.ReferredID)
	metrics.ReferralEvents.WithLabelValues("attribute", metrics.Result(err)).Inc()

	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, ref)
}

// ListReferralsHandler handles GET /referrals?referrerId=
func (h *HandlerProvider) ListReferralsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Referrals.List(r.URL.Query().Get("referrerId")))
}

// GetReferralHandler handles GET /referrals/{referralId}
func (h *HandlerProvider) GetReferralHandler(w http.ResponseWriter, r *http.Request) {
	ref, err := h.svc.Referrals.Get(chi.URLParam(r, "referralId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ref)
}

// CompleteReferralHandler handles POST /referrals/{referralId}/complete
func (h *HandlerProvider) CompleteReferralHandler(w http.ResponseWriter, r *http.Request) {
	ref, err := h.svc.Referrals.MarkCompleted(chi.URLParam(r, "referralId"))
	metrics.ReferralEvents.WithLabelValues("complete", metrics.Result(err)).Inc()

	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ref)
}

// PayoutReferralHandler handles POST /referrals/{referralId}/payout
func (h *HandlerProvider) PayoutReferralHandler(w http.ResponseWriter, r *http.Request) {
	ref, err := h.svc.Referrals.Payout(chi.URLParam(r, "referralId"))
	metrics.ReferralEvents.WithLabelValues("payout", metrics.Result(err)).Inc()

	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ref)
}

// TopReferrersHandler handles GET /referrals/top?limit=N
func (h *HandlerProvider) TopReferrersHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultTopReferrers)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]referral.ReferrerRank, 0, limit)
	for rank := range h.svc.Referrals.TopReferrers(limit) {
		out = append(out, rank)
	}

	h.writeJSON(w, http.StatusOK, out)
}
