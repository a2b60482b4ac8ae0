package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fastprodman/rewardsledger/internal/services/moderation"
)

// NewRouter wires every API endpoint onto a chi router.
func NewRouter(svc Services, logger *slog.Logger) http.Handler {
	h := NewHandler(svc, logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.ListAccountsHandler)
		r.Get("/{accountId}/balance", h.GetBalanceHandler)
		r.Get("/{accountId}/transactions", h.HistoryHandler)
		r.Post("/{accountId}/credit", h.CreditHandler)
		r.Post("/{accountId}/debit", h.DebitHandler)
		r.Post("/{accountId}/adjust", h.AdjustHandler)
	})

	r.Route("/moderation", func(r chi.Router) {
		r.Post("/items", h.SubmitItemHandler)
		r.Get("/items", h.ListItemsHandler)
		r.Get("/items/{itemId}", h.GetItemHandler)
		r.Post("/items/{itemId}/approve", h.ItemActionHandler(moderation.ActionApprove))
		r.Post("/items/{itemId}/reject", h.ItemActionHandler(moderation.ActionReject))
		r.Post("/items/{itemId}/archive", h.ItemActionHandler(moderation.ActionArchive))
		r.Post("/items/{itemId}/reflag", h.ItemActionHandler(moderation.ActionReflag))
		r.Post("/items/{itemId}/resolve-flag", h.ResolveFlagHandler)
		r.Post("/bulk", h.BulkActionHandler)
	})

	r.Route("/referrals", func(r chi.Router) {
		r.Post("/", h.AttributeHandler)
		r.Get("/", h.ListReferralsHandler)
		r.Get("/top", h.TopReferrersHandler)
		r.Get("/{referralId}", h.GetReferralHandler)
		r.Post("/{referralId}/complete", h.CompleteReferralHandler)
		r.Post("/{referralId}/payout", h.PayoutReferralHandler)
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.CreateCampaignHandler)
		r.Get("/", h.ListCampaignsHandler)
		r.Get("/{campaignId}", h.GetCampaignHandler)
		r.Post("/{campaignId}/pause", h.PauseCampaignHandler)
		r.Post("/{campaignId}/resume", h.ResumeCampaignHandler)
		r.Post("/{campaignId}/usage", h.RecordUsageHandler)
	})

	return r
}
