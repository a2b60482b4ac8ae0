package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/rewardsledger/internal/infra/metrics"
	"github.com/fastprodman/rewardsledger/internal/services/campaign"
)

type createCampaignRequest struct {
	Type       campaign.Type `json:"type"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	UsageLimit int64         `json:"usageLimit"`
}

// campaignView is a campaign plus its status at response time.
type campaignView struct {
	campaign.Campaign
	Status campaign.Status `json:"status"`
}

func (h *HandlerProvider) view(c campaign.Campaign) campaignView {
	return campaignView{Campaign: c, Status: campaign.StatusOf(c, h.svc.Campaigns.Now())}
}

// CreateCampaignHandler handles POST /campaigns
func (h *HandlerProvider) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest

	err := decodeJSON(w, r, &req, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.svc.Campaigns.Create(req.Type, campaign.Window{Start: req.Start, End: req.End}, req.UsageLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, h.view(c))
}

// ListCampaignsHandler handles GET /campaigns?status=active
func (h *HandlerProvider) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Campaigns.List(campaign.Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]campaignView, 0, len(list))
	for _, c := range list {
		out = append(out, h.view(c))
	}

	h.writeJSON(w, http.StatusOK, out)
}

// GetCampaignHandler handles GET /campaigns/{campaignId}
func (h *HandlerProvider) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Campaigns.Get(chi.URLParam(r, "campaignId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(c))
}

// PauseCampaignHandler handles POST /campaigns/{campaignId}/pause
func (h *HandlerProvider) PauseCampaignHandler(w http.ResponseWriter, r *http.Request) {
	h.respondCampaign(w, r, h.svc.Campaigns.Pause)
}

// ResumeCampaignHandler handles POST /campaigns/{campaignId}/resume
func (h *HandlerProvider) ResumeCampaignHandler(w http.ResponseWriter, r *http.Request) {
	h.respondCampaign(w, r, h.svc.Campaigns.Resume)
}

// RecordUsageHandler handles POST /campaigns/{campaignId}/usage
func (h *HandlerProvider) RecordUsageHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignId")

	c, err := h.svc.Campaigns.RecordUsage(id)

	typ := string(c.Type)
	if err != nil {
		// The failed call returns no campaign; look the type up for the label.
		prev, gerr := h.svc.Campaigns.Get(id)
		typ = string(prev.Type)

		if gerr != nil {
			typ = "unknown"
		}
	}

	metrics.CampaignUsage.WithLabelValues(typ, metrics.Result(err)).Inc()

	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(c))
}

func (h *HandlerProvider) respondCampaign(w http.ResponseWriter, r *http.Request, op func(string) (campaign.Campaign, error)) {
	c, err := op(chi.URLParam(r, "campaignId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(c))
}
