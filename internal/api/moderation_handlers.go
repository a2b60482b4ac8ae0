package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/rewardsledger/internal/infra/metrics"
	"github.com/fastprodman/rewardsledger/internal/services/moderation"
)

type submitItemRequest struct {
	Type       moderation.ItemType `json:"type"`
	OwnerID    string              `json:"ownerId"`
	FlagReason string              `json:"flagReason"`
	Priority   moderation.Priority `json:"priority"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type bulkRequest struct {
	ItemIDs []string          `json:"itemIds"`
	Action  moderation.Action `json:"action"`
	Reason  string            `json:"reason"`
}

type bulkItemResult struct {
	Item  *moderation.Item `json:"item,omitempty"`
	Error string           `json:"error,omitempty"`
}

// SubmitItemHandler handles POST /moderation/items
func (h *HandlerProvider) SubmitItemHandler(w http.ResponseWriter, r *http.Request) {
	var req submitItemRequest

	err := decodeJSON(w, r, &req, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	item, err := h.svc.Moderation.Submit(moderation.NewItem{
		Type:       req.Type,
		OwnerID:    req.OwnerID,
		FlagReason: req.FlagReason,
		Priority:   req.Priority,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, item)
}

// ListItemsHandler handles GET /moderation/items?status=pending
func (h *HandlerProvider) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Moderation.List(moderation.Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

// GetItemHandler handles GET /moderation/items/{itemId}
func (h *HandlerProvider) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Moderation.Get(chi.URLParam(r, "itemId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// ItemActionHandler returns the handler for POST
// /moderation/items/{itemId}/<action>. The actor comes from X-Actor-ID and
// the optional body carries a reason.
func (h *HandlerProvider) ItemActionHandler(action moderation.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest

		err := decodeJSON(w, r, &req, true)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		item, err := h.svc.Moderation.Apply(chi.URLParam(r, "itemId"), action, actorFrom(r), req.Reason)
		metrics.ModerationActions.WithLabelValues(string(action), metrics.Result(err)).Inc()

		if err != nil {
			h.fail(w, r, err)
			return
		}

		h.writeJSON(w, http.StatusOK, item)
	}
}

// ResolveFlagHandler handles POST /moderation/items/{itemId}/resolve-flag
func (h *HandlerProvider) ResolveFlagHandler(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Moderation.ResolveFlag(chi.URLParam(r, "itemId"))
	metrics.ModerationActions.WithLabelValues("resolve-flag", metrics.Result(err)).Inc()

	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// BulkActionHandler handles POST /moderation/bulk. It always answers 200;
// failures are reported per item.
func (h *HandlerProvider) BulkActionHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest

	err := decodeJSON(w, r, &req, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	results := h.svc.Moderation.BulkApply(req.ItemIDs, req.Action, actorFrom(r), req.Reason)

	out := make(map[string]bulkItemResult, len(results))
	for id, res := range results {
		metrics.ModerationActions.WithLabelValues(string(req.Action), metrics.Result(res.Err)).Inc()

		if res.Err != nil {
			if statusFor(res.Err) == http.StatusInternalServerError {
				h.logger.Error("bulk moderation item failed", "item_id", id, "error", res.Err)
			}

			out[id] = bulkItemResult{Error: res.Err.Error()}

			continue
		}

		item := res.Item
		out[id] = bulkItemResult{Item: &item}
	}

	h.writeJSON(w, http.StatusOK, out)
}
