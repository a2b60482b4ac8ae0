package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/rewardsledger/internal/infra/clock"
	"github.com/fastprodman/rewardsledger/internal/infra/logging"
	"github.com/fastprodman/rewardsledger/internal/services/campaign"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
	"github.com/fastprodman/rewardsledger/internal/services/moderation"
	"github.com/fastprodman/rewardsledger/internal/services/referral"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	srv *httptest.Server
	clk *clock.Manual
	svc Services
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	clk := clock.NewManual(t0)
	l := ledger.New(clk)
	svc := Services{
		Ledger:     l,
		Moderation: moderation.New(clk),
		Referrals:  referral.New(l, 50, clk),
		Campaigns:  campaign.New(clk),
	}

	srv := httptest.NewServer(NewRouter(svc, logging.Discard()))
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, clk: clk, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequestWithContext(t.Context(), method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, out.Bytes()
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))

	return v
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	code, body := a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestLedgerEndpoints(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	code, body := a.do(t, http.MethodPost, "/accounts/u1/credit", map[string]any{"amount": 100, "reason": "signup bonus"})
	require.Equal(t, http.StatusCreated, code, string(body))

	txn := decode[ledger.Transaction](t, body)
	assert.Equal(t, ledger.KindEarned, txn.Kind)
	assert.Equal(t, int64(100), txn.Balance)

	code, body = a.do(t, http.MethodPost, "/accounts/u1/debit", map[string]any{"amount": 30, "reason": "profile boost"})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = a.do(t, http.MethodPost, "/accounts/u1/debit", map[string]any{"amount": 500, "reason": "too much"})
	assert.Equal(t, http.StatusConflict, code, string(body))

	code, body = a.do(t, http.MethodPost, "/accounts/u1/adjust", map[string]any{"amount": -5, "reason": "correction"})
	require.Equal(t, http.StatusCreated, code, string(body))
	assert.Equal(t, ledger.KindAdminDeducted, decode[ledger.Transaction](t, body).Kind)

	code, body = a.do(t, http.MethodGet, "/accounts/u1/balance", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"accountId":"u1","balance":65}`, string(body))

	code, body = a.do(t, http.MethodGet, "/accounts/u1/transactions?limit=2", nil)
	require.Equal(t, http.StatusOK, code)

	hist := decode[[]ledger.Transaction](t, body)
	require.Len(t, hist, 2)
	assert.Equal(t, "correction", hist[0].Reason)
	assert.Equal(t, "profile boost", hist[1].Reason)

	code, body = a.do(t, http.MethodGet, "/accounts/ghost/transactions", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))

	code, body = a.do(t, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]ledger.Account](t, body), 1)
}

func TestLedgerValidation(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{name: "zero_amount", path: "/accounts/u1/credit", body: map[string]any{"amount": 0, "reason": "x"}, want: http.StatusBadRequest},
		{name: "missing_reason", path: "/accounts/u1/credit", body: map[string]any{"amount": 5}, want: http.StatusBadRequest},
		{name: "debit_kind_on_credit", path: "/accounts/u1/credit", body: map[string]any{"amount": 5, "reason": "x", "kind": "spent"}, want: http.StatusBadRequest},
		{name: "unknown_field", path: "/accounts/u1/credit", body: map[string]any{"amount": 5, "reason": "x", "extra": 1}, want: http.StatusBadRequest},
		{name: "empty_body", path: "/accounts/u1/debit", body: nil, want: http.StatusBadRequest},
		{name: "zero_adjust", path: "/accounts/u1/adjust", body: map[string]any{"amount": 0, "reason": "x"}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := a.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, code, string(body))
		})
	}

	code, _ := a.do(t, http.MethodGet, "/accounts/u1/transactions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(0), a.svc.Ledger.Balance("u1"))
}

func TestModerationEndpoints(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	code, body := a.do(t, http.MethodPost, "/moderation/items", map[string]any{
		"type": "post", "ownerId": "seller-9", "flagReason": "spam", "priority": "high",
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	item := decode[moderation.Item](t, body)
	assert.Equal(t, moderation.StatusPending, item.Status)

	path := "/moderation/items/" + item.ID

	code, body = a.do(t, http.MethodPost, path+"/approve", nil)
	assert.Equal(t, http.StatusBadRequest, code, "approve needs an actor: %s", body)

	code, body = a.do(t, http.MethodPost, path+"/approve", nil, ActorHeader, "mod-1")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "mod-1", decode[moderation.Item](t, body).ModeratorID)

	code, _ = a.do(t, http.MethodPost, path+"/approve", nil, ActorHeader, "mod-1")
	assert.Equal(t, http.StatusConflict, code)

	code, body = a.do(t, http.MethodPost, path+"/reflag", map[string]string{"reason": "scam link"}, ActorHeader, "user-3")
	require.Equal(t, http.StatusOK, code, string(body))

	item = decode[moderation.Item](t, body)
	assert.Equal(t, moderation.StatusPending, item.Status)
	assert.Equal(t, 2, item.ReportCount)

	code, body = a.do(t, http.MethodPost, path+"/reject", map[string]string{"reason": "scam"}, ActorHeader, "mod-2")
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = a.do(t, http.MethodPost, path+"/resolve-flag", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Empty(t, decode[moderation.Item](t, body).FlagReason)

	code, body = a.do(t, http.MethodGet, "/moderation/items?status=rejected", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]moderation.Item](t, body), 1)

	code, _ = a.do(t, http.MethodGet, "/moderation/items?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodGet, "/moderation/items/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestModerationBulk(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	first, err := a.svc.Moderation.Submit(moderation.NewItem{Type: moderation.TypeReview, OwnerID: "o1"})
	require.NoError(t, err)
	second, err := a.svc.Moderation.Submit(moderation.NewItem{Type: moderation.TypeComment, OwnerID: "o2"})
	require.NoError(t, err)

	_, err = a.svc.Moderation.Approve(second.ID, "mod-0")
	require.NoError(t, err)

	code, body := a.do(t, http.MethodPost, "/moderation/bulk", map[string]any{
		"itemIds": []string{first.ID, second.ID, "missing"},
		"action":  "approve",
	}, ActorHeader, "mod-1")
	require.Equal(t, http.StatusOK, code, string(body))

	res := decode[map[string]bulkItemResult](t, body)
	require.Len(t, res, 3)
	require.NotNil(t, res[first.ID].Item)
	assert.Equal(t, moderation.StatusApproved, res[first.ID].Item.Status)
	assert.Nil(t, res[second.ID].Item)
	assert.NotEmpty(t, res[second.ID].Error)
	assert.NotEmpty(t, res["missing"].Error)
}

func TestReferralEndpoints(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	code, body := a.do(t, http.MethodPost, "/referrals", map[string]string{"referrerId": "alice", "referredId": "bob"})
	require.Equal(t, http.StatusCreated, code, string(body))

	ref := decode[referral.Referral](t, body)

	code, _ = a.do(t, http.MethodPost, "/referrals", map[string]string{"referrerId": "carol", "referredId": "bob"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = a.do(t, http.MethodPost, "/referrals", map[string]string{"referrerId": "dan", "referredId": "dan"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/referrals/"+ref.ID+"/payout", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, int64(0), a.svc.Ledger.Balance("alice"))

	code, _ = a.do(t, http.MethodPost, "/referrals/"+ref.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, code)

	code, body = a.do(t, http.MethodPost, "/referrals/"+ref.ID+"/payout", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, referral.StatusPaid, decode[referral.Referral](t, body).Status)
	assert.Equal(t, int64(50), a.svc.Ledger.Balance("alice"))

	code, body = a.do(t, http.MethodGet, "/referrals/top?limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []referral.ReferrerRank{{ReferrerID: "alice", Count: 1}}, decode[[]referral.ReferrerRank](t, body))

	code, body = a.do(t, http.MethodGet, "/referrals?referrerId=alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]referral.Referral](t, body), 1)

	code, _ = a.do(t, http.MethodGet, "/referrals/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCampaignEndpoints(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	code, body := a.do(t, http.MethodPost, "/campaigns", map[string]any{
		"type":       "coupon",
		"start":      t0.Add(time.Hour),
		"end":        t0.Add(48 * time.Hour),
		"usageLimit": 1,
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	c := decode[campaignView](t, body)
	assert.Equal(t, campaign.StatusScheduled, c.Status)

	path := "/campaigns/" + c.ID

	a.clk.Advance(2 * time.Hour)

	code, body = a.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, campaign.StatusActive, decode[campaignView](t, body).Status)

	code, body = a.do(t, http.MethodPost, path+"/usage", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, int64(1), decode[campaignView](t, body).Usage)

	code, _ = a.do(t, http.MethodPost, path+"/usage", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = a.do(t, http.MethodPost, path+"/pause", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, campaign.StatusPaused, decode[campaignView](t, body).Status)

	code, body = a.do(t, http.MethodGet, "/campaigns?status=paused", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]campaignView](t, body), 1)

	code, _ = a.do(t, http.MethodGet, "/campaigns?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(t, http.MethodPost, path+"/resume", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, campaign.StatusActive, decode[campaignView](t, body).Status)

	a.clk.Advance(72 * time.Hour)

	code, body = a.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, campaign.StatusExpired, decode[campaignView](t, body).Status)

	code, _ = a.do(t, http.MethodPost, "/campaigns/none/pause", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodPost, "/campaigns", map[string]any{
		"type": "coupon", "start": t0.Add(time.Hour), "end": t0, "usageLimit": 0,
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusConflict, statusFor(&moderation.TransitionError{ItemID: "i", Action: moderation.ActionArchive, From: moderation.StatusPending}))
	assert.Equal(t, http.StatusNotFound, statusFor(campaign.ErrCampaignNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
