package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/rewardsledger/internal/infra/clock"
	"github.com/fastprodman/rewardsledger/internal/infra/logging"
	"github.com/fastprodman/rewardsledger/internal/infra/pgtestutil"
	"github.com/fastprodman/rewardsledger/internal/repos/accounts"
	"github.com/fastprodman/rewardsledger/internal/repos/transactions"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

func TestPostgresJournal_AppendAndReplay(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	j := NewPostgresJournal(db)

	clk := clock.NewManual(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	src := ledger.New(clk)
	rec := NewRecorder(j, time.Second, logging.Discard())
	src.Subscribe(rec.Observe)

	_, err := src.Credit("seller-1", 300, "sale", ledger.KindEarned)
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = src.Debit("seller-1", 120, "boost listing", ledger.KindSpent)
	require.NoError(t, err)
	clk.Advance(time.Minute)
	first, err := src.Credit("student-7", 15, "quiz passed", ledger.KindEarned)
	require.NoError(t, err)

	require.NoError(t, rec.Flush(t.Context()))
	assert.Equal(t, 0, rec.Pending())

	b, err := j.JournaledBalance(t.Context(), "seller-1")
	require.NoError(t, err)
	assert.Equal(t, int64(180), b)

	_, err = j.JournaledBalance(t.Context(), "ghost")
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)

	err = j.Append(t.Context(), first)
	require.ErrorIs(t, err, transactions.ErrDuplicateTransaction)

	dst := ledger.New(clk)
	n, err := Replay(t.Context(), j, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, src.Accounts(), dst.Accounts())

	var got []ledger.Transaction
	for txn := range dst.History("seller-1", 0) {
		got = append(got, txn)
	}

	var want []ledger.Transaction
	for txn := range src.History("seller-1", 0) {
		want = append(want, txn)
	}

	assert.Equal(t, want, got)
}

func TestPostgresJournal_RejectsGap(t *testing.T) {
	t.Parallel()

	db := pgtestutil.NewTestDB(t)
	j := NewPostgresJournal(db)

	gap := ledger.Transaction{
		ID:        "gap",
		Seq:       1,
		AccountID: "u1",
		Kind:      ledger.KindEarned,
		Amount:    10,
		Reason:    "vote",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Balance:   25,
	}

	err := j.Append(t.Context(), gap)
	require.ErrorIs(t, err, ErrBalanceMismatch)

	_, err = j.JournaledBalance(t.Context(), "u1")
	require.ErrorIs(t, err, accounts.ErrAccountNotFound, "a rejected append must roll back")
}
