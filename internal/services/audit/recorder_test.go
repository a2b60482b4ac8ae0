package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fastprodman/rewardsledger/internal/infra/logging"
	"github.com/fastprodman/rewardsledger/internal/repos/accounts"
	"github.com/fastprodman/rewardsledger/internal/repos/transactions"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

var errJournalDown = errors.New("journal down")

// memJournal mirrors PostgresJournal's checks in memory.
type memJournal struct {
	mu       sync.Mutex
	txns     []ledger.Transaction
	seen     map[string]bool
	balances map[string]int64
	failures int
}

func newMemJournal() *memJournal {
	return &memJournal{seen: map[string]bool{}, balances: map[string]int64{}}
}

func (m *memJournal) Append(_ context.Context, txn ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures > 0 {
		m.failures--
		return errJournalDown
	}

	if m.seen[txn.ID] {
		return transactions.ErrDuplicateTransaction
	}

	if m.balances[txn.AccountID]+txn.Amount != txn.Balance {
		return fmt.Errorf("append %s: %w", txn.ID, ErrBalanceMismatch)
	}

	m.seen[txn.ID] = true
	m.balances[txn.AccountID] = txn.Balance
	m.txns = append(m.txns, txn)

	return nil
}

func (m *memJournal) Load(context.Context) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]ledger.Transaction(nil), m.txns...), nil
}

func (m *memJournal) JournaledBalance(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.balances[accountID]
	if !ok {
		return 0, accounts.ErrAccountNotFound
	}

	return b, nil
}

func (m *memJournal) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.txns)
}

func TestRecorder_RunJournalsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	j := newMemJournal()
	rec := NewRecorder(j, 10*time.Millisecond, logging.Discard())

	l := ledger.New(nil)
	l.Subscribe(rec.Observe)

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	for i := range 20 {
		_, err := l.Credit(fmt.Sprintf("u%d", i%3), 5, "daily login", ledger.KindEarned)
		require.NoError(t, err)
	}

	_, err := l.Debit("u0", 3, "sticker pack", ledger.KindSpent)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return j.len() == 21 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	txns, err := j.Load(t.Context())
	require.NoError(t, err)

	for i := 1; i < len(txns); i++ {
		assert.Less(t, txns[i-1].Seq, txns[i].Seq)
	}

	for _, acct := range l.Accounts() {
		b, err := j.JournaledBalance(t.Context(), acct.ID)
		require.NoError(t, err)
		assert.Equal(t, acct.Balance, b)
	}
}

func TestRecorder_RetriesAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	j := newMemJournal()
	j.failures = 2

	rec := NewRecorder(j, 5*time.Millisecond, logging.Discard())

	l := ledger.New(nil)
	l.Subscribe(rec.Observe)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	_, err := l.Credit("u1", 10, "answer accepted", ledger.KindEarned)
	require.NoError(t, err)
	_, err = l.Credit("u1", 10, "answer accepted", ledger.KindEarned)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return j.len() == 2 && rec.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRecorder_FlushKeepsFailedTail(t *testing.T) {
	j := newMemJournal()
	rec := NewRecorder(j, time.Second, logging.Discard())

	l := ledger.New(nil)
	l.Subscribe(rec.Observe)

	for range 3 {
		_, err := l.Credit("u1", 1, "vote", ledger.KindEarned)
		require.NoError(t, err)
	}

	j.failures = 1
	require.ErrorIs(t, rec.Flush(t.Context()), errJournalDown)
	assert.Equal(t, 3, rec.Pending())
	assert.Equal(t, 0, j.len())

	require.NoError(t, rec.Flush(t.Context()))
	assert.Equal(t, 0, rec.Pending())
	assert.Equal(t, 3, j.len())
}

func TestRecorder_SkipsDuplicatesAndMismatches(t *testing.T) {
	j := newMemJournal()
	rec := NewRecorder(j, time.Second, logging.Discard())

	ok := ledger.Transaction{ID: "t1", Seq: 1, AccountID: "u1", Kind: ledger.KindEarned, Amount: 5, Balance: 5}
	bad := ledger.Transaction{ID: "t2", Seq: 2, AccountID: "u1", Kind: ledger.KindEarned, Amount: 5, Balance: 50}
	// Continuous with the ledger (50 -> 55) but not with the journal (5).
	after := ledger.Transaction{ID: "t3", Seq: 3, AccountID: "u1", Kind: ledger.KindEarned, Amount: 5, Balance: 55}
	other := ledger.Transaction{ID: "t4", Seq: 4, AccountID: "u2", Kind: ledger.KindEarned, Amount: 7, Balance: 7}

	rec.Observe(ledger.TransactionRecorded{Transaction: ok})
	rec.Observe(ledger.TransactionRecorded{Transaction: ok})
	rec.Observe(ledger.TransactionRecorded{Transaction: bad})
	rec.Observe(ledger.TransactionRecorded{Transaction: after})
	rec.Observe(ledger.TransactionRecorded{Transaction: other})

	require.NoError(t, rec.Flush(t.Context()))
	assert.Equal(t, 0, rec.Pending())
	assert.Equal(t, 2, j.len())
	assert.Equal(t, []string{"u1"}, rec.Diverged())

	// Even an entry that happens to line up with the journal stays out once
	// the account diverged.
	lucky := ledger.Transaction{ID: "t5", Seq: 5, AccountID: "u1", Kind: ledger.KindEarned, Amount: 5, Balance: 10}
	rec.Observe(ledger.TransactionRecorded{Transaction: lucky})

	require.NoError(t, rec.Flush(t.Context()))
	assert.Equal(t, 2, j.len())
	assert.Equal(t, []string{"u1"}, rec.Diverged())
}

func TestReplay(t *testing.T) {
	j := newMemJournal()
	rec := NewRecorder(j, time.Second, logging.Discard())

	src := ledger.New(nil)
	src.Subscribe(rec.Observe)

	_, err := src.Credit("seller-1", 300, "sale", ledger.KindEarned)
	require.NoError(t, err)
	_, err = src.Debit("seller-1", 100, "payout fee", ledger.KindSpent)
	require.NoError(t, err)
	_, err = src.Adjust("buyer-2", 40, "goodwill")
	require.NoError(t, err)
	require.NoError(t, rec.Flush(t.Context()))

	dst := ledger.New(nil)
	n, err := Replay(t.Context(), j, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, src.Accounts(), dst.Accounts())

	j.balances["buyer-2"] = 41

	_, err = Replay(t.Context(), j, ledger.New(nil))
	require.ErrorIs(t, err, ErrBalanceMismatch)
}
