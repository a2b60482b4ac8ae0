package ledger

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fastprodman/rewardsledger/internal/infra/clock"
)

type account struct {
	balance int64
	log     []Transaction
}

// Ledger holds authoritative coin balances and the append-only log that
// produced them. All methods are safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	clock    clock.Clock
	accounts map[string]*account
	seq      uint64
	handlers []func(TransactionRecorded)
	newID    func() string
}

func New(c clock.Clock) *Ledger {
	return &Ledger{
		clock:    clock.OrReal(c),
		accounts: make(map[string]*account),
		newID:    uuid.NewString,
	}
}

// Subscribe registers h to receive every TransactionRecorded event.
// Handlers run synchronously, in log order, while the ledger is locked,
// so they must not call back into the Ledger.
func (l *Ledger) Subscribe(h func(TransactionRecorded)) {
	if h == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.handlers = append(l.handlers, h)
}

// Credit appends a positive entry. Credits never fail for balance reasons.
func (l *Ledger) Credit(accountID string, amount int64, reason string, kind Kind) (Transaction, error) {
	if !kind.IsCredit() {
		return Transaction{}, fmt.Errorf("credit with kind %q: %w", kind, ErrInvalidKind)
	}

	if amount <= 0 {
		return Transaction{}, fmt.Errorf("credit %d: %w", amount, ErrInvalidAmount)
	}

	return l.apply(accountID, amount, reason, kind)
}

// Debit appends a negative entry, or fails with ErrInsufficientBalance
// leaving the account untouched.
func (l *Ledger) Debit(accountID string, amount int64, reason string, kind Kind) (Transaction, error) {
	if !kind.IsDebit() {
		return Transaction{}, fmt.Errorf("debit with kind %q: %w", kind, ErrInvalidKind)
	}

	if amount <= 0 {
		return Transaction{}, fmt.Errorf("debit %d: %w", amount, ErrInvalidAmount)
	}

	return l.apply(accountID, -amount, reason, kind)
}

// Adjust is the administrative entry point: positive amounts are recorded
// as admin-added credits, negative ones as admin-deducted debits.
func (l *Ledger) Adjust(accountID string, signedAmount int64, reason string) (Transaction, error) {
	switch {
	case signedAmount > 0:
		return l.Credit(accountID, signedAmount, reason, KindAdminAdded)
	case signedAmount < 0:
		return l.Debit(accountID, -signedAmount, reason, KindAdminDeducted)
	default:
		return Transaction{}, fmt.Errorf("adjust by zero: %w", ErrInvalidAmount)
	}
}

func (l *Ledger) apply(accountID string, delta int64, reason string, kind Kind) (Transaction, error) {
	accountID = normalizeID(accountID)
	reason = strings.TrimSpace(reason)

	if accountID == "" || reason == "" {
		return Transaction{}, ErrInvalidRequest
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.accounts[accountID]

	var current int64
	if acct != nil {
		current = acct.balance
	}

	if delta > 0 && current > math.MaxInt64-delta {
		return Transaction{}, fmt.Errorf("account %s balance %d, credit %d overflows: %w",
			accountID, current, delta, ErrInvalidAmount)
	}

	if current+delta < 0 {
		return Transaction{}, fmt.Errorf("account %s balance %d, debit %d: %w",
			accountID, current, -delta, ErrInsufficientBalance)
	}

	if acct == nil {
		acct = &account{}
		l.accounts[accountID] = acct
	}

	l.seq++

	txn := Transaction{
		ID:        l.newID(),
		Seq:       l.seq,
		AccountID: accountID,
		Kind:      kind,
		Amount:    delta,
		Reason:    reason,
		CreatedAt: l.clock.Now(),
		Balance:   current + delta,
	}

	acct.balance = txn.Balance
	acct.log = append(acct.log, txn)

	ev := TransactionRecorded{Transaction: txn}
	for _, h := range l.handlers {
		h(ev)
	}

	return txn, nil
}

// normalizeID is applied on every path that stores or looks up an account.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// Balance returns the current balance, 0 for accounts never seen.
func (l *Ledger) Balance(accountID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct := l.accounts[normalizeID(accountID)]
	if acct == nil {
		return 0
	}

	return acct.balance
}

// History yields the account's transactions newest first, at most limit of
// them (limit <= 0 means all). Each iteration reads a fresh view of the log.
func (l *Ledger) History(accountID string, limit int) iter.Seq[Transaction] {
	accountID = normalizeID(accountID)

	return func(yield func(Transaction) bool) {
		l.mu.RLock()

		var entries []Transaction
		if acct := l.accounts[accountID]; acct != nil {
			// The log is append-only, so this prefix never changes.
			entries = acct.log[:len(acct.log):len(acct.log)]
		}

		l.mu.RUnlock()

		n := 0
		for i := len(entries) - 1; i >= 0; i-- {
			if limit > 0 && n == limit {
				return
			}

			if !yield(entries[i]) {
				return
			}

			n++
		}
	}
}

// Accounts returns every known account sorted by id.
func (l *Ledger) Accounts() []Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Account, 0, len(l.accounts))
	for id, acct := range l.accounts {
		out = append(out, Account{ID: id, Balance: acct.balance})
	}

	slices.SortFunc(out, func(a, b Account) int {
		return strings.Compare(a.ID, b.ID)
	})

	return out
}

// Restore replays previously recorded transactions, in Seq order, into an
// empty ledger. Every entry must agree with the state it is applied to.
// Subscribers are not notified.
func (l *Ledger) Restore(txns []Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seq != 0 || len(l.accounts) != 0 {
		return fmt.Errorf("restore into non-empty ledger: %w", ErrInvalidRequest)
	}

	accounts := make(map[string]*account)

	var seq uint64

	for _, txn := range txns {
		if txn.Seq <= seq {
			return fmt.Errorf("transaction %s seq %d after %d: %w", txn.ID, txn.Seq, seq, ErrReplayMismatch)
		}

		if (txn.Kind.IsCredit() && txn.Amount <= 0) || (txn.Kind.IsDebit() && txn.Amount >= 0) || !txn.Kind.Valid() {
			return fmt.Errorf("transaction %s kind %q amount %d: %w", txn.ID, txn.Kind, txn.Amount, ErrReplayMismatch)
		}

		acct := accounts[txn.AccountID]
		if acct == nil {
			acct = &account{}
			accounts[txn.AccountID] = acct
		}

		if acct.balance+txn.Amount != txn.Balance || txn.Balance < 0 {
			return fmt.Errorf("transaction %s balance %d, expected %d: %w",
				txn.ID, txn.Balance, acct.balance+txn.Amount, ErrReplayMismatch)
		}

		acct.balance = txn.Balance
		acct.log = append(acct.log, txn)
		seq = txn.Seq
	}

	l.accounts = accounts
	l.seq = seq

	return nil
}
