package payments

import (
	"slices"
)

// OutputPlaces is the number of fractional digits kept in AccountRow values
// and printed for every amount.
const OutputPlaces = 4

// Stats counts what happened to the records given to an Engine.
type Stats struct {
	Applied    int
	Invalid    int
	Unresolved int
}

// Engine replays records into account balances. It keeps every account and
// the history of every deposit and successful withdrawal for the lifetime
// of the run. An Engine is not safe for concurrent use.
type Engine struct {
	accounts     map[uint16]*Account
	transactions map[uint32]*StoredTransaction

	strictTxIDs bool
	stats       Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrictTxIDs makes a deposit or withdrawal that reuses a stored
// transaction id fail with ErrDuplicateTx instead of replacing the history
// for that id.
func WithStrictTxIDs() Option {
	return func(e *Engine) {
		e.strictTxIDs = true
	}
}

// NewEngine returns an empty engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		accounts:     make(map[uint16]*Account),
		transactions: make(map[uint32]*StoredTransaction),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply applies a single record. The only errors are validation errors, in
// which case no state changes. References that cannot be resolved (unknown
// tx, another client's tx, wrong dispute state) are silently ignored.
func (e *Engine) Apply(r Record) error {
	if err := e.validate(&r); err != nil {
		e.stats.Invalid++
		return err
	}

	account := e.account(r.Client)

	applied := true
	switch r.Kind {
	case Deposit:
		account.Deposit(*r.Amount)
		// Kept even when the account is locked so later disputes see it.
		e.store(r)
	case Withdrawal:
		if account.Withdraw(*r.Amount) {
			e.store(r)
		}
	case Dispute:
		tx, ok := e.reference(r)
		if !ok || tx.Disputed {
			applied = false
			break
		}
		tx.Disputed = true
		account.Hold(tx.Amount)
	case Resolve:
		tx, ok := e.reference(r)
		if !ok || !tx.Disputed {
			applied = false
			break
		}
		tx.Disputed = false
		account.Release(tx.Amount)
	case Chargeback:
		tx, ok := e.reference(r)
		if !ok || !tx.Disputed {
			applied = false
			break
		}
		account.Chargeback(tx.Amount)
		tx.Disputed = false
	}

	if applied {
		e.stats.Applied++
	} else {
		e.stats.Unresolved++
	}
	return nil
}

func (e *Engine) validate(r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if e.strictTxIDs && r.Kind.createsHistory() {
		if _, ok := e.transactions[r.Tx]; ok {
			return ErrDuplicateTx
		}
	}
	return nil
}

func (e *Engine) account(client uint16) *Account {
	a, ok := e.accounts[client]
	if !ok {
		a = &Account{}
		e.accounts[client] = a
	}
	return a
}

func (e *Engine) store(r Record) {
	e.transactions[r.Tx] = &StoredTransaction{
		Client: r.Client,
		Amount: *r.Amount,
		Kind:   r.Kind,
	}
}

// reference finds the stored transaction a dispute-type record points at.
// It fails for unknown ids and for transactions owned by another client.
func (e *Engine) reference(r Record) (*StoredTransaction, bool) {
	tx, ok := e.transactions[r.Tx]
	if !ok || tx.Client != r.Client {
		return nil, false
	}
	return tx, true
}

// Account returns a copy of the account for client.
func (e *Engine) Account(client uint16) (Account, bool) {
	a, ok := e.accounts[client]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// Transaction returns a copy of the stored history for tx.
func (e *Engine) Transaction(tx uint32) (StoredTransaction, bool) {
	t, ok := e.transactions[tx]
	if !ok {
		return StoredTransaction{}, false
	}
	return *t, true
}

// Stats returns the record counters so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Snapshot returns one row per known client, ordered by client id, with
// amounts rounded half-to-even to four places.
func (e *Engine) Snapshot() []AccountRow {
	rows := make([]AccountRow, 0, len(e.accounts))
	for client, a := range e.accounts {
		rows = append(rows, a.row(client))
	}
	slices.SortFunc(rows, func(a, b AccountRow) int {
		return int(a.Client) - int(b.Client)
	})
	return rows
}
