package payments

import (
	"github.com/shopspring/decimal"
)

// Kind is the type of an incoming record.
type Kind uint8

const (
	Deposit Kind = iota + 1
	Withdrawal
	Dispute
	Resolve
	Chargeback
)

// Record is one line of the transaction log. Amount is nil when the source
// line carried no amount, which is only legal for Dispute, Resolve and
// Chargeback.
type Record struct {
	Kind   Kind
	Client uint16
	Tx     uint32
	Amount *decimal.Decimal
}

// StoredTransaction is the history kept for a deposit or withdrawal so that
// later dispute records can find the amount and owner they refer to.
type StoredTransaction struct {
	Client   uint16
	Amount   decimal.Decimal
	Kind     Kind
	Disputed bool
}

// Account holds the funds of one client.
type Account struct {
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool
}

// AccountRow is the printable summary of one account. Amounts are already
// rounded for output.
type AccountRow struct {
	Client    uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}
