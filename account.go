package payments

import (
	"github.com/shopspring/decimal"
)

// Operations below never drive Available or Held negative and never return
// an error: a request that cannot be honoured leaves the account untouched.

// Total returns Available + Held.
func (a Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}

// Deposit credits amount to Available unless the account is locked.
func (a *Account) Deposit(amount decimal.Decimal) {
	if a.Locked {
		return
	}
	a.Available = a.Available.Add(amount)
}

// Withdraw debits amount from Available. It reports false, leaving the
// account as it was, when the account is locked or funds are insufficient.
func (a *Account) Withdraw(amount decimal.Decimal) bool {
	if a.Locked || a.Available.LessThan(amount) {
		return false
	}
	a.Available = a.Available.Sub(amount)
	return true
}

// Hold moves amount from Available to Held.
func (a *Account) Hold(amount decimal.Decimal) {
	if a.Locked || a.Available.LessThan(amount) {
		return
	}
	a.Available = a.Available.Sub(amount)
	a.Held = a.Held.Add(amount)
}

// Release moves amount from Held back to Available.
func (a *Account) Release(amount decimal.Decimal) {
	if a.Locked || a.Held.LessThan(amount) {
		return
	}
	a.Held = a.Held.Sub(amount)
	a.Available = a.Available.Add(amount)
}

// Chargeback removes amount from Held and locks the account. It is the only
// operation that still applies to a locked account, so that transactions
// disputed before the first chargeback can be charged back too.
func (a *Account) Chargeback(amount decimal.Decimal) {
	if a.Held.LessThan(amount) {
		return
	}
	a.Held = a.Held.Sub(amount)
	a.Locked = true
}

func (a *Account) row(client uint16) AccountRow {
	return AccountRow{
		Client:    client,
		Available: a.Available.RoundBank(OutputPlaces),
		Held:      a.Held.RoundBank(OutputPlaces),
		Total:     a.Total().RoundBank(OutputPlaces),
		Locked:    a.Locked,
	}
}
