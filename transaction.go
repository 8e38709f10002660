package payments

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingAmount   = errors.New("deposit and withdrawal records require an amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrDuplicateTx     = errors.New("transaction id already recorded")
	ErrUnknownKind     = errors.New("unknown transaction type")
	ErrMalformedRecord = errors.New("malformed record")
)

var kindNames = [...]string{
	Deposit:    "deposit",
	Withdrawal: "withdrawal",
	Dispute:    "dispute",
	Resolve:    "resolve",
	Chargeback: "chargeback",
}

func (k Kind) String() string {
	if k < Deposit || k > Chargeback {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseKind maps a record type name, in any case and with surrounding
// space, to its Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k := Deposit; k <= Chargeback; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// createsHistory reports whether records of this kind move money and are
// therefore stored for later disputes.
func (k Kind) createsHistory() bool {
	return k == Deposit || k == Withdrawal
}

// Validate returns nil if the record can be applied. Dispute, Resolve and
// Chargeback ignore any amount they carry.
func (r *Record) Validate() error {
	switch r.Kind {
	case Deposit, Withdrawal:
		if r.Amount == nil {
			return ErrMissingAmount
		}
		if r.Amount.IsNegative() {
			return ErrNegativeAmount
		}
	case Dispute, Resolve, Chargeback:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}
	return nil
}
