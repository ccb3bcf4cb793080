package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a user's stored-value balance.
// Invariant: balance >= 0 and it only changes together with a ledger entry.
type Wallet struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"-"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Transaction is an immutable ledger entry. Amount is always positive; Kind
// carries the direction.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	WalletID    string          `json:"wallet_id" db:"wallet_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Kind        Kind            `json:"kind" db:"kind"`
	Description string          `json:"description" db:"description"`
	TicketID    string          `json:"ticket_id,omitempty" db:"ticket_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type Kind string

const (
	KindDeposit  Kind = "DEPOSIT"
	KindWithdraw Kind = "WITHDRAW"
	KindPayment  Kind = "PAYMENT"
	KindRefund   Kind = "REFUND"
)

// Credit reports whether the kind increases the balance.
func (k Kind) Credit() bool { return k == KindDeposit || k == KindRefund }

func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindPayment, KindRefund:
		return true
	}
	return false
}

// Posting is one balance mutation to apply under the wallet lock.
type Posting struct {
	Kind        Kind
	Amount      decimal.Decimal
	Description string
	TicketID    string
}

// HistoryFilter narrows History. Zero Kind means all kinds.
type HistoryFilter struct {
	Kind   Kind
	Limit  int
	Offset int
}
