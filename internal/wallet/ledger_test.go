package wallet

import (
	"errors"
	"testing"

	"bus-booking/internal/apperr"

	"github.com/shopspring/decimal"
)

func TestApply(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		name    string
		balance string
		kind    Kind
		amount  string
		want    string
		err     error
	}{
		{"deposit", "10.00", KindDeposit, "5.50", "15.50", nil},
		{"refund", "0", KindRefund, "75", "75", nil},
		{"withdraw exact", "100", KindWithdraw, "100", "0", nil},
		{"payment", "100", KindPayment, "99.99", "0.01", nil},
		{"overdraw", "10", KindWithdraw, "10.01", "", apperr.ErrInsufficientFunds},
		{"zero", "10", KindDeposit, "0", "", apperr.ErrValidation},
		{"negative", "10", KindDeposit, "-1", "", apperr.ErrValidation},
		{"sub-cent", "10", KindDeposit, "0.001", "", apperr.ErrValidation},
		{"unknown kind", "10", Kind("BONUS"), "1", "", apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := apply(d(tc.balance), tc.kind, d(tc.amount))
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !got.Equal(d(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestApply_NoDriftOverManyPostings(t *testing.T) {
	bal := decimal.Zero
	tenCents := decimal.RequireFromString("0.10")
	for i := 0; i < 1000; i++ {
		var err error
		if bal, err = apply(bal, KindDeposit, tenCents); err != nil {
			t.Fatal(err)
		}
	}
	if !bal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected exactly 100, got %s", bal)
	}
}
