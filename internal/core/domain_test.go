package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ID:        "abc",
		User:      "ana",
		Category:  Lunch,
		Amount:    12.50,
		Origin:    OriginOwn,
		Timestamp: at(1, 12),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid transaction, got %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"empty user", func(x *Transaction) { x.User = "  " }, ErrEmptyUser},
		{"bad category", func(x *Transaction) { x.Category = "snack" }, ErrInvalidCategory},
		{"bad origin", func(x *Transaction) { x.Origin = "stolen" }, ErrInvalidOrigin},
		{"zero amount", func(x *Transaction) { x.Amount = 0 }, ErrInvalidAmount},
		{"negative amount", func(x *Transaction) { x.Amount = -3 }, ErrInvalidAmount},
		{"zero timestamp", func(x *Transaction) { x.Timestamp = time.Time{} }, ErrInvalidTimestamp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := valid
			tc.mutate(&x)
			if err := x.Validate(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	long := valid
	long.Description = strings.Repeat("x", 201)
	if err := long.Validate(); err == nil {
		t.Fatalf("expected error for description over 200 characters")
	}
}

func TestCategoryIsCash(t *testing.T) {
	if !CashIn.IsCash() || !CashOut.IsCash() {
		t.Fatalf("cash movements must report IsCash")
	}
	for _, c := range []Category{Breakfast, Lunch, Dinner, OtherServices} {
		if c.IsCash() {
			t.Fatalf("%s must not report IsCash", c)
		}
	}
}

func TestDateTruncation(t *testing.T) {
	d := Date(time.Date(2025, 3, 7, 23, 59, 58, 123, time.UTC))
	want := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("expected %v, got %v", want, d)
	}
}
