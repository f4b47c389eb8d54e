package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// Epsilon is the tolerance used for all balance comparisons. A balance
	// within Epsilon of zero counts as zero for session open/close decisions.
	Epsilon = 1e-9

	// TimeLayout is the canonical timestamp form. Lexical order of encoded
	// timestamps matches chronological order, so the store can sort as text.
	TimeLayout = "2006-01-02 15:04:05"

	// DateLayout is the canonical form of derived session tag dates.
	DateLayout = "2006-01-02"
)

const (
	Breakfast     Category = "breakfast"
	Lunch         Category = "lunch"
	Dinner        Category = "dinner"
	OtherServices Category = "other_services"
	CashOut       Category = "cash_out"
	CashIn        Category = "cash_in"
)

const (
	OriginOwn      Origin = "own"
	OriginBorrowed Origin = "borrowed"
)

type (
	// Category classifies a transaction. Only CashIn and CashOut take part
	// in cash-session derivation; every other category is an ordinary
	// expense that moves the balance without tagging.
	Category string

	// Origin selects which balance track a transaction affects.
	Origin string

	// Transaction is the atomic ledger entry. ID, User and Origin are
	// immutable after creation; SessionTag is derived by the session engine
	// and never set by callers.
	Transaction struct {
		ID            string
		Seq           int64 // store-assigned insertion sequence, tie-break for equal timestamps
		User          string
		Category      Category
		Amount        float64 // always > 0; sign is implied by Category
		Origin        Origin
		Timestamp     time.Time
		Description   string
		AttachmentRef string
		SessionTag    *time.Time // date-only; non-nil only on own-track cash movements
	}

	// Balance holds the two origin-scoped running balances for a user.
	Balance struct {
		Own      float64
		Borrowed float64
		Total    float64
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidOrigin    = errors.New("invalid origin")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrEmptyUser        = errors.New("empty user")
)

func (c Category) Valid() bool {
	switch c {
	case Breakfast, Lunch, Dinner, OtherServices, CashOut, CashIn:
		return true
	default:
		return false
	}
}

// IsCash reports whether the category participates in session derivation.
func (c Category) IsCash() bool {
	return c == CashIn || c == CashOut
}

func (o Origin) Valid() bool {
	return o == OriginOwn || o == OriginBorrowed
}

// Validate checks the boundary invariants for a transaction about to be
// persisted. The amount must already be in canonical form.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.User) == "" {
		return ErrEmptyUser
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if !t.Origin.Valid() {
		return ErrInvalidOrigin
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if t.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// Date truncates a timestamp to its calendar date in UTC. Session tags and
// as-of cutoffs compare on dates only.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
