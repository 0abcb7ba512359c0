package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction as money coming in or going out.
type Kind string

const (
	// KindIncome marks money received.
	KindIncome Kind = "income"
	// KindExpense marks money spent.
	KindExpense Kind = "expense"
)

// ParseKind normalizes a raw kind string. Anything that is not income is
// treated as an expense.
func ParseKind(s string) Kind {
	if strings.EqualFold(strings.TrimSpace(s), string(KindIncome)) {
		return KindIncome
	}
	return KindExpense
}

// UncategorizedLabel is the display label used when a transaction carries no
// category information.
const UncategorizedLabel = "Uncategorized"

// Transaction is the canonical in-memory record this layer works with.
// Raw remote documents are coerced into this shape exactly once, at the
// normalizer boundary; past that point every field is present and typed.
type Transaction struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          Kind            `json:"kind"`
	CategoryID    string          `json:"category_id"`
	CategoryLabel string          `json:"category_label"`
	Description   string          `json:"description"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// Opaque pointers into collaborator subsystems. This layer never
	// interprets them.
	AttachmentRef string `json:"attachment_ref,omitempty"`
	LocationRef   string `json:"location_ref,omitempty"`
	RecurrenceRef string `json:"recurrence_ref,omitempty"`
}

// sortKey returns the timestamp the canonical ordering is derived from.
// CreatedAt is the primary key; OccurredAt stands in when the server has not
// assigned a creation time yet (e.g. an optimistic insert).
func (t Transaction) sortKey() time.Time {
	if t.CreatedAt.IsZero() {
		return t.OccurredAt
	}
	return t.CreatedAt
}

// MoreRecent reports whether a sorts before b in the canonical order:
// descending creation time, with the ID as a deterministic tie-break so that
// re-sorting an unchanged set never reorders entries.
func MoreRecent(a, b Transaction) bool {
	ak, bk := a.sortKey(), b.sortKey()
	if !ak.Equal(bk) {
		return ak.After(bk)
	}
	return a.ID > b.ID
}

// Equal reports whether two transactions carry the same value. Used by the
// cache to skip replacing an entry with an identical copy.
func (t Transaction) Equal(o Transaction) bool {
	return t.ID == o.ID &&
		t.OwnerID == o.OwnerID &&
		t.Amount.Equal(o.Amount) &&
		t.Kind == o.Kind &&
		t.CategoryID == o.CategoryID &&
		t.CategoryLabel == o.CategoryLabel &&
		t.Description == o.Description &&
		t.OccurredAt.Equal(o.OccurredAt) &&
		t.CreatedAt.Equal(o.CreatedAt) &&
		t.UpdatedAt.Equal(o.UpdatedAt) &&
		t.AttachmentRef == o.AttachmentRef &&
		t.LocationRef == o.LocationRef &&
		t.RecurrenceRef == o.RecurrenceRef
}

// Draft is the payload for creating a new transaction. Identity and server
// timestamps are assigned by the remote store.
type Draft struct {
	Amount        decimal.Decimal `json:"amount"`
	Kind          Kind            `json:"kind"`
	CategoryID    string          `json:"category_id"`
	CategoryLabel string          `json:"category_label"`
	Description   string          `json:"description"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AttachmentRef string          `json:"attachment_ref,omitempty"`
	LocationRef   string          `json:"location_ref,omitempty"`
	RecurrenceRef string          `json:"recurrence_ref,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Kind          *Kind            `json:"kind,omitempty"`
	CategoryID    *string          `json:"category_id,omitempty"`
	CategoryLabel *string          `json:"category_label,omitempty"`
	Description   *string          `json:"description,omitempty"`
	OccurredAt    *time.Time       `json:"occurred_at,omitempty"`
	AttachmentRef *string          `json:"attachment_ref,omitempty"`
	LocationRef   *string          `json:"location_ref,omitempty"`
	RecurrenceRef *string          `json:"recurrence_ref,omitempty"`
}

// Apply copies the patch's non-nil fields onto a transaction and returns the
// result. The input is not modified.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.CategoryLabel != nil {
		t.CategoryLabel = *p.CategoryLabel
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.OccurredAt != nil {
		t.OccurredAt = *p.OccurredAt
	}
	if p.AttachmentRef != nil {
		t.AttachmentRef = *p.AttachmentRef
	}
	if p.LocationRef != nil {
		t.LocationRef = *p.LocationRef
	}
	if p.RecurrenceRef != nil {
		t.RecurrenceRef = *p.RecurrenceRef
	}
	return t
}

// Fields returns the patch as a field map suitable for a remote merge write.
func (p Patch) Fields() map[string]interface{} {
	out := make(map[string]interface{})
	if p.Amount != nil {
		out["amount"] = p.Amount.InexactFloat64()
	}
	if p.Kind != nil {
		out["kind"] = string(*p.Kind)
	}
	if p.CategoryID != nil {
		out["categoryId"] = *p.CategoryID
	}
	if p.CategoryLabel != nil {
		out["categoryLabel"] = *p.CategoryLabel
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.OccurredAt != nil {
		out["occurredAt"] = *p.OccurredAt
	}
	if p.AttachmentRef != nil {
		out["attachmentRef"] = *p.AttachmentRef
	}
	if p.LocationRef != nil {
		out["locationRef"] = *p.LocationRef
	}
	if p.RecurrenceRef != nil {
		out["recurrenceRef"] = *p.RecurrenceRef
	}
	return out
}

// Filter selects a subset of transactions. Every field is optional; the zero
// value matches everything.
type Filter struct {
	Kind        *Kind
	From        *time.Time
	To          *time.Time
	CategoryIDs []string
	Search      string
}

// IsZero reports whether the filter matches everything, i.e. an unfiltered
// fetch that is authoritative for removals.
func (f Filter) IsZero() bool {
	return f.Kind == nil && f.From == nil && f.To == nil &&
		len(f.CategoryIDs) == 0 && f.Search == ""
}

// Matches reports whether a transaction passes every set predicate. Date
// bounds are inclusive; text search is case-insensitive over description and
// category label.
func (f Filter) Matches(t Transaction) bool {
	if f.Kind != nil && t.Kind != *f.Kind {
		return false
	}
	if f.From != nil && t.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.OccurredAt.After(*f.To) {
		return false
	}
	if len(f.CategoryIDs) > 0 {
		found := false
		for _, id := range f.CategoryIDs {
			if t.CategoryID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Description), needle) &&
			!strings.Contains(strings.ToLower(t.CategoryLabel), needle) {
			return false
		}
	}
	return true
}
