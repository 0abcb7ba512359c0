package txsync

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avolkov/moneyflow/internal/domain"
	"github.com/avolkov/moneyflow/internal/remote"
)

// Normalize coerces a raw remote document into the canonical transaction
// shape. It is deliberately lenient: a malformed or absent field falls back
// to a default instead of failing, because one bad document must never abort
// an otherwise-valid batch. All defensive coercion lives here; past this
// boundary the struct is fully typed.
//
// Defaults: amount 0, kind expense, category label "Uncategorized",
// occurredAt now. createdAt and updatedAt stay zero when the server has not
// assigned them yet, which lets the canonical sort fall back to occurredAt.
func Normalize(doc remote.RawDoc) domain.Transaction {
	data := doc.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	now := time.Now()

	return domain.Transaction{
		ID:            doc.ID,
		OwnerID:       stringField(data, "ownerId", ""),
		Amount:        decimalField(data, "amount"),
		Kind:          domain.ParseKind(stringField(data, "kind", string(domain.KindExpense))),
		CategoryID:    stringField(data, "categoryId", ""),
		CategoryLabel: stringField(data, "categoryLabel", domain.UncategorizedLabel),
		Description:   stringField(data, "description", ""),
		OccurredAt:    timeField(data, "occurredAt", now),
		CreatedAt:     timeField(data, "createdAt", time.Time{}),
		UpdatedAt:     timeField(data, "updatedAt", time.Time{}),
		AttachmentRef: stringField(data, "attachmentRef", ""),
		LocationRef:   stringField(data, "locationRef", ""),
		RecurrenceRef: stringField(data, "recurrenceRef", ""),
	}
}

// normalizeAll maps a query result batch, preserving order.
func normalizeAll(docs []remote.RawDoc) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Normalize(doc))
	}
	return out
}

func stringField(m map[string]interface{}, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// decimalField coerces the numeric encodings the store is known to deliver.
// A negative magnitude is clamped to zero; the sign lives in the kind field.
func decimalField(m map[string]interface{}, key string) decimal.Decimal {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch val := v.(type) {
	case float64:
		d = decimal.NewFromFloat(val)
	case int64:
		d = decimal.NewFromInt(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case string:
		parsed, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case json.Number:
		parsed, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// timeField tolerates the four date encodings the store delivers: a native
// time, an ISO string, a {seconds,nanos} timestamp object, or nothing at all.
// Unparseable values degrade to the fallback rather than erroring.
func timeField(m map[string]interface{}, key string, fallback time.Time) time.Time {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}

	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", val); err == nil {
			return t
		}
		return fallback
	case map[string]interface{}:
		// Wire-format server timestamp: {"seconds": ..., "nanos": ...}.
		sec, ok := intValue(val["seconds"])
		if !ok {
			return fallback
		}
		nanos, _ := intValue(val["nanos"])
		return time.Unix(sec, nanos)
	default:
		return fallback
	}
}

func intValue(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
