// Package view derives presentation data from cache snapshots. Everything
// here is a pure function: input slices are never mutated, and the functions
// are cheap enough to call on every render without memoization.
package view

import (
	"github.com/shopspring/decimal"

	"github.com/avolkov/moneyflow/internal/domain"
)

// Apply returns the records passing every predicate the filter sets, in
// input order. The result is always a fresh slice.
func Apply(records []domain.Transaction, f domain.Filter) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(records))
	for _, t := range records {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Summary is the income/expense/balance rollup shown on the overview screen.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// Summarize reduces a record set in a single pass. Balance is income minus
// expense.
func Summarize(records []domain.Transaction) Summary {
	income := decimal.Zero
	expense := decimal.Zero
	for _, t := range records {
		switch t.Kind {
		case domain.KindIncome:
			income = income.Add(t.Amount)
		default:
			expense = expense.Add(t.Amount)
		}
	}
	return Summary{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}
