package txsync

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/avolkov/moneyflow/internal/domain"
)

func TestFetchTransactions_SortsAndSummarizes(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-a", doc("user-1", "expense", "food", "groceries", 50000, 1))
	store.seed("tx-b", doc("user-1", "income", "salary", "may payroll", 200000, 2))
	store.seed("tx-c", doc("user-1", "expense", "transport", "metro pass", 10000, 3))
	store.seed("tx-z", doc("user-2", "income", "salary", "someone else", 999999, 4))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	txs, err := svc.FetchTransactions(t.Context(), filterNone(), 0, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3 (owner-scoped)", len(txs))
	}
	for i, want := range []string{"tx-c", "tx-b", "tx-a"} {
		if txs[i].ID != want {
			t.Errorf("position %d: got %s, want %s (newest first)", i, txs[i].ID, want)
		}
	}

	summary := svc.FinancialSummary()
	if !summary.Income.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("income = %s, want 200000", summary.Income)
	}
	if !summary.Expense.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("expense = %s, want 60000", summary.Expense)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(140000)) {
		t.Errorf("balance = %s, want 140000", summary.Balance)
	}
}

func TestFetchTransactions_KindFilter(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-a", doc("user-1", "expense", "food", "groceries", 50000, 1))
	store.seed("tx-b", doc("user-1", "income", "salary", "may payroll", 200000, 2))
	store.seed("tx-c", doc("user-1", "expense", "transport", "metro pass", 10000, 3))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	expense := domain.KindExpense
	txs, err := svc.FetchTransactions(t.Context(), domain.Filter{Kind: &expense}, 0, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(txs) != 2 || txs[0].ID != "tx-c" || txs[1].ID != "tx-a" {
		t.Errorf("expense filter returned %v", idsOf(txs))
	}

	// The filter narrows the returned window, not the cache.
	if got := len(svc.Transactions()); got != 3 {
		t.Errorf("cache holds %d records, want all 3", got)
	}
}

func TestFetchTransactions_RequiresSignIn(t *testing.T) {
	svc := newTestService(newFakeStore())
	defer svc.Close()

	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, true); err == nil {
		t.Error("fetch without a signed-in user should fail")
	}
}

func TestFetchTransactions_Throttled(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-a", doc("user-1", "expense", "food", "groceries", 100, 1))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, false); err != nil {
		t.Fatal(err)
	}

	if got := store.queries(); got != 1 {
		t.Errorf("two back-to-back non-forced fetches made %d remote queries, want 1", got)
	}
}

func TestFetchTransactions_ForceBypassesThrottle(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-a", doc("user-1", "expense", "food", "groceries", 100, 1))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, true); err != nil {
		t.Fatal(err)
	}

	if got := store.queries(); got != 2 {
		t.Errorf("forced refetch made %d remote queries total, want 2", got)
	}
}

func TestFetchTransactions_StaleCacheOnFailure(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-a", doc("user-1", "expense", "food", "groceries", 100, 1))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, true); err != nil {
		t.Fatal(err)
	}

	store.queryErr = errors.New("store unreachable")
	txs, err := svc.FetchTransactions(t.Context(), filterNone(), 0, true)
	if err != nil {
		t.Fatalf("stale cache should be served on failure, got error %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "tx-a" {
		t.Errorf("stale window = %v, want the last known-good list", idsOf(txs))
	}
	if svc.Err() == nil {
		t.Error("failure should still be recorded in the error state")
	}
}

func TestFetchTransactions_FailureWithEmptyCache(t *testing.T) {
	store := newFakeStore()
	store.queryErr = errors.New("store unreachable")

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, true); err == nil {
		t.Error("nothing cached to fall back to, fetch should fail")
	}
}

func TestPagination_WindowsThrough45Records(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 45; i++ {
		id := fmt.Sprintf("tx-%02d", i)
		store.seed(id, doc("user-1", "expense", "misc", id, 100, i+1))
	}

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	txs, err := svc.FetchTransactions(t.Context(), filterNone(), 20, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 20 {
		t.Fatalf("first window = %d records, want 20", len(txs))
	}
	if !svc.HasMore() {
		t.Fatal("45 records behind a 20-wide window, HasMore should be true")
	}

	if err := svc.FetchMoreTransactions(t.Context(), filterNone(), 20); err != nil {
		t.Fatal(err)
	}
	if !svc.HasMore() {
		t.Fatal("second full window, HasMore should still be true")
	}

	if err := svc.FetchMoreTransactions(t.Context(), filterNone(), 20); err != nil {
		t.Fatal(err)
	}
	if svc.HasMore() {
		t.Error("third window held only 5 records, HasMore should be false")
	}

	// A further call is a no-op and must not hit the store.
	before := store.queries()
	if err := svc.FetchMoreTransactions(t.Context(), filterNone(), 20); err != nil {
		t.Fatal(err)
	}
	if store.queries() != before {
		t.Error("FetchMore past the end still queried the store")
	}
}

func TestGetTransactionByID_CacheFirst(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-a", doc("user-1", "expense", "food", "groceries", 100, 1))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	if _, err := svc.FetchTransactions(t.Context(), filterNone(), 0, true); err != nil {
		t.Fatal(err)
	}

	tx, err := svc.GetTransactionByID(t.Context(), "tx-a", false)
	if err != nil {
		t.Fatal(err)
	}
	if tx == nil || tx.ID != "tx-a" {
		t.Fatalf("got %+v, want cached tx-a", tx)
	}
	if store.getCalls != 0 {
		t.Errorf("cache hit still made %d remote reads", store.getCalls)
	}
}

func TestGetTransactionByID_ForceReadsThrough(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-a", doc("user-1", "expense", "food", "groceries", 100, 1))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	tx, err := svc.GetTransactionByID(t.Context(), "tx-a", true)
	if err != nil {
		t.Fatal(err)
	}
	if tx == nil || tx.ID != "tx-a" {
		t.Fatalf("got %+v, want tx-a from the store", tx)
	}

	// The read-through result lands in the cache.
	if _, ok := svc.cache.Get("tx-a"); !ok {
		t.Error("read-through result not cached")
	}
}

func TestGetTransactionByID_ForeignRecordNotCached(t *testing.T) {
	store := newFakeStore()
	store.seed("tx-z", doc("user-2", "income", "salary", "someone else's", 999, 1))

	svc := newTestService(store)
	defer svc.Close()
	svc.SignIn("user-1")

	tx, err := svc.GetTransactionByID(t.Context(), "tx-z", true)
	if err != nil {
		t.Fatal(err)
	}
	if tx == nil || tx.OwnerID != "user-2" {
		t.Fatalf("point read should return the record: %+v", tx)
	}

	// The cache is scoped to the signed-in identity; the foreign record
	// must not enter it or skew the totals.
	if _, ok := svc.cache.Get("tx-z"); ok {
		t.Error("foreign-owner record entered the owner-scoped cache")
	}
	if got := svc.FinancialSummary().Income; !got.IsZero() {
		t.Errorf("income = %s, a foreign record leaked into the summary", got)
	}
	if got := len(svc.Transactions()); got != 0 {
		t.Errorf("Transactions() returned %d records, want none", got)
	}
}

func TestGetTransactionByID_AbsentIsAMiss(t *testing.T) {
	svc := newTestService(newFakeStore())
	defer svc.Close()
	svc.SignIn("user-1")

	tx, err := svc.GetTransactionByID(t.Context(), "ghost", true)
	if err != nil {
		t.Fatalf("an absent record is a miss, not an error: %v", err)
	}
	if tx != nil {
		t.Errorf("got %+v for an absent id", tx)
	}
}

func idsOf(txs []domain.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
