package txsync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avolkov/moneyflow/internal/domain"
	"github.com/avolkov/moneyflow/internal/view"
)

// FetchTransactions performs the authoritative full fetch.
//
// When forceRefresh is false, the store is initialized and non-empty, and the
// last successful fetch is younger than the refresh interval, the call is
// served from the cache without a remote round-trip. That trades a few
// seconds of staleness for not hammering the store on rapid repeated
// screen-focus events.
//
// Otherwise the whole owner-scoped collection is queried, normalized and
// sorted client-side (the store's native indices cannot express the
// composite order the UI needs), and the cache is replaced with every
// fetched record. Only the returned value is truncated to pageSize; how much
// the cache holds is decoupled from how much one screen asked for. On
// failure the last known-good cached list is returned instead of an empty
// one, when it exists.
func (s *Service) FetchTransactions(ctx context.Context, filter domain.Filter, pageSize int, forceRefresh bool) ([]domain.Transaction, error) {
	owner, epoch := s.identity()
	if owner == "" {
		return nil, fmt.Errorf("fetch transactions: no signed-in user")
	}
	if pageSize <= 0 {
		pageSize = s.opts.PageSize
	}

	if !forceRefresh && s.cache.Initialized() && s.cache.Len() > 0 &&
		time.Since(s.cache.LastFetch()) < s.opts.RefreshInterval {
		return s.windowFromCache(filter, pageSize), nil
	}

	s.setLoading(true)
	defer s.setLoading(false)

	docs, err := s.store.Query(ctx, owner)
	if !s.alive(epoch) {
		// The identity changed while the query was in flight; its result
		// belongs to a torn-down epoch and must not reach the cache.
		return nil, fmt.Errorf("fetch transactions: identity changed")
	}
	if err != nil {
		s.setErr(err)
		s.log.Warn().Err(err).Str("owner_id", owner).Msg("Fetch failed")
		if s.cache.Len() > 0 {
			// Stale-but-available beats empty.
			return s.windowFromCache(filter, pageSize), nil
		}
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	all := normalizeAll(docs)
	sortCanonical(all)

	s.cache.ReplaceAll(all)
	s.cache.MarkFetched(time.Now())
	s.setErr(nil)

	filtered := view.Apply(all, filter)
	windowed := filtered
	if len(windowed) > pageSize {
		windowed = windowed[:pageSize]
	}

	s.mu.Lock()
	s.windowLen = len(windowed)
	s.mu.Unlock()
	s.cache.SetHasMore(len(filtered) > len(windowed))

	s.log.Debug().
		Int("fetched", len(all)).
		Int("returned", len(windowed)).
		Str("owner_id", owner).
		Msg("Fetched transactions")

	return windowed, nil
}

// FetchMoreTransactions extends the materialized pagination window by one
// pageSize slice. A no-op when no further page is believed to exist. The
// full collection is re-queried and re-filtered so the window lines up with
// current server state rather than a possibly stale cursor; once a window
// comes back shorter than pageSize there is nothing more to page in.
func (s *Service) FetchMoreTransactions(ctx context.Context, filter domain.Filter, pageSize int) error {
	if !s.cache.HasMore() {
		return nil
	}
	owner, epoch := s.identity()
	if owner == "" {
		return fmt.Errorf("fetch more transactions: no signed-in user")
	}
	if pageSize <= 0 {
		pageSize = s.opts.PageSize
	}

	s.setLoading(true)
	defer s.setLoading(false)

	docs, err := s.store.Query(ctx, owner)
	if !s.alive(epoch) {
		return fmt.Errorf("fetch more transactions: identity changed")
	}
	if err != nil {
		s.setErr(err)
		return fmt.Errorf("fetch more transactions: %w", err)
	}

	all := normalizeAll(docs)
	sortCanonical(all)

	s.cache.MergeUpsert(all)
	s.cache.MarkFetched(time.Now())
	s.setErr(nil)

	filtered := view.Apply(all, filter)

	s.mu.Lock()
	offset := s.windowLen
	s.mu.Unlock()

	if offset > len(filtered) {
		offset = len(filtered)
	}
	window := filtered[offset:]
	if len(window) > pageSize {
		window = window[:pageSize]
	}

	s.mu.Lock()
	s.windowLen = offset + len(window)
	s.mu.Unlock()
	s.cache.SetHasMore(len(window) == pageSize)

	s.log.Debug().
		Int("appended", len(window)).
		Int("window_len", offset+len(window)).
		Msg("Fetched next transaction page")

	return nil
}

// GetTransactionByID resolves one record, from the cache unless forceRefresh
// asks for the server copy. An absent record is (nil, nil): a miss, not an
// error. The cache holds the signed-in identity's records only, so a point
// read that comes back owned by someone else is returned but never cached.
func (s *Service) GetTransactionByID(ctx context.Context, id string, forceRefresh bool) (*domain.Transaction, error) {
	if !forceRefresh {
		if tx, ok := s.cache.Get(id); ok {
			return &tx, nil
		}
	}

	owner, epoch := s.identity()

	doc, ok, err := s.store.Get(ctx, id)
	if err != nil {
		s.setErr(err)
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}

	tx := Normalize(doc)
	if tx.OwnerID == owner && s.alive(epoch) {
		s.cache.MergeUpsert([]domain.Transaction{tx})
	}
	return &tx, nil
}

// windowFromCache serves a filtered, truncated view of the current snapshot.
func (s *Service) windowFromCache(filter domain.Filter, pageSize int) []domain.Transaction {
	filtered := view.Apply(s.cache.Snapshot(), filter)
	if len(filtered) > pageSize {
		filtered = filtered[:pageSize]
	}
	return filtered
}

func sortCanonical(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return domain.MoreRecent(txs[i], txs[j])
	})
}
