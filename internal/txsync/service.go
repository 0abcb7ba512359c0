// Package txsync keeps the in-memory transaction cache consistent with the
// remote document store. It reconciles three asynchronously-arriving sources
// into one ordered, de-duplicated collection: bulk fetch results, live
// change events from a standing subscription, and locally-originated
// optimistic mutations.
package txsync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/moneyflow/internal/cache"
	"github.com/avolkov/moneyflow/internal/domain"
	"github.com/avolkov/moneyflow/internal/remote"
	"github.com/avolkov/moneyflow/internal/view"
)

const (
	// DefaultPageSize is the pagination window used when a caller passes 0.
	DefaultPageSize = 20
	// DefaultRefreshInterval is the throttle window: two non-forced
	// fetches closer together than this share one remote query.
	DefaultRefreshInterval = 5 * time.Second
	// DefaultReconcileDelay is how long after a mutation the confirming
	// refetch runs.
	DefaultReconcileDelay = 1500 * time.Millisecond
)

// Options tunes the service. Zero fields fall back to the defaults above.
type Options struct {
	PageSize        int
	RefreshInterval time.Duration
	ReconcileDelay  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.ReconcileDelay <= 0 {
		o.ReconcileDelay = DefaultReconcileDelay
	}
	return o
}

// Service is the externally consumed surface of the sync layer. Screens call
// its fetch/mutation methods and read its state accessors; everything else
// is internal plumbing.
type Service struct {
	store remote.Store
	cache *cache.Store
	log   zerolog.Logger
	opts  Options

	// Lifetime of background work (subscription stream, reconciler).
	ctx       context.Context
	cancel    context.CancelFunc
	reconcile *refresher

	mu          sync.Mutex
	ownerID     string
	epoch       int64
	unsubscribe func()
	windowLen   int
	loading     bool
	lastErr     error
}

// NewService wires the sync layer over a remote store.
func NewService(store remote.Store, log zerolog.Logger, opts Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:  store,
		cache:  cache.NewStore(),
		log:    log,
		opts:   opts.withDefaults(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.reconcile = newRefresher(s.opts.ReconcileDelay, s.runReconcile)
	return s
}

// Close stops the subscription and background reconciler. The service must
// not be used afterwards.
func (s *Service) Close() {
	s.SignOut()
	s.reconcile.Stop()
	s.cancel()
}

// SignIn binds the service to an identity and establishes the live
// subscription. Any subscription for a previous identity is torn down first;
// switching identities also drops the previous identity's cached records so
// events and data never bleed across users.
func (s *Service) SignIn(ownerID string) {
	if ownerID == "" {
		s.SignOut()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ownerID == ownerID && s.unsubscribe != nil {
		return
	}

	s.stopSubscriptionLocked()
	if s.ownerID != ownerID {
		s.epoch++
		s.cache.Clear()
		s.windowLen = 0
		s.lastErr = nil
	}
	s.ownerID = ownerID
	s.startSubscriptionLocked()
}

// SignOut tears down the subscription and empties the cache. Idempotent.
func (s *Service) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopSubscriptionLocked()
	if s.ownerID != "" {
		s.epoch++
		s.ownerID = ""
	}
	s.cache.Clear()
	s.windowLen = 0
	s.lastErr = nil
}

// Transactions returns the current cache snapshot in canonical order.
func (s *Service) Transactions() []domain.Transaction {
	return s.cache.Snapshot()
}

// FinancialSummary reduces the current snapshot to income, expense and
// balance totals.
func (s *Service) FinancialSummary() view.Summary {
	return view.Summarize(s.cache.Snapshot())
}

// Loading reports whether a fetch is in flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last subsystem-level error, or nil.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// HasMore reports whether another pagination window is believed to exist.
func (s *Service) HasMore() bool {
	return s.cache.HasMore()
}

// Initialized reports whether an authoritative fetch has completed.
func (s *Service) Initialized() bool {
	return s.cache.Initialized()
}

// Owner returns the currently signed-in identity, or "".
func (s *Service) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// currentEpoch snapshots the identity generation. Asynchronous continuations
// capture it when spawned and drop their writes if it has moved on.
func (s *Service) currentEpoch() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// identity snapshots the owner together with its epoch. Any code path that
// suspends on a remote call captures both up front and re-checks the epoch
// before touching the cache, so work outlived by a sign-out or identity
// switch never writes into the new identity's state.
func (s *Service) identity() (string, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID, s.epoch
}

func (s *Service) alive(epoch int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Service) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// runReconcile is the delayed post-mutation refetch: a forced full fetch
// that reconciles server-side derived fields and anything the optimistic
// paths got wrong.
func (s *Service) runReconcile() {
	s.mu.Lock()
	owner := s.ownerID
	epoch := s.epoch
	s.mu.Unlock()
	if owner == "" {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if !s.alive(epoch) {
		return
	}
	if _, err := s.FetchTransactions(ctx, domain.Filter{}, 0, true); err != nil {
		s.log.Warn().Err(err).Str("owner_id", owner).Msg("Reconciling refetch failed")
	}
}
