package txsync

import (
	"github.com/avolkov/moneyflow/internal/cache"
	"github.com/avolkov/moneyflow/internal/remote"
)

// startSubscriptionLocked opens the live change feed for the current owner.
// At most one subscription exists at a time; callers hold s.mu and must have
// torn down any previous one. The mutual exclusion is an invariant, not an
// optimization: two feeds for one identity would deliver every change twice.
func (s *Service) startSubscriptionLocked() {
	if s.ownerID == "" || s.unsubscribe != nil {
		return
	}

	owner := s.ownerID
	epoch := s.epoch

	unsub, err := s.store.Subscribe(s.ctx, owner,
		func(batch []remote.Change) { s.handleBatch(epoch, batch) },
		func(err error) { s.handleStreamError(epoch, err) },
	)
	if err != nil {
		// Leave unsubscribe nil; the next successful create mutation
		// opportunistically retries.
		s.log.Warn().Err(err).Str("owner_id", owner).Msg("Failed to establish live subscription")
		return
	}

	s.unsubscribe = unsub
	s.log.Info().Str("owner_id", owner).Msg("Live subscription established")
}

// stopSubscriptionLocked tears down the feed if one is active. Idempotent.
func (s *Service) stopSubscriptionLocked() {
	if s.unsubscribe == nil {
		return
	}
	s.unsubscribe()
	s.unsubscribe = nil
}

// ensureSubscribed re-establishes the feed when none is active, e.g. after
// the initial attempt failed. Called from the mutation path.
func (s *Service) ensureSubscribed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerID == "" || s.unsubscribe != nil {
		return
	}
	s.startSubscriptionLocked()
}

// handleBatch routes one ordered batch of live changes into the cache.
// Events are applied strictly in the order received: a later modification of
// an id must win over an earlier one in the same batch. The epoch guard
// drops batches that belong to a previous identity.
func (s *Service) handleBatch(epoch int64, batch []remote.Change) {
	if !s.alive(epoch) {
		return
	}

	for _, ch := range batch {
		tx := Normalize(ch.Doc)
		switch ch.Kind {
		case remote.ChangeAdded:
			s.cache.ApplyEvent(cache.EventAdded, tx)
		case remote.ChangeModified:
			s.cache.ApplyEvent(cache.EventModified, tx)
		case remote.ChangeRemoved:
			s.cache.ApplyEvent(cache.EventRemoved, tx)
		}
	}

	s.log.Debug().Int("changes", len(batch)).Msg("Applied live change batch")
}

// handleStreamError classifies a subscription delivery error. A permission
// denial almost always means a record this identity could see was just
// deleted by a concurrent mutation, so it is logged and swallowed; the feed
// keeps running and nothing user-visible happens. Anything else is surfaced
// as the subsystem error state, but the feed is still left running — the
// store re-delivers subsequent valid events on its own.
func (s *Service) handleStreamError(epoch int64, err error) {
	if !s.alive(epoch) {
		return
	}

	if remote.IsPermission(err) {
		s.log.Info().Err(err).Msg("Subscription permission denial, likely a concurrent delete; ignoring")
		return
	}

	s.log.Warn().Err(err).Msg("Subscription stream error")
	s.setErr(err)
}
