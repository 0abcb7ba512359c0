package txsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/moneyflow/internal/domain"
	"github.com/avolkov/moneyflow/internal/remote"
)

// errNotPermitted marks a mutation against a record the signed-in identity
// does not own. A user-facing outcome, not a crash.
var errNotPermitted = errors.New("not permitted")

// AddTransaction creates a record remotely and inserts the server-normalized
// copy into the cache. The fresh id is read back immediately so the cached
// entry carries the store's assigned timestamps; if that read-back fails the
// draft itself is inserted optimistically and the live feed or the next
// fetch corrects it. A failed create leaves the cache untouched.
func (s *Service) AddTransaction(ctx context.Context, draft domain.Draft) (*domain.Transaction, error) {
	owner, epoch := s.identity()
	if owner == "" {
		return nil, fmt.Errorf("add transaction: no signed-in user")
	}

	occurredAt := draft.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	label := draft.CategoryLabel
	if label == "" {
		label = domain.UncategorizedLabel
	}

	payload := map[string]interface{}{
		"ownerId":       owner,
		"amount":        draft.Amount.InexactFloat64(),
		"kind":          string(domain.ParseKind(string(draft.Kind))),
		"categoryId":    draft.CategoryID,
		"categoryLabel": label,
		"description":   draft.Description,
		"occurredAt":    occurredAt,
	}
	if draft.AttachmentRef != "" {
		payload["attachmentRef"] = draft.AttachmentRef
	}
	if draft.LocationRef != "" {
		payload["locationRef"] = draft.LocationRef
	}
	if draft.RecurrenceRef != "" {
		payload["recurrenceRef"] = draft.RecurrenceRef
	}

	id, err := s.store.Create(ctx, payload)
	if err != nil {
		s.setErr(err)
		s.log.Warn().Err(err).Str("owner_id", owner).Msg("Create transaction failed")
		return nil, fmt.Errorf("add transaction: %w", err)
	}

	var tx domain.Transaction
	doc, ok, getErr := s.store.Get(ctx, id)
	if getErr == nil && ok {
		tx = Normalize(doc)
	} else {
		// Optimistic stand-in; the subscription or the next fetch
		// reconciles the server-assigned fields.
		now := time.Now()
		tx = domain.Transaction{
			ID:            id,
			OwnerID:       owner,
			Amount:        draft.Amount,
			Kind:          domain.ParseKind(string(draft.Kind)),
			CategoryID:    draft.CategoryID,
			CategoryLabel: label,
			Description:   draft.Description,
			OccurredAt:    occurredAt,
			CreatedAt:     now,
			UpdatedAt:     now,
			AttachmentRef: draft.AttachmentRef,
			LocationRef:   draft.LocationRef,
			RecurrenceRef: draft.RecurrenceRef,
		}
		s.log.Warn().Err(getErr).Str("id", id).Msg("Read-back of created transaction failed, caching draft")
	}

	if !s.alive(epoch) {
		// Signed out (or switched) while the create was in flight. The
		// record exists remotely; it must not land in the new identity's
		// cache.
		s.log.Info().Str("id", id).Msg("Identity changed during create, not caching")
		return &tx, nil
	}

	s.cache.MergeUpsert([]domain.Transaction{tx})

	// A create proves the store is reachable; if the live feed never came
	// up (or died at sign-in), this is the moment to retry it.
	s.ensureSubscribed()

	s.log.Info().Str("id", id).Str("owner_id", owner).Msg("Transaction created")
	return &tx, nil
}

// UpdateTransaction patches a record remotely, applies the same patch to the
// cached copy optimistically, and schedules the delayed reconciling refetch
// that trues up server-side derived fields. Updating a record owned by a
// different identity fails with a permission-class error.
func (s *Service) UpdateTransaction(ctx context.Context, id string, patch domain.Patch) error {
	owner, epoch := s.identity()
	if owner == "" {
		return fmt.Errorf("update transaction: no signed-in user")
	}

	existing, ok := s.cache.Get(id)
	if !ok {
		return remote.NewError(remote.KindNotFound, "update", fmt.Errorf("transaction %s not cached", id))
	}
	if existing.OwnerID != owner {
		return remote.NewError(remote.KindPermission, "update", errNotPermitted)
	}

	if err := s.store.Update(ctx, id, patch.Fields()); err != nil {
		s.setErr(err)
		s.log.Warn().Err(err).Str("id", id).Msg("Update transaction failed")
		return fmt.Errorf("update transaction: %w", err)
	}

	if s.alive(epoch) {
		updated := patch.Apply(existing)
		updated.UpdatedAt = time.Now()
		s.cache.MergeUpsert([]domain.Transaction{updated})
		s.reconcile.Request()
	}

	s.log.Info().Str("id", id).Msg("Transaction updated")
	return nil
}

// DeleteTransaction removes a record remotely and from the cache. A
// not-found failure from the store is treated as success: the desired end
// state, record absent, already holds. Ownership is verified when the
// record is cached; the delayed refetch reconciles afterwards either way.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	owner, epoch := s.identity()
	if owner == "" {
		return fmt.Errorf("delete transaction: no signed-in user")
	}

	if existing, ok := s.cache.Get(id); ok && existing.OwnerID != owner {
		return remote.NewError(remote.KindPermission, "delete", errNotPermitted)
	}

	if err := s.store.Delete(ctx, id); err != nil && !remote.IsNotFound(err) {
		s.setErr(err)
		s.log.Warn().Err(err).Str("id", id).Msg("Delete transaction failed")
		return fmt.Errorf("delete transaction: %w", err)
	}

	if s.alive(epoch) {
		s.cache.RemoveByID(id)
		s.reconcile.Request()
	}

	s.log.Info().Str("id", id).Msg("Transaction deleted")
	return nil
}
