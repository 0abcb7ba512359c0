package remote

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ownerField is the document field every query and subscription is scoped by.
const ownerField = "ownerId"

// resubscribeDelay spaces out stream re-opens after a delivery error so a
// persistent failure does not spin.
const resubscribeDelay = 2 * time.Second

// FirestoreStore implements Store on top of a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore initializes a Firebase app and opens the Firestore client.
// credentialsFile may be empty, in which case application default credentials
// are used.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile, collection string) (*FirestoreStore, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore client: %w", err)
	}

	return &FirestoreStore{client: client, collection: collection}, nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// Query implements Store. Results come back in store order; the caller sorts
// client-side, so no OrderBy is applied here.
func (s *FirestoreStore) Query(ctx context.Context, ownerID string) ([]RawDoc, error) {
	it := s.col().Where(ownerField, "==", ownerID).Documents(ctx)
	defer it.Stop()

	var docs []RawDoc
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrap("query", err)
		}
		docs = append(docs, RawDoc{ID: doc.Ref.ID, Data: doc.Data()})
	}
	return docs, nil
}

// Get implements Store. A missing document is (zero, false, nil).
func (s *FirestoreStore) Get(ctx context.Context, id string) (RawDoc, bool, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return RawDoc{}, false, nil
	}
	if err != nil {
		return RawDoc{}, false, wrap("get", err)
	}
	return RawDoc{ID: doc.Ref.ID, Data: doc.Data()}, true, nil
}

// Create implements Store. createdAt and updatedAt are stamped server-side.
func (s *FirestoreStore) Create(ctx context.Context, data map[string]interface{}) (string, error) {
	payload := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload["createdAt"] = firestore.ServerTimestamp
	payload["updatedAt"] = firestore.ServerTimestamp

	ref, _, err := s.col().Add(ctx, payload)
	if err != nil {
		return "", wrap("create", err)
	}
	return ref.ID, nil
}

// Update implements Store as a merge write, refreshing updatedAt server-side.
func (s *FirestoreStore) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	payload := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		payload[k] = v
	}
	payload["updatedAt"] = firestore.ServerTimestamp

	_, err := s.col().Doc(id).Set(ctx, payload, firestore.MergeAll)
	return wrap("update", err)
}

// Delete implements Store.
func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	_, err := s.col().Doc(id).Delete(ctx)
	return wrap("delete", err)
}

// Subscribe implements Store using Firestore query snapshots. Delivery
// errors are reported through onError and the stream is re-opened, so a
// single bad event (most commonly a permission denial for a concurrently
// deleted document) never kills the feed. The returned stop function is
// idempotent.
func (s *FirestoreStore) Subscribe(ctx context.Context, ownerID string, onBatch BatchHandler, onError ErrorHandler) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			it := s.col().Where(ownerField, "==", ownerID).Snapshots(subCtx)
			s.deliver(subCtx, it, onBatch, onError)
			it.Stop()

			select {
			case <-subCtx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
		}
	}()

	return cancel, nil
}

// deliver pumps one snapshot iterator until it errors or the context ends.
func (s *FirestoreStore) deliver(ctx context.Context, it *firestore.QuerySnapshotIterator, onBatch BatchHandler, onError ErrorHandler) {
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			onError(wrap("subscribe", err))
			return
		}

		if len(snap.Changes) == 0 {
			continue
		}

		// Store-assigned order within the batch is significant: a later
		// change for the same id must win over an earlier one.
		batch := make([]Change, 0, len(snap.Changes))
		for _, ch := range snap.Changes {
			kind := ChangeModified
			switch ch.Kind {
			case firestore.DocumentAdded:
				kind = ChangeAdded
			case firestore.DocumentRemoved:
				kind = ChangeRemoved
			}
			batch = append(batch, Change{
				Kind: kind,
				Doc:  RawDoc{ID: ch.Doc.Ref.ID, Data: ch.Doc.Data()},
			})
		}
		onBatch(batch)
	}
}

// Ensure FirestoreStore implements the Store interface.
var _ Store = (*FirestoreStore)(nil)
