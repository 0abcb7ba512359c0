package txsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/moneyflow/internal/remote"
)

// fakeStore is an in-memory remote.Store for tests. It assigns uuid document
// ids and server timestamps like the real store, counts remote calls so
// throttling is observable, and lets tests push subscription batches and
// stream errors by hand.
type fakeStore struct {
	mu         sync.Mutex
	docs       map[string]map[string]interface{}
	queryCalls int
	getCalls   int
	queryErr   error
	createErr  error
	updateErr  error
	deleteErr  error
	subs       map[int]*fakeSub
	nextSub    int
	clock      time.Time
}

type fakeSub struct {
	owner   string
	onBatch remote.BatchHandler
	onError remote.ErrorHandler
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:  make(map[string]map[string]interface{}),
		subs:  make(map[int]*fakeSub),
		clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// seed inserts a document directly, bypassing call counters.
func (f *fakeStore) seed(id string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = cloneDoc(data)
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) Query(ctx context.Context, ownerID string) ([]remote.RawDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var out []remote.RawDoc
	for id, data := range f.docs {
		if data["ownerId"] == ownerID {
			out = append(out, remote.RawDoc{ID: id, Data: cloneDoc(data)})
		}
	}
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (remote.RawDoc, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	data, ok := f.docs[id]
	if !ok {
		return remote.RawDoc{}, false, nil
	}
	return remote.RawDoc{ID: id, Data: cloneDoc(data)}, true, nil
}

func (f *fakeStore) Create(ctx context.Context, data map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return "", f.createErr
	}

	id := uuid.New().String()
	doc := cloneDoc(data)
	now := f.tick()
	doc["createdAt"] = now
	doc["updatedAt"] = now
	f.docs[id] = doc
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return remote.NewError(remote.KindNotFound, "update", fmt.Errorf("no document %s", id))
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["updatedAt"] = f.tick()
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[id]; !ok {
		return remote.NewError(remote.KindNotFound, "delete", fmt.Errorf("no document %s", id))
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) Subscribe(ctx context.Context, ownerID string, onBatch remote.BatchHandler, onError remote.ErrorHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := f.nextSub
	f.nextSub++
	f.subs[key] = &fakeSub{owner: ownerID, onBatch: onBatch, onError: onError}

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, key)
	}, nil
}

func (f *fakeStore) activeSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// emit delivers one batch to every active subscriber.
func (f *fakeStore) emit(batch []remote.Change) {
	f.mu.Lock()
	subs := make([]*fakeSub, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.onBatch(batch)
	}
}

// emitError delivers a stream error to every active subscriber.
func (f *fakeStore) emitError(err error) {
	f.mu.Lock()
	subs := make([]*fakeSub, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.onError(err)
	}
}

func (f *fakeStore) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

// gateStore wraps fakeStore so a test can hold a Query or Create open,
// interleave other service calls, and then let the suspended call finish.
type gateStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
}

func newGateStore(inner *fakeStore) *gateStore {
	return &gateStore{
		fakeStore: inner,
		entered:   make(chan struct{}, 4),
		release:   make(chan struct{}),
	}
}

func (g *gateStore) Query(ctx context.Context, ownerID string) ([]remote.RawDoc, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.fakeStore.Query(ctx, ownerID)
}

func (g *gateStore) Create(ctx context.Context, data map[string]interface{}) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.fakeStore.Create(ctx, data)
}

func cloneDoc(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Ensure fakeStore implements the Store interface.
var _ remote.Store = (*fakeStore)(nil)
