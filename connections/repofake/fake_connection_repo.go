package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-delegated-auth/connections"
)

var _ connections.Repo = (*FakeConnectionRepo)(nil)

// FakeConnectionRepo keeps records in memory. Records are copied on the way in and
// out so callers never share state with the store.
type FakeConnectionRepo struct {
	records map[string]*connections.Record
	writes  int
	lock    sync.RWMutex
}

func NewFakeConnectionRepo() *FakeConnectionRepo {
	return &FakeConnectionRepo{
		records: make(map[string]*connections.Record),
	}
}

func (r *FakeConnectionRepo) Read(_ context.Context, key string) (*connections.Record, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (r *FakeConnectionRepo) Write(_ context.Context, key string, rec *connections.Record) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.records[key] = rec.Clone()
	r.writes++
	return nil
}

func (r *FakeConnectionRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.records, key)
	return nil
}

// Writes returns how many Write calls the repo has served.
func (r *FakeConnectionRepo) Writes() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.writes
}
