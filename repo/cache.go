package repo

import (
	"context"
	"time"

	"github.com/maypok86/otter"
)

// Cached memoizes FindRecordByID of another store for ttl. Records are
// written by a separate process, so ttl is the only bound on staleness.
// Listings are not cached since they depend on the query window.
type Cached struct {
	Store
	records otter.Cache[int64, *Record]
}

func NewCached(store Store, capacity int, ttl time.Duration) (*Cached, error) {
	cache, err := otter.MustBuilder[int64, *Record](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &Cached{Store: store, records: cache}, nil
}

func (c *Cached) FindRecordByID(ctx context.Context, id int64) (*Record, error) {
	if rec, found := c.records.Get(id); found {
		return rec, nil
	}

	rec, err := c.Store.FindRecordByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.records.Set(id, rec)
	return rec, nil
}

func (c *Cached) Close() {
	c.records.Close()
}
