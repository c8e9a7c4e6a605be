package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type Pebbledb struct {
	db *pebble.DB

	// pebble has no MVCC conflict detection like tikv, so writers are serialized instead
	globalWriteLock sync.Mutex
}

type PebbleWrite struct {
	p        *Pebbledb
	batch    *pebble.Batch
	err      error
	commited bool
	closed   bool
	locked   bool
}

func (w *PebbleWrite) lock() {
	if !w.locked {
		w.p.globalWriteLock.Lock()
		w.locked = true
	}
}

func (w *PebbleWrite) unlock() {
	if w.locked {
		w.locked = false
		w.p.globalWriteLock.Unlock()
	}
}

func (w *PebbleWrite) Commit(ctx context.Context) error {
	defer w.unlock()
	if w.err != nil {
		return w.err
	}
	if w.commited {
		return fmt.Errorf("already committed")
	}

	_, span := tracer.Start(ctx, "kv.PebbleWrite.Commit")
	defer span.End()

	err := w.batch.Commit(pebble.Sync)
	if err != nil {
		w.err = err
		return err
	}
	w.commited = true
	w.closed = true
	return w.batch.Close()
}

func (w *PebbleWrite) Rollback() error {
	defer w.unlock()
	if w.commited {
		return fmt.Errorf("already committed")
	}
	if w.closed {
		return w.err
	}
	w.closed = true
	return w.batch.Close()
}

func (w *PebbleWrite) Put(key []byte, value []byte) error {
	w.lock()
	if w.err != nil {
		return w.err
	}
	err := w.batch.Set(key, value, pebble.Sync)
	if err != nil {
		w.err = err
		w.Rollback()
	}
	log.Debug("[pebble].Put:", "key", string(key), "err", err)
	return w.err
}

func (w *PebbleWrite) Del(key []byte) error {
	w.lock()
	if w.err != nil {
		return w.err
	}
	err := w.batch.Delete(key, pebble.Sync)
	if err != nil {
		w.err = err
		w.Rollback()
	}
	log.Debug("[pebble].Del:", "key", string(key), "err", err)
	return w.err
}

func (w *PebbleWrite) Get(ctx context.Context, key []byte) ([]byte, error) {
	w.lock()
	if w.err != nil {
		return nil, w.err
	}
	return pebbleGet(w.batch, key)
}

func (w *PebbleWrite) BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	w.lock()
	if w.err != nil {
		return nil, w.err
	}
	return pebbleBatchGet(w.batch, keys)
}

func (w *PebbleWrite) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	w.lock()
	return pebbleIter(func(o *pebble.IterOptions) (*pebble.Iterator, error) {
		return w.batch.NewIter(o)
	}, start, end)
}

func (w *PebbleWrite) Close() {
	if !w.commited {
		w.Rollback()
	}
}

type PebbleRead struct {
	snapshot *pebble.Snapshot
}

func (r *PebbleRead) Get(ctx context.Context, key []byte) ([]byte, error) {
	return pebbleGet(r.snapshot, key)
}

func (r *PebbleRead) BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	return pebbleBatchGet(r.snapshot, keys)
}

func (r *PebbleRead) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	return pebbleIter(r.snapshot.NewIter, start, end)
}

func (r *PebbleRead) Close() {
	r.snapshot.Close()
}

func (p *Pebbledb) Close() {
	p.db.Close()
}

func (p *Pebbledb) Write() Write {
	return &PebbleWrite{p: p, batch: p.db.NewIndexedBatch()}
}

// ExclusiveWrite holds the global write lock from the start, so everything
// read through the returned Write stays current until Commit.
func (p *Pebbledb) ExclusiveWrite(ctx context.Context, keys ...[]byte) (Write, error) {
	w := &PebbleWrite{p: p, batch: p.db.NewIndexedBatch()}
	w.lock()
	return w, nil
}

func (p *Pebbledb) Read() Read {
	return &PebbleRead{snapshot: p.db.NewSnapshot()}
}

func (p *Pebbledb) Ping() error {
	_, err := pebbleGet(p.db, []byte("\x00ping"))
	return err
}

func pebbleGet(r pebble.Reader, key []byte) ([]byte, error) {
	val, closer, err := r.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			log.Debug("[pebble].Get:", "key", string(key), "err", "not found")
			return nil, nil
		}
		log.Debug("[pebble].Get:", "key", string(key), "err", err)
		return nil, err
	}
	defer closer.Close()

	// the closer invalidates val
	result := make([]byte, len(val))
	copy(result, val)

	log.Debug("[pebble].Get:", "key", string(key))
	return result, nil
}

func pebbleBatchGet(r pebble.Reader, keys [][]byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		v, err := pebbleGet(r, key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[string(key)] = v
		}
	}
	return out, nil
}

func pebbleIter(newIter func(*pebble.IterOptions) (*pebble.Iterator, error), start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	return func(yield func(KeyAndValue, error) bool) {
		o := &pebble.IterOptions{}
		if len(start) > 0 {
			o.LowerBound = start
		}
		if len(end) > 0 {
			o.UpperBound = end
		}
		it, err := newIter(o)
		if err != nil {
			yield(KeyAndValue{}, err)
			return
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			// iterator movement invalidates key and value
			key := append([]byte(nil), it.Key()...)
			val := append([]byte(nil), it.Value()...)

			log.Debug("[pebble].Iter:", "start", string(start), "end", string(end), "at", string(key))
			if !yield(KeyAndValue{K: key, V: val}, nil) {
				return
			}
		}

		if err := it.Error(); err != nil {
			log.Debug("[pebble].Iter:", "start", string(start), "end", string(end), "err", err)
			yield(KeyAndValue{}, err)
		}
	}
}

func NewPebble(path string) (KV, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Pebbledb{db: db}, nil
}

// NewMemPebble creates an in-memory pebble instance, used by tests and the
// "memory" backend.
func NewMemPebble() (KV, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Pebbledb{db: db}, nil
}
