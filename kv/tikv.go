package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	pingcaplog "github.com/pingcap/log"
	tikverr "github.com/tikv/client-go/v2/error"
	"github.com/tikv/client-go/v2/kv"
	"github.com/tikv/client-go/v2/txnkv"
	"github.com/tikv/client-go/v2/txnkv/txnsnapshot"
	"go.uber.org/zap"
)

func init() {
	// the tikv client logs through pingcap/log, which is far too chatty at info
	_, p, _ := pingcaplog.InitLogger(&pingcaplog.Config{})

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	l, err := config.Build()
	if err != nil {
		return
	}

	pingcaplog.ReplaceGlobals(l, p)
}

type Tikv struct {
	k *txnkv.Client
}

type TikvWrite struct {
	txn      *txnkv.KVTxn
	err      error
	commited bool

	statLockRetries int
}

func (w *TikvWrite) Stat() (statLockRetries int) {
	return w.statLockRetries
}

func (w *TikvWrite) Commit(ctx context.Context) error {
	if w.err != nil {
		return w.err
	}
	if w.commited {
		return fmt.Errorf("already committed")
	}

	ctx, span := tracer.Start(ctx, "kv.TikvWrite.Commit")
	defer span.End()

	if err := w.txn.Commit(ctx); err != nil {
		w.err = err
		return err
	}
	w.commited = true
	return nil
}

func (w *TikvWrite) Rollback() error {
	if w.commited {
		return fmt.Errorf("already committed")
	}
	if w.err != nil {
		return w.err
	}
	return w.txn.Rollback()
}

func (w *TikvWrite) Put(key []byte, value []byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.txn.Set(key, value)
	if err != nil {
		w.Rollback()
		w.err = err
	}
	log.Debug("[tikv].Put:", "key", string(key), "err", err)
	return w.err
}

func (w *TikvWrite) Del(key []byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.txn.Delete(key)
	if err != nil {
		w.err = err
	}
	log.Debug("[tikv].Del:", "key", string(key), "err", err)
	return err
}

func (w *TikvWrite) Get(ctx context.Context, key []byte) ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}

	ctx, span := tracer.Start(ctx, "kv.TikvWrite.Get")
	defer span.End()

	return tikvGet(w.txn.Get(ctx, key))
}

func (w *TikvWrite) BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	b, err := w.txn.BatchGet(ctx, keys)
	log.Debug("[tikv].BatchGet:", "keys", len(keys), "err", err)
	return b, err
}

func (w *TikvWrite) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	return tikvIter(ctx, "kv.TikvWrite.Iter", w.txn.Iter, start, end)
}

func (w *TikvWrite) Close() {
	if !w.commited {
		w.Rollback()
	}
}

type TikvRead struct {
	txn *txnsnapshot.KVSnapshot
	err error
}

func (r *TikvRead) Get(ctx context.Context, key []byte) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	ctx, span := tracer.Start(ctx, "kv.TikvRead.Get")
	defer span.End()

	return tikvGet(r.txn.Get(ctx, key))
}

func (r *TikvRead) BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	ctx, span := tracer.Start(ctx, "kv.TikvRead.BatchGet")
	defer span.End()

	b, err := r.txn.BatchGet(ctx, keys)
	log.Debug("[tikv].BatchGet:", "keys", len(keys), "err", err)
	return b, err
}

func (r *TikvRead) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	if r.err != nil {
		return func(yield func(KeyAndValue, error) bool) {
			yield(KeyAndValue{}, r.err)
		}
	}
	return tikvIter(ctx, "kv.TikvRead.Iter", r.txn.Iter, start, end)
}

func (r *TikvRead) Close() {
}

func (r *TikvRead) SetKeyOnly(b bool) {
	r.txn.SetKeyOnly(b)
}

// tikvGet maps tikv's not-found error to the nil, nil contract of Read.Get.
func tikvGet(b []byte, err error) ([]byte, error) {
	if err != nil {
		if tikverr.IsErrNotFound(err) {
			return nil, nil
		}
		log.Debug("[tikv].Get:", "err", err)
		return nil, err
	}
	return b, nil
}

type tikvIterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() error
	Close()
}

func tikvIter[I tikvIterator](ctx context.Context, spanName string, open func(k []byte, upperBound []byte) (I, error), start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	return func(yield func(KeyAndValue, error) bool) {
		_, span := tracer.Start(ctx, spanName)
		defer span.End()

		it, err := open(start, end)
		if err != nil {
			log.Debug("[tikv].Iter:", "start", string(start), "end", string(end), "err", err)
			yield(KeyAndValue{}, err)
			return
		}
		defer it.Close()

		for it.Valid() {
			log.Debug("[tikv].Iter:", "start", string(start), "end", string(end), "at", string(it.Key()))
			if !yield(KeyAndValue{K: it.Key(), V: it.Value()}, nil) {
				return
			}
			if err := it.Next(); err != nil {
				yield(KeyAndValue{}, err)
				return
			}
		}
	}
}

func (t *Tikv) Close() {
	t.k.Close()
}

func (t *Tikv) Write() Write {
	txn, err := t.k.Begin()
	return &TikvWrite{txn: txn, err: err}
}

// ExclusiveWrite starts a pessimistic transaction holding locks on keys.
// Lock waits are retried here instead of using aggressive locking, which
// deadlocks under contention.
func (t *Tikv) ExclusiveWrite(ctx context.Context, keys ...[]byte) (Write, error) {
	var waitMs = int64(100)

	txn, err := t.k.Begin()
	if err != nil {
		return nil, err
	}
	txn.SetPessimistic(true)

	retries := 0
	for {
		waitMs += 1
		retries += 1

		lkctx := kv.NewLockCtx(txn.StartTS(), waitMs, time.Now())

		err = txn.LockKeys(ctx, lkctx, keys...)
		if err == nil {
			break
		}

		// someone changed a locked key after our start ts, restart with a fresh one
		if tikverr.IsErrWriteConflict(err) {
			txn.Rollback()
			txn, err = t.k.Begin()
			if err != nil {
				return nil, err
			}
			txn.SetPessimistic(true)
			continue
		}

		if !errors.Is(err, tikverr.ErrLockWaitTimeout) {
			txn.Rollback()
			return nil, err
		}

		if ctx.Err() != nil {
			txn.Rollback()
			return nil, ctx.Err()
		}
	}

	return &TikvWrite{txn: txn, statLockRetries: retries}, nil
}

func (t *Tikv) Read() Read {
	ts, err := t.k.CurrentTimestamp("global")
	if err != nil {
		return &TikvRead{nil, err}
	}
	return &TikvRead{t.k.GetSnapshot(ts), nil}
}

func (t *Tikv) Ping() error {
	_, err := t.k.CurrentTimestamp("global")
	return err
}

func NewTikv(pdEndpoints []string) (KV, error) {
	if len(pdEndpoints) == 0 {
		pdEndpoints = []string{"127.0.0.1:2379"}
	}
	k, err := txnkv.NewClient(pdEndpoints)
	if err != nil {
		return nil, fmt.Errorf("connect tikv %v: %w", pdEndpoints, err)
	}
	return &Tikv{k}, nil
}
