package kv

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel"
)

var log = slog.New(tint.NewHandler(os.Stderr, nil))

var tracer = otel.Tracer("github.com/aep/oairepo/kv")

type KeyAndValue struct {
	K []byte
	V []byte
}

type KV interface {
	Close()
	Write() Write
	ExclusiveWrite(ctx context.Context, keys ...[]byte) (Write, error)
	Read() Read
	Ping() error
}

// Get returns nil, nil for a missing key on every backend.
type Read interface {
	BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error)
	Get(ctx context.Context, key []byte) ([]byte, error)
	Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error]
	Close()
}

type Write interface {
	Read
	Put(key []byte, value []byte) error
	Del(key []byte) error
	Commit(ctx context.Context) error
	Rollback() error
	Close()
}

// Open selects a backend by name: "pebble" (default), "memory" or "tikv".
func Open(backend string, path string, pdEndpoints []string) (KV, error) {
	switch backend {
	case "", "pebble":
		if path == "" {
			path = "pebble-db"
		}
		return NewPebble(path)
	case "memory":
		return NewMemPebble()
	case "tikv":
		return NewTikv(pdEndpoints)
	default:
		return nil, fmt.Errorf("unknown kv backend %q", backend)
	}
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if there is none.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
