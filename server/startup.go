package server

import (
	"context"
	"log/slog"
	"time"
)

// startup drops tokens that expired while the server was down and checks the
// record store is reachable.
func (s *server) startup(ctx context.Context) {
	n, err := s.tokens.PurgeExpired(ctx, time.Now())
	if err != nil {
		panic(err)
	}
	if n > 0 {
		slog.Info("purged expired resumption tokens", "count", n)
	}

	if err := s.store.Ping(ctx); err != nil {
		panic(err)
	}
}
