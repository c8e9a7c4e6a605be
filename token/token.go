// Package token persists OAI-PMH resumption tokens.
//
// Key layout in the KV store:
//
//	s\xfftoken\xff                  id sequence, 8 byte big endian
//	t\xff<id>                       token, 'j' + json
//	x\xff<expiration><id>           expiration index, empty value
//
// All integers are 8 byte big endian so the expiration index iterates in
// time order and purging is a single range scan.
package token

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aep/oairepo/kv"
)

// Verbs that page with resumption tokens.
const (
	ListIdentifiers = "ListIdentifiers"
	ListRecords     = "ListRecords"
	ListSets        = "ListSets"
)

var ErrInvalidVerb = errors.New("verb does not support resumption tokens")

var (
	seqKey       = []byte("s\xfftoken\xff")
	tokenPrefix  = []byte("t\xff")
	expiryPrefix = []byte("x\xff")
)

type Token struct {
	ID             uint64    `json:"id"`
	Verb           string    `json:"verb"`
	MetadataPrefix string    `json:"metadataPrefix"`
	Cursor         uint64    `json:"cursor"`
	From           string    `json:"from,omitempty"`
	Until          string    `json:"until,omitempty"`
	Set            *int64    `json:"set,omitempty"`
	Expiration     time.Time `json:"expiration"`
}

// Expired reports whether the token is no longer valid at now.
func (t *Token) Expired(now time.Time) bool {
	return !t.Expiration.After(now)
}

// Params are the request parameters a token carries over to the next page.
type Params struct {
	Verb           string
	MetadataPrefix string
	Cursor         uint64
	From           string
	Until          string
	Set            *int64
}

type Store struct {
	kv  kv.KV
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now as the source of expiration times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(k kv.KV, opts ...Option) *Store {
	s := &Store{kv: k, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func validVerb(verb string) bool {
	switch verb {
	case ListIdentifiers, ListRecords, ListSets:
		return true
	}
	return false
}

func tokenKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), tokenPrefix...), id)
}

func expiryKey(expiration time.Time, id uint64) []byte {
	k := append([]byte(nil), expiryPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(expiration.Unix()))
	return binary.BigEndian.AppendUint64(k, id)
}

// Create issues a token expiring ttl from now. Ids come from a sequence key
// incremented under an exclusive write, so concurrent callers never share one.
func (s *Store) Create(ctx context.Context, p Params, ttl time.Duration) (*Token, error) {
	if !validVerb(p.Verb) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVerb, p.Verb)
	}

	w, err := s.kv.ExclusiveWrite(ctx, seqKey)
	if err != nil {
		return nil, fmt.Errorf("lock token sequence: %w", err)
	}
	defer w.Close()

	cur, err := w.Get(ctx, seqKey)
	if err != nil {
		return nil, fmt.Errorf("read token sequence: %w", err)
	}
	var id uint64 = 1
	if len(cur) == 8 {
		id = binary.BigEndian.Uint64(cur) + 1
	}

	tok := &Token{
		ID:             id,
		Verb:           p.Verb,
		MetadataPrefix: p.MetadataPrefix,
		Cursor:         p.Cursor,
		From:           p.From,
		Until:          p.Until,
		Set:            p.Set,
		Expiration:     s.now().UTC().Add(ttl).Truncate(time.Second),
	}

	b, err := serialize(tok)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	if err := w.Put(seqKey, binary.BigEndian.AppendUint64(nil, id)); err != nil {
		return nil, err
	}
	if err := w.Put(tokenKey(id), b); err != nil {
		return nil, err
	}
	if err := w.Put(expiryKey(tok.Expiration, id), []byte{0}); err != nil {
		return nil, err
	}
	if err := w.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit token: %w", err)
	}

	slog.Debug("issued resumption token", "id", id, "verb", p.Verb, "cursor", p.Cursor)
	return tok, nil
}

// Find returns the token with id, or nil if there is none. Expired tokens
// that have not been purged yet are returned as well.
func (s *Store) Find(ctx context.Context, id uint64) (*Token, error) {
	r := s.kv.Read()
	defer r.Close()

	b, err := r.Get(ctx, tokenKey(id))
	if err != nil {
		return nil, fmt.Errorf("read token %d: %w", id, err)
	}
	if b == nil {
		return nil, nil
	}

	tok := new(Token)
	if err := deserialize(b, tok); err != nil {
		return nil, fmt.Errorf("unmarshal token %d: %w", id, err)
	}
	return tok, nil
}

// PurgeExpired deletes every token with expiration <= now and returns how
// many were removed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	end := append([]byte(nil), expiryPrefix...)
	end = binary.BigEndian.AppendUint64(end, uint64(now.Unix())+1)

	var expired [][]byte
	r := s.kv.Read()
	for item, err := range r.Iter(ctx, expiryPrefix, end) {
		if err != nil {
			r.Close()
			return 0, fmt.Errorf("scan expired tokens: %w", err)
		}
		expired = append(expired, item.K)
	}
	r.Close()

	if len(expired) == 0 {
		return 0, nil
	}

	w := s.kv.Write()
	defer w.Close()

	for _, k := range expired {
		if len(k) != len(expiryPrefix)+16 {
			continue
		}
		id := binary.BigEndian.Uint64(k[len(k)-8:])
		if err := w.Del(tokenKey(id)); err != nil {
			return 0, err
		}
		if err := w.Del(k); err != nil {
			return 0, err
		}
	}
	if err := w.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit token purge: %w", err)
	}

	slog.Debug("purged expired resumption tokens", "count", len(expired))
	return len(expired), nil
}

// List returns all stored tokens in id order.
func (s *Store) List(ctx context.Context) ([]Token, error) {
	r := s.kv.Read()
	defer r.Close()

	var tokens []Token
	for item, err := range r.Iter(ctx, tokenPrefix, kv.PrefixEnd(tokenPrefix)) {
		if err != nil {
			return nil, err
		}
		var tok Token
		if err := deserialize(item.V, &tok); err != nil {
			return nil, fmt.Errorf("unmarshal token %x: %w", item.K, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
