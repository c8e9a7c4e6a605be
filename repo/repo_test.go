package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newTestStore(t *testing.T) *SQLStore {
	s, err := OpenSQLite(context.Background(), ":memory:", "http://example.org/")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC)
}

func putRecord(t *testing.T, s *SQLStore, rec Record) *Record {
	require.NoError(t, s.PutRecord(context.Background(), &rec))
	return &rec
}

func TestPutAndFindRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := make(Elements)
	e.Add(DublinCore, "Title", "First")
	e.Add(DublinCore, "Title", "Second")
	e.Add(DublinCore, "Creator", "Alice")

	fe := make(Elements)
	fe.Add(DublinCore, "Title", "Scan")

	rec := putRecord(t, s, Record{
		Public:   true,
		ItemType: "Text",
		Added:    day(1),
		Modified: day(2),
		Elements: e,
		Files: []File{
			{Filename: "abc.jpg", OriginalFilename: "scan.jpg", MimeType: "image/jpeg", Elements: fe},
		},
	})
	require.NotZero(t, rec.ID)

	found, err := s.FindRecordByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, found.ElementTexts(DublinCore, "Title"))
	assert.Equal(t, []string{"Alice"}, found.ElementTexts(DublinCore, "Creator"))
	assert.Equal(t, "Text", found.ItemType)
	assert.Equal(t, day(1), found.Added)
	assert.Equal(t, day(2), found.Modified)
	assert.Equal(t, "http://example.org/items/show/1", found.URL)

	require.Len(t, found.Files, 1)
	assert.Equal(t, "http://example.org/files/original/abc.jpg", found.Files[0].URL)
	assert.Equal(t, "image/jpeg", found.Files[0].MimeType)
	assert.Equal(t, []string{"Scan"}, found.Files[0].ElementTexts(DublinCore, "Title"))
}

func TestFindRecordByIDSkipsPrivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := putRecord(t, s, Record{Public: false, Added: day(1)})

	_, err := s.FindRecordByID(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindRecordByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := s.Record(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, found.Public)
}

func TestPutRecordReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := make(Elements)
	e.Add(DublinCore, "Title", "Old")
	putRecord(t, s, Record{ID: 5, Public: true, Added: day(1), Elements: e, Files: []File{{Filename: "a.pdf"}}})

	e = make(Elements)
	e.Add(DublinCore, "Title", "New")
	putRecord(t, s, Record{ID: 5, Public: true, Added: day(1), Modified: day(3), Elements: e})

	found, err := s.FindRecordByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"New"}, found.ElementTexts(DublinCore, "Title"))
	assert.Empty(t, found.Files)
	assert.Equal(t, day(3), found.Modified)
}

func TestFindPublicRecordsPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		putRecord(t, s, Record{Public: true, Added: day(1)})
	}
	putRecord(t, s, Record{Public: false, Added: day(1)})

	page, total, err := s.FindPublicRecords(ctx, Query{Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 3)
	assert.Equal(t, int64(4), page[0].ID)
	assert.Equal(t, int64(6), page[2].ID)

	page, total, err = s.FindPublicRecords(ctx, Query{Limit: 3, Offset: 6})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, page, 1)

	page, _, err = s.FindPublicRecords(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, page, 7)
}

func TestFindPublicRecordsDateWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// added early, modified late
	putRecord(t, s, Record{ID: 1, Public: true, Added: day(1), Modified: day(20)})
	putRecord(t, s, Record{ID: 2, Public: true, Added: day(5), Modified: day(5)})
	putRecord(t, s, Record{ID: 3, Public: true, Added: day(10), Modified: day(10)})

	ids := func(q Query) []int64 {
		recs, _, err := s.FindPublicRecords(ctx, q)
		require.NoError(t, err)
		var out []int64
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []int64{1, 3}, ids(Query{From: "2024-01-08 00:00:00"}))
	assert.Equal(t, []int64{1, 2}, ids(Query{Until: "2024-01-06 00:00:00"}))
	// each bound may be met by a different timestamp
	assert.Equal(t, []int64{1, 2}, ids(Query{From: "2024-01-05 10:00:00", Until: "2024-01-05 10:00:00"}))
	assert.Empty(t, ids(Query{From: "2025-01-01 00:00:00"}))
}

func TestFindPublicRecordsBySet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &Set{Public: true, Name: "A"}
	require.NoError(t, s.PutSet(ctx, a))

	putRecord(t, s, Record{Public: true, SetID: &a.ID, Added: day(1)})
	putRecord(t, s, Record{Public: true, Added: day(1)})

	recs, total, err := s.FindPublicRecords(ctx, Query{Set: &a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, recs, 1)
	assert.Equal(t, a.ID, *recs[0].SetID)
}

func TestListSets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	full := &Set{Public: true, Name: "Photos", Descriptions: []string{"Old photos", "Scanned"}}
	empty := &Set{Public: true}
	hidden := &Set{Public: false, Name: "Hidden"}
	for _, set := range []*Set{full, empty, hidden} {
		require.NoError(t, s.PutSet(ctx, set))
	}
	putRecord(t, s, Record{Public: true, SetID: &full.ID, Added: day(1)})
	putRecord(t, s, Record{Public: true, SetID: &hidden.ID, Added: day(1)})

	sets, total, err := s.ListSets(ctx, SetQuery{IncludeEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, sets, 2)
	assert.Equal(t, "Photos", sets[0].Name)
	assert.Equal(t, []string{"Old photos", "Scanned"}, sets[0].Descriptions)
	assert.Equal(t, "Collection #2", sets[1].Name)

	sets, total, err = s.ListSets(ctx, SetQuery{IncludeEmpty: false})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, sets, 1)
	assert.Equal(t, full.ID, sets[0].ID)

	sets, total, err = s.ListSets(ctx, SetQuery{IncludeEmpty: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, sets, 1)
	assert.Equal(t, empty.ID, sets[0].ID)
}

type countingStore struct {
	Store
	calls atomic.Int32
}

func (c *countingStore) FindRecordByID(ctx context.Context, id int64) (*Record, error) {
	c.calls.Inc()
	return c.Store.FindRecordByID(ctx, id)
}

func TestCachedFindRecordByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := putRecord(t, s, Record{Public: true, Added: day(1)})

	counting := &countingStore{Store: s}
	c, err := NewCached(counting, 100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 3; i++ {
		found, err := c.FindRecordByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, found.ID)
	}
	assert.Equal(t, int32(1), counting.calls.Load())

	// misses are not cached
	for i := 0; i < 2; i++ {
		_, err = c.FindRecordByID(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(3), counting.calls.Load())
}
