package oai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGranularityOf(t *testing.T) {
	assert.Equal(t, Date, GranularityOf("2020-01-01"))
	assert.Equal(t, DateTime, GranularityOf("2020-01-01T00:00:00Z"))
	assert.Equal(t, Invalid, GranularityOf("2020-01-01T00:00:00"))
	assert.Equal(t, Invalid, GranularityOf("2020-01-01 00:00:00"))
	assert.Equal(t, Invalid, GranularityOf("20-01-01"))
	assert.Equal(t, Invalid, GranularityOf(""))
}

func TestDateConversions(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "2021-03-04T05:06:07Z", ToUTC(ts))
	assert.Equal(t, "2021-03-04 05:06:07", ToStorage(ts))
	assert.Equal(t, "1970-01-01T00:00:00Z", UnixToUTC(0))
	assert.Equal(t, "1970-01-01 00:00:00", UnixToStorage(0))

	// non-UTC input is normalized
	cet := time.FixedZone("CET", 3600)
	assert.Equal(t, "2021-03-04T04:06:07Z", ToUTC(time.Date(2021, 3, 4, 5, 6, 7, 0, cet)))

	s, err := UTCToStorage("2021-03-04T05:06:07Z")
	require.NoError(t, err)
	assert.Equal(t, "2021-03-04 05:06:07", s)

	s, err = UTCToStorage("2021-03-04")
	require.NoError(t, err)
	assert.Equal(t, "2021-03-04 00:00:00", s)

	u, err := StorageToUTC("2021-03-04 05:06:07")
	require.NoError(t, err)
	assert.Equal(t, "2021-03-04T05:06:07Z", u)

	_, err = UTCToStorage("2021-03-04T05:06:07")
	assert.ErrorIs(t, err, ErrBadGranularity)

	_, err = UTCToStorage("2021-13-45")
	assert.Error(t, err)
}

func TestIdentifierRoundTrip(t *testing.T) {
	for _, id := range []int64{0, 1, 42, 1 << 40, 1<<63 - 1} {
		oaiID := RecordToOAIID(id, "example.org")
		back, err := OAIIDToRecord(oaiID, "example.org")
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}
	assert.Equal(t, "oai:example.org:5", RecordToOAIID(5, "example.org"))
}

func TestIdentifierRejects(t *testing.T) {
	for _, in := range []string{
		"oai:other.org:5",
		"oai:example.org",
		"oai:example.org:5:6",
		"foo:example.org:5",
		"oai:example.org:-5",
		"oai:example.org:+5",
		"oai:example.org:abc",
		"oai:example.org:",
		"oai:example.org:99999999999999999999",
		"",
	} {
		_, err := OAIIDToRecord(in, "example.org")
		assert.ErrorIs(t, err, ErrIDDoesNotExist, in)
	}
}

func TestQueryKeyCounts(t *testing.T) {
	counts := queryKeyCounts("verb=Identify&verb=Identify&meta%64ataPrefix=oai_dc&&x")
	assert.Equal(t, 2, counts["verb"])
	assert.Equal(t, 1, counts["metadataPrefix"])
	assert.Equal(t, 1, counts["x"])
}
