package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jonwraymond/marketcache/record"
)

func TestEntryCodec(t *testing.T) {
	in := &Entry{
		Records: []record.Record{
			{record.FieldDate: "2024-03-13 00:00:00", record.FieldClose: 3, record.FieldName: "沪深300"},
			{record.FieldDate: "2024-03-12 00:00:00", record.FieldClose: int64(2), record.FieldVolume: float32(1.5)},
		},
		From:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Through:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		WrittenAt: time.Date(2024, 3, 13, 16, 0, 0, 0, time.UTC),
		TTL:       time.Hour,
	}

	b, err := EncodeEntry(in)
	require.NoError(t, err)
	out, err := DecodeEntry(b)
	require.NoError(t, err)

	require.Len(t, out.Records, 2)
	assert.Equal(t, "2024-03-12 00:00:00", out.Records[0].DateKey(), "decoded series is sorted")
	assert.Equal(t, 2.0, out.Records[0][record.FieldClose])
	assert.Equal(t, 1.5, out.Records[0][record.FieldVolume])
	assert.Equal(t, "沪深300", out.Records[1][record.FieldName])
	assert.True(t, in.From.Equal(out.From))
	assert.True(t, in.Through.Equal(out.Through))
	assert.True(t, in.WrittenAt.Equal(out.WrittenAt))
	assert.Equal(t, time.Hour, out.TTL)
	assert.False(t, out.Snapshot)
	assert.True(t, out.Latest().Equal(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, out.Len())
}

func TestEntryCodec_ZeroFromMeansAllHistory(t *testing.T) {
	b, err := EncodeEntry(&Entry{TTL: time.Minute})
	require.NoError(t, err)
	out, err := DecodeEntry(b)
	require.NoError(t, err)
	assert.True(t, out.From.IsZero())
	assert.True(t, out.Through.IsZero())
	assert.True(t, out.WrittenAt.IsZero())
	assert.Empty(t, out.Records)
	assert.Equal(t, record.MinTime, out.Latest())
}

func TestEntryCodec_SnapshotKeepsOrder(t *testing.T) {
	in := &Entry{
		Records: []record.Record{
			{record.FieldTitle: "second", record.FieldDate: "2024-03-15 10:00:00"},
			{record.FieldTitle: "first", record.FieldDate: "2024-03-14 10:00:00"},
			{record.FieldStrike: 3.5},
		},
		TTL:      time.Minute,
		Snapshot: true,
	}
	b, err := EncodeEntry(in)
	require.NoError(t, err)
	out, err := DecodeEntry(b)
	require.NoError(t, err)

	require.Len(t, out.Records, 3)
	assert.Equal(t, "second", out.Records[0][record.FieldTitle])
	assert.Equal(t, "first", out.Records[1][record.FieldTitle])
	assert.Equal(t, 3.5, out.Records[2][record.FieldStrike])
	assert.True(t, out.Snapshot)
}

func TestDecodeEntry_Errors(t *testing.T) {
	_, err := DecodeEntry([]byte("not msgpack"))
	assert.Error(t, err)

	b, err := msgpack.Marshal(&wireEntry{Version: entryVersion + 1})
	require.NoError(t, err)
	_, err = DecodeEntry(b)
	assert.ErrorIs(t, err, ErrEntryVersion)
}
