package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONPage_Unmarshal(t *testing.T) {
	raw := `{
		"data": [
			{"id":"101","thumb_original_url":"https://img/101","is_pano":true,
			 "captured_at":1600000000000,"width":4096,"height":2048,"sequence":"seqA"},
			{"id":"102","is_panorama":true,"captured_at":"2021-05-01T10:00:00Z","width":10,"height":5},
			{"id":"103","captured_at":null}
		],
		"paging": {"cursors": {"after": "abc"}}
	}`

	var page JSONPage
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	require.Len(t, page.Data, 3)
	assert.Equal(t, "abc", page.NextCursor())

	r0 := page.Data[0].ToRecord()
	assert.Equal(t, "101", r0.ID)
	assert.True(t, r0.IsPano)
	assert.Equal(t, "https://img/101", r0.DownloadURL)
	assert.Equal(t, "seqA", r0.SequenceID)
	assert.Equal(t, time.UnixMilli(1600000000000).UTC(), r0.CapturedAt)

	r1 := page.Data[1].ToRecord()
	assert.True(t, r1.IsPano, "legacy is_panorama flag")
	assert.Equal(t, time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC), r1.CapturedAt)

	r2 := page.Data[2].ToRecord()
	assert.False(t, r2.IsPano)
	assert.True(t, r2.CapturedAt.IsZero())
	assert.Empty(t, r2.DownloadURL)
}

func TestTimestamp_Invalid(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &ts))
}

func TestJSONPage_NoCursor(t *testing.T) {
	var page JSONPage
	require.NoError(t, json.Unmarshal([]byte(`{"data":[]}`), &page))
	assert.Empty(t, page.NextCursor())
}
