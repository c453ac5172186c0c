package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullItem() Item {
	movie := uint64(603)
	return Item{
		Name:            "The Matrix 1999 1080p",
		Description:     "line one\nline two",
		InfoHash:        "0123456789ABCDEF0123456789ABCDEF01234567",
		Category:        "Movies",
		Type:            "HD",
		Language:        "English",
		TotalSize:       1288490188,
		Uploader:        "uploader42",
		Downloads:       1200,
		LastCheckedAt:   1700000000,
		UploadedAt:      1690000000,
		Seeders:         35,
		Leechers:        4,
		ScrapedAt:       1700000100,
		ExternalMovieID: &movie,
		Images:          []string{"https://img.example/a.jpg", "https://img.example/a.jpg"},
		Trackers:        []string{"udp://tracker.example:1337/announce"},
		Files:           []File{{Name: "movie.mkv", Size: 1288490000}, {Name: "empty.txt"}},
		Comments: []Comment{
			{Avatar: "/a.png", Class: "vip", Body: "thanks", CommentID: 9, PostedAt: 1699990000, Username: "neo"},
			{Avatar: DefaultAvatar, Class: DeletedSentinel, Body: "gone", CommentID: 10, PostedAt: 1699990001, Username: DeletedSentinel},
		},
	}
}

func TestItemRoundTripDefaults(t *testing.T) {
	t.Parallel()

	original := Item{Name: "bare", InfoHash: "abc"}
	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"bare","infohash":"abc"}`, string(raw))

	var decoded Item
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestItemRoundTripPopulated(t *testing.T) {
	t.Parallel()

	original := fullItem()
	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Item
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestCommentSentinelsOmitted(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Comment{
		Avatar:    DefaultAvatar,
		Class:     DeletedSentinel,
		Body:      "hi",
		CommentID: 3,
		PostedAt:  5,
		Username:  DeletedSentinel,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"body":"hi","comment_id":3,"posted_at":5}`, string(raw))

	var decoded Comment
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, DefaultAvatar, decoded.Avatar)
	assert.Equal(t, DeletedSentinel, decoded.Class)
	assert.Equal(t, DeletedSentinel, decoded.Username)
}

func TestEmptyListsOmitted(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Item{Name: "x", Images: []string{}, Files: []File{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","infohash":""}`, string(raw))
}

func TestEmptyListsAreNil(t *testing.T) {
	t.Parallel()

	var decoded Item
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","infohash":"","images":[],"trackers":[],"files":[],"comments":[]}`), &decoded))
	assert.Equal(t, Item{Name: "x"}, decoded)

	item, ok := Found(Item{Name: "x", Images: []string{}, Comments: []Comment{}}).Item()
	require.True(t, ok)
	assert.Nil(t, item.Images)
	assert.Nil(t, item.Comments)

	raw, err := json.Marshal(item)
	require.NoError(t, err)
	var again Item
	require.NoError(t, json.Unmarshal(raw, &again))
	assert.Equal(t, item, again)
}

func TestChunkEncodesTombstonesAsNull(t *testing.T) {
	t.Parallel()

	chunk := Chunk{
		999:  Tombstone(),
		1000: Found(Item{Name: "kept", InfoHash: "h"}),
	}
	raw, err := json.Marshal(chunk)
	require.NoError(t, err)
	assert.JSONEq(t, `{"999":null,"1000":{"name":"kept","infohash":"h"}}`, string(raw))

	var decoded Chunk
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.True(t, decoded[999].IsTombstone())
	item, ok := decoded[1000].Item()
	require.True(t, ok)
	assert.Equal(t, "kept", item.Name)
}

func TestItemValidateIdentityExclusive(t *testing.T) {
	t.Parallel()

	item := fullItem()
	require.NoError(t, item.Validate())

	series := "the-expanse"
	item.ExternalSeriesID = &series
	assert.ErrorIs(t, item.Validate(), ErrIdentityConflict)
}

func TestTimestampOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Timestamp(0), TimestampOf(time.Unix(-10, 0)))
	ts := TimestampOf(time.Unix(1700000000, 0))
	assert.Equal(t, Timestamp(1700000000), ts)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ts.Time())
}
