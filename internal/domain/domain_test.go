package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_DerivesCategoryLabel(t *testing.T) {
	p := Post{ID: "p1", Title: "t", Category: CategorySupport,
		Likes: []PostLike{{PostID: "p1", UserID: "u1"}, {PostID: "p1", UserID: "u2"}}, LikeCount: 2}

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "情感支持", got["categoryLabel"])
	assert.Equal(t, "support", got["category"])
	assert.Equal(t, []any{"u1", "u2"}, got["likes"])
	assert.EqualValues(t, 2, got["likeCount"])
}

func TestCategory(t *testing.T) {
	assert.True(t, CategoryQuestion.Valid())
	assert.False(t, Category("gossip").Valid())
	assert.Equal(t, "其他", Category("gossip").Label())
}

func TestMemorialJSON(t *testing.T) {
	m := Memorial{ID: "m1", CreatedBy: "u1", PasswordHash: "x",
		Admins: []MemorialAdmin{{MemorialID: "m1", UserID: "u1"}}}

	b, err := json.Marshal(&m)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, []any{"u1"}, got["admins"])
	assert.Equal(t, true, got["hasPassword"])
	assert.NotContains(t, got, "PasswordHash")
	assert.NotContains(t, got, "passwordHash")
}

func TestMemorial_MembersAndRefs(t *testing.T) {
	m := Memorial{
		CreatedBy:       "owner",
		Admins:          []MemorialAdmin{{UserID: "owner"}, {UserID: "helper"}},
		MainPhoto:       "/uploads/photos/a.jpg",
		BackgroundMusic: "/uploads/audios/b.mp3",
		Photos:          []Photo{{URL: "/uploads/photos/c.jpg"}},
		Documents:       []Document{{URL: "/uploads/documents/d.pdf"}},
	}
	assert.True(t, m.IsMember("owner"))
	assert.True(t, m.IsMember("helper"))
	assert.False(t, m.IsMember("stranger"))
	assert.False(t, m.IsMember(""))

	assert.ElementsMatch(t, []string{
		"/uploads/photos/a.jpg", "/uploads/audios/b.mp3", "/uploads/photos/c.jpg", "/uploads/documents/d.pdf",
	}, m.FileRefs())

	m.SetSlotRef(SlotBackgroundImage, "/uploads/photos/e.png")
	assert.Equal(t, "/uploads/photos/e.png", m.SlotRef(SlotBackgroundImage))
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("memorial not found"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "a; b", Validation("", "a", "b").Error())
}
