package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial-site/internal/domain"
)

func newPost(t *testing.T, f *fixture, uid, title string) *domain.Post {
	t.Helper()
	p, err := f.community.Create(context.Background(), uid, PostInput{Title: ptr(title), Content: ptr("正文 " + title)})
	require.NoError(t, err)
	return p
}

func TestCreatePost_Defaults(t *testing.T) {
	f := newFixture(t)
	uid := f.register(t, "alice")
	p := newPost(t, f, uid, "怀念")
	assert.Equal(t, domain.CategorySharing, p.Category)
	assert.Equal(t, "alice", p.AuthorName)

	_, err := f.community.Create(context.Background(), uid, PostInput{Title: ptr(""), Content: ptr("x"), Category: ptr("gossip")})
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Fields, 2)
}

func TestToggleLike_Parity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.register(t, "a")
	p := newPost(t, f, uid, "t")

	for i := 1; i <= 5; i++ {
		res, err := f.community.ToggleLike(ctx, uid, p.ID)
		require.NoError(t, err)
		assert.Equal(t, i%2 == 1, res.Liked, "toggle %d", i)
	}
	got, err := f.community.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Likes, 1)
	assert.Equal(t, uid, got.Likes[0].UserID)
	assert.EqualValues(t, len(got.Likes), got.LikeCount)

	_, err = f.community.ToggleLike(ctx, uid, "missing")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCounts_MatchCollections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.register(t, "a")
	other := f.register(t, "b")
	p := newPost(t, f, author, "t")

	c1, err := f.community.AddComment(ctx, other, p.ID, "节哀")
	require.NoError(t, err)
	assert.EqualValues(t, 1, c1.CommentCount)
	assert.Equal(t, "b", c1.Comment.AuthorName)
	_, err = f.community.AddComment(ctx, author, p.ID, "谢谢")
	require.NoError(t, err)
	_, err = f.community.ToggleLike(ctx, other, p.ID)
	require.NoError(t, err)
	_, err = f.community.ToggleLike(ctx, author, p.ID)
	require.NoError(t, err)

	// 帖子作者可以删别人的评论
	n, err := f.community.DeleteComment(ctx, author, p.ID, c1.Comment.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := f.community.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, len(got.Comments), got.CommentCount)
	assert.EqualValues(t, len(got.Likes), got.LikeCount)
	assert.EqualValues(t, 2, got.LikeCount)
}

func TestDeleteComment_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.register(t, "a")
	commenter := f.register(t, "b")
	stranger := f.register(t, "c")
	p := newPost(t, f, author, "t")
	c, err := f.community.AddComment(ctx, commenter, p.ID, "hi")
	require.NoError(t, err)

	_, err = f.community.DeleteComment(ctx, stranger, p.ID, c.Comment.ID)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = f.community.DeleteComment(ctx, commenter, p.ID, "nope")
	assert.EqualError(t, err, "评论不存在")
	_, err = f.community.DeleteComment(ctx, commenter, p.ID, c.Comment.ID)
	assert.NoError(t, err)
}

func TestLockedPostRefusesComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.register(t, "a")
	other := f.register(t, "b")
	p := newPost(t, f, author, "t")

	_, err := f.community.ToggleLock(ctx, other, p.ID)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	locked, err := f.community.ToggleLock(ctx, author, p.ID)
	require.NoError(t, err)
	assert.True(t, locked)

	_, err = f.community.AddComment(ctx, other, p.ID, "hi")
	assert.EqualError(t, err, "帖子已锁定，无法评论")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	got, _ := f.community.Get(ctx, p.ID)
	assert.Zero(t, got.CommentCount)
}

func TestListAndHot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.register(t, "a")
	other := f.register(t, "b")
	first := newPost(t, f, uid, "第一篇")
	second := newPost(t, f, uid, "第二篇 Hello")
	_, err := f.community.Create(ctx, uid, PostInput{Title: ptr("问题"), Content: ptr("q"), Category: ptr("question")})
	require.NoError(t, err)

	pinned, err := f.community.TogglePin(ctx, uid, first.ID)
	require.NoError(t, err)
	assert.True(t, pinned)
	_, err = f.community.TogglePin(ctx, other, first.ID)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	page, err := f.community.List(ctx, 1, 2, "", "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, first.ID, page.Posts[0].ID)
	assert.Empty(t, page.Posts[0].Content)

	page, err = f.community.List(ctx, 1, 10, "", "hello")
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, second.ID, page.Posts[0].ID)

	page, err = f.community.List(ctx, 1, 10, "question", "")
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)

	_, err = f.community.List(ctx, 1, 10, "gossip", "")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.community.ToggleLike(ctx, other, second.ID)
	require.NoError(t, err)
	hot, err := f.community.Hot(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hot, 3)
	assert.Equal(t, second.ID, hot[0].ID)
}

func TestHot_LimitsCutFromOneRanking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.register(t, "a")
	other := f.register(t, "b")
	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, newPost(t, f, uid, fmt.Sprintf("帖子%d", i)).ID)
	}
	_, err := f.community.ToggleLike(ctx, other, ids[6])
	require.NoError(t, err)

	for _, limit := range []int{2, 7, 20} {
		hot, err := f.community.Hot(ctx, limit)
		require.NoError(t, err)
		assert.Len(t, hot, min(limit, len(ids)), "limit %d", limit)
		assert.Equal(t, ids[6], hot[0].ID, "limit %d", limit)
	}

	// 点赞变化后任意 limit 都看到新的排名
	_, err = f.community.ToggleLike(ctx, other, ids[6])
	require.NoError(t, err)
	_, err = f.community.ToggleLike(ctx, other, ids[3])
	require.NoError(t, err)
	hot, err := f.community.Hot(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, ids[3], hot[0].ID)
}

func TestUpdateDeleteAndModeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.register(t, "a")
	other := f.register(t, "b")
	p := newPost(t, f, uid, "t")

	_, err := f.community.Update(ctx, other, p.ID, PostInput{Title: ptr("x")})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	got, err := f.community.Update(ctx, uid, p.ID, PostInput{Title: ptr("新标题"), Category: ptr("support")})
	require.NoError(t, err)
	assert.Equal(t, "新标题", got.Title)
	assert.Equal(t, "情感支持", got.Category.Label())

	assert.Equal(t, domain.KindForbidden, domain.KindOf(f.community.Delete(ctx, other, p.ID)))

	pinned, err := f.community.ModeratePin(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, pinned)
	require.NoError(t, f.community.ModerateDelete(ctx, p.ID))
	_, err = f.community.Get(ctx, p.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(f.community.ModerateDelete(ctx, p.ID)))
}
