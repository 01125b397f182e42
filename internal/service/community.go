package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"memorial-site/internal/core/cache"
	"memorial-site/internal/domain"
	"memorial-site/pkg/utils"
)

const (
	maxTitle        = 100
	maxComment      = 1000
	defaultHotLimit = 5
	maxHotLimit     = 50
	anonymousUser   = "匿名用户"
)

type PostInput struct {
	Title    *string
	Content  *string
	Category *string
}

type PostPage struct {
	Posts      []domain.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

type CommentResult struct {
	Comment      domain.Comment `json:"comment"`
	CommentCount int64          `json:"commentCount"`
}

type CommunityService struct {
	posts  domain.PostRepository
	users  domain.UserRepository
	cache  *cache.Cache
	hotTTL time.Duration
	log    *zap.Logger
}

func NewCommunityService(posts domain.PostRepository, users domain.UserRepository, c *cache.Cache, hotTTL time.Duration, l *zap.Logger) *CommunityService {
	return &CommunityService{posts: posts, users: users, cache: c, hotTTL: hotTTL, log: l}
}

var errPostNotFound = domain.NotFound("帖子不存在")

// 只缓存一份最长的热门榜，各个 limit 从中截取，失效时删一个 key 即可
var hotKey = fmt.Sprintf("community:hot:%d", maxHotLimit)

func (s *CommunityService) invalidateHot(ctx context.Context) {
	s.cache.Invalidate(ctx, hotKey)
}

func postNotFound(err error) error {
	if errors.Is(err, domain.ErrRecordNotFound) {
		return errPostNotFound
	}
	return err
}

func (s *CommunityService) List(ctx context.Context, page, limit int, category, search string) (*PostPage, error) {
	c := domain.Category(strings.TrimSpace(category))
	if c != "" && !c.Valid() {
		return nil, domain.Validation("无效的分类", "category: must be one of sharing, support, question, other")
	}
	page, limit = normPage(page, limit, 10, 100)
	posts, total, err := s.posts.List(ctx, domain.PostQuery{Page: page, Limit: limit, Category: c, Search: search})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return &PostPage{Posts: posts, Pagination: NewPagination(page, limit, total)}, nil
}

// Hot 配置了 redis 时读缓存，写操作后失效
func (s *CommunityService) Hot(ctx context.Context, limit int) ([]domain.Post, error) {
	if limit < 1 {
		limit = defaultHotLimit
	}
	limit = min(limit, maxHotLimit)
	posts, err := cache.GetOrLoadJSON(s.cache, ctx, hotKey, s.hotTTL, func(ctx context.Context) ([]domain.Post, error) {
		return s.posts.Hot(ctx, maxHotLimit)
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		return []domain.Post{}, nil
	}
	return posts[:min(limit, len(posts))], nil
}

func (s *CommunityService) Get(ctx context.Context, id string) (*domain.Post, error) {
	p, err := s.posts.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errPostNotFound
	}
	return p, nil
}

func (s *CommunityService) load(ctx context.Context, id string) (*domain.Post, error) {
	p, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errPostNotFound
	}
	return p, nil
}

// authorName 发帖/评论时快照用户名
func (s *CommunityService) authorName(ctx context.Context, uid string) string {
	u, err := s.users.FindByID(ctx, uid)
	if err != nil || u == nil {
		return anonymousUser
	}
	return u.Username
}

func checkPost(title, content string, category domain.Category) error {
	var errs fieldErrors
	if title == "" {
		errs.add("title: 标题不能为空")
	} else if utf8.RuneCountInString(title) > maxTitle {
		errs.add("title: 标题不能超过100字")
	}
	if content == "" {
		errs.add("content: 内容不能为空")
	}
	if !category.Valid() {
		errs.add("category: must be one of sharing, support, question, other")
	}
	return errs.err("数据验证失败")
}

func (s *CommunityService) Create(ctx context.Context, uid string, in PostInput) (*domain.Post, error) {
	p := &domain.Post{
		ID:       utils.NewID(),
		Title:    strings.TrimSpace(str(in.Title)),
		Content:  strings.TrimSpace(str(in.Content)),
		Category: domain.CategorySharing,
		AuthorID: uid,
	}
	if in.Category != nil {
		p.Category = domain.Category(strings.TrimSpace(*in.Category))
	}
	if err := checkPost(p.Title, p.Content, p.Category); err != nil {
		return nil, err
	}
	p.AuthorName = s.authorName(ctx, uid)
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}
	s.invalidateHot(ctx)
	return p, nil
}

func (s *CommunityService) Update(ctx context.Context, uid, id string, in PostInput) (*domain.Post, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != uid {
		return nil, domain.Forbidden("无权限修改")
	}
	fields := map[string]any{}
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
		fields["title"] = p.Title
	}
	if in.Content != nil {
		p.Content = strings.TrimSpace(*in.Content)
		fields["content"] = p.Content
	}
	if in.Category != nil {
		p.Category = domain.Category(strings.TrimSpace(*in.Category))
		fields["category"] = p.Category
	}
	if err := checkPost(p.Title, p.Content, p.Category); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.posts.Update(ctx, id, fields); err != nil {
			return nil, postNotFound(err)
		}
		s.invalidateHot(ctx)
	}
	return s.load(ctx, id)
}

func (s *CommunityService) Delete(ctx context.Context, uid, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if p.AuthorID != uid {
		return domain.Forbidden("无权限删除")
	}
	return s.remove(ctx, id)
}

func (s *CommunityService) remove(ctx context.Context, id string) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		return postNotFound(err)
	}
	s.invalidateHot(ctx)
	return nil
}

func (s *CommunityService) ToggleLike(ctx context.Context, uid, id string) (*LikeResult, error) {
	liked, n, err := s.posts.ToggleLike(ctx, id, uid)
	if err != nil {
		return nil, postNotFound(err)
	}
	s.invalidateHot(ctx)
	return &LikeResult{Liked: liked, LikeCount: n}, nil
}

func (s *CommunityService) AddComment(ctx context.Context, uid, id, content string) (*CommentResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Validation("数据验证失败", "content: 评论内容不能为空")
	}
	if utf8.RuneCountInString(content) > maxComment {
		return nil, domain.Validation("数据验证失败", "content: 评论不能超过1000字")
	}
	c := &domain.Comment{
		ID:         utils.NewID(),
		PostID:     id,
		AuthorID:   uid,
		AuthorName: s.authorName(ctx, uid),
		Content:    content,
	}
	n, err := s.posts.AddComment(ctx, c)
	if errors.Is(err, domain.ErrPostLocked) {
		return nil, domain.Forbidden("帖子已锁定，无法评论")
	}
	if err != nil {
		return nil, postNotFound(err)
	}
	s.invalidateHot(ctx)
	return &CommentResult{Comment: *c, CommentCount: n}, nil
}

// DeleteComment 评论作者或帖子作者可删
func (s *CommunityService) DeleteComment(ctx context.Context, uid, postID, commentID string) (int64, error) {
	p, err := s.load(ctx, postID)
	if err != nil {
		return 0, err
	}
	c, err := s.posts.FindComment(ctx, postID, commentID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, domain.NotFound("评论不存在")
	}
	if c.AuthorID != uid && p.AuthorID != uid {
		return 0, domain.Forbidden("无权限删除评论")
	}
	n, err := s.posts.DeleteComment(ctx, postID, commentID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return 0, domain.NotFound("评论不存在")
	}
	if err != nil {
		return 0, err
	}
	s.invalidateHot(ctx)
	return n, nil
}

// TogglePin 作者置顶；后台走 Moderate
func (s *CommunityService) TogglePin(ctx context.Context, uid, id string) (bool, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if p.AuthorID != uid {
		return false, domain.Forbidden("无权限置顶帖子")
	}
	v, err := s.posts.TogglePinned(ctx, id)
	return v, postNotFound(err)
}

func (s *CommunityService) ToggleLock(ctx context.Context, uid, id string) (bool, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if p.AuthorID != uid {
		return false, domain.Forbidden("无权限锁定帖子")
	}
	v, err := s.posts.ToggleLocked(ctx, id)
	return v, postNotFound(err)
}

// ModeratePin / ModerateDelete 后台管理员操作，不校验作者
func (s *CommunityService) ModeratePin(ctx context.Context, id string) (bool, error) {
	v, err := s.posts.TogglePinned(ctx, id)
	if err != nil {
		return false, postNotFound(err)
	}
	s.log.Info("post pin toggled by admin", zap.String("post_id", id), zap.Bool("pinned", v))
	return v, nil
}

func (s *CommunityService) ModerateDelete(ctx context.Context, id string) error {
	if err := s.remove(ctx, id); err != nil {
		return err
	}
	s.log.Info("post removed by admin", zap.String("post_id", id))
	return nil
}
