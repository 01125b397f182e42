package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"memorial-site/internal/domain"
)

type postRow struct {
	post     domain.Post
	comments []domain.Comment
	likes    []string
}

type PostRepo struct {
	mu    sync.Mutex
	posts map[string]*postRow
}

func NewPostRepo() *PostRepo { return &PostRepo{posts: map[string]*postRow{}} }

func (r *PostRepo) Create(_ context.Context, p *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	row := &postRow{post: *p}
	row.post.Comments, row.post.Likes = nil, nil
	r.posts[p.ID] = row
	return nil
}

func (r *PostRepo) FindByID(_ context.Context, id string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	p := row.post
	return &p, nil
}

func (r *PostRepo) Detail(_ context.Context, id string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	row.post.Views++
	p := row.post
	p.Comments = slices.Clone(row.comments)
	p.Likes = make([]domain.PostLike, 0, len(row.likes))
	for _, uid := range row.likes {
		p.Likes = append(p.Likes, domain.PostLike{PostID: id, UserID: uid})
	}
	return &p, nil
}

func (r *PostRepo) sorted(match func(*domain.Post) bool, cmp func(a, b domain.Post) int) []domain.Post {
	var out []domain.Post
	for _, row := range r.posts {
		if match(&row.post) {
			p := row.post
			p.Content = ""
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func (r *PostRepo) List(_ context.Context, q domain.PostQuery) ([]domain.Post, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := strings.ToLower(strings.TrimSpace(q.Search))
	all := r.sorted(func(p *domain.Post) bool {
		if q.Category != "" && p.Category != q.Category {
			return false
		}
		return s == "" || strings.Contains(strings.ToLower(p.Title), s) || strings.Contains(strings.ToLower(p.Content), s)
	}, func(a, b domain.Post) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return page(all, (q.Page-1)*q.Limit, q.Limit), int64(len(all)), nil
}

func (r *PostRepo) Hot(_ context.Context, limit int) ([]domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(*domain.Post) bool { return true }, func(a, b domain.Post) int {
		switch {
		case a.LikeCount != b.LikeCount:
			return int(b.LikeCount - a.LikeCount)
		case a.CommentCount != b.CommentCount:
			return int(b.CommentCount - a.CommentCount)
		}
		return int(b.Views - a.Views)
	})
	return page(all, 0, limit), nil
}

func (r *PostRepo) Update(_ context.Context, id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			row.post.Title = v.(string)
		case "content":
			row.post.Content = v.(string)
		case "category":
			row.post.Category = v.(domain.Category)
		case "is_pinned":
			row.post.IsPinned = v.(bool)
		case "is_locked":
			row.post.IsLocked = v.(bool)
		}
	}
	row.post.UpdatedAt = time.Now()
	return nil
}

func (r *PostRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *PostRepo) ToggleLike(_ context.Context, postID, userID string) (bool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[postID]
	if !ok {
		return false, 0, domain.ErrRecordNotFound
	}
	liked := !slices.Contains(row.likes, userID)
	if liked {
		row.likes = append(row.likes, userID)
	} else {
		row.likes = slices.DeleteFunc(row.likes, func(u string) bool { return u == userID })
	}
	row.post.LikeCount = int64(len(row.likes))
	return liked, row.post.LikeCount, nil
}

func (r *PostRepo) AddComment(_ context.Context, c *domain.Comment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[c.PostID]
	if !ok {
		return 0, domain.ErrRecordNotFound
	}
	if row.post.IsLocked {
		return 0, domain.ErrPostLocked
	}
	c.CreatedAt = time.Now()
	row.comments = append(row.comments, *c)
	row.post.CommentCount = int64(len(row.comments))
	return row.post.CommentCount, nil
}

func (r *PostRepo) FindComment(_ context.Context, postID, commentID string) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[postID]
	if !ok {
		return nil, nil
	}
	for _, c := range row.comments {
		if c.ID == commentID {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *PostRepo) DeleteComment(_ context.Context, postID, commentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[postID]
	if !ok {
		return 0, domain.ErrRecordNotFound
	}
	n := len(row.comments)
	row.comments = slices.DeleteFunc(row.comments, func(c domain.Comment) bool { return c.ID == commentID })
	if len(row.comments) == n {
		return 0, domain.ErrRecordNotFound
	}
	row.post.CommentCount = int64(len(row.comments))
	return row.post.CommentCount, nil
}

func (r *PostRepo) TogglePinned(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[id]
	if !ok {
		return false, domain.ErrRecordNotFound
	}
	row.post.IsPinned = !row.post.IsPinned
	return row.post.IsPinned, nil
}

func (r *PostRepo) ToggleLocked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.posts[id]
	if !ok {
		return false, domain.ErrRecordNotFound
	}
	row.post.IsLocked = !row.post.IsLocked
	return row.post.IsLocked, nil
}
