package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"memorial-site/internal/domain"
)

type PostRepo struct{ db *gorm.DB }

func NewPostRepo(db *gorm.DB) *PostRepo { return &PostRepo{db: db} }

func (r *PostRepo) Create(ctx context.Context, p *domain.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *PostRepo) FindByID(ctx context.Context, id string) (*domain.Post, error) {
	var p domain.Post
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostRepo) Detail(ctx context.Context, id string) (*domain.Post, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&domain.Post{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	var p domain.Post
	err := db.Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc") }).
		Preload("Likes").
		First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List 列表不返回正文；置顶优先，其次按时间倒序
func (r *PostRepo) List(ctx context.Context, q domain.PostQuery) ([]domain.Post, int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Post{})
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []domain.Post
	err := tx.Omit("content").
		Order("is_pinned desc").Order("created_at desc").
		Offset((q.Page - 1) * q.Limit).Limit(q.Limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepo) Hot(ctx context.Context, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	err := r.db.WithContext(ctx).Omit("content").
		Order("like_count desc").Order("comment_count desc").Order("views desc").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *PostRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *PostRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&domain.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrRecordNotFound
		}
		return nil
	})
}

// lockPost 事务内锁住帖子行，同一帖子的集合变更串行执行
func lockPost(tx *gorm.DB, id string) (*domain.Post, error) {
	var p domain.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// recount 计数列按集合大小重算
func recount(tx *gorm.DB, postID, column string, model any) (int64, error) {
	var n int64
	if err := tx.Model(model).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&domain.Post{}).Where("id = ?", postID).UpdateColumn(column, n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostRepo) ToggleLike(ctx context.Context, postID, userID string) (liked bool, likeCount int64, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockPost(tx, postID); err != nil {
			return err
		}
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&domain.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&domain.PostLike{PostID: postID, UserID: userID}).Error; err != nil {
				return err
			}
			liked = true
		}
		likeCount, err = recount(tx, postID, "like_count", &domain.PostLike{})
		return err
	})
	return liked, likeCount, err
}

func (r *PostRepo) AddComment(ctx context.Context, c *domain.Comment) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockPost(tx, c.PostID)
		if err != nil {
			return err
		}
		if p.IsLocked {
			return domain.ErrPostLocked
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		n, err = recount(tx, c.PostID, "comment_count", &domain.Comment{})
		return err
	})
	return n, err
}

func (r *PostRepo) FindComment(ctx context.Context, postID, commentID string) (*domain.Comment, error) {
	var c domain.Comment
	err := r.db.WithContext(ctx).First(&c, "id = ? AND post_id = ?", commentID, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostRepo) DeleteComment(ctx context.Context, postID, commentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockPost(tx, postID); err != nil {
			return err
		}
		res := tx.Where("id = ? AND post_id = ?", commentID, postID).Delete(&domain.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrRecordNotFound
		}
		var err error
		n, err = recount(tx, postID, "comment_count", &domain.Comment{})
		return err
	})
	return n, err
}

func (r *PostRepo) toggleFlag(ctx context.Context, id, column string, get func(*domain.Post) bool) (bool, error) {
	var v bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockPost(tx, id)
		if err != nil {
			return err
		}
		v = !get(p)
		return tx.Model(&domain.Post{}).Where("id = ?", id).UpdateColumn(column, v).Error
	})
	return v, err
}

func (r *PostRepo) TogglePinned(ctx context.Context, id string) (bool, error) {
	return r.toggleFlag(ctx, id, "is_pinned", func(p *domain.Post) bool { return p.IsPinned })
}

func (r *PostRepo) ToggleLocked(ctx context.Context, id string) (bool, error) {
	return r.toggleFlag(ctx, id, "is_locked", func(p *domain.Post) bool { return p.IsLocked })
}
