package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"memorial-site/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicate
	}
	return err
}

func (r *UserRepo) first(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	return r.first(ctx, "username = ? OR email = ?", username, email)
}

func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"reset_password_token":  tokenHash,
		"reset_password_expire": expire,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepo) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	return r.first(ctx, "reset_password_token = ? AND reset_password_expire > ?", tokenHash, now)
}

// ConsumeResetToken 一条条件 UPDATE，并发提交同一 token 只有一个能命中
func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("reset_password_token = ? AND reset_password_expire > ?", tokenHash, now).
		Updates(map[string]any{
			"password_hash":         passwordHash,
			"reset_password_token":  nil,
			"reset_password_expire": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepo) List(ctx context.Context, q string, offset, limit int) ([]domain.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	if err := tx.Offset(offset).Limit(limit).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepo) SoftDelete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	return res.RowsAffected > 0, res.Error
}
