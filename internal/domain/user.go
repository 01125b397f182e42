package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID                  string         `gorm:"primaryKey;size:36" json:"id"`
	Username            string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email               string         `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash        string         `gorm:"size:100;not null" json:"-"`
	Role                string         `gorm:"size:16;not null;default:user" json:"role"`
	ResetPasswordToken  *string        `gorm:"index;size:64" json:"-"` // sha256(token)
	ResetPasswordExpire *time.Time     `json:"-"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	// ConsumeResetToken 条件更新：token 匹配且未过期才改密码并清空 token；返回是否命中
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (bool, error)
	List(ctx context.Context, q string, offset, limit int) ([]User, int64, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
}
