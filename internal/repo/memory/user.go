// Package memory 进程内仓储：db.driver=memory 时使用，也供测试使用
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"memorial-site/internal/domain"
)

type UserRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	order []string
}

func NewUserRepo() *UserRepo { return &UserRepo{users: map[string]*domain.User{}} }

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.users {
		if x.DeletedAt.Valid {
			continue
		}
		if x.Username == u.Username || x.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	r.users[u.ID] = &cp
	r.order = append(r.order, u.ID)
	return nil
}

func (r *UserRepo) find(match func(*domain.User) bool) *domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		u := r.users[id]
		if !u.DeletedAt.Valid && match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r *UserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id }), nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r *UserRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username || u.Email == email }), nil
}

func (r *UserRepo) SetResetToken(_ context.Context, id, tokenHash string, expire time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt.Valid {
		return domain.ErrRecordNotFound
	}
	u.ResetPasswordToken = &tokenHash
	u.ResetPasswordExpire = &expire
	u.UpdatedAt = time.Now()
	return nil
}

func tokenLive(u *domain.User, hash string, now time.Time) bool {
	return !u.DeletedAt.Valid &&
		u.ResetPasswordToken != nil && *u.ResetPasswordToken == hash &&
		u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now)
}

func (r *UserRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return tokenLive(u, tokenHash, now) }), nil
}

func (r *UserRepo) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if tokenLive(u, tokenHash, now) {
			u.PasswordHash = passwordHash
			u.ResetPasswordToken = nil
			u.ResetPasswordExpire = nil
			u.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepo) List(_ context.Context, q string, offset, limit int) ([]domain.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q = strings.ToLower(strings.TrimSpace(q))
	var all []domain.User
	for _, id := range slices.Backward(r.order) {
		u := r.users[id]
		if u.DeletedAt.Valid {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Username), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		all = append(all, *u)
	}
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *UserRepo) SoftDelete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt.Valid {
		return false, nil
	}
	u.DeletedAt.Time, u.DeletedAt.Valid = time.Now(), true
	return true, nil
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
