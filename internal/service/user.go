package service

import (
	"context"

	"go.uber.org/zap"

	"memorial-site/internal/domain"
)

// UserService 后台用户管理
type UserService struct {
	users domain.UserRepository
	log   *zap.Logger
}

func NewUserService(users domain.UserRepository, l *zap.Logger) *UserService {
	return &UserService{users: users, log: l}
}

type UserPage struct {
	Users      []UserView `json:"users"`
	Pagination Pagination `json:"pagination"`
}

func (s *UserService) List(ctx context.Context, q string, page, limit int) (*UserPage, error) {
	page, limit = normPage(page, limit, 20, 100)
	list, total, err := s.users.List(ctx, q, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, 0, len(list))
	for i := range list {
		out = append(out, viewOf(&list[i]))
	}
	return &UserPage{Users: out, Pagination: NewPagination(page, limit, total)}, nil
}

// Ban 软删除；已签发的令牌在 /me 等需要用户记录的接口上失效
func (s *UserService) Ban(ctx context.Context, id string) error {
	ok, err := s.users.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("用户不存在")
	}
	s.log.Info("user banned", zap.String("user_id", id))
	return nil
}
