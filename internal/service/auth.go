package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"memorial-site/internal/core/auth"
	"memorial-site/internal/core/mail"
	"memorial-site/internal/domain"
	"memorial-site/pkg/utils"
)

const (
	minPasswordLen = 6
	resetTokenTTL  = time.Hour
	// ForgotPasswordReply 无论邮箱是否存在都返回同一句话
	ForgotPasswordReply = "如果该邮箱已注册，您将收到密码重置邮件"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func viewOf(u *domain.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

type AuthResult struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type AuthService struct {
	users       domain.UserRepository
	jwt         *auth.JWTer
	mailer      mail.Mailer
	clientURL   string
	adminEmails []string
	log         *zap.Logger
	now         func() time.Time
}

func NewAuthService(users domain.UserRepository, j *auth.JWTer, m mail.Mailer, clientURL string, adminEmails []string, l *zap.Logger) *AuthService {
	return &AuthService{
		users:       users,
		jwt:         j,
		mailer:      m,
		clientURL:   strings.TrimRight(clientURL, "/"),
		adminEmails: adminEmails,
		log:         l,
		now:         time.Now,
	}
}

var errDuplicateUser = domain.Validation("用户名或邮箱已存在")

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, domain.Validation("请填写所有必填字段")
	}
	if len(in.Password) < minPasswordLen {
		return nil, domain.Validation("密码长度至少为6位")
	}

	// 用户名和邮箱哪个冲突都返回同一个错误
	exist, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, errDuplicateUser
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, domain.Validation("密码过长")
	}
	role := auth.RoleUser
	if slices.Contains(s.adminEmails, in.Email) {
		role = auth.RoleAdmin
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, errDuplicateUser
		}
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return s.issue(u)
}

func (s *AuthService) issue(u *domain.User) (*AuthResult, error) {
	token, err := s.jwt.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: viewOf(u)}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.Validation("请填写邮箱和密码")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.Validation("邮箱或密码错误")
	}
	return s.issue(u)
}

// ForgotPassword 邮件发送失败只记日志，不把结果透给调用方
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.Validation("请填写邮箱")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}
	token, err := utils.RandomToken(32)
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, u.ID, utils.HashToken(token), s.now().Add(resetTokenTTL)); err != nil {
		return err
	}
	resetURL := s.clientURL + "/reset-password/" + token
	if err := s.mailer.SendPasswordReset(ctx, u.Email, resetURL); err != nil {
		s.log.Warn("password reset mail failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}

var errBadResetToken = domain.Validation("Token 无效或已过期")

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLen {
		return domain.Validation("密码长度至少为6位")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return domain.Validation("密码过长")
	}
	ok, err := s.users.ConsumeResetToken(ctx, utils.HashToken(token), s.now(), hash)
	if err != nil {
		return err
	}
	if !ok {
		return errBadResetToken
	}
	return nil
}

func (s *AuthService) VerifyResetToken(ctx context.Context, token string) error {
	u, err := s.users.FindByResetToken(ctx, utils.HashToken(token), s.now())
	if err != nil {
		return err
	}
	if u == nil {
		return errBadResetToken
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, uid string) (*UserView, error) {
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NotFound("用户不存在")
	}
	v := viewOf(u)
	return &v, nil
}
