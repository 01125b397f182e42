package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memorial-site/internal/core/auth"
	"memorial-site/internal/core/config"
	"memorial-site/internal/core/media"
	"memorial-site/internal/repo/memory"
)

type captureMailer struct{ urls []string }

func (m *captureMailer) SendPasswordReset(_ context.Context, _, resetURL string) error {
	m.urls = append(m.urls, resetURL)
	return nil
}

type fixture struct {
	users     *memory.UserRepo
	memorials *memory.MemorialRepo
	posts     *memory.PostRepo
	root      string
	mailer    *captureMailer

	auth      *AuthService
	memorial  *MemorialService
	community *CommunityService
	admin     *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:     memory.NewUserRepo(),
		memorials: memory.NewMemorialRepo(),
		posts:     memory.NewPostRepo(),
		root:      t.TempDir(),
		mailer:    &captureMailer{},
	}
	l := zap.NewNop()
	jwter := auth.NewJWTer(config.JWT{Secret: "test", Issuer: "memorial-site", AccessTokenTTLMin: 60})
	ms := media.NewService(media.NewLocalStore(f.root), 0, l)
	f.auth = NewAuthService(f.users, jwter, f.mailer, "http://localhost:3000/", []string{"root@x.com"}, l)
	f.memorial = NewMemorialService(f.memorials, f.users, ms, l)
	f.community = NewCommunityService(f.posts, f.users, nil, time.Minute, l)
	f.admin = NewUserService(f.users, l)
	return f
}

func (f *fixture) register(t *testing.T, name string) string {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterInput{Username: name, Email: name + "@x.com", Password: "secret1"})
	require.NoError(t, err)
	return res.User.ID
}

func ptr[T any](v T) *T { return &v }

func upload(name, ct, body string) media.Upload {
	return media.Upload{
		Filename:    name,
		ContentType: ct,
		Size:        int64(len(body)),
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte(body))), nil },
	}
}

func (f *fixture) exists(ref string) bool {
	_, err := os.Stat(filepath.Join(f.root, strings.TrimPrefix(ref, media.RefPrefix)))
	return err == nil
}

func (f *fixture) count(dir string) int {
	entries, _ := os.ReadDir(filepath.Join(f.root, dir))
	return len(entries)
}

func basicMemorial() MemorialInput {
	return MemorialInput{Name: ptr("张三"), BirthDate: ptr("1940-01-02"), DeathDate: ptr("2020-03-04")}
}
