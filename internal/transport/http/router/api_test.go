package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memorial-site/internal/core/auth"
	"memorial-site/internal/core/config"
	"memorial-site/internal/core/mail"
	"memorial-site/internal/core/media"
	"memorial-site/internal/domain"
	"memorial-site/internal/repo/memory"
	"memorial-site/internal/service"
	"memorial-site/internal/transport/http/handler"
)

func init() { gin.SetMode(gin.TestMode) }

// PNG 文件头，足够通过类型白名单
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testEnv struct {
	api       *gin.Engine
	admin     *gin.Engine
	memorials *memory.MemorialRepo
}

type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
	Errors []string        `json:"errors"`
}

func newEnv(t *testing.T, checks map[string]handler.Check) *testEnv {
	t.Helper()
	l := zap.NewNop()
	users := memory.NewUserRepo()
	memorials := memory.NewMemorialRepo()
	posts := memory.NewPostRepo()
	jwter := auth.NewJWTer(config.JWT{Secret: "test", Issuer: "memorial-site", AccessTokenTTLMin: 60})
	ms := media.NewService(media.NewLocalStore(t.TempDir()), 1<<20, l)

	d := Deps{
		Log:         l,
		JWT:         jwter,
		Auth:        service.NewAuthService(users, jwter, mail.NewLogMailer(l), "http://localhost:3000", []string{"root@x.com"}, l),
		Memorials:   service.NewMemorialService(memorials, users, ms, l),
		Community:   service.NewCommunityService(posts, users, nil, time.Minute, l),
		Users:       service.NewUserService(users, l),
		Media:       ms,
		Checks:      checks,
		CORSOrigins: []string{"*"},
	}
	return &testEnv{api: NewAPIEngine(d), admin: NewAdminEngine(d), memorials: memorials}
}

func serve(h http.Handler, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func doJSON(h http.Handler, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return serve(h, req, token)
}

type part struct {
	field, filename, contentType string
	body                         []byte
}

func doMultipart(h http.Handler, method, path string, fields map[string]string, files []part, token string) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		hdr.Set("Content-Type", f.contentType)
		pw, _ := mw.CreatePart(hdr)
		_, _ = pw.Write(f.body)
	}
	_ = mw.Close()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return serve(h, req, token)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type authData struct {
	Token string           `json:"token"`
	User  service.UserView `json:"user"`
}

type memorialData struct {
	ID        string   `json:"id"`
	CreatedBy string   `json:"createdBy"`
	Admins    []string `json:"admins"`
	MainPhoto string   `json:"mainPhoto"`
	Candles   int64    `json:"candles"`
	Views     int64    `json:"views"`
	Photos    []struct {
		URL string `json:"url"`
	} `json:"photos"`
}

func (e *testEnv) register(t *testing.T, name string) authData {
	t.Helper()
	w, env := doJSON(e.api, http.MethodPost, "/api/auth/register",
		map[string]string{"username": name, "email": name + "@x.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[authData](t, env)
}

func (e *testEnv) createMemorial(t *testing.T, token string, extra map[string]any) memorialData {
	t.Helper()
	body := map[string]any{"name": "张三", "birthDate": "1940-01-01", "deathDate": "2020-01-01"}
	for k, v := range extra {
		body[k] = v
	}
	w, env := doJSON(e.api, http.MethodPost, "/api/memorials", body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[memorialData](t, env)
}

func TestScenario_RegisterLoginCreateMemorial(t *testing.T) {
	e := newEnv(t, nil)

	w, env := doJSON(e.api, http.MethodPost, "/api/auth/register",
		map[string]string{"username": "a", "email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "注册成功", env.Msg)
	reg := decode[authData](t, env)

	w, env = doJSON(e.api, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[authData](t, env)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, reg.User.ID, login.User.ID)

	m := e.createMemorial(t, login.Token, nil)
	assert.Equal(t, reg.User.ID, m.CreatedBy)
	assert.Equal(t, []string{reg.User.ID}, m.Admins)
}

func TestAuth_DuplicateAndBadLogin(t *testing.T) {
	e := newEnv(t, nil)
	e.register(t, "a")

	w, env := doJSON(e.api, http.MethodPost, "/api/auth/register",
		map[string]string{"username": "a", "email": "other@x.com", "password": "secret1"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "用户名或邮箱已存在", env.Msg)

	w, env = doJSON(e.api, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "wrong!"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "邮箱或密码错误", env.Msg)

	w, env = doJSON(e.api, http.MethodPost, "/api/auth/forgot-password",
		map[string]string{"email": "nobody@x.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), service.ForgotPasswordReply)
}

func TestAuthGate(t *testing.T) {
	e := newEnv(t, nil)

	w, env := doJSON(e.api, http.MethodGet, "/api/memorials/my", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", env.Msg)

	w, env = doJSON(e.api, http.MethodGet, "/api/memorials/my", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token", env.Msg)

	a := e.register(t, "a")
	w, env = doJSON(e.api, http.MethodGet, "/api/auth/me", nil, a.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decode[service.UserView](t, env).Email)
}

func TestScenario_AnonymousCandle(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	m := e.createMemorial(t, a.Token, nil)

	w, env := doJSON(e.api, http.MethodPost, "/api/memorials/"+m.ID+"/candle", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "点蜡烛成功", decode[handler.Message](t, env).Message)

	got, err := e.memorials.FindByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Candles)

	w, _ = doJSON(e.api, http.MethodPost, "/api/memorials/missing/candle", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMemorial_RejectsUnknownFields(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")

	w, env := doJSON(e.api, http.MethodPost, "/api/memorials",
		map[string]any{"name": "x", "birthDate": "1940-01-01", "deathDate": "2020-01-01", "views": 100}, a.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Errors, "unexpected field: views")

	w, env = doMultipart(e.api, http.MethodPost, "/api/memorials",
		map[string]string{"name": "x", "birthDate": "1940-01-01", "deathDate": "2020-01-01"},
		[]part{{"avatar", "a.png", "image/png", pngBytes}}, a.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "意外的文件字段", env.Msg)

	w, env = doJSON(e.api, http.MethodPost, "/api/memorials", map[string]any{"name": "x"}, a.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "数据验证失败", env.Msg)
	assert.NotEmpty(t, env.Errors)
}

func TestMemorial_MainPhotoReplacement(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	fields := map[string]string{"name": "x", "birthDate": "1940-01-01", "deathDate": "2020-01-01", "privacy": "public"}

	w, env := doMultipart(e.api, http.MethodPost, "/api/memorials", fields,
		[]part{{"mainPhoto", "one.png", "image/png", pngBytes}}, a.Token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[memorialData](t, env)
	require.NotEmpty(t, first.MainPhoto)

	w, _ = serve(e.api, httptest.NewRequest(http.MethodGet, first.MainPhoto, nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w, env = doMultipart(e.api, http.MethodPut, "/api/memorials/"+first.ID, nil,
		[]part{{"mainPhoto", "two.png", "image/png", pngBytes}}, a.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[memorialData](t, env)
	require.NotEqual(t, first.MainPhoto, second.MainPhoto)

	w, _ = serve(e.api, httptest.NewRequest(http.MethodGet, first.MainPhoto, nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = serve(e.api, httptest.NewRequest(http.MethodGet, second.MainPhoto, nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMemorial_OversizeUploadRejected(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	m := e.createMemorial(t, a.Token, nil)

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 1<<20)...)
	w, env := doMultipart(e.api, http.MethodPut, "/api/memorials/"+m.ID, nil,
		[]part{{"mainPhoto", "big.png", "image/png", big}}, a.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Equal(t, "payload too large", env.Msg)

	w, env = doMultipart(e.api, http.MethodPost, "/api/memorials/"+m.ID+"/photos", nil,
		[]part{{"photo", "big.png", "image/png", big}}, a.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "payload too large", env.Msg)

	stored, err := e.memorials.FindByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.MainPhoto)
	assert.Empty(t, stored.Photos)
}

func TestMemorial_JSONRoutesKeepSmallBodyLimit(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	m := e.createMemorial(t, a.Token, nil)

	// 声明的长度超过 JSON 上限时在读 body 之前就拒绝
	req := httptest.NewRequest(http.MethodPost, "/api/memorials/"+m.ID+"/messages", bytes.NewReader([]byte(`{"content":"hi"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = 16<<20 + 1
	w, _ := serve(e.api, req, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w, _ = doJSON(e.api, http.MethodPost, "/api/memorials/"+m.ID+"/messages", map[string]string{"content": "hi"}, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMemorial_PhotoAttachmentAndPermissions(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	b := e.register(t, "b")
	m := e.createMemorial(t, a.Token, nil)

	w, _ := doMultipart(e.api, http.MethodPost, "/api/memorials/"+m.ID+"/photos",
		map[string]string{"description": "d"}, []part{{"photo", "p.png", "image/png", pngBytes}}, b.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := doMultipart(e.api, http.MethodPost, "/api/memorials/"+m.ID+"/photos",
		map[string]string{"description": "d"}, []part{{"photo", "p.png", "image/png", pngBytes}}, a.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[memorialData](t, env)
	require.Len(t, got.Photos, 1)
	assert.Contains(t, got.Photos[0].URL, "/uploads/photos/")

	w, _ = doMultipart(e.api, http.MethodPost, "/api/memorials/"+m.ID+"/photos",
		nil, []part{{"photo", "evil.exe", "application/x-msdownload", []byte("MZ")}}, a.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(e.api, http.MethodDelete, "/api/memorials/"+m.ID, nil, b.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = doJSON(e.api, http.MethodDelete, "/api/memorials/"+m.ID, nil, a.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMemorial_PrivacyGate(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	b := e.register(t, "b")
	private := e.createMemorial(t, a.Token, map[string]any{"privacy": "private", "password": "open-sesame"})
	restricted := e.createMemorial(t, a.Token, map[string]any{"privacy": "restricted"})

	path := "/api/memorials/" + private.ID
	w, _ := doJSON(e.api, http.MethodGet, path, nil, b.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(handler.HeaderMemorialPassword, "open-sesame")
	w, _ = serve(e.api, req, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(e.api, http.MethodGet, path, nil, a.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	path = "/api/memorials/" + restricted.ID
	w, _ = doJSON(e.api, http.MethodGet, path, nil, "forged")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = doJSON(e.api, http.MethodGet, path, nil, b.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCommunity_PostLikeComment(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	b := e.register(t, "b")

	w, env := doJSON(e.api, http.MethodPost, "/api/community/posts",
		map[string]any{"title": "t", "content": "c", "category": "sharing"}, a.Token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := decode[struct {
		ID            string `json:"id"`
		AuthorName    string `json:"authorName"`
		CategoryLabel string `json:"categoryLabel"`
	}](t, env)
	assert.Equal(t, "a", post.AuthorName)

	like := func(token string) service.LikeResult {
		w, env := doJSON(e.api, http.MethodPost, "/api/community/posts/"+post.ID+"/like", nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		return decode[service.LikeResult](t, env)
	}
	assert.Equal(t, service.LikeResult{Liked: true, LikeCount: 1}, like(b.Token))
	assert.Equal(t, service.LikeResult{Liked: false, LikeCount: 0}, like(b.Token))

	w, _ = doJSON(e.api, http.MethodPost, "/api/community/posts/"+post.ID+"/comments",
		map[string]any{"content": "hi"}, b.Token)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = doJSON(e.api, http.MethodPut, "/api/community/posts/"+post.ID+"/lock", nil, b.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = doJSON(e.api, http.MethodPut, "/api/community/posts/"+post.ID+"/lock", nil, a.Token)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(e.api, http.MethodPost, "/api/community/posts/"+post.ID+"/comments",
		map[string]any{"content": "again"}, b.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "帖子已锁定，无法评论", env.Msg)

	w, env = doJSON(e.api, http.MethodGet, "/api/community/posts?category=sharing", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[service.PostPage](t, env)
	require.Len(t, page.Posts, 1)
	assert.EqualValues(t, 1, page.Posts[0].CommentCount)

	w, _ = doJSON(e.api, http.MethodGet, "/api/community/posts/hot", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(e.api, http.MethodPost, "/api/community/posts",
		map[string]any{"title": "t", "content": "c", "category": "sharing", "authorId": "x"}, a.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminEngine_RequiresAdminRole(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register(t, "a")
	root := e.register(t, "root")
	assert.Equal(t, auth.RoleAdmin, root.User.Role)

	w, _ := doJSON(e.admin, http.MethodGet, "/admin/v1/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = doJSON(e.admin, http.MethodGet, "/admin/v1/users", nil, a.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := doJSON(e.admin, http.MethodGet, "/admin/v1/users?q=a@x", nil, root.Token)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[service.UserPage](t, env)
	require.Len(t, users.Users, 1)
	assert.Equal(t, a.User.ID, users.Users[0].ID)

	w, _ = doJSON(e.admin, http.MethodPost, "/admin/v1/users/"+a.User.ID+"/ban", nil, root.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(e.admin, http.MethodPost, "/admin/v1/users/"+a.User.ID+"/ban", nil, root.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(e.admin, http.MethodGet, "/admin/v1/memorials?privacy=bogus", nil, root.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t, nil)
	w, _ := doJSON(e.api, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w, _ = doJSON(e.api, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := doJSON(e.api, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 404, env.Code)

	down := newEnv(t, map[string]handler.Check{"db": func(context.Context) error { return domain.ErrRecordNotFound }})
	w, _ = doJSON(down.admin, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
