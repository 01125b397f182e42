package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"memorial-site/internal/core/media"
	"memorial-site/internal/domain"
	"memorial-site/internal/service"
	"memorial-site/internal/transport/http/ez"
	mdw "memorial-site/internal/transport/http/middleware"
)

// HeaderMemorialPassword 私密纪念馆的访问密码
const HeaderMemorialPassword = "X-Memorial-Password"

// 上传动作的超时放宽到与写超时同级
const uploadTimeout = 5 * time.Minute

type Memorial struct {
	svc      *service.MemorialService
	maxBytes int64
}

func NewMemorial(svc *service.MemorialService, maxFileBytes int64) *Memorial {
	if maxFileBytes <= 0 {
		maxFileBytes = media.DefaultMaxBytes
	}
	return &Memorial{svc: svc, maxBytes: maxFileBytes}
}

func (h *Memorial) Priority() int { return 20 }

var memorialFields = []string{
	"name", "birthDate", "deathDate", "hometown", "profession", "epitaph",
	"biography", "theme", "privacy", "password", "importantDates",
}

var slotFields = []string{
	string(domain.SlotMainPhoto), string(domain.SlotBackgroundImage), string(domain.SlotBackgroundMusic),
}

type memorialJSON struct {
	Name           *string                 `json:"name"       binding:"omitempty,max=100"`
	BirthDate      *string                 `json:"birthDate"`
	DeathDate      *string                 `json:"deathDate"`
	Hometown       *string                 `json:"hometown"   binding:"omitempty,max=100"`
	Profession     *string                 `json:"profession" binding:"omitempty,max=100"`
	Epitaph        *string                 `json:"epitaph"    binding:"omitempty,max=200"`
	Biography      *string                 `json:"biography"`
	Theme          *string                 `json:"theme"      binding:"omitempty,max=32"`
	Privacy        *string                 `json:"privacy"`
	Password       *string                 `json:"password"   binding:"omitempty,max=128"`
	ImportantDates *[]domain.ImportantDate `json:"importantDates"`
}

func (m memorialJSON) input() service.MemorialInput {
	return service.MemorialInput{
		Name: m.Name, BirthDate: m.BirthDate, DeathDate: m.DeathDate, Hometown: m.Hometown,
		Profession: m.Profession, Epitaph: m.Epitaph, Biography: m.Biography, Theme: m.Theme,
		Privacy: m.Privacy, Password: m.Password, ImportantDates: m.ImportantDates,
	}
}

// bindMemorial JSON 或 multipart；两种方式都只接受白名单字段
func bindMemorial(c *gin.Context) (service.MemorialInput, map[domain.Slot]media.Upload, error) {
	if !isMultipart(c) {
		var in memorialJSON
		if err := ez.DecodeJSON(c, &in); err != nil {
			return service.MemorialInput{}, nil, err
		}
		return in.input(), nil, nil
	}

	form, err := multipartForm(c)
	if err != nil {
		return service.MemorialInput{}, nil, err
	}
	if err := form.checkValues(memorialFields...); err != nil {
		return service.MemorialInput{}, nil, err
	}
	files, err := form.singleFiles(slotFields...)
	if err != nil {
		return service.MemorialInput{}, nil, err
	}

	var in service.MemorialInput
	text := func(key string) *string {
		if _, ok := form.values[key]; !ok {
			return nil
		}
		v := form.value(key)
		return &v
	}
	in.Name, in.BirthDate, in.DeathDate = text("name"), text("birthDate"), text("deathDate")
	in.Hometown, in.Profession, in.Epitaph = text("hometown"), text("profession"), text("epitaph")
	in.Biography, in.Theme, in.Privacy, in.Password = text("biography"), text("theme"), text("privacy"), text("password")
	if raw := text("importantDates"); raw != nil && *raw != "" {
		var dates []domain.ImportantDate
		if err := json.Unmarshal([]byte(*raw), &dates); err != nil {
			return service.MemorialInput{}, nil, ez.BadRequest("数据验证失败", "importantDates: must be a JSON array")
		}
		in.ImportantDates = &dates
	}

	slots := make(map[domain.Slot]media.Upload, len(files))
	for k, up := range files {
		slots[domain.Slot(k)] = up
	}
	return in, slots, nil
}

type attachmentRoute struct {
	path  string
	field string
	kind  media.Kind
}

var attachmentRoutes = []attachmentRoute{
	{"/:id/photos", "photo", media.KindPhoto},
	{"/:id/videos", "video", media.KindVideo},
	{"/:id/audios", "audio", media.KindAudio},
	{"/:id/documents", "document", media.KindDocument},
}

type messageIn struct {
	Author  string `json:"author"  binding:"omitempty,max=50"`
	Content string `json:"content"`
}

type timelineJSON struct {
	Date        string `json:"date"`
	Title       string `json:"title"       binding:"omitempty,max=100"`
	Description string `json:"description"`
	IsMilestone bool   `json:"isMilestone"`
}

type adminIn struct {
	UserID string `json:"userId" binding:"required"`
}

type memorialListQuery struct {
	pageQuery
	Privacy string `form:"privacy"`
}

func (h *Memorial) MountAPI(api *gin.RouterGroup) {
	g := api.Group("/memorials")
	e := ez.New(g.Group("", mdw.MaxBodyBytes(jsonBodyLimit), mdw.Timeout(jsonTimeout)))
	// 只有带文件的动作放宽：三个槽位同时上传时的上限，再留出表单文本的余量
	up := ez.New(g.Group("", mdw.MaxBodyBytes(3*h.maxBytes+jsonBodyLimit), mdw.Timeout(uploadTimeout)))

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Memorial]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Memorial, error) {
			return h.svc.ListPublic(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Memorial]{
		Method: http.MethodGet,
		Path:   "/my",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Memorial, error) {
			return h.svc.ListMine(c.Request.Context(), uid(c))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Memorial]{
		Method: http.MethodGet,
		Path:   "/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Memorial, error) {
			v := service.Viewer{UserID: uid(c), Password: c.GetHeader(HeaderMemorialPassword)}
			return h.svc.Get(c.Request.Context(), v, c.Param("id"))
		},
	})

	ez.RegisterAction(up, ez.Action[struct{}, *domain.Memorial]{
		Method: http.MethodPost,
		Path:   "",
		Binder: ez.BindNone,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Memorial, error) {
			in, files, err := bindMemorial(c)
			if err != nil {
				return nil, err
			}
			return h.svc.Create(c.Request.Context(), uid(c), in, files)
		},
	})

	ez.RegisterAction(up, ez.Action[struct{}, *domain.Memorial]{
		Method: http.MethodPut,
		Path:   "/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Memorial, error) {
			in, files, err := bindMemorial(c)
			if err != nil {
				return nil, err
			}
			return h.svc.Update(c.Request.Context(), uid(c), c.Param("id"), in, files)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, Message]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (Message, error) {
			if err := h.svc.Delete(c.Request.Context(), uid(c), c.Param("id")); err != nil {
				return Message{}, err
			}
			return Message{Message: "删除成功"}, nil
		},
	})

	for _, r := range attachmentRoutes {
		ez.RegisterAction(up, ez.Action[struct{}, *domain.Memorial]{
			Method: http.MethodPost,
			Path:   r.path,
			Binder: ez.BindNone,
			Auth:   true,
			Handler: func(c *gin.Context, _ *struct{}) (*domain.Memorial, error) {
				return h.attach(c, r)
			},
		})
	}

	ez.RegisterAction(up, ez.Action[struct{}, *domain.Memorial]{
		Method: http.MethodPost,
		Path:   "/:id/timeline",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: h.timeline,
	})

	ez.RegisterAction(e, ez.Action[messageIn, *domain.Memorial]{
		Method: http.MethodPost,
		Path:   "/:id/messages",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *messageIn) (*domain.Memorial, error) {
			return h.svc.AddMessage(c.Request.Context(), c.Param("id"), in.Author, in.Content)
		},
	})

	tribute := func(counter domain.Counter, msg string) func(*gin.Context, *struct{}) (Message, error) {
		return func(c *gin.Context, _ *struct{}) (Message, error) {
			if err := h.svc.Tribute(c.Request.Context(), c.Param("id"), counter); err != nil {
				return Message{}, err
			}
			return Message{Message: msg}, nil
		}
	}
	ez.RegisterAction(e, ez.Action[struct{}, Message]{
		Method:  http.MethodPost,
		Path:    "/:id/candle",
		Binder:  ez.BindNone,
		Handler: tribute(domain.CounterCandles, "点蜡烛成功"),
	})
	ez.RegisterAction(e, ez.Action[struct{}, Message]{
		Method:  http.MethodPost,
		Path:    "/:id/flower",
		Binder:  ez.BindNone,
		Handler: tribute(domain.CounterFlowers, "献花成功"),
	})

	ez.RegisterAction(e, ez.Action[adminIn, *domain.Memorial]{
		Method: http.MethodPost,
		Path:   "/:id/admins",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *adminIn) (*domain.Memorial, error) {
			return h.svc.AddAdmin(c.Request.Context(), uid(c), c.Param("id"), in.UserID)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, *domain.Memorial]{
		Method: http.MethodDelete,
		Path:   "/:id/admins/:userId",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Memorial, error) {
			return h.svc.RemoveAdmin(c.Request.Context(), uid(c), c.Param("id"), c.Param("userId"))
		},
	})
}

func (h *Memorial) attach(c *gin.Context, r attachmentRoute) (*domain.Memorial, error) {
	form, err := multipartForm(c)
	if err != nil {
		return nil, err
	}
	if err := form.checkValues("description", "date", "category", "title"); err != nil {
		return nil, err
	}
	files, err := form.singleFiles(r.field)
	if err != nil {
		return nil, err
	}
	up, ok := files[r.field]
	if !ok {
		return nil, ez.BadRequest("请选择要上传的文件", r.field+": is required")
	}
	meta := service.AttachmentMeta{
		Description: form.value("description"),
		Date:        form.value("date"),
		Category:    form.value("category"),
		Title:       form.value("title"),
	}
	return h.svc.AddAttachment(c.Request.Context(), uid(c), c.Param("id"), r.kind, up, meta)
}

// timeline 纯文本走 JSON；带照片/视频时走 multipart
func (h *Memorial) timeline(c *gin.Context, _ *struct{}) (*domain.Memorial, error) {
	if !isMultipart(c) {
		var in timelineJSON
		if err := ez.DecodeJSON(c, &in); err != nil {
			return nil, err
		}
		return h.svc.AddTimelineEntry(c.Request.Context(), uid(c), c.Param("id"), service.TimelineInput{
			Date: in.Date, Title: in.Title, Description: in.Description, IsMilestone: in.IsMilestone,
		}, nil, nil)
	}

	form, err := multipartForm(c)
	if err != nil {
		return nil, err
	}
	if err := form.checkValues("date", "title", "description", "isMilestone"); err != nil {
		return nil, err
	}
	files, err := form.singleFiles("photo", "video")
	if err != nil {
		return nil, err
	}
	in := service.TimelineInput{
		Date:        form.value("date"),
		Title:       form.value("title"),
		Description: form.value("description"),
	}
	if raw := form.value("isMilestone"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, ez.BadRequest("数据验证失败", "isMilestone: must be a boolean")
		}
		in.IsMilestone = b
	}
	var photo, video *media.Upload
	if up, ok := files["photo"]; ok {
		photo = &up
	}
	if up, ok := files["video"]; ok {
		video = &up
	}
	return h.svc.AddTimelineEntry(c.Request.Context(), uid(c), c.Param("id"), in, photo, video)
}

func (h *Memorial) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)
	ez.RegisterAction(e, ez.Action[memorialListQuery, *service.MemorialPage]{
		Method: http.MethodGet,
		Path:   "/memorials",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *memorialListQuery) (*service.MemorialPage, error) {
			return h.svc.ListAll(c.Request.Context(), q.Privacy, q.Page, q.Limit)
		},
	})
}
