package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"memorial-site/internal/core/media"
	"memorial-site/internal/domain"
	"memorial-site/pkg/utils"
)

const (
	maxBiography     = 5000
	maxMessage       = 1000
	anonymousVisitor = "匿名访客"
)

// slotKinds 槽位允许的文件分类
var slotKinds = map[domain.Slot]media.Kind{
	domain.SlotMainPhoto:       media.KindPhoto,
	domain.SlotBackgroundImage: media.KindPhoto,
	domain.SlotBackgroundMusic: media.KindAudio,
}

// MemorialInput 可写字段白名单；nil 表示不修改
type MemorialInput struct {
	Name           *string
	BirthDate      *string
	DeathDate      *string
	Hometown       *string
	Profession     *string
	Epitaph        *string
	Biography      *string
	Theme          *string
	Privacy        *string
	Password       *string
	ImportantDates *[]domain.ImportantDate
}

// Viewer 访问者：UserID 仅在令牌校验通过时非空
type Viewer struct {
	UserID   string
	Password string
}

type AttachmentMeta struct {
	Description string
	Date        string
	Category    string
	Title       string
}

type TimelineInput struct {
	Date        string
	Title       string
	Description string
	IsMilestone bool
}

type MemorialService struct {
	repo  domain.MemorialRepository
	users domain.UserRepository
	media *media.Service
	log   *zap.Logger
	now   func() time.Time
}

func NewMemorialService(repo domain.MemorialRepository, users domain.UserRepository, m *media.Service, l *zap.Logger) *MemorialService {
	return &MemorialService{repo: repo, users: users, media: m, log: l, now: time.Now}
}

var (
	errMemorialNotFound = domain.NotFound("纪念馆不存在")
	errMemorialLocked   = domain.Forbidden("需要登录才能访问")
	errMemorialPrivate  = domain.Forbidden("无权访问该纪念馆")
)

func (s *MemorialService) load(ctx context.Context, id string) (*domain.Memorial, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errMemorialNotFound
	}
	return m, nil
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrRecordNotFound) {
		return errMemorialNotFound
	}
	return err
}

func (s *MemorialService) ListPublic(ctx context.Context) ([]domain.Memorial, error) {
	return s.repo.ListPublic(ctx)
}

func (s *MemorialService) ListMine(ctx context.Context, uid string) ([]domain.Memorial, error) {
	return s.repo.ListByMember(ctx, uid)
}

type MemorialPage struct {
	Memorials  []domain.Memorial `json:"memorials"`
	Pagination Pagination        `json:"pagination"`
}

func (s *MemorialService) ListAll(ctx context.Context, privacy string, page, limit int) (*MemorialPage, error) {
	p := domain.Privacy(privacy)
	if p != "" && !p.Valid() {
		return nil, domain.Validation("无效的隐私设置", "privacy: must be one of public, semi-private, private, restricted")
	}
	page, limit = normPage(page, limit, 20, 100)
	list, total, err := s.repo.ListAll(ctx, p, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &MemorialPage{Memorials: list, Pagination: NewPagination(page, limit, total)}, nil
}

// Get 按隐私级别放行后浏览数 +1
func (s *MemorialService) Get(ctx context.Context, v Viewer, id string) (*domain.Memorial, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch m.Privacy {
	case domain.PrivacyRestricted:
		if v.UserID == "" {
			return nil, errMemorialLocked
		}
	case domain.PrivacyPrivate:
		if !m.IsMember(v.UserID) && !utils.CheckPassword(v.Password, m.PasswordHash) {
			return nil, errMemorialPrivate
		}
	}
	if _, err := s.repo.Increment(ctx, id, domain.CounterViews); err != nil {
		return nil, err
	}
	m.Views++
	return m, nil
}

// apply 把白名单字段写到 m 上；create 时必填字段缺失计入 errs
func (s *MemorialService) apply(m *domain.Memorial, in MemorialInput, create bool) error {
	var errs fieldErrors
	if in.Name != nil || create {
		name := strings.TrimSpace(str(in.Name))
		if name == "" {
			errs.add("name: 姓名不能为空")
		}
		m.Name = name
	}
	setDate := func(field string, raw *string, dst *time.Time) {
		if raw == nil && !create {
			return
		}
		if strings.TrimSpace(str(raw)) == "" {
			errs.add(field + ": 日期不能为空")
			return
		}
		t, ok := parseDate(*raw)
		if !ok {
			errs.add(field + ": 日期格式无效")
			return
		}
		*dst = t
	}
	setDate("birthDate", in.BirthDate, &m.BirthDate)
	setDate("deathDate", in.DeathDate, &m.DeathDate)

	for _, f := range []struct {
		src *string
		dst *string
	}{
		{in.Hometown, &m.Hometown},
		{in.Profession, &m.Profession},
		{in.Epitaph, &m.Epitaph},
		{in.Biography, &m.Biography},
	} {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
	if utf8.RuneCountInString(m.Biography) > maxBiography {
		errs.add("biography: 生平简介不能超过5000字")
	}
	if in.Theme != nil {
		m.Theme = strings.TrimSpace(*in.Theme)
	}
	if m.Theme == "" {
		m.Theme = "warm"
	}
	if in.Privacy != nil {
		p := domain.Privacy(strings.TrimSpace(*in.Privacy))
		if !p.Valid() {
			errs.add("privacy: must be one of public, semi-private, private, restricted")
		}
		m.Privacy = p
	}
	if m.Privacy == "" {
		m.Privacy = domain.PrivacySemiPrivate
	}
	if in.Password != nil {
		if *in.Password == "" {
			m.PasswordHash = ""
		} else if h, err := utils.HashPassword(*in.Password); err != nil {
			errs.add("password: 访问密码过长")
		} else {
			m.PasswordHash = h
		}
	}
	if in.ImportantDates != nil {
		m.ImportantDates = *in.ImportantDates
	}
	return errs.err("数据验证失败")
}

// saveSlots 先落盘新文件；任一失败时回收已写入的
func (s *MemorialService) saveSlots(ctx context.Context, files map[domain.Slot]media.Upload) (map[domain.Slot]string, error) {
	refs := make(map[domain.Slot]string, len(files))
	for _, slot := range domain.Slots {
		up, ok := files[slot]
		if !ok {
			continue
		}
		ref, err := s.media.Save(ctx, up, slotKinds[slot])
		if err != nil {
			s.reclaimMap(ctx, refs)
			return nil, err
		}
		refs[slot] = ref
	}
	return refs, nil
}

func (s *MemorialService) reclaimMap(ctx context.Context, refs map[domain.Slot]string) {
	for _, r := range refs {
		s.media.Reclaim(ctx, r)
	}
}

func (s *MemorialService) Create(ctx context.Context, uid string, in MemorialInput, files map[domain.Slot]media.Upload) (*domain.Memorial, error) {
	id := utils.NewID()
	m := &domain.Memorial{
		ID:        id,
		CreatedBy: uid,
		Admins:    []domain.MemorialAdmin{{MemorialID: id, UserID: uid}},
	}
	if err := s.apply(m, in, true); err != nil {
		return nil, err
	}

	refs, err := s.saveSlots(ctx, files)
	if err != nil {
		return nil, err
	}
	for slot, ref := range refs {
		m.SetSlotRef(slot, ref)
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.reclaimMap(ctx, refs)
		return nil, err
	}
	s.log.Info("memorial created", zap.String("memorial_id", m.ID), zap.String("user_id", uid))
	return m, nil
}

// Update 新文件先落盘，行锁内换引用并删除旧文件；事务失败则回收新文件
func (s *MemorialService) Update(ctx context.Context, uid, id string, in MemorialInput, files map[domain.Slot]media.Upload) (*domain.Memorial, error) {
	cur, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.CreatedBy != uid {
		return nil, domain.Forbidden("无权限修改")
	}

	refs, err := s.saveSlots(ctx, files)
	if err != nil {
		return nil, err
	}
	// 旧文件在记录提交之后才回收
	var stale []string
	m, err := s.repo.Mutate(ctx, id, func(m *domain.Memorial) error {
		if m.CreatedBy != uid {
			return domain.Forbidden("无权限修改")
		}
		if err := s.apply(m, in, false); err != nil {
			return err
		}
		stale = stale[:0]
		for slot, ref := range refs {
			if old := m.SlotRef(slot); old != "" && old != ref {
				stale = append(stale, old)
			}
			m.SetSlotRef(slot, ref)
		}
		return nil
	})
	if err != nil {
		s.reclaimMap(ctx, refs)
		return nil, notFound(err)
	}
	s.media.Reclaim(ctx, stale...)
	return m, nil
}

// Delete 记录删除成功后回收全部引用文件
func (s *MemorialService) Delete(ctx context.Context, uid, id string) error {
	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if m.CreatedBy != uid {
		return domain.Forbidden("无权限删除")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	s.media.Reclaim(ctx, m.FileRefs()...)
	s.log.Info("memorial deleted", zap.String("memorial_id", id), zap.Int("files", len(m.FileRefs())))
	return nil
}

func (s *MemorialService) requireMember(ctx context.Context, uid, id string) error {
	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !m.IsMember(uid) {
		return domain.Forbidden("无权限上传")
	}
	return nil
}

func (s *MemorialService) optDate(raw string, field string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, ok := parseDate(raw)
	if !ok {
		return nil, domain.Validation("数据验证失败", field+": 日期格式无效")
	}
	return &t, nil
}

// AddAttachment 追加照片/视频/音频/文档，文件分类必须与目标数组一致
func (s *MemorialService) AddAttachment(ctx context.Context, uid, id string, kind media.Kind, up media.Upload, meta AttachmentMeta) (*domain.Memorial, error) {
	if err := s.requireMember(ctx, uid, id); err != nil {
		return nil, err
	}
	date, err := s.optDate(meta.Date, "date")
	if err != nil {
		return nil, err
	}
	ref, err := s.media.Save(ctx, up, kind)
	if err != nil {
		return nil, err
	}
	now := s.now()
	m, err := s.repo.Mutate(ctx, id, func(m *domain.Memorial) error {
		switch kind {
		case media.KindPhoto:
			m.Photos = append(m.Photos, domain.Photo{URL: ref, Description: meta.Description, Date: date, Category: meta.Category})
		case media.KindVideo:
			m.Videos = append(m.Videos, domain.Video{URL: ref, Description: meta.Description, UploadedAt: now})
		case media.KindAudio:
			m.Audios = append(m.Audios, domain.Audio{URL: ref, Description: meta.Description, UploadedAt: now})
		case media.KindDocument:
			title := meta.Title
			if title == "" {
				title = up.Filename
			}
			m.Documents = append(m.Documents, domain.Document{URL: ref, Title: title, Type: up.ContentType, UploadedAt: now})
		default:
			return domain.UploadRejected("disallowed file type")
		}
		return nil
	})
	if err != nil {
		s.media.Reclaim(ctx, ref)
		return nil, notFound(err)
	}
	return m, nil
}

// AddTimelineEntry 照片、视频附件可选
func (s *MemorialService) AddTimelineEntry(ctx context.Context, uid, id string, in TimelineInput, photo, video *media.Upload) (*domain.Memorial, error) {
	if err := s.requireMember(ctx, uid, id); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.Validation("数据验证失败", "title: 标题不能为空")
	}
	date, err := s.optDate(in.Date, "date")
	if err != nil {
		return nil, err
	}
	entry := domain.TimelineEntry{Date: date, Title: title, Description: in.Description, IsMilestone: in.IsMilestone}
	var saved []string
	if photo != nil {
		if entry.Photo, err = s.media.Save(ctx, *photo, media.KindPhoto); err != nil {
			return nil, err
		}
		saved = append(saved, entry.Photo)
	}
	if video != nil {
		if entry.Video, err = s.media.Save(ctx, *video, media.KindVideo); err != nil {
			s.media.Reclaim(ctx, saved...)
			return nil, err
		}
		saved = append(saved, entry.Video)
	}
	m, err := s.repo.Mutate(ctx, id, func(m *domain.Memorial) error {
		m.Timeline = append(m.Timeline, entry)
		return nil
	})
	if err != nil {
		s.media.Reclaim(ctx, saved...)
		return nil, notFound(err)
	}
	return m, nil
}

// AddMessage 留言无需登录，署名缺省为匿名访客
func (s *MemorialService) AddMessage(ctx context.Context, id, author, content string) (*domain.Memorial, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Validation("数据验证失败", "content: 留言内容不能为空")
	}
	if utf8.RuneCountInString(content) > maxMessage {
		return nil, domain.Validation("数据验证失败", "content: 留言不能超过1000字")
	}
	if author = strings.TrimSpace(author); author == "" {
		author = anonymousVisitor
	}
	msg := domain.Message{ID: utils.NewID(), Author: author, Content: content, CreatedAt: s.now()}
	m, err := s.repo.Mutate(ctx, id, func(m *domain.Memorial) error {
		m.Messages = append(m.Messages, msg)
		return nil
	})
	return m, notFound(err)
}

// Tribute 点蜡烛 / 献花，原子自增
func (s *MemorialService) Tribute(ctx context.Context, id string, c domain.Counter) error {
	ok, err := s.repo.Increment(ctx, id, c)
	if err != nil {
		return err
	}
	if !ok {
		return errMemorialNotFound
	}
	tributesTotal.WithLabelValues(string(c)).Inc()
	return nil
}

func (s *MemorialService) requireOwner(ctx context.Context, uid, id string) (*domain.Memorial, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.CreatedBy != uid {
		return nil, domain.Forbidden("只有创建者可以管理管理员")
	}
	return m, nil
}

func (s *MemorialService) AddAdmin(ctx context.Context, uid, id, target string) (*domain.Memorial, error) {
	if _, err := s.requireOwner(ctx, uid, id); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, target)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NotFound("用户不存在")
	}
	if err := s.repo.AddAdmin(ctx, id, target); err != nil {
		return nil, notFound(err)
	}
	return s.load(ctx, id)
}

func (s *MemorialService) RemoveAdmin(ctx context.Context, uid, id, target string) (*domain.Memorial, error) {
	m, err := s.requireOwner(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if target == m.CreatedBy {
		return nil, domain.Validation("不能移除创建者")
	}
	if err := s.repo.RemoveAdmin(ctx, id, target); err != nil {
		return nil, notFound(err)
	}
	return s.load(ctx, id)
}
