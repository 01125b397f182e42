package domain

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"gorm.io/datatypes"
)

type Privacy string

const (
	PrivacyPublic      Privacy = "public"
	PrivacySemiPrivate Privacy = "semi-private"
	PrivacyPrivate     Privacy = "private"
	PrivacyRestricted  Privacy = "restricted"
)

func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacySemiPrivate, PrivacyPrivate, PrivacyRestricted:
		return true
	}
	return false
}

// Slot 单例媒体槽位：每个槽位至多引用一个文件，更新时整体替换
type Slot string

const (
	SlotMainPhoto       Slot = "mainPhoto"
	SlotBackgroundImage Slot = "backgroundImage"
	SlotBackgroundMusic Slot = "backgroundMusic"
)

var Slots = []Slot{SlotMainPhoto, SlotBackgroundImage, SlotBackgroundMusic}

type Counter string

const (
	CounterViews   Counter = "views"
	CounterFlowers Counter = "flowers"
	CounterCandles Counter = "candles"
)

type Photo struct {
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Category    string     `json:"category,omitempty"`
}

type Video struct {
	URL         string    `json:"url"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Description string    `json:"description,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type Audio struct {
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type Document struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Type       string    `json:"type,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type TimelineEntry struct {
	Date        *time.Time `json:"date,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Photo       string     `json:"photo,omitempty"`
	Video       string     `json:"video,omitempty"`
	IsMilestone bool       `json:"isMilestone"`
}

type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ImportantDate struct {
	Type        string     `json:"type"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description,omitempty"`
}

type Memorial struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Name            string    `gorm:"size:128;not null" json:"name"`
	BirthDate       time.Time `gorm:"not null" json:"birthDate"`
	DeathDate       time.Time `gorm:"not null" json:"deathDate"`
	Hometown        string    `gorm:"size:128" json:"hometown,omitempty"`
	Profession      string    `gorm:"size:128" json:"profession,omitempty"`
	Epitaph         string    `gorm:"size:512" json:"epitaph,omitempty"`
	Biography       string    `gorm:"type:text" json:"biography,omitempty"`
	MainPhoto       string    `gorm:"size:255" json:"mainPhoto,omitempty"`
	BackgroundMusic string    `gorm:"size:255" json:"backgroundMusic,omitempty"`
	BackgroundImage string    `gorm:"size:255" json:"backgroundImage,omitempty"`
	Theme           string    `gorm:"size:32;not null;default:warm" json:"theme"`
	Privacy         Privacy   `gorm:"size:16;not null;default:semi-private;index" json:"privacy"`
	PasswordHash    string    `gorm:"size:100" json:"-"`
	CreatedBy       string    `gorm:"size:36;not null;index" json:"createdBy"`

	Admins []MemorialAdmin `gorm:"foreignKey:MemorialID" json:"-"`

	Photos         datatypes.JSONSlice[Photo]         `json:"photos"`
	Videos         datatypes.JSONSlice[Video]         `json:"videos"`
	Audios         datatypes.JSONSlice[Audio]         `json:"audios"`
	Documents      datatypes.JSONSlice[Document]      `json:"documents"`
	Timeline       datatypes.JSONSlice[TimelineEntry] `json:"timeline"`
	Messages       datatypes.JSONSlice[Message]       `json:"messages"`
	ImportantDates datatypes.JSONSlice[ImportantDate] `json:"importantDates"`

	Views   int64 `gorm:"not null;default:0" json:"views"`
	Flowers int64 `gorm:"not null;default:0" json:"flowers"`
	Candles int64 `gorm:"not null;default:0" json:"candles"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Memorial) TableName() string { return "memorials" }

// MemorialAdmin 管理员集合；创建者总在其中
type MemorialAdmin struct {
	MemorialID string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"primaryKey;size:36;index"`
	CreatedAt  time.Time `json:"-"`
}

func (MemorialAdmin) TableName() string { return "memorial_admins" }

func (m *Memorial) AdminIDs() []string {
	ids := make([]string, 0, len(m.Admins))
	for _, a := range m.Admins {
		ids = append(ids, a.UserID)
	}
	return ids
}

// IsMember 创建者或管理员
func (m *Memorial) IsMember(uid string) bool {
	if uid == "" {
		return false
	}
	return m.CreatedBy == uid || slices.Contains(m.AdminIDs(), uid)
}

func (m *Memorial) SlotRef(s Slot) string {
	switch s {
	case SlotMainPhoto:
		return m.MainPhoto
	case SlotBackgroundImage:
		return m.BackgroundImage
	case SlotBackgroundMusic:
		return m.BackgroundMusic
	}
	return ""
}

func (m *Memorial) SetSlotRef(s Slot, ref string) {
	switch s {
	case SlotMainPhoto:
		m.MainPhoto = ref
	case SlotBackgroundImage:
		m.BackgroundImage = ref
	case SlotBackgroundMusic:
		m.BackgroundMusic = ref
	}
}

// FileRefs 记录引用的全部文件（槽位 + 附件数组 + 时间线）
func (m *Memorial) FileRefs() []string {
	var refs []string
	add := func(r string) {
		if r != "" {
			refs = append(refs, r)
		}
	}
	for _, s := range Slots {
		add(m.SlotRef(s))
	}
	for _, p := range m.Photos {
		add(p.URL)
	}
	for _, v := range m.Videos {
		add(v.URL)
		add(v.Thumbnail)
	}
	for _, a := range m.Audios {
		add(a.URL)
	}
	for _, d := range m.Documents {
		add(d.URL)
	}
	for _, e := range m.Timeline {
		add(e.Photo)
		add(e.Video)
	}
	return refs
}

func (m Memorial) MarshalJSON() ([]byte, error) {
	type alias Memorial
	return json.Marshal(struct {
		alias
		Admins      []string `json:"admins"`
		HasPassword bool     `json:"hasPassword"`
	}{alias(m), m.AdminIDs(), m.PasswordHash != ""})
}

type MemorialRepository interface {
	Create(ctx context.Context, m *Memorial) error
	FindByID(ctx context.Context, id string) (*Memorial, error)
	ListPublic(ctx context.Context) ([]Memorial, error)
	ListByMember(ctx context.Context, uid string) ([]Memorial, error)
	ListAll(ctx context.Context, privacy Privacy, offset, limit int) ([]Memorial, int64, error)
	// Mutate 行锁内执行 fn 后整体保存；记录不存在返回 ErrRecordNotFound
	Mutate(ctx context.Context, id string, fn func(m *Memorial) error) (*Memorial, error)
	Delete(ctx context.Context, id string) error
	Increment(ctx context.Context, id string, c Counter) (bool, error)
	AddAdmin(ctx context.Context, id, uid string) error
	RemoveAdmin(ctx context.Context, id, uid string) error
}
