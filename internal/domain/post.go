package domain

import (
	"context"
	"encoding/json"
	"time"
)

type Category string

const (
	CategorySharing  Category = "sharing"
	CategorySupport  Category = "support"
	CategoryQuestion Category = "question"
	CategoryOther    Category = "other"
)

var categoryLabels = map[Category]string{
	CategorySharing:  "分享",
	CategorySupport:  "情感支持",
	CategoryQuestion: "问答",
	CategoryOther:    "其他",
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label 展示名只在序列化时推导，不落库
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryOther]
}

type Post struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Title        string    `gorm:"size:100;not null" json:"title"`
	Content      string    `gorm:"type:text" json:"content,omitempty"`
	Category     Category  `gorm:"size:16;not null;default:sharing;index" json:"category"`
	AuthorID     string    `gorm:"size:36;not null;index" json:"author"`
	AuthorName   string    `gorm:"size:64;not null" json:"authorName"`
	LikeCount    int64     `gorm:"not null;default:0;index" json:"likeCount"`
	CommentCount int64     `gorm:"not null;default:0" json:"commentCount"`
	Views        int64     `gorm:"not null;default:0" json:"views"`
	IsPinned     bool      `gorm:"not null;default:false;index" json:"isPinned"`
	IsLocked     bool      `gorm:"not null;default:false" json:"isLocked"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Comments []Comment  `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	Likes    []PostLike `gorm:"foreignKey:PostID" json:"-"`
}

func (Post) TableName() string { return "posts" }

func (p Post) MarshalJSON() ([]byte, error) {
	type alias Post
	var likes []string
	if p.Likes != nil {
		likes = make([]string, 0, len(p.Likes))
		for _, l := range p.Likes {
			likes = append(likes, l.UserID)
		}
	}
	return json.Marshal(struct {
		alias
		CategoryLabel string   `json:"categoryLabel"`
		LikedBy       []string `json:"likes,omitempty"`
	}{alias(p), p.Category.Label(), likes})
}

type Comment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	PostID     string    `gorm:"size:36;not null;index" json:"-"`
	AuthorID   string    `gorm:"size:36;not null" json:"author"`
	AuthorName string    `gorm:"size:64" json:"authorName"`
	Content    string    `gorm:"size:1000;not null" json:"content"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (Comment) TableName() string { return "post_comments" }

// PostLike (post_id, user_id) 联合主键，天然去重
type PostLike struct {
	PostID    string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
}

func (PostLike) TableName() string { return "post_likes" }

type PostQuery struct {
	Page     int
	Limit    int
	Category Category
	Search   string
}

type PostRepository interface {
	Create(ctx context.Context, p *Post) error
	FindByID(ctx context.Context, id string) (*Post, error)
	// Detail 浏览数 +1 后加载评论和点赞
	Detail(ctx context.Context, id string) (*Post, error)
	List(ctx context.Context, q PostQuery) ([]Post, int64, error)
	Hot(ctx context.Context, limit int) ([]Post, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	// ToggleLike 点赞集合增删与 likeCount 重算在同一事务
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, likeCount int64, err error)
	AddComment(ctx context.Context, c *Comment) (commentCount int64, err error)
	FindComment(ctx context.Context, postID, commentID string) (*Comment, error)
	DeleteComment(ctx context.Context, postID, commentID string) (commentCount int64, err error)
	TogglePinned(ctx context.Context, id string) (bool, error)
	ToggleLocked(ctx context.Context, id string) (bool, error)
}
