package repo

import (
	"gorm.io/gorm"

	"memorial-site/internal/domain"
)

// AutoMigrate 建表顺序：被引用的表在前
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Memorial{},
		&domain.MemorialAdmin{},
		&domain.Post{},
		&domain.Comment{},
		&domain.PostLike{},
	)
}

var (
	_ domain.UserRepository     = (*UserRepo)(nil)
	_ domain.MemorialRepository = (*MemorialRepo)(nil)
	_ domain.PostRepository     = (*PostRepo)(nil)
)
