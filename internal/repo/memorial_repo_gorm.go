package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"memorial-site/internal/domain"
)

type MemorialRepo struct{ db *gorm.DB }

func NewMemorialRepo(db *gorm.DB) *MemorialRepo { return &MemorialRepo{db: db} }

// Create 纪念馆与管理员行同一事务写入
func (r *MemorialRepo) Create(ctx context.Context, m *domain.Memorial) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
}

func (r *MemorialRepo) FindByID(ctx context.Context, id string) (*domain.Memorial, error) {
	var m domain.Memorial
	err := r.db.WithContext(ctx).Preload("Admins").First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemorialRepo) ListPublic(ctx context.Context) ([]domain.Memorial, error) {
	var list []domain.Memorial
	err := r.db.WithContext(ctx).Preload("Admins").
		Where("privacy = ?", domain.PrivacyPublic).
		Order("created_at desc").
		Find(&list).Error
	return list, err
}

func (r *MemorialRepo) ListByMember(ctx context.Context, uid string) ([]domain.Memorial, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&domain.MemorialAdmin{}).Select("memorial_id").Where("user_id = ?", uid)
	var list []domain.Memorial
	err := db.Preload("Admins").
		Where("created_by = ? OR id IN (?)", uid, sub).
		Order("created_at desc").
		Find(&list).Error
	return list, err
}

func (r *MemorialRepo) ListAll(ctx context.Context, privacy domain.Privacy, offset, limit int) ([]domain.Memorial, int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Memorial{})
	if privacy != "" {
		tx = tx.Where("privacy = ?", privacy)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []domain.Memorial
	if err := tx.Preload("Admins").Offset(offset).Limit(limit).Order("created_at desc").Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Mutate SELECT ... FOR UPDATE 后执行 fn 并整行保存，fn 返回错误则回滚
func (r *MemorialRepo) Mutate(ctx context.Context, id string, fn func(m *domain.Memorial) error) (*domain.Memorial, error) {
	var m domain.Memorial
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("memorial_id = ?", id).Find(&m.Admins).Error; err != nil {
			return err
		}
		if err := fn(&m); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemorialRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("memorial_id = ?", id).Delete(&domain.MemorialAdmin{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Memorial{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrRecordNotFound
		}
		return nil
	})
}

// Increment 原子 +1，返回记录是否存在
func (r *MemorialRepo) Increment(ctx context.Context, id string, c domain.Counter) (bool, error) {
	col := string(c)
	switch c {
	case domain.CounterViews, domain.CounterFlowers, domain.CounterCandles:
	default:
		return false, errors.New("unknown counter " + col)
	}
	res := r.db.WithContext(ctx).Model(&domain.Memorial{}).Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", 1))
	return res.RowsAffected > 0, res.Error
}

func (r *MemorialRepo) AddAdmin(ctx context.Context, id, uid string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.MemorialAdmin{MemorialID: id, UserID: uid}).Error
}

func (r *MemorialRepo) RemoveAdmin(ctx context.Context, id, uid string) error {
	return r.db.WithContext(ctx).
		Where("memorial_id = ? AND user_id = ?", id, uid).
		Delete(&domain.MemorialAdmin{}).Error
}
