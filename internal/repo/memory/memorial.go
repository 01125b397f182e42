package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"memorial-site/internal/domain"
)

type MemorialRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Memorial
}

func NewMemorialRepo() *MemorialRepo { return &MemorialRepo{items: map[string]*domain.Memorial{}} }

// clone 切片字段也要复制，调用方修改不能影响存储
func clone(m *domain.Memorial) *domain.Memorial {
	cp := *m
	cp.Admins = slices.Clone(m.Admins)
	cp.Photos = slices.Clone(m.Photos)
	cp.Videos = slices.Clone(m.Videos)
	cp.Audios = slices.Clone(m.Audios)
	cp.Documents = slices.Clone(m.Documents)
	cp.Timeline = slices.Clone(m.Timeline)
	cp.Messages = slices.Clone(m.Messages)
	cp.ImportantDates = slices.Clone(m.ImportantDates)
	return &cp
}

func (r *MemorialRepo) Create(_ context.Context, m *domain.Memorial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	r.items[m.ID] = clone(m)
	return nil
}

func (r *MemorialRepo) FindByID(_ context.Context, id string) (*domain.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

func (r *MemorialRepo) filter(match func(*domain.Memorial) bool) []domain.Memorial {
	var out []domain.Memorial
	for _, m := range r.items {
		if match(m) {
			out = append(out, *clone(m))
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Memorial) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (r *MemorialRepo) ListPublic(_ context.Context) ([]domain.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(m *domain.Memorial) bool { return m.Privacy == domain.PrivacyPublic }), nil
}

func (r *MemorialRepo) ListByMember(_ context.Context, uid string) ([]domain.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(m *domain.Memorial) bool { return m.IsMember(uid) }), nil
}

func (r *MemorialRepo) ListAll(_ context.Context, privacy domain.Privacy, offset, limit int) ([]domain.Memorial, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filter(func(m *domain.Memorial) bool { return privacy == "" || m.Privacy == privacy })
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *MemorialRepo) Mutate(_ context.Context, id string, fn func(m *domain.Memorial) error) (*domain.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	m := clone(cur)
	if err := fn(m); err != nil {
		return nil, err
	}
	m.Admins = cur.Admins // 管理员集合只经 AddAdmin / RemoveAdmin 修改
	m.UpdatedAt = time.Now()
	r.items[id] = clone(m)
	return m, nil
}

func (r *MemorialRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemorialRepo) Increment(_ context.Context, id string, c domain.Counter) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return false, nil
	}
	switch c {
	case domain.CounterViews:
		m.Views++
	case domain.CounterFlowers:
		m.Flowers++
	case domain.CounterCandles:
		m.Candles++
	default:
		return false, errors.New("unknown counter " + string(c))
	}
	return true, nil
}

func (r *MemorialRepo) AddAdmin(_ context.Context, id, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if !slices.Contains(m.AdminIDs(), uid) {
		m.Admins = append(m.Admins, domain.MemorialAdmin{MemorialID: id, UserID: uid, CreatedAt: time.Now()})
	}
	return nil
}

func (r *MemorialRepo) RemoveAdmin(_ context.Context, id, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	m.Admins = slices.DeleteFunc(m.Admins, func(a domain.MemorialAdmin) bool { return a.UserID == uid })
	return nil
}
