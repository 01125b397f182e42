// Package app 两个进程共用的装配：配置 → 存储 → 服务 → 路由依赖
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"memorial-site/internal/core/auth"
	"memorial-site/internal/core/cache"
	"memorial-site/internal/core/config"
	"memorial-site/internal/core/database"
	"memorial-site/internal/core/mail"
	"memorial-site/internal/core/media"
	"memorial-site/internal/domain"
	"memorial-site/internal/repo"
	"memorial-site/internal/repo/memory"
	"memorial-site/internal/service"
	"memorial-site/internal/transport/http/handler"
	"memorial-site/internal/transport/http/router"
)

type repos struct {
	users     domain.UserRepository
	memorials domain.MemorialRepository
	posts     domain.PostRepository
}

// Build 失败时已打开的资源会被释放
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (router.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	checks := map[string]handler.Check{}

	rs, closeDB, err := openRepos(cfg, l, checks)
	if err != nil {
		return router.Deps{}, cleanup, err
	}
	closers = append(closers, closeDB)

	store, err := newStore(cfg.Media)
	if err != nil {
		cleanup()
		return router.Deps{}, func() {}, fmt.Errorf("media store: %w", err)
	}
	ms := media.NewService(store, cfg.Media.MaxFileMB<<20, l)
	if err := ms.EnsureLayout(ctx); err != nil {
		cleanup()
		return router.Deps{}, func() {}, fmt.Errorf("media layout: %w", err)
	}
	l.Info("media store ready", zap.String("driver", cfg.Media.Driver), zap.Int64("max_bytes", ms.MaxBytes()))

	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if c != nil {
		closers = append(closers, func() { _ = c.Close() })
		checks["redis"] = c.Ping
		if err := c.Ping(ctx); err != nil {
			// 缓存不可用只降级，不阻止启动
			l.Warn("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	jwter := auth.NewJWTer(cfg.JWT)
	mailer := mail.New(cfg.Mail, l)
	hotTTL := time.Duration(cfg.Redis.HotTTLSec) * time.Second

	return router.Deps{
		Log:         l,
		JWT:         jwter,
		Auth:        service.NewAuthService(rs.users, jwter, mailer, cfg.App.ClientURL, cfg.App.AdminEmails, l),
		Memorials:   service.NewMemorialService(rs.memorials, rs.users, ms, l),
		Community:   service.NewCommunityService(rs.posts, rs.users, c, hotTTL, l),
		Users:       service.NewUserService(rs.users, l),
		Media:       ms,
		Checks:      checks,
		CORSOrigins: cfg.App.CORSOrigins,
	}, cleanup, nil
}

// openRepos driver=memory 时不连数据库，进程退出数据即丢失
func openRepos(cfg *config.Config, l *zap.Logger, checks map[string]handler.Check) (repos, func(), error) {
	if cfg.DB.Driver == "memory" {
		l.Warn("using in-memory repositories; data is not persisted")
		return repos{memory.NewUserRepo(), memory.NewMemorialRepo(), memory.NewPostRepo()}, func() {}, nil
	}

	db, err := database.NewGorm(cfg.DB, l)
	if err != nil {
		return repos{}, func() {}, fmt.Errorf("db open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return repos{}, func() {}, err
	}
	closeDB := func() { _ = sqlDB.Close() }
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			closeDB()
			return repos{}, func() {}, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}
	checks["db"] = sqlDB.PingContext
	return repos{repo.NewUserRepo(db), repo.NewMemorialRepo(db), repo.NewPostRepo(db)}, closeDB, nil
}

func newStore(c config.Media) (media.Store, error) {
	switch c.Driver {
	case "", "local":
		return media.NewLocalStore(c.Root), nil
	case "minio":
		return media.NewMinioStore(c.MinIO)
	}
	return nil, fmt.Errorf("unsupported media driver %q", c.Driver)
}
