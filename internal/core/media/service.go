package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"memorial-site/internal/domain"
)

var (
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "memorial_media_uploads_total", Help: "Stored uploads by category"},
		[]string{"kind"},
	)
	reclaimTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "memorial_media_reclaimed_total", Help: "Stale media deletions by result"},
		[]string{"result"},
	)
)

func init() { prometheus.MustRegister(uploadsTotal, reclaimTotal) }

// Upload 一个待保存的上传文件
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

type Service struct {
	store    Store
	maxBytes int64
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, maxBytes int64, l *zap.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{store: store, maxBytes: maxBytes, log: l, now: time.Now}
}

func (s *Service) MaxBytes() int64 { return s.maxBytes }

func (s *Service) EnsureLayout(ctx context.Context) error { return s.store.EnsureLayout(ctx) }

// sniffHead 声明类型缺失时按内容识别
const sniffHead = 3072

// Save 校验大小与类型后落盘，返回引用路径；want 非空时限定分类
func (s *Service) Save(ctx context.Context, up Upload, want ...Kind) (string, error) {
	if up.Size > s.maxBytes {
		return "", domain.TooLarge("payload too large")
	}
	rc, err := up.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var r io.Reader = rc
	ct := up.ContentType
	if ct == "" || ct == "application/octet-stream" {
		head := make([]byte, sniffHead)
		n, err := io.ReadFull(rc, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return "", err
		}
		head = head[:n]
		ct = mimetype.Detect(head).String()
		r = io.MultiReader(bytes.NewReader(head), rc)
	}

	if err := Accept(up.Filename, ct); err != nil {
		return "", err
	}
	kind := Classify(ct)
	if len(want) > 0 && !slices.Contains(want, kind) {
		return "", domain.UploadRejected("disallowed file type")
	}

	if err := s.store.EnsureLayout(ctx); err != nil {
		return "", err
	}
	name := NewName(up.Filename, s.now())
	n, err := s.store.Save(ctx, kind, name, io.LimitReader(r, s.maxBytes+1), up.Size, ct)
	if err != nil {
		return "", err
	}
	if n > s.maxBytes {
		_ = s.store.Delete(ctx, kind, name)
		return "", domain.TooLarge("payload too large")
	}

	uploadsTotal.WithLabelValues(string(kind)).Inc()
	ref := Ref(kind, name)
	s.log.Debug("media stored", zap.String("ref", ref), zap.Int64("size", n), zap.String("content_type", ct))
	return ref, nil
}

// Reclaim 尽力删除旧文件；失败只记 warn，不影响调用方
func (s *Service) Reclaim(ctx context.Context, refs ...string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		k, name, err := ParseRef(ref)
		if err != nil {
			continue // 外链等非本地引用
		}
		if err := s.store.Delete(ctx, k, name); err != nil {
			reclaimTotal.WithLabelValues("failed").Inc()
			s.log.Warn("reclaim stale media failed", zap.String("ref", ref), zap.Error(err))
			continue
		}
		reclaimTotal.WithLabelValues("ok").Inc()
		s.log.Info("stale media reclaimed", zap.String("ref", ref))
	}
}

func (s *Service) Open(ctx context.Context, category, name string) (io.ReadSeekCloser, ObjectInfo, error) {
	k, n, err := ParseLocation(category, name)
	if err != nil {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return s.store.Open(ctx, k, n)
}
